package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"matchcore/internal/matching/models"
	dErrors "matchcore/pkg/domain-errors"
)

type SuggestionSuite struct {
	suite.Suite
	now time.Time
}

func TestSuggestionSuite(t *testing.T) {
	suite.Run(t, new(SuggestionSuite))
}

func (s *SuggestionSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SuggestionSuite) newSuggestion(members ...string) *models.Suggestion {
	sg, err := models.NewSuggestion("r1", members, 80, s.now, 0)
	s.Require().NoError(err)
	return sg
}

func (s *SuggestionSuite) TestConstruction() {
	s.Run("sorts members and defaults the ttl", func() {
		sg := s.newSuggestion("carol", "alice")
		s.Equal([]string{"alice", "carol"}, sg.MemberIDs)
		s.Equal(models.SuggestionStatusPending, sg.Status)
		s.Equal(s.now.Add(72*time.Hour), sg.ExpiresAt)
		s.Empty(sg.AcceptedBy)
	})

	s.Run("id is stable for the same run and member set", func() {
		a := s.newSuggestion("bob", "alice")
		b := s.newSuggestion("alice", "bob")
		s.Equal(a.ID, b.ID)

		other, err := models.NewSuggestion("r2", []string{"alice", "bob"}, 80, s.now, 0)
		s.Require().NoError(err)
		s.NotEqual(a.ID, other.ID)
	})

	s.Run("rejects duplicate members", func() {
		_, err := models.NewSuggestion("r1", []string{"alice", "alice"}, 80, s.now, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects a single member", func() {
		_, err := models.NewSuggestion("r1", []string{"alice"}, 80, s.now, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *SuggestionSuite) TestAcceptance() {
	s.Run("partial acceptance moves to accepted", func() {
		sg := s.newSuggestion("alice", "bob", "carol")
		s.Require().NoError(sg.Accept("bob", s.now))
		s.Equal(models.SuggestionStatusAccepted, sg.Status)
		s.Equal([]string{"bob"}, sg.AcceptedBy)
		s.False(sg.AllAccepted())
	})

	s.Run("accepting twice is a no-op", func() {
		sg := s.newSuggestion("alice", "bob")
		s.Require().NoError(sg.Accept("alice", s.now))
		s.Require().NoError(sg.Accept("alice", s.now))
		s.Equal([]string{"alice"}, sg.AcceptedBy)
	})

	s.Run("non-members are forbidden", func() {
		sg := s.newSuggestion("alice", "bob")
		err := sg.Accept("mallory", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("confirm requires every member", func() {
		sg := s.newSuggestion("alice", "bob")
		s.Require().NoError(sg.Accept("alice", s.now))
		s.True(dErrors.HasCode(sg.CanConfirm(), dErrors.CodeInvalidState))

		s.Require().NoError(sg.Accept("bob", s.now))
		s.Require().NoError(sg.CanConfirm())
		sg.ApplyConfirm(s.now)
		s.Equal(models.SuggestionStatusConfirmed, sg.Status)
	})
}

func (s *SuggestionSuite) TestTerminalStates() {
	terminal := map[string]func(*models.Suggestion){
		"declined": func(sg *models.Suggestion) { s.Require().NoError(sg.Decline("alice", s.now)) },
		"expired":  func(sg *models.Suggestion) { s.Require().NoError(sg.Expire(s.now.Add(73 * time.Hour))) },
		"archived": func(sg *models.Suggestion) { s.Require().NoError(sg.Archive(s.now)) },
		"confirmed": func(sg *models.Suggestion) {
			s.Require().NoError(sg.Accept("alice", s.now))
			s.Require().NoError(sg.Accept("bob", s.now))
			sg.ApplyConfirm(s.now)
		},
	}
	for name, apply := range terminal {
		s.Run(name+" rejects further transitions", func() {
			sg := s.newSuggestion("alice", "bob")
			apply(sg)
			s.True(dErrors.HasCode(sg.Accept("bob", s.now), dErrors.CodeInvalidState))
			s.True(dErrors.HasCode(sg.Decline("bob", s.now), dErrors.CodeInvalidState))
			s.True(dErrors.HasCode(sg.Expire(s.now.Add(100*time.Hour)), dErrors.CodeInvalidState))
			s.True(dErrors.HasCode(sg.Archive(s.now), dErrors.CodeInvalidState))
		})
	}
}

func (s *SuggestionSuite) TestExpire() {
	s.Run("refuses before the deadline", func() {
		sg := s.newSuggestion("alice", "bob")
		err := sg.Expire(s.now.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal(models.SuggestionStatusPending, sg.Status)
	})

	s.Run("exact deadline is not yet past", func() {
		sg := s.newSuggestion("alice", "bob")
		s.False(sg.IsPastDeadline(sg.ExpiresAt))
		s.True(sg.IsPastDeadline(sg.ExpiresAt.Add(time.Nanosecond)))
	})

	s.Run("expires an accepted suggestion", func() {
		sg := s.newSuggestion("alice", "bob")
		s.Require().NoError(sg.Accept("alice", s.now))
		s.Require().NoError(sg.Expire(sg.ExpiresAt.Add(time.Second)))
		s.Equal(models.SuggestionStatusExpired, sg.Status)
	})
}

func (s *SuggestionSuite) TestClone() {
	sg := s.newSuggestion("alice", "bob")
	c := sg.Clone()
	c.MemberIDs[0] = "zed"
	s.Equal("alice", sg.MemberIDs[0])
}
