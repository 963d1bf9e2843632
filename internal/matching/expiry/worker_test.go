package expiry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"matchcore/internal/matching/expiry"
	matchmetrics "matchcore/internal/matching/metrics"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports/mocks"
	"matchcore/internal/matching/service"
	"matchcore/internal/matching/store/memory"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/requestcontext"
)

type WorkerSuite struct {
	suite.Suite
	store    *memory.InMemory
	notifier *mocks.MockNotifier
	metrics  *matchmetrics.Metrics
	worker   *expiry.Worker
	now      time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.store = memory.NewInMemory()
	s.notifier = mocks.NewMockNotifier(ctrl)
	s.metrics = matchmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.worker = expiry.New(s.store, expiry.WithNotifier(s.notifier), expiry.WithMetrics(s.metrics))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *WorkerSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// seedRun creates run r1 with suggestions {a,b} and {c,d}.
func (s *WorkerSuite) seedRun() []*models.Suggestion {
	for id, v := range map[string][]float64{"a": {1, 0}, "b": {1, 0.1}, "c": {0, 1}, "d": {0.1, 1}} {
		s.store.UpsertCandidate(&models.Candidate{ID: id, Eligible: true, Vector: v})
	}
	svc := service.New(s.store, service.WithConfig(service.Config{VectorDim: 2, ChatUnlockWindow: 24 * time.Hour}))
	result, err := svc.RunMatchingAsSuggestions(s.at(s.now), service.RunRequest{RunID: "r1", Mode: models.RunModePairs})
	s.Require().NoError(err)
	s.Require().Len(result.Suggestions, 2)
	return result.Suggestions
}

func (s *WorkerSuite) TestExpireSuggestions() {
	s.Run("nothing changes before the deadline", func() {
		s.SetupTest()
		s.seedRun()
		sweep, err := s.worker.ExpireSuggestions(s.at(s.now.Add(71 * time.Hour)))
		s.Require().NoError(err)
		s.Zero(sweep.Changed)
	})

	s.Run("every suggestion expires after the deadline, once", func() {
		s.SetupTest()
		s.seedRun()
		s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		after := s.at(s.now.Add(73 * time.Hour))
		sweep, err := s.worker.ExpireSuggestions(after)
		s.Require().NoError(err)
		s.Equal(2, sweep.Changed)
		for _, sg := range sweep.Suggestions {
			s.Equal(models.SuggestionStatusExpired, sg.Status)
		}
		s.InDelta(2, testutil.ToFloat64(s.metrics.SuggestionsExpired), 0)

		again, err := s.worker.ExpireSuggestions(after)
		s.Require().NoError(err)
		s.Zero(again.Changed)
	})

	s.Run("accepted suggestions expire too, terminal ones do not", func() {
		s.SetupTest()
		suggestions := s.seedRun()
		accepted := suggestions[0]
		s.Require().NoError(accepted.Accept(accepted.MemberIDs[0], s.now))
		s.Require().NoError(s.store.UpdateSuggestion(context.Background(), accepted))
		declined := suggestions[1]
		s.Require().NoError(declined.Decline(declined.MemberIDs[0], s.now))
		s.Require().NoError(s.store.UpdateSuggestion(context.Background(), declined))

		s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		sweep, err := s.worker.ExpireSuggestions(s.at(s.now.Add(73 * time.Hour)))
		s.Require().NoError(err)
		s.Equal(1, sweep.Changed)
		s.Equal(accepted.ID, sweep.Suggestions[0].ID)
	})

	s.Run("notifier failures do not fail the sweep", func() {
		s.SetupTest()
		s.seedRun()
		s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("broker down"))
		sweep, err := s.worker.ExpireSuggestions(s.at(s.now.Add(73 * time.Hour)))
		s.Require().NoError(err)
		s.Equal(2, sweep.Changed)
	})
}

func (s *WorkerSuite) TestExpireLocks() {
	lock := func(runID string, members ...string) *models.MatchLock {
		deadline := s.now.Add(24 * time.Hour)
		l, _, err := s.store.LockMatch(context.Background(), models.LockRequest{
			RunID: runID, MemberIDs: members, LockedAt: s.now, LockExpiresAt: &deadline,
		})
		s.Require().NoError(err)
		return l
	}

	s.Run("overdue locks are archived and their members freed", func() {
		s.SetupTest()
		l := lock("r1", "a", "b")
		s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, events ...models.Event) error {
				for _, e := range events {
					s.Equal(models.EventLockArchived, e.Type)
					s.Equal(models.LockReasonUnlockDeadline, e.Reason)
					s.Equal(l.ID, e.LockID)
				}
				return nil
			})

		sweep, err := s.worker.ExpireLocks(s.at(s.now.Add(25 * time.Hour)))
		s.Require().NoError(err)
		s.Equal(1, sweep.Archived)
		s.Equal(models.LockStatusArchived, sweep.Locks[0].Status)

		again, err := s.worker.ExpireLocks(s.at(s.now.Add(26 * time.Hour)))
		s.Require().NoError(err)
		s.Zero(again.Archived, "an archived lock never re-fires")

		_, _, err = s.store.LockMatch(context.Background(), models.LockRequest{RunID: "r2", MemberIDs: []string{"a", "c"}, LockedAt: s.now})
		s.NoError(err, "archived members can be matched again")
	})

	s.Run("confirmed and not yet due locks are left alone", func() {
		s.SetupTest()
		confirmed := lock("r1", "a", "b")
		s.Require().NoError(confirmed.Confirm("a", s.now))
		s.Require().NoError(confirmed.Confirm("b", s.now))
		s.Require().NoError(s.store.UpdateLock(context.Background(), confirmed))
		lock("r1", "c", "d")

		sweep, err := s.worker.ExpireLocks(s.at(s.now.Add(time.Hour)))
		s.Require().NoError(err)
		s.Zero(sweep.Archived)

		s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		sweep, err = s.worker.ExpireLocks(s.at(s.now.Add(25 * time.Hour)))
		s.Require().NoError(err)
		s.Equal(1, sweep.Archived)
		s.Equal([]string{"c", "d"}, sweep.Locks[0].MemberIDs)
	})
}

func (s *WorkerSuite) TestSweep() {
	s.seedRun()
	s.notifier.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	result, err := s.worker.Sweep(s.at(s.now.Add(73 * time.Hour)))
	s.Require().NoError(err)
	s.Equal(2, result.Suggestions.Changed)
	s.Zero(result.Locks.Archived)
}

type failingStore struct{}

func (failingStore) ExpireSuggestions(context.Context, time.Time) ([]*models.Suggestion, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) ArchiveOverdueLocks(context.Context, time.Time) ([]*models.MatchLock, error) {
	return nil, nil
}

func (s *WorkerSuite) TestStoreFailure() {
	w := expiry.New(failingStore{})
	_, err := w.ExpireSuggestions(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeRepository))

	_, err = w.Sweep(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeRepository))
}
