package models

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	id "matchcore/pkg/domain"
	dErrors "matchcore/pkg/domain-errors"
)

// groupKeySeparator cannot appear in a user id (see domain.ParseUserID).
const groupKeySeparator = "|"

// suggestionNamespace scopes deterministic suggestion and lock ids.
var suggestionNamespace = uuid.MustParse("6f1c2a4e-5b7d-4e8f-9a0b-1c2d3e4f5a6b")

// GroupKey canonicalizes a member set: ids sorted ascending and joined by "|".
// Two groups with the same members always share a key regardless of order.
func GroupKey(memberIDs []string) string {
	sorted := slices.Clone(memberIDs)
	slices.Sort(sorted)
	return strings.Join(sorted, groupKeySeparator)
}

// NormalizeMembers validates a member list and returns a sorted copy.
//
// Errors: CodeInvalidInput when fewer than two members are given, any id is
// malformed, or an id repeats.
func NormalizeMembers(memberIDs []string) ([]string, error) {
	if len(memberIDs) < 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a match needs at least two members")
	}
	out := make([]string, 0, len(memberIDs))
	for _, raw := range memberIDs {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	slices.Sort(out)
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate member %q", out[i])
		}
	}
	return out, nil
}

// SuggestionID derives the stable id of the suggestion a run creates for a
// member set, so a retried run lands on the same row.
func SuggestionID(runID, groupKey string) string {
	return uuid.NewSHA1(suggestionNamespace, []byte("suggestion/"+runID+"/"+groupKey)).String()
}

// LockID derives the stable id of a lock for a member set within a run.
func LockID(runID, groupKey string) string {
	return uuid.NewSHA1(suggestionNamespace, []byte("lock/"+runID+"/"+groupKey)).String()
}

// Overlaps reports whether two sorted member lists share any id.
func Overlaps(a, b []string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}
