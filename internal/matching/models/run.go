package models

import (
	"time"

	dErrors "matchcore/pkg/domain-errors"
)

// RunMode selects pair or group matching.
type RunMode string

const (
	RunModePairs  RunMode = "pairs"
	RunModeGroups RunMode = "groups"
)

// RunKind records how a run persisted its groups.
type RunKind string

const (
	RunKindLock       RunKind = "lock"
	RunKindSuggestion RunKind = "suggestion"
)

// RunStatus tracks whether a run persisted every computed group.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
)

const (
	DefaultPairSize  = 2
	DefaultGroupSize = 3
	MaxGroupSize     = 8
)

// ParseRunMode validates a mode string from a trigger.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case RunModePairs, RunModeGroups:
		return RunMode(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "mode is required")
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported mode %q", s)
}

// ResolveGroupSize applies the mode default when size is zero and checks that
// the size is consistent with the mode.
func ResolveGroupSize(mode RunMode, size int) (int, error) {
	if size == 0 {
		if mode == RunModePairs {
			return DefaultPairSize, nil
		}
		return DefaultGroupSize, nil
	}
	if size < 2 {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "group size must be at least 2, got %d", size)
	}
	if size > MaxGroupSize {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "group size must be at most %d, got %d", MaxGroupSize, size)
	}
	switch mode {
	case RunModePairs:
		if size != 2 {
			return 0, dErrors.Newf(dErrors.CodeInvalidInput, "pairs mode requires group size 2, got %d", size)
		}
	case RunModeGroups:
		if size < 3 {
			return 0, dErrors.Newf(dErrors.CodeInvalidInput, "groups mode requires group size of at least 3, got %d", size)
		}
	}
	return size, nil
}

// MatchRun is one invocation of the orchestrator. Its fields are fixed at
// creation; only Status and CompletedAt advance.
type MatchRun struct {
	RunID       string
	Mode        RunMode
	GroupSize   int
	Kind        RunKind
	Filter      CohortFilter
	CallerID    string
	Status      RunStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SameShape reports whether other describes the same run parameters. A run id
// reused with different parameters is a caller error.
func (r *MatchRun) SameShape(other *MatchRun) bool {
	return r.Mode == other.Mode && r.GroupSize == other.GroupSize && r.Kind == other.Kind
}
