package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	"matchcore/internal/matching/scoring"
	"matchcore/internal/matching/solver"
	id "matchcore/pkg/domain"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/platform/sentinel"
	"matchcore/pkg/requestcontext"
)

// RunRequest triggers a matching run. RunID is optional; when empty one is
// generated. Reusing a RunID makes the call idempotent.
type RunRequest struct {
	RunID     string
	Mode      models.RunMode
	GroupSize int
	Filter    models.CohortFilter
	Timeout   time.Duration
}

// GroupError reports a computed group that was not persisted.
type GroupError struct {
	MemberIDs []string
	Err       error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group %s: %v", models.GroupKey(e.MemberIDs), e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// Code classifies the failure (conflict, repository_error, timeout, ...).
func (e *GroupError) Code() dErrors.Code { return dErrors.CodeOf(e.Err) }

// Result describes a run. Created counts every group the run has persisted,
// including groups kept from an interrupted earlier attempt with the same
// run id. A small cohort is not an error: Message explains it.
type Result struct {
	RunID        string
	Kind         models.RunKind
	Mode         models.RunMode
	GroupSize    int
	Status       models.RunStatus
	Candidates   int
	Created      int
	Suggestions  []*models.Suggestion
	Locks        []*models.MatchLock
	Errors       []*GroupError
	NotProcessed []string
	Unmatched    []string
	Replayed     bool
	Message      string
}

// RunMatching locks every computed group immediately and marks its members
// matched.
func (s *Service) RunMatching(ctx context.Context, req RunRequest) (*Result, error) {
	return s.run(ctx, req, models.RunKindLock)
}

// RunMatchingAsSuggestions persists every computed group as a pending
// suggestion awaiting all members' acceptance. Nothing is locked.
func (s *Service) RunMatchingAsSuggestions(ctx context.Context, req RunRequest) (*Result, error) {
	return s.run(ctx, req, models.RunKindSuggestion)
}

func (s *Service) run(ctx context.Context, req RunRequest, kind models.RunKind) (*Result, error) {
	start := time.Now()
	run, err := s.newRun(ctx, req, kind)
	if err != nil {
		s.metrics.IncrementRun(string(kind), "rejected")
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.RunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "matching.run", trace.WithAttributes(
		attribute.String("run_id", run.RunID),
		attribute.String("kind", string(kind)),
		attribute.String("mode", string(run.Mode)),
		attribute.Int("group_size", run.GroupSize),
	))
	defer span.End()

	release, err := s.acquireGuard(ctx, run.Filter)
	if err != nil {
		span.SetStatus(codes.Error, "cohort busy")
		s.metrics.IncrementRun(string(kind), "rejected")
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	stored, created, err := s.repo.CreateRun(ctx, run)
	if err != nil {
		return nil, translate(err, "failed to record run")
	}
	if !created {
		if !stored.SameShape(run) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"run id %q was already used for a %s run with mode %s and group size %d",
				run.RunID, stored.Kind, stored.Mode, stored.GroupSize)
		}
		if stored.Status == models.RunStatusCompleted {
			result, err := s.replay(ctx, stored)
			if err == nil {
				s.metrics.IncrementRun(string(kind), "replayed")
			}
			return result, err
		}
		s.logger.InfoContext(ctx, "resuming unfinished matching run", "run_id", run.RunID, "status", string(stored.Status))
	}

	result := &Result{RunID: run.RunID, Kind: kind, Mode: run.Mode, GroupSize: run.GroupSize}
	if !created {
		if err := s.carryOver(ctx, run, result); err != nil {
			s.metrics.IncrementRun(string(kind), "failed")
			return nil, err
		}
	}
	execErr := s.execute(ctx, run, result)

	result.Status = models.RunStatusCompleted
	if execErr != nil || len(result.Errors) > 0 || len(result.NotProcessed) > 0 {
		result.Status = models.RunStatusPartial
	}
	s.finishRun(ctx, run.RunID, result.Status)
	s.metrics.ObserveRunDuration(string(kind), time.Since(start))

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "run failed")
		s.metrics.IncrementRun(string(kind), "failed")
		s.logger.ErrorContext(ctx, "matching run failed",
			"run_id", run.RunID,
			"mode", string(run.Mode),
			"group_size", run.GroupSize,
			"error", execErr,
		)
		return nil, execErr
	}

	span.SetAttributes(attribute.Int("created", result.Created), attribute.Int("errors", len(result.Errors)))
	s.metrics.IncrementRun(string(kind), string(result.Status))
	s.metrics.AddGroupsCreated(string(kind), result.Created)
	s.logger.InfoContext(ctx, "matching run finished",
		"run_id", run.RunID,
		"kind", string(kind),
		"mode", string(run.Mode),
		"group_size", run.GroupSize,
		"candidates", result.Candidates,
		"created", result.Created,
		"errors", len(result.Errors),
		"not_processed", len(result.NotProcessed),
		"status", string(result.Status),
	)
	return result, nil
}

func (s *Service) newRun(ctx context.Context, req RunRequest, kind models.RunKind) (*models.MatchRun, error) {
	mode, err := models.ParseRunMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	size, err := models.ResolveGroupSize(mode, req.GroupSize)
	if err != nil {
		return nil, err
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	runID := req.RunID
	if runID == "" {
		runID = id.NewRunID(now)
	} else if runID, err = id.ParseRunID(runID); err != nil {
		return nil, err
	}
	return &models.MatchRun{
		RunID:     runID,
		Mode:      mode,
		GroupSize: size,
		Kind:      kind,
		Filter:    req.Filter,
		CallerID:  requestcontext.CallerID(ctx),
		Status:    models.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *Service) acquireGuard(ctx context.Context, filter models.CohortFilter) (func(context.Context), error) {
	noop := func(context.Context) {}
	if s.guard == nil {
		return noop, nil
	}
	release, err := s.guard.Acquire(ctx, "matching:cohort:"+filter.ScopeKey())
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "a matching run is already in progress for this cohort")
	case err != nil:
		s.logger.WarnContext(ctx, "run guard unavailable, continuing without it", "error", err)
		return noop, nil
	}
	return release, nil
}

func (s *Service) finishRun(ctx context.Context, runID string, status models.RunStatus) {
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.FinishRun(ctx, runID, status, requestcontext.Now(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to record run status", "run_id", runID, "status", string(status), "error", err)
	}
}

// carryOver seeds a resumed run's result with the groups earlier attempts
// persisted. With ExcludeAlreadyMatched their members drop out of the new
// snapshot, so the solver never emits those groups again.
func (s *Service) carryOver(ctx context.Context, run *models.MatchRun, result *Result) error {
	switch run.Kind {
	case models.RunKindSuggestion:
		suggestions, err := s.repo.ListSuggestionsByRun(ctx, run.RunID)
		if err != nil {
			return translate(err, "failed to load run suggestions")
		}
		result.Suggestions = suggestions
		result.Created = len(suggestions)
	default:
		runID := run.RunID
		locks, err := s.repo.ListMatches(ctx, models.MatchQuery{RunID: &runID})
		if err != nil {
			return translate(err, "failed to load run matches")
		}
		result.Locks = locks
		result.Created = len(locks)
	}
	return nil
}

// replay returns what a completed run persisted without recomputing.
func (s *Service) replay(ctx context.Context, run *models.MatchRun) (*Result, error) {
	result := &Result{
		RunID:     run.RunID,
		Kind:      run.Kind,
		Mode:      run.Mode,
		GroupSize: run.GroupSize,
		Status:    run.Status,
		Replayed:  true,
	}
	if err := s.carryOver(ctx, run, result); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "replayed completed matching run", "run_id", run.RunID, "created", result.Created)
	return result, nil
}

// execute runs snapshot, scoring, solving and persistence in that order.
func (s *Service) execute(ctx context.Context, run *models.MatchRun, result *Result) error {
	candidates, blocks, err := s.snapshot(ctx, run.Filter)
	if err != nil {
		return err
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		result.Message = "no eligible candidates"
		return nil
	}
	if !run.Filter.MeetsMinSize(len(candidates)) || len(candidates) < run.GroupSize {
		result.Unmatched = candidateIDs(candidates)
		result.Message = dErrors.Newf(dErrors.CodeCapacity,
			"cohort of %d cannot form groups of %d", len(candidates), run.GroupSize).Error()
		return nil
	}
	if err := s.checkDimensions(candidates); err != nil {
		return err
	}

	assignment, err := s.solve(ctx, run, candidates, blocks)
	if err != nil {
		return err
	}
	result.Unmatched = assignment.Unmatched
	if len(assignment.Groups) == 0 {
		result.Message = dErrors.New(dErrors.CodeCapacity, "no valid assignment for this cohort").Error()
		return nil
	}

	if run.Kind == models.RunKindSuggestion {
		return s.persistSuggestions(ctx, run, assignment.Groups, result)
	}
	s.persistLocks(ctx, run, assignment.Groups, result)
	return nil
}

// snapshot reads candidates and blocks inside one transaction so exclusion
// data matches the candidate list.
func (s *Service) snapshot(ctx context.Context, filter models.CohortFilter) ([]*models.Candidate, []*models.BlockEntry, error) {
	var (
		candidates []*models.Candidate
		blocks     []*models.BlockEntry
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		var err error
		if candidates, err = repo.ListEligibleCandidates(ctx, filter); err != nil {
			return err
		}
		blocks, err = repo.ListActiveBlocks(ctx)
		return err
	})
	if err != nil {
		return nil, nil, translate(err, "failed to load cohort snapshot")
	}
	return candidates, blocks, nil
}

func (s *Service) checkDimensions(candidates []*models.Candidate) error {
	dim := s.cfg.VectorDim
	if dim <= 0 {
		dim = len(candidates[0].Vector)
	}
	for _, c := range candidates {
		if len(c.Vector) != dim {
			return dErrors.Newf(dErrors.CodeInvalidInput,
				"candidate %s has a %d-dimensional vector, expected %d", c.ID, len(c.Vector), dim)
		}
	}
	return nil
}

func (s *Service) solve(ctx context.Context, run *models.MatchRun, candidates []*models.Candidate, blocks []*models.BlockEntry) (solver.Assignment, error) {
	_, span := s.tracer.Start(ctx, "matching.solve")
	defer span.End()
	start := time.Now()

	ids := candidateIDs(candidates)
	vectors := make([][]float64, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.Vector
	}
	matrix := scoring.NewMatrix(vectors)
	blockSet := models.NewBlockSet(blocks)

	opts := s.cfg.Solver
	if opts.Seed == 0 {
		opts.Seed = runSeed(run.RunID)
	}
	assignment, err := solver.Solve(solver.Input{
		IDs:       ids,
		GroupSize: run.GroupSize,
		Score:     matrix.At,
		Blocked:   func(i, j int) bool { return blockSet.Blocked(ids[i], ids[j]) },
	}, opts)
	if err != nil {
		return solver.Assignment{}, err
	}

	s.metrics.ObserveSolveDuration(string(assignment.Strategy), time.Since(start))
	span.SetAttributes(
		attribute.String("strategy", string(assignment.Strategy)),
		attribute.Int("candidates", len(ids)),
		attribute.Int("blocks", blockSet.Len()),
		attribute.Int("groups", len(assignment.Groups)),
	)
	return assignment, nil
}

// runSeed keeps local search reproducible across retries of the same run.
func runSeed(runID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return h.Sum64()
}

func (s *Service) persistSuggestions(ctx context.Context, run *models.MatchRun, groups []solver.Group, result *Result) error {
	existing, err := s.repo.ListSuggestionsByRun(ctx, run.RunID)
	if err != nil {
		return translate(err, "failed to load run suggestions")
	}
	byKey := make(map[string]*models.Suggestion, len(existing))
	claimed := make(map[string]string)
	for _, sg := range existing {
		key := sg.GroupKey()
		byKey[key] = sg
		if sg.Status.IsActive() {
			for _, m := range sg.MemberIDs {
				claimed[m] = key
			}
		}
	}

	counted := make(map[string]bool, len(result.Suggestions))
	for _, sg := range result.Suggestions {
		counted[sg.ID] = true
	}

	now := requestcontext.Now(ctx)
	var fresh []*models.Suggestion
	for i, g := range groups {
		if ctx.Err() != nil {
			result.NotProcessed = appendMembers(result.NotProcessed, groups[i:])
			break
		}
		key := models.GroupKey(g.MemberIDs)
		if prior, ok := byKey[key]; ok {
			if !counted[prior.ID] {
				counted[prior.ID] = true
				result.Suggestions = append(result.Suggestions, prior)
				result.Created++
			}
			continue
		}
		if member, holder := firstClaimed(g.MemberIDs, claimed); holder != "" {
			s.groupError(ctx, result, g.MemberIDs, dErrors.Newf(dErrors.CodeConflict,
				"member %s already has an active suggestion in run %s", member, run.RunID))
			continue
		}
		sg, err := models.NewSuggestion(run.RunID, g.MemberIDs, g.Score, now, s.cfg.SuggestionTTL)
		if err != nil {
			s.groupError(ctx, result, g.MemberIDs, err)
			continue
		}
		inserted, err := s.repo.CreateSuggestions(ctx, []*models.Suggestion{sg})
		if err != nil {
			s.groupError(ctx, result, g.MemberIDs, translate(err, "failed to persist suggestion"))
			continue
		}
		if len(inserted) == 0 {
			// A concurrent attempt of this run stored the group first and
			// announces it.
			if sg, err = s.repo.GetSuggestion(ctx, sg.ID); err != nil {
				s.groupError(ctx, result, g.MemberIDs, translate(err, "failed to load suggestion"))
				continue
			}
		} else {
			fresh = append(fresh, sg)
		}
		if sg.Status.IsActive() {
			for _, m := range sg.MemberIDs {
				claimed[m] = key
			}
		}
		if !counted[sg.ID] {
			counted[sg.ID] = true
			result.Suggestions = append(result.Suggestions, sg)
			result.Created++
		}
	}

	events := make([]models.Event, 0, len(fresh)*run.GroupSize)
	for _, sg := range fresh {
		events = append(events, models.SuggestionEvents(models.EventSuggestionProposed, sg, now)...)
	}
	s.publish(context.WithoutCancel(ctx), events)
	return nil
}

func (s *Service) persistLocks(ctx context.Context, run *models.MatchRun, groups []solver.Group, result *Result) {
	counted := make(map[string]bool, len(result.Locks))
	for _, l := range result.Locks {
		counted[l.ID] = true
	}

	now := requestcontext.Now(ctx)
	var fresh []*models.MatchLock
	for i, g := range groups {
		if ctx.Err() != nil {
			result.NotProcessed = appendMembers(result.NotProcessed, groups[i:])
			break
		}
		var (
			lock    *models.MatchLock
			created bool
		)
		err := s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
			l, c, err := repo.LockMatch(ctx, models.LockRequest{
				RunID:         run.RunID,
				MemberIDs:     g.MemberIDs,
				Score:         g.Score,
				LockExpiresAt: s.lockDeadline(now),
				LockedAt:      now,
			})
			if err != nil {
				return err
			}
			if err := repo.MarkUsersMatched(ctx, l.MemberIDs, l.RunID, now); err != nil {
				return err
			}
			lock, created = l, c
			return nil
		})
		if err != nil {
			s.groupError(ctx, result, g.MemberIDs, translate(err, "failed to lock group"))
			continue
		}
		if !created && lock.RunID != run.RunID {
			s.logger.DebugContext(ctx, "group already locked by another run", "run_id", run.RunID, "lock_id", lock.ID)
			continue
		}
		if created {
			fresh = append(fresh, lock)
		}
		if counted[lock.ID] {
			continue
		}
		counted[lock.ID] = true
		result.Locks = append(result.Locks, lock)
		result.Created++
	}

	var events []models.Event
	for _, l := range fresh {
		events = append(events, models.LockEvents(models.EventMatchConfirmed, l, now)...)
	}
	s.publish(context.WithoutCancel(ctx), events)
}

func (s *Service) lockDeadline(now time.Time) *time.Time {
	if s.cfg.ChatUnlockWindow <= 0 {
		return nil
	}
	deadline := now.Add(s.cfg.ChatUnlockWindow)
	return &deadline
}

func (s *Service) groupError(ctx context.Context, result *Result, members []string, err error) {
	ge := &GroupError{MemberIDs: members, Err: err}
	result.Errors = append(result.Errors, ge)

	reason := "repository"
	switch ge.Code() {
	case dErrors.CodeConflict:
		reason = "conflict"
	case dErrors.CodeTimeout:
		reason = "timeout"
	}
	s.metrics.IncrementGroupError(reason)
	s.logger.WarnContext(ctx, "group not persisted",
		"run_id", result.RunID,
		"group", models.GroupKey(members),
		"reason", reason,
		"error", err,
	)
}

func candidateIDs(candidates []*models.Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func appendMembers(dst []string, groups []solver.Group) []string {
	for _, g := range groups {
		dst = append(dst, g.MemberIDs...)
	}
	return dst
}

func firstClaimed(members []string, claimed map[string]string) (string, string) {
	for _, m := range members {
		if holder, ok := claimed[m]; ok {
			return m, holder
		}
	}
	return "", ""
}
