package staging

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
)

// State is a state of the replace machine.
//
//	Pending -> Resolved
//	Pending -> Locked -> Retrying -> Locked ... -> Resolved
//	Locked (exhausted) or delete failure -> RenameFallback | Aborted
//	Locked -> Aborted (operator cancels)
type State int

// Replace states. Resolved, RenameFallback and Aborted are terminal.
const (
	StatePending State = iota
	StateLocked
	StateRetrying
	StateResolved
	StateRenameFallback
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLocked:
		return "locked"
	case StateRetrying:
		return "retrying"
	case StateResolved:
		return "resolved"
	case StateRenameFallback:
		return "rename_fallback"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine stops in this state.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateRenameFallback || s == StateAborted
}

// Transition is one step of the machine.
type Transition struct {
	From    State
	To      State
	Attempt int
	Err     error
}

// Outcome is where the staged inventory ended up.
type Outcome struct {
	State       State
	Target      string
	Attempts    int
	Transitions []Transition
}

func (o *Outcome) move(to State, attempt int, err error) {
	o.Transitions = append(o.Transitions, Transition{From: o.State, To: to, Attempt: attempt, Err: err})
	o.State = to
}

// replace retires the existing canonical directory and promotes in its
// place. The old directory is first renamed aside so that the promote is a
// single rename, then removed best effort.
func (s *Stager) replace(ctx context.Context, committed bool) (*Outcome, error) {
	ctx = logging.WithStage(ctx, string(progress.StageReplace))
	logger := logging.FromContext(ctx)
	out := &Outcome{State: StatePending, Target: s.canonical}
	trash := filepath.Join(s.root, constants.TrashDirPrefix+s.date+"_"+shortID(s.runID))

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		err := s.mover.Rename(s.canonical, trash)
		if err == nil {
			out.move(StateResolved, attempt, nil)
			break
		}

		lerr := &errors.LockedArtifactError{
			Path:    s.canonical,
			Attempt: attempt,
			Max:     s.maxAttempts,
			Locked:  s.isLocked(err),
			Err:     err,
		}
		s.sink.Notify(ctx, progress.Event{
			Stage:   progress.StageReplace,
			Level:   progress.Warning,
			Code:    lerr.Code(),
			Message: lerr.Error(),
			Err:     err,
		})

		if !lerr.Locked || attempt >= s.maxAttempts {
			if lerr.Locked {
				out.move(StateLocked, attempt, lerr)
			}
			return s.fallback(ctx, out, lerr, committed)
		}

		out.move(StateLocked, attempt, lerr)
		retry, derr := s.decider.Decide(ctx, decide.Prompt{
			Kind:    decide.KindRetry,
			Code:    lerr.Code(),
			Message: lerr.Error(),
			Path:    s.canonical,
			Attempt: attempt,
			Max:     s.maxAttempts,
		})
		if derr != nil || !retry {
			return s.abortReplace(ctx, out, lerr, derr, committed)
		}
		out.move(StateRetrying, attempt, nil)
		logger.Info().Int("attempt", attempt+1).Msg("Retrying removal of the existing inventory")

		if s.backoff > 0 {
			select {
			case <-ctx.Done():
				return s.abortReplace(ctx, out, lerr, ctx.Err(), committed)
			case <-time.After(s.backoff):
			}
		}
	}

	if err := s.promote(ctx, s.canonical); err != nil {
		if rerr := s.mover.Rename(trash, s.canonical); rerr != nil {
			logger.Error().Err(rerr).Str("dir", trash).Msg("Failed to restore the previous inventory")
		}
		return nil, err
	}
	if err := s.mover.RemoveAll(trash); err != nil {
		logger.Warn().Err(err).Str("dir", trash).Msg("Previous inventory could not be removed")
	}
	return out, nil
}

// fallback offers to promote under a new name instead of replacing. cause is
// the conflict or removal failure that made the replacement impossible.
func (s *Stager) fallback(ctx context.Context, out *Outcome, cause error, committed bool) (*Outcome, error) {
	code, _ := errors.CodeOf(cause)
	prompt := decide.Prompt{
		Kind:    decide.KindRenameFallback,
		Code:    code,
		Message: cause.Error(),
		Path:    s.canonical,
	}
	var lerr *errors.LockedArtifactError
	if errors.As(cause, &lerr) {
		prompt.Attempt = lerr.Attempt
		prompt.Max = lerr.Max
	}
	ok, err := s.decider.Decide(ctx, prompt)
	if err != nil || !ok {
		return s.abortReplace(ctx, out, cause, err, committed)
	}

	target, err := s.fallbackTarget()
	if err != nil {
		return s.abortReplace(ctx, out, cause, err, committed)
	}
	if err := s.promote(ctx, target); err != nil {
		return nil, err
	}
	out.Target = target
	out.move(StateRenameFallback, out.Attempts, cause)
	s.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageReplace,
		Level:   progress.Warning,
		Message: fmt.Sprintf("previous inventory kept in %s, new inventory saved as %s", s.canonical, target),
	})
	return out, nil
}

// fallbackTarget returns inventory_<date>_new, or the first free
// inventory_<date>_new_<n>.
func (s *Stager) fallbackTarget() (string, error) {
	base := s.canonical + constants.FallbackSuffix
	if !exists(base) {
		return base, nil
	}
	for n := 2; n <= constants.MaxRenameSuffix; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", &errors.DirectoryConflictError{Path: base}
}

func (s *Stager) abortReplace(ctx context.Context, out *Outcome, cause error, decErr error, committed bool) (*Outcome, error) {
	out.move(StateAborted, out.Attempts, cause)
	s.Abort(ctx, committed)

	reason := "operator cancelled the replacement of " + s.canonical
	err := cause
	if decErr != nil {
		reason = decErr.Error()
		err = fmt.Errorf("%w: %w", cause, decErr)
	}
	return out, errors.NewAbortedError(string(progress.StageReplace), reason, committed, err)
}
