package staging

import (
	"time"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/progress"
)

type options struct {
	mover       Mover
	decider     decide.Decider
	sink        progress.Sink
	maxAttempts int
	backoff     time.Duration
	isLocked    func(error) bool
}

func defaultOptions() *options {
	return &options{
		mover:       OSMover{},
		decider:     decide.Always(false),
		sink:        progress.Nop,
		maxAttempts: constants.MaxRetries,
		isLocked:    IsLocked,
	}
}

// Option configures a Stager.
type Option func(*options) error

func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithMover replaces the directory mover.
func WithMover(m Mover) Option {
	return func(o *options) error {
		if m == nil {
			return &errors.ValidationError{Field: "mover", Message: "cannot be nil"}
		}
		o.mover = m
		return nil
	}
}

// WithDecider sets who decides on conflicts and locks. The default aborts.
func WithDecider(d decide.Decider) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "decider", Message: "cannot be nil"}
		}
		o.decider = d
		return nil
	}
}

// WithSink sets the progress sink.
func WithSink(s progress.Sink) Option {
	return func(o *options) error {
		if s == nil {
			return &errors.ValidationError{Field: "sink", Message: "cannot be nil"}
		}
		o.sink = s
		return nil
	}
}

// WithMaxAttempts sets how many times a locked directory is tried.
func WithMaxAttempts(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "max attempts", Value: n, Message: "must be at least 1"}
		}
		o.maxAttempts = n
		return nil
	}
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(o *options) error {
		o.backoff = d
		return nil
	}
}

// WithLockDetector overrides how lock failures are told apart from other
// failures.
func WithLockDetector(fn func(error) bool) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "lock detector", Message: "cannot be nil"}
		}
		o.isLocked = fn
		return nil
	}
}
