package stocktake

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/stocktake/internal/metrics"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/period"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/report"
	"github.com/agentstation/stocktake/pkg/staging"
)

// Archiver copies a finalized inventory directory somewhere else.
type Archiver interface {
	Archive(ctx context.Context, dir string) ([]string, error)
}

// options holds the engine configuration.
type options struct {
	ledger     ledger.Ledger
	root       string
	decider    decide.Decider
	sink       progress.Sink
	date       time.Time
	references []period.Reference
	clock      func() time.Time
	newID      func() string

	renderer report.Renderer
	archiver Archiver
	metrics  *metrics.Recorder
	journal  bool

	mover       staging.Mover
	maxAttempts int
	backoff     time.Duration
}

func defaults() *options {
	return &options{
		decider:    decide.Always(false),
		sink:       progress.LogSink{},
		references: period.DefaultReferences(),
		clock:      time.Now,
		newID:      uuid.NewString,
		journal:    true,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.ledger == nil {
		return nil, &errors.ValidationError{Field: "ledger", Message: "is required"}
	}
	if o.root == "" {
		return nil, &errors.ValidationError{Field: "root", Message: "is required"}
	}
	return o, nil
}

// Option configures an Engine.
type Option func(*options) error

// WithLedger sets the catalog and stock ledger. Required.
func WithLedger(l ledger.Ledger) Option {
	return func(o *options) error {
		if l == nil {
			return &errors.ValidationError{Field: "ledger", Message: "cannot be nil"}
		}
		o.ledger = l
		return nil
	}
}

// WithRoot sets the directory holding the inventory directories. Required.
func WithRoot(root string) Option {
	return func(o *options) error {
		o.root = root
		return nil
	}
}

// WithDecider sets who answers prompts. The default declines everything,
// which aborts at the first problem.
func WithDecider(d decide.Decider) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "decider", Message: "cannot be nil"}
		}
		o.decider = d
		return nil
	}
}

// WithSink sets where progress events go. The default logs them.
func WithSink(s progress.Sink) Option {
	return func(o *options) error {
		if s == nil {
			return &errors.ValidationError{Field: "sink", Message: "cannot be nil"}
		}
		o.sink = s
		return nil
	}
}

// WithDate fixes the reconciliation date instead of deriving it from the
// reference dates.
func WithDate(date time.Time) Option {
	return func(o *options) error {
		o.date = date
		return nil
	}
}

// WithReferences sets the reference dates the reconciliation date is derived
// from.
func WithReferences(refs []period.Reference) Option {
	return func(o *options) error {
		if len(refs) == 0 {
			return &errors.ValidationError{Field: "reference dates", Message: "cannot be empty"}
		}
		o.references = refs
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		if clock == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.clock = clock
		return nil
	}
}

// WithRunIDGenerator replaces the UUID run ids.
func WithRunIDGenerator(fn func() string) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "run id generator", Message: "cannot be nil"}
		}
		o.newID = fn
		return nil
	}
}

// WithRenderer renders run and family reports into the inventory.
func WithRenderer(r report.Renderer) Option {
	return func(o *options) error {
		o.renderer = r
		return nil
	}
}

// WithArchiver archives every finalized inventory.
func WithArchiver(a Archiver) Option {
	return func(o *options) error {
		o.archiver = a
		return nil
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithJournal enables or disables the run journal. It is on by default.
func WithJournal(enabled bool) Option {
	return func(o *options) error {
		o.journal = enabled
		return nil
	}
}

// WithMover replaces the directory mover used to finalize inventories.
func WithMover(m staging.Mover) Option {
	return func(o *options) error {
		if m == nil {
			return &errors.ValidationError{Field: "mover", Message: "cannot be nil"}
		}
		o.mover = m
		return nil
	}
}

// WithMaxAttempts sets how many times a locked inventory is tried.
func WithMaxAttempts(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "max attempts", Value: n, Message: "must be at least 1"}
		}
		o.maxAttempts = n
		return nil
	}
}

// WithRetryBackoff sets the pause between attempts on a locked inventory.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) error {
		o.backoff = d
		return nil
	}
}
