package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/progress"
)

// Options configures a reconciler.
type options struct {
	resolver *family.Resolver
	sink     progress.Sink
	runID    string
	date     time.Time
	source   string
	note     string
	newID    func() string
}

func defaultOptions() *options {
	now := time.Now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return &options{
		sink:   progress.Nop,
		date:   date,
		source: constants.MovementSource,
		note:   fmt.Sprintf(constants.MovementNote, date.Format(constants.DateFormat)),
		newID:  defaultID,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithRunID tags every movement with the run id.
func WithRunID(id string) Option {
	return func(o *options) error {
		o.runID = id
		return nil
	}
}

// WithDate sets the reconciliation date used as movement timestamp. The
// default note follows the date unless WithNote is given afterwards.
func WithDate(date time.Time) Option {
	return func(o *options) error {
		if date.IsZero() {
			return &errors.ValidationError{Field: "date", Message: "cannot be zero"}
		}
		o.date = date
		o.note = fmt.Sprintf(constants.MovementNote, date.Format(constants.DateFormat))
		return nil
	}
}

// WithSource sets the movement source tag.
func WithSource(source string) Option {
	return func(o *options) error {
		if source == "" {
			return &errors.ValidationError{Field: "source", Message: "cannot be empty"}
		}
		o.source = source
		return nil
	}
}

// WithNote overrides the movement note.
func WithNote(note string) Option {
	return func(o *options) error {
		o.note = note
		return nil
	}
}

// WithResolver shares the family resolver of the run.
func WithResolver(r *family.Resolver) Option {
	return func(o *options) error {
		o.resolver = r
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

// WithIDGenerator replaces the movement id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "id generator", Message: "cannot be nil"}
		}
		o.newID = fn
		return nil
	}
}
