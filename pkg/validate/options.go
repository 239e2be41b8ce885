package validate

import (
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/progress"
)

type options struct {
	decider  decide.Decider
	sink     progress.Sink
	resolver *family.Resolver
}

func defaultOptions() *options {
	return &options{
		decider: decide.Always(false),
		sink:    progress.Nop,
	}
}

// Option configures a Validator.
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

// WithDecider sets who is asked to skip problem items. The default aborts.
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

// WithResolver shares a family resolver with later stages.
func WithResolver(r *family.Resolver) Option {
	return func(o *options) error {
		o.resolver = r
		return nil
	}
}
