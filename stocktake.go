// Package stocktake reconciles a physical stock count against a catalog and
// stock ledger.
//
// A run parses a scan file (one item code per line), validates every code
// against the catalog, groups the counted items by family, computes the
// movement that brings each catalog entry to its counted quantity, applies
// all movements in one ledger transaction and persists the run's artifacts
// through a staging directory that is promoted with a single rename.
//
// Example usage:
//
//	l, err := sqlstore.Open(ctx, sqlstore.SQLite, "ledger.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	engine, err := stocktake.New(
//	    stocktake.WithLedger(l),
//	    stocktake.WithRoot("/srv/inventories"),
//	    stocktake.WithDecider(decide.NewTerminal(os.Stdin, os.Stdout)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := engine.Reconcile(ctx, "scan.txt")
//	if err != nil {
//	    log.Fatalf("%s: %v", run.Outcome, err)
//	}
//	fmt.Println("inventory saved in", run.Target)
package stocktake

import (
	"context"

	"github.com/agentstation/stocktake/internal/journal"
	"github.com/agentstation/stocktake/pkg/staging"
)

// Compile-time interface check to ensure proper implementation.
var _ Engine = (*engine)(nil)

// Engine runs reconciliations.
type Engine interface {
	// Reconcile runs the whole pipeline on a scan file. The returned Run is
	// never nil and describes how far the run got, even on error.
	Reconcile(ctx context.Context, scanPath string) (*Run, error)

	// Recover finishes runs whose ledger transaction committed but whose
	// inventory directory was never promoted.
	Recover(ctx context.Context) ([]Recovery, error)

	// Hooks provides access to event callback registration
	Hooks
}

// engine is the internal implementation of the Engine interface.
type engine struct {
	options *options
	journal *journal.Journal
	*hooks
}

// New creates an Engine. WithLedger and WithRoot are required.
func New(opts ...Option) (Engine, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}
	e := &engine{options: o, hooks: newHooks()}
	if o.journal {
		e.journal = journal.New(o.root)
	}
	return e, nil
}

// stagingOptions returns the options shared by every stager of the engine.
func (e *engine) stagingOptions() []staging.Option {
	o := e.options
	opts := []staging.Option{
		staging.WithDecider(o.decider),
		staging.WithSink(o.sink),
		staging.WithBackoff(o.backoff),
	}
	if o.mover != nil {
		opts = append(opts, staging.WithMover(o.mover))
	}
	if o.maxAttempts > 0 {
		opts = append(opts, staging.WithMaxAttempts(o.maxAttempts))
	}
	return opts
}
