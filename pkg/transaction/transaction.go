// Package transaction applies the movements of a run to the ledger as one
// unit: either every movement is committed or none is.
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
)

// Manager applies movements atomically.
type Manager interface {
	// Apply runs every movement in one ledger transaction. On the first
	// failure everything is rolled back and a PartialUpdateError returned.
	Apply(ctx context.Context, movements []ledger.Movement) (*Result, error)
}

// Result describes a committed transaction.
type Result struct {
	Applied  int
	Inbound  int64
	Outbound int64
	Duration time.Duration
}

type manager struct {
	ledger ledger.Ledger
	sink   progress.Sink
}

// New creates a Manager over the ledger.
func New(l ledger.Ledger, sink progress.Sink) (Manager, error) {
	if l == nil {
		return nil, &errors.ValidationError{Field: "ledger", Message: "cannot be nil"}
	}
	if sink == nil {
		sink = progress.Nop
	}
	return &manager{ledger: l, sink: sink}, nil
}

// Apply implements Manager.
func (m *manager) Apply(ctx context.Context, movements []ledger.Movement) (*Result, error) {
	ctx = logging.WithStage(ctx, string(progress.StageCommit))
	logger := logging.FromContext(ctx)
	start := time.Now()
	result := &Result{}

	if len(movements) == 0 {
		logger.Info().Msg("No stock movement needed")
		return result, nil
	}

	tx, err := m.ledger.Begin(ctx)
	if err != nil {
		return nil, &errors.PartialUpdateError{Total: len(movements), RolledBack: true, Err: err}
	}

	for i, mv := range movements {
		err := ctx.Err()
		if err == nil {
			err = tx.ApplyMovement(ctx, mv)
		}
		if err != nil {
			return nil, m.rollback(ctx, tx, mv.Item, i, len(movements), err)
		}
		result.Applied++
		if mv.Direction == ledger.Inbound {
			result.Inbound += mv.Quantity
		} else {
			result.Outbound += mv.Quantity
		}
		logger.Debug().
			Str("item", mv.Item).
			Str("direction", mv.Direction.String()).
			Int64("quantity", mv.Quantity).
			Msg("Movement applied")
	}

	if err := tx.Commit(); err != nil {
		perr := &errors.PartialUpdateError{Applied: len(movements), Total: len(movements), RolledBack: true, Err: err}
		m.sink.Notify(ctx, progress.Event{Stage: progress.StageCommit, Level: progress.Error, Code: perr.Code(), Message: perr.Error(), Err: err})
		return nil, perr
	}

	result.Duration = time.Since(start)
	m.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageCommit,
		Message: fmt.Sprintf("%d movements committed", result.Applied),
	})
	return result, nil
}

// rollback undoes the transaction after a failed movement. The D001 failure
// is reported first, then the D002 rollback.
func (m *manager) rollback(ctx context.Context, tx ledger.Tx, item string, applied, total int, cause error) error {
	failed := &errors.PartialUpdateError{Item: item, Applied: applied, Total: total, Err: cause}
	m.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageCommit,
		Level:   progress.Error,
		Code:    failed.Code(),
		Message: failed.Error(),
		Item:    item,
		Err:     cause,
	})

	if rbErr := tx.Rollback(); rbErr != nil {
		failed.Err = fmt.Errorf("%w (rollback failed: %w)", cause, rbErr)
		logging.FromContext(ctx).Error().Err(rbErr).Msg("Rollback failed")
		return failed
	}

	failed.RolledBack = true
	m.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageCommit,
		Level:   progress.Error,
		Code:    failed.Code(),
		Message: failed.Error(),
		Item:    item,
		Err:     cause,
	})
	return failed
}
