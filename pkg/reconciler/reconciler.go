// Package reconciler computes the stock corrections of a count. For every
// catalog entry the scanned quantity replaces the theoretical stock: the
// reconciler derives the movement that closes the gap and values the counted
// stock per family. Unscanned entries are corrected to zero.
package reconciler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/scan"
)

// Reconciler plans the movements of a stock count.
type Reconciler interface {
	// Reconcile compares every catalog entry with the scanned counts.
	// Nothing is written to the ledger.
	Reconcile(ctx context.Context, counts *scan.Counts) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	reader   ledger.Reader
	resolver *family.Resolver
	sink     progress.Sink
	runID    string
	date     time.Time
	source   string
	note     string
	newID    func() string
}

// New creates a new Reconciler with options.
func New(reader ledger.Reader, opts ...Option) (Reconciler, error) {
	if reader == nil {
		return nil, &errors.ValidationError{Field: "reader", Message: "cannot be nil"}
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if o.resolver == nil {
		o.resolver = family.NewResolver(reader)
	}
	return &reconciler{
		reader:   reader,
		resolver: o.resolver,
		sink:     o.sink,
		runID:    o.runID,
		date:     o.date,
		source:   o.source,
		note:     o.note,
		newID:    o.newID,
	}, nil
}

// Reconcile walks the full catalog in order.
func (r *reconciler) Reconcile(ctx context.Context, counts *scan.Counts) (*Result, error) {
	ctx = logging.WithStage(ctx, string(progress.StageReconcile))
	logger := logging.FromContext(ctx)
	result := NewResult()

	entries, err := r.reader.Entries(ctx)
	if err != nil {
		return nil, errors.WrapResource("query", "catalog", "", err)
	}

	valuations := make(map[ledger.FamilyCode]*Valuation)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := Line{
			Entry:       entry,
			Real:        counts.Get(entry.Code),
			Theoretical: entry.Theoretical(),
		}
		line.Diff = line.Theoretical - line.Real
		if line.Diff < 0 {
			line.Diff = -line.Diff
		}
		line.Value = entry.UnitCost.Mul(decimal.NewFromInt(line.Real))

		res, err := r.resolver.ResolveEntry(ctx, entry)
		if err != nil {
			return nil, errors.WrapResource("query", "family", entry.Code, err)
		}
		if res.OK {
			line.Family = res.Family
			v, ok := valuations[res.Family.Code]
			if !ok {
				v = &Valuation{Family: res.Family, Value: decimal.Zero}
				valuations[res.Family.Code] = v
			}
			v.Value = v.Value.Add(line.Value)
			v.Items++
			v.Quantity += line.Real
		} else {
			note := &errors.OrphanFamilyError{Item: entry.Code, Family: string(res.Referenced), AtUpdate: true}
			result.Orphans = append(result.Orphans, note)
			result.Metadata.Stats.Orphans++
			r.sink.Notify(ctx, progress.Event{
				Stage:   progress.StageReconcile,
				Level:   progress.Warning,
				Message: "item " + entry.Code + " has no valid family: corrected but absent from every family report",
				Code:    errors.CodeOrphanFamily,
				Item:    entry.Code,
			})
		}

		if m, ok := r.movement(line); ok {
			line.Movement = &m
			result.Movements = append(result.Movements, m)
			if m.Direction == ledger.Inbound {
				result.Metadata.Stats.Inbound++
			} else {
				result.Metadata.Stats.Outbound++
			}
		} else {
			result.Metadata.Stats.Unchanged++
		}

		result.Lines = append(result.Lines, line)
		result.Metadata.Stats.ItemsProcessed++
	}

	for _, v := range valuations {
		result.Valuations = append(result.Valuations, *v)
	}
	sort.Slice(result.Valuations, func(i, j int) bool {
		return result.Valuations[i].Family.Code < result.Valuations[j].Family.Code
	})

	result.Finalize()
	logger.Info().
		Int("items", result.Metadata.Stats.ItemsProcessed).
		Int("inbound", result.Metadata.Stats.Inbound).
		Int("outbound", result.Metadata.Stats.Outbound).
		Int("orphans", result.Metadata.Stats.Orphans).
		Msg("Reconciliation planned")

	return result, nil
}

// movement returns the correction of a line. Equal stocks need none.
func (r *reconciler) movement(line Line) (ledger.Movement, bool) {
	if line.Diff == 0 {
		return ledger.Movement{}, false
	}
	dir := ledger.Inbound
	if line.Theoretical > line.Real {
		dir = ledger.Outbound
	}
	return ledger.Movement{
		ID:         r.newID(),
		RunID:      r.runID,
		Item:       line.Entry.Code,
		Direction:  dir,
		Quantity:   line.Diff,
		UnitCost:   line.Entry.UnitCost,
		Source:     r.source,
		Note:       r.note,
		OccurredAt: r.date,
	}, true
}

func defaultID() string {
	return uuid.NewString()
}
