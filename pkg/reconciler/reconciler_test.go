package reconciler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/ledger/memory"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/reconciler"
	"github.com/agentstation/stocktake/pkg/scan"
)

func catalog() *memory.Ledger {
	return memory.New().
		AddFamily(ledger.Family{Code: "F1", Label: "Fasteners"}).
		AddFamily(ledger.Family{Code: "F2", Label: "Tools"}).
		AddEntry(ledger.Entry{Code: "A", Name: "Bolt", Family: "F1", Supply: 5, Consumption: 2, UnitCost: decimal.RequireFromString("1.50")}).
		AddEntry(ledger.Entry{Code: "B", Name: "Nut", Family: "F1", UnitCost: decimal.RequireFromString("0.10")}).
		AddEntry(ledger.Entry{Code: "H", Name: "Hammer", Family: "F2", Supply: 2, UnitCost: decimal.RequireFromString("12")}).
		AddEntry(ledger.Entry{Code: "O", Name: "Spring", Family: "ZZ", Supply: 1})
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func TestReconcileScenario(t *testing.T) {
	date := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	rec := &progress.Recorder{}
	r, err := reconciler.New(catalog(),
		reconciler.WithRunID("run-1"),
		reconciler.WithDate(date),
		reconciler.WithIDGenerator(sequentialIDs()),
		reconciler.WithSink(rec),
	)
	require.NoError(t, err)

	scanned, err := scan.ParseString("A\nB\nA\n")
	require.NoError(t, err)
	counts := scanned.Counts()
	result, err := r.Reconcile(context.Background(), counts)
	require.NoError(t, err)

	require.Len(t, result.Lines, 4)
	assert.Equal(t, []string{"A", "B", "H", "O"}, []string{
		result.Lines[0].Entry.Code, result.Lines[1].Entry.Code, result.Lines[2].Entry.Code, result.Lines[3].Entry.Code,
	})

	require.Len(t, result.Movements, 4)
	a := result.Movements[0]
	assert.Equal(t, "A", a.Item)
	assert.Equal(t, ledger.Outbound, a.Direction)
	assert.Equal(t, int64(1), a.Quantity)
	assert.Equal(t, "run-1", a.RunID)
	assert.Equal(t, "m1", a.ID)
	assert.Equal(t, "M", a.Source)
	assert.Equal(t, "manual stock count of 2026-06-30", a.Note)
	assert.Equal(t, date, a.OccurredAt)
	assert.True(t, decimal.RequireFromString("1.50").Equal(a.UnitCost))

	b := result.Movements[1]
	assert.Equal(t, ledger.Inbound, b.Direction)
	assert.Equal(t, int64(1), b.Quantity)

	// Unscanned items are corrected to zero, orphans included.
	assert.Equal(t, ledger.Outbound, result.Movements[2].Direction)
	assert.Equal(t, int64(2), result.Movements[2].Quantity)
	assert.Equal(t, "O", result.Movements[3].Item)

	f1, ok := result.Valuation("F1")
	require.True(t, ok)
	assert.Equal(t, "3.1", f1.Value.String())
	assert.Equal(t, int64(3), f1.Quantity)

	f2, ok := result.Valuation("F2")
	require.True(t, ok)
	assert.True(t, f2.Value.IsZero(), "families are valued even without scanned items")

	require.Len(t, result.Orphans, 1)
	assert.True(t, result.Orphans[0].AtUpdate)
	assert.Equal(t, []errors.Code{errors.CodeOrphanFamily}, rec.Codes())

	assert.Equal(t, 1, result.Metadata.Stats.Inbound)
	assert.Equal(t, 3, result.Metadata.Stats.Outbound)
	assert.Len(t, result.LinesOf("F1"), 2)
	assert.Equal(t, "3.1", result.TotalValue().String())
}

func TestReconcileMatchingStock(t *testing.T) {
	r, err := reconciler.New(catalog())
	require.NoError(t, err)

	counts := scan.NewCounts()
	counts.AddN("A", 3, 1)
	counts.AddN("H", 2, 2)
	counts.AddN("O", 1, 3)

	result, err := r.Reconcile(context.Background(), counts)
	require.NoError(t, err)
	assert.False(t, result.HasChanges())
	assert.Equal(t, 4, result.Metadata.Stats.Unchanged)
	assert.Contains(t, result.Summary(), "already matches")
}

func TestNewOptions(t *testing.T) {
	_, err := reconciler.New(nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(catalog(), reconciler.WithDate(time.Time{}))
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(catalog(), reconciler.WithSource(""))
	assert.True(t, errors.IsValidationError(err))
}
