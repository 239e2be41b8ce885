package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/ledger/memory"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/reconciler"
	"github.com/agentstation/stocktake/pkg/report"
	"github.com/agentstation/stocktake/pkg/scan"
	"github.com/agentstation/stocktake/pkg/validate"
)

var date = time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)

func catalog() *memory.Ledger {
	return memory.New().
		AddFamily(ledger.Family{Code: "F1", Label: "Fasteners"}).
		AddFamily(ledger.Family{Code: "F2", Label: "Tools"}).
		AddEntry(ledger.Entry{Code: "A", Name: "Bolt", Family: "F1", Supply: 5, Consumption: 2, UnitCost: decimal.RequireFromString("1.50")}).
		AddEntry(ledger.Entry{Code: "B", Name: "Nut", Family: "F1", UnitCost: decimal.RequireFromString("0.10")}).
		AddEntry(ledger.Entry{Code: "H", Name: "Hammer", Family: "F2", Supply: 2, UnitCost: decimal.RequireFromString("12")})
}

func run(t *testing.T, input string) (*scan.Record, *validate.Result, *reconciler.Result) {
	t.Helper()
	ctx := context.Background()
	l := catalog()

	rec, err := scan.ParseString(input)
	require.NoError(t, err)
	v, err := validate.New(l, validate.WithDecider(decide.Always(true)))
	require.NoError(t, err)
	vres, err := v.Validate(ctx, rec.Counts())
	require.NoError(t, err)

	r, err := reconciler.New(l, reconciler.WithDate(date))
	require.NoError(t, err)
	rres, err := r.Reconcile(ctx, vres.Counts.Merge(vres.Orphans))
	require.NoError(t, err)
	return rec, vres, rres
}

func TestBuilder(t *testing.T) {
	rec, vres, rres := run(t, "A\nB\n\nA\nC\n")

	b := report.NewBuilder("run-1", date).
		Scanned(rec).
		Validated(vres).
		Reconciled(rres).
		Outcome("resolved", "/tmp/inventory_2026-06-30")
	data := b.Build()

	assert.Equal(t, "run-1", data.RunID)
	assert.Equal(t, "resolved", data.Outcome)
	assert.Equal(t, report.Stats{
		ScannedLines:     4,
		DistinctItems:    2,
		DistinctFamilies: 1,
		Excluded:         1,
		Errors:           1,
		Inbound:          1,
		Outbound:         2,
		Unchanged:        0,
	}, data.Stats)

	require.Len(t, data.Issues, 1)
	assert.Equal(t, errors.CodeUnknownItem, data.Issues[0].Code)
	assert.Equal(t, "unknown item C", data.Issues[0].Name)
	assert.Contains(t, data.Errors["unknown item C"], "last, after B (Nut)")

	require.Len(t, data.Families, 2)
	f1, ok := data.Family("F1")
	require.True(t, ok)
	assert.Equal(t, "Fasteners", f1.Label)
	assert.True(t, decimal.RequireFromString("3.10").Equal(f1.Value), f1.Value.String())
	f2, ok := data.Family("F2")
	require.True(t, ok)
	assert.True(t, f2.Value.IsZero())
	assert.True(t, decimal.RequireFromString("3.10").Equal(data.Total))
}

func TestBuildIsSnapshot(t *testing.T) {
	b := report.NewBuilder("run-1", date)
	b.Fail(errors.NewAbortedError("validate", "declined", false, &errors.UnknownItemError{Item: "X", Line: 3}))
	first := b.Build()

	b.Fail(errors.New("disk full"))
	b.Fail(errors.New("disk full again"))
	second := b.Build()

	assert.Len(t, first.Issues, 1)
	assert.Equal(t, 1, first.Stats.Errors)
	assert.Equal(t, errors.CodeUnknownItem, first.Issues[0].Code)

	require.Len(t, second.Issues, 3)
	assert.Equal(t, "error", second.Issues[1].Name)
	assert.Equal(t, "error (2)", second.Issues[2].Name)
	assert.Len(t, second.Errors, 3)

	b.Fail(nil)
	assert.Len(t, b.Build().Issues, 3)
}

func TestFamilyReports(t *testing.T) {
	_, _, rres := run(t, "A\nB\nA\n")

	reports := report.FamilyReports(date, rres)
	require.Len(t, reports, 2)

	f1 := reports[0]
	assert.Equal(t, ledger.FamilyCode("F1"), f1.Family.Code)
	require.Len(t, f1.Lines, 2)
	assert.Equal(t, "Bolt", f1.Lines[0].Name)
	assert.Equal(t, int64(2), f1.Lines[0].Quantity)
	assert.Equal(t, int64(3), f1.Lines[0].Theoretical)
	assert.Equal(t, int64(3), f1.Quantity)
	assert.True(t, decimal.RequireFromString("3.10").Equal(f1.Total))

	f2 := reports[1]
	require.Len(t, f2.Lines, 1)
	assert.Equal(t, int64(0), f2.Lines[0].Quantity)
	assert.True(t, f2.Total.IsZero())
}
