package render_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/agentstation/stocktake/internal/render"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/report"
)

var date = time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)

func TestNewRejectsBadLanguage(t *testing.T) {
	_, err := render.New(render.WithLanguage("not a tag!"))
	assert.True(t, errors.IsValidationError(err))
}

func TestMoney(t *testing.T) {
	tests := []struct {
		lang     string
		currency string
		in       string
		want     string
	}{
		{"en", "", "1234.5", "1,234.50"},
		{"en", "USD", "3.1", "3.10 USD"},
		{"de", "EUR", "1234.5", "1.234,50 EUR"},
		{"de", "", "0", "0,00"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+tt.in, func(t *testing.T) {
			r, err := render.New(render.WithLanguage(tt.lang), render.WithCurrency(tt.currency))
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Money(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	r, err := render.New()
	require.NoError(t, err)

	b := report.NewBuilder("run-1", date).Outcome("rename_fallback", "/inv/inventory_2026-06-30_new")
	b.Fail(errors.NewAbortedError("replace", "files locked", true, &errors.LockedArtifactError{Path: "/inv", Attempt: 3, Max: 3, Locked: true}))
	data := b.Build()

	path, err := r.Render(context.Background(), dir, data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_2026-06-30.md"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "# Stock count of 2026-06-30")
	assert.Contains(t, text, "Rename Fallback")
	assert.Contains(t, text, "## Statistics")
	assert.Contains(t, text, "S004")
	assert.Contains(t, text, "No family valued.")
}

func TestRenderFamily(t *testing.T) {
	dir := t.TempDir()
	r, err := render.New()
	require.NoError(t, err)

	fr := report.FamilyReport{
		Family:   ledger.Family{Code: "F1", Label: "Fasteners"},
		Date:     date,
		Quantity: 3,
		Total:    decimal.RequireFromString("3.10"),
		Lines: []report.FamilyLine{
			{Code: "A", Name: "Bolt", Quantity: 2, Theoretical: 3, UnitCost: decimal.RequireFromString("1.50"), Value: decimal.RequireFromString("3.00")},
			{Code: "B", Name: "Nut", Quantity: 1, UnitCost: decimal.RequireFromString("0.10"), Value: decimal.RequireFromString("0.10")},
		},
	}
	path, err := r.RenderFamily(context.Background(), dir, fr)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "families", "F1.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(render.FamilySheet)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "F1 Fasteners", rows[0][0])
	assert.Equal(t, []string{"Code", "Name", "Quantity", "Theoretical", "Unit cost", "Value"}, rows[3])
	assert.Equal(t, "A", rows[4][0])
	assert.Equal(t, "2", rows[4][2])
	assert.Equal(t, "Total", rows[6][0])
	assert.Equal(t, "3", rows[6][2])
}
