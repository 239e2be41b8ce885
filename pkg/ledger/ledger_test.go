package ledger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
)

func TestFamilyCodeNormalize(t *testing.T) {
	tests := []struct {
		in   ledger.FamilyCode
		want ledger.FamilyCode
	}{
		{"F1", "F1"},
		{"F1.", "F1"},
		{" F1.. ", "F1"},
		{"", ""},
		{".", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize(), string(tt.in))
	}
	assert.True(t, ledger.FamilyCode(" . ").IsZero())
}

func TestEntryTheoretical(t *testing.T) {
	e := ledger.Entry{Code: "A", Supply: 5, Consumption: 2}
	assert.Equal(t, int64(3), e.Theoretical())
}

func TestDirection(t *testing.T) {
	d, err := ledger.ParseDirection("OUT")
	require.NoError(t, err)
	assert.Equal(t, ledger.Outbound, d)

	_, err = ledger.ParseDirection("sideways")
	assert.True(t, errors.IsValidationError(err))

	var parsed ledger.Direction
	require.NoError(t, parsed.UnmarshalText([]byte("in")))
	assert.Equal(t, ledger.Inbound, parsed)
	assert.Equal(t, "unknown", ledger.Direction(0).String())
}

func TestMovement(t *testing.T) {
	entry := ledger.Entry{Code: "A", Supply: 5, Consumption: 2}

	out := ledger.Movement{Item: "A", Direction: ledger.Outbound, Quantity: 1}
	require.NoError(t, out.Validate())
	assert.Equal(t, int64(-1), out.Signed())
	assert.Equal(t, int64(2), out.Apply(entry).Theoretical())

	in := ledger.Movement{Item: "A", Direction: ledger.Inbound, Quantity: 4}
	assert.Equal(t, int64(4), in.Signed())
	assert.Equal(t, int64(9), in.Apply(entry).Supply)

	tests := []struct {
		name string
		m    ledger.Movement
	}{
		{"no item", ledger.Movement{Direction: ledger.Inbound, Quantity: 1}},
		{"zero quantity", ledger.Movement{Item: "A", Direction: ledger.Inbound}},
		{"no direction", ledger.Movement{Item: "A", Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.IsValidationError(tt.m.Validate()))
		})
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `families:
  - code: F1.
    label: Fasteners
items:
  - code: A
    name: Bolt
    family: F1
    supply: 5
    consumption: 2
    unit_cost: "0.25"
  - code: B
    name: Nut
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	seed, err := ledger.LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed.Families, 1)
	assert.Equal(t, "Fasteners", seed.Families[0].Label)

	entries, err := seed.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, decimal.RequireFromString("0.25").Equal(entries[0].UnitCost))
	assert.True(t, entries[1].UnitCost.IsZero())

	seed.Items[0].UnitCost = "abc"
	_, err = seed.Entries()
	assert.True(t, errors.IsValidationError(err))

	_, err = ledger.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
