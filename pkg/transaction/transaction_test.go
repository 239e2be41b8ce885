package transaction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/ledger/memory"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/transaction"
)

func catalog() *memory.Ledger {
	return memory.New().
		AddEntry(ledger.Entry{Code: "A", Supply: 5, Consumption: 2}).
		AddEntry(ledger.Entry{Code: "B"}).
		AddEntry(ledger.Entry{Code: "C", Supply: 4})
}

func movements() []ledger.Movement {
	return []ledger.Movement{
		{Item: "A", Direction: ledger.Outbound, Quantity: 1},
		{Item: "B", Direction: ledger.Inbound, Quantity: 1},
		{Item: "C", Direction: ledger.Outbound, Quantity: 4},
	}
}

func stock(t *testing.T, l ledger.Reader) map[string]int64 {
	t.Helper()
	entries, err := l.Entries(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64)
	for _, e := range entries {
		out[e.Code] = e.Theoretical()
	}
	return out
}

func TestApplyCommits(t *testing.T) {
	l := catalog()
	m, err := transaction.New(l, nil)
	require.NoError(t, err)

	res, err := m.Apply(context.Background(), movements())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, int64(1), res.Inbound)
	assert.Equal(t, int64(5), res.Outbound)
	assert.Equal(t, map[string]int64{"A": 2, "B": 1, "C": 0}, stock(t, l))
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	l := catalog().FailOn("C", nil)
	rec := &progress.Recorder{}
	m, err := transaction.New(l, rec)
	require.NoError(t, err)

	before := stock(t, l)
	_, err = m.Apply(context.Background(), movements())
	require.Error(t, err)
	assert.True(t, errors.IsPartialUpdate(err))

	var perr *errors.PartialUpdateError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "C", perr.Item)
	assert.Equal(t, 2, perr.Applied)
	assert.Equal(t, 3, perr.Total)
	assert.True(t, perr.RolledBack)
	assert.Equal(t, errors.CodeRolledBack, perr.Code())

	assert.Equal(t, before, stock(t, l), "a failed run leaves every entry untouched")
	assert.Equal(t, []errors.Code{errors.CodeUpdateFailure, errors.CodeRolledBack}, rec.Codes())

	_, rollbacks := l.Stats()
	assert.Equal(t, 1, rollbacks)
}

func TestApplyEmpty(t *testing.T) {
	l := catalog()
	m, err := transaction.New(l, nil)
	require.NoError(t, err)

	res, err := m.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	commits, _ := l.Stats()
	assert.Zero(t, commits)
}

func TestNewRequiresLedger(t *testing.T) {
	_, err := transaction.New(nil, nil)
	assert.True(t, errors.IsValidationError(err))
}
