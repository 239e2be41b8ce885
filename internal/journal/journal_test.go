package journal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/journal"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
)

func record(date string) *journal.Record {
	return &journal.Record{
		RunID:     "run-" + date,
		Date:      date,
		Staging:   "/inv/temp_inventory_" + date + "_abcd1234",
		Canonical: "/inv/inventory_" + date,
		Movements: []ledger.Movement{{
			ID:         "m1",
			RunID:      "run-" + date,
			Item:       "A",
			Direction:  ledger.Outbound,
			Quantity:   1,
			Source:     "M",
			OccurredAt: time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC),
		}},
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	j := journal.New(root)
	assert.Equal(t, filepath.Join(root, ".journal"), j.Dir())

	rec := record("2026-06-30")
	require.NoError(t, j.Begin(ctx, rec))
	assert.FileExists(t, filepath.Join(root, ".journal", "2026-06-30_run-2026-06-30.yaml"))
	assert.NoFileExists(t, filepath.Join(root, ".journal", "2026-06-30_run-2026-06-30.yaml.tmp"))

	loaded, err := j.Load("2026-06-30", "run-2026-06-30")
	require.NoError(t, err)
	assert.Equal(t, journal.StatePending, loaded.State)
	require.Len(t, loaded.Movements, 1)
	assert.Equal(t, ledger.Outbound, loaded.Movements[0].Direction)
	assert.Equal(t, "A", loaded.Movements[0].Item)

	require.NoError(t, j.Mark(ctx, rec, journal.StateCommitted, "", nil))
	unfinished, err := j.Unfinished()
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, journal.StateCommitted, unfinished[0].State)

	require.NoError(t, j.Mark(ctx, rec, journal.StatePromoted, "/inv/inventory_2026-06-30", nil))
	loaded, err = j.Load("2026-06-30", "run-2026-06-30")
	require.NoError(t, err)
	assert.Equal(t, journal.StatePromoted, loaded.State)
	assert.Equal(t, "/inv/inventory_2026-06-30", loaded.Target)
	assert.True(t, loaded.State.Terminal())

	unfinished, err = j.Unfinished()
	require.NoError(t, err)
	assert.Empty(t, unfinished)
}

func TestMarkRecordsCause(t *testing.T) {
	ctx := context.Background()
	j := journal.New(t.TempDir())
	rec := record("2026-12-31")
	require.NoError(t, j.Begin(ctx, rec))
	require.NoError(t, j.Mark(ctx, rec, journal.StateAborted, "", errors.New("declined")))

	loaded, err := j.Load("2026-12-31", "run-2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, "declined", loaded.Error)
}

func TestBeginValidates(t *testing.T) {
	j := journal.New(t.TempDir())
	err := j.Begin(context.Background(), &journal.Record{})
	assert.True(t, errors.IsValidationError(err))
}

func TestListOrdersByDate(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	j := journal.New(root)

	assert.Empty(t, mustList(t, j))

	require.NoError(t, j.Begin(ctx, record("2026-12-31")))
	require.NoError(t, j.Begin(ctx, record("2026-06-30")))
	require.NoError(t, os.WriteFile(filepath.Join(j.Dir(), "notes.txt"), []byte("x"), 0o644))

	all := mustList(t, j)
	require.Len(t, all, 2)
	assert.Equal(t, "2026-06-30", all[0].Date)
	assert.Equal(t, "2026-12-31", all[1].Date)
}

func TestRunsOfTheSameDateKeepSeparateRecords(t *testing.T) {
	ctx := context.Background()
	j := journal.New(t.TempDir())

	first := record("2026-06-30")
	first.RunID = "run-1"
	require.NoError(t, j.Begin(ctx, first))
	require.NoError(t, j.Mark(ctx, first, journal.StateCommitted, "", nil))

	second := record("2026-06-30")
	second.RunID = "run-2"
	require.NoError(t, j.Begin(ctx, second))
	require.NoError(t, j.Mark(ctx, second, journal.StateAborted, "", errors.New("declined")))

	unfinished, err := j.Unfinished()
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "run-1", unfinished[0].RunID)
	assert.Equal(t, journal.StateCommitted, unfinished[0].State)

	assert.Len(t, mustList(t, j), 2)
}

func TestLoadMissing(t *testing.T) {
	_, err := journal.New(t.TempDir()).Load("2026-06-30", "run-1")
	assert.True(t, errors.IsNotFound(err))
}

func mustList(t *testing.T, j *journal.Journal) []*journal.Record {
	t.Helper()
	all, err := j.List()
	require.NoError(t, err)
	return all
}
