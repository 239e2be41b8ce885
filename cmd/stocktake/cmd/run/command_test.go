package run

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/ledger/memory"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
)

func newMock(t *testing.T, l ledger.Ledger) *application.Mock {
	t.Helper()
	return &application.Mock{
		Root:       t.TempDir(),
		LedgerFunc: func(context.Context) (ledger.Ledger, error) { return l, nil },
		NowFunc:    func() time.Time { return time.Date(2026, time.July, 2, 0, 0, 0, 0, time.UTC) },
	}
}

func execute(t *testing.T, app application.Application, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand(app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func scanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func catalog() *memory.Ledger {
	return memory.New().
		AddFamily(ledger.Family{Code: "F1", Label: "Fasteners"}).
		AddEntry(ledger.Entry{Code: "A", Name: "Bolt", Family: "F1", Supply: 1})
}

func TestRunDefaultDeclines(t *testing.T) {
	l := catalog()
	mock := newMock(t, l)

	out, err := execute(t, mock, scanFile(t, "A\nZ\n"))
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))
	assert.Contains(t, out, "aborted")
	assert.Contains(t, out, "A001")

	e, err := l.Entry(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Theoretical())
}

func TestRunYes(t *testing.T) {
	l := catalog()
	mock := newMock(t, l)

	out, err := execute(t, mock, scanFile(t, "A\nA\nZ\n"), "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "finalized")
	assert.Contains(t, out, "2026-06-30")
	assert.DirExists(t, filepath.Join(mock.Root, "inventory_2026-06-30"))

	e, err := l.Entry(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Theoretical())
}

func TestRunDateOverride(t *testing.T) {
	mock := newMock(t, catalog())

	_, err := execute(t, mock, scanFile(t, "A\n"), "--date", "2025-12-31")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(mock.Root, "inventory_2025-12-31"))
}

func TestFlagsOptions(t *testing.T) {
	opts, err := (&Flags{}).options()
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = (&Flags{Yes: true, Date: "2026-06-30"}).options()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = (&Flags{Date: "yesterday"}).options()
	assert.True(t, errors.IsValidationError(err))
}
