package staging_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/scan"
	"github.com/agentstation/stocktake/pkg/staging"
)

var date = time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)

// lockingMover fails renames of one directory a number of times.
type lockingMover struct {
	staging.OSMover
	path  string
	fails int
	err   error
	calls int
}

func (m *lockingMover) Rename(oldpath, newpath string) error {
	if oldpath == m.path && (m.fails < 0 || m.calls < m.fails) {
		m.calls++
		return m.err
	}
	return m.OSMover.Rename(oldpath, newpath)
}

func lockedErr() error {
	return &os.PathError{Op: "rename", Path: "inventory", Err: os.ErrPermission}
}

func stage(t *testing.T, root string, opts ...staging.Option) *staging.Stager {
	t.Helper()
	s, err := staging.New(root, date, "0f8fad5b-d9cb-469f-a165-70867728950e", opts...)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))

	rec, err := scan.ParseString("A\nB\nA\n")
	require.NoError(t, err)
	groups := []family.Group{{
		Family: ledger.Family{Code: "F1", Label: "Fasteners"},
		Items:  []scan.Pair{{Code: "A", Quantity: 2}, {Code: "B", Quantity: 1}},
	}}
	require.NoError(t, s.Populate(context.Background(), rec, rec.Counts(), groups))
	return s
}

func existing(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "inventory_2026-06-30")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("old"), 0o644))
	return dir
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "inventory_2026-06-30", staging.CanonicalName("2026-06-30"))
	assert.Equal(t, "temp_inventory_2026-06-30_0f8fad5b", staging.TempName("2026-06-30", "0f8fad5b-d9cb"))
}

func TestInitFailsOnCollision(t *testing.T) {
	root := t.TempDir()
	s, err := staging.New(root, date, "run-1")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	assert.Error(t, s.Init(context.Background()))
}

func TestPopulateAndPromote(t *testing.T) {
	root := t.TempDir()
	s := stage(t, root)

	assert.Equal(t, "A\nB\nA\n", read(t, filepath.Join(s.Dir(), "raw_inventory_2026-06-30.txt")))
	assert.Equal(t, "Code;Quantity\nA;2\nB;1\n", read(t, filepath.Join(s.Dir(), "sorted_inventory_2026-06-30.csv")))
	assert.Equal(t, "Code;Quantity\nA;2\nB;1\n", read(t, s.FamilyPath("F1", ".csv")))

	overwrite, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, overwrite)

	out, err := s.Finalize(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, staging.StateResolved, out.State)
	assert.Equal(t, s.Canonical(), out.Target)
	assert.NoDirExists(t, s.Dir())
	assert.FileExists(t, filepath.Join(s.Canonical(), "families", "F1.csv"))

	_, err = s.Finalize(context.Background(), true)
	assert.Error(t, err)
}

func TestConflictDeclined(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	s := stage(t, root, staging.WithDecider(decide.Always(false)))

	_, err := s.ConflictCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))
	assert.ErrorIs(t, err, errors.ErrDirectoryConflict)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.CodeDirectoryExists, code)

	assert.NoDirExists(t, s.Dir())
	assert.Equal(t, "old", read(t, filepath.Join(old, "old.txt")))
}

func TestReplaceResolved(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	s := stage(t, root, staging.WithDecider(decide.Always(true)))

	overwrite, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, overwrite)

	out, err := s.Finalize(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, staging.StateResolved, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.NoFileExists(t, filepath.Join(old, "old.txt"))
	assert.FileExists(t, filepath.Join(old, "sorted_inventory_2026-06-30.csv"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staging or trash directory is left behind")
}

func TestReplaceRetryThenResolved(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	mover := &lockingMover{path: old, fails: 1, err: lockedErr()}
	script := decide.NewScript(true, true)
	s := stage(t, root, staging.WithDecider(script), staging.WithMover(mover))

	_, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	out, err := s.Finalize(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, staging.StateResolved, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []decide.Kind{decide.KindOverwrite, decide.KindRetry}, script.Kinds())

	var states []staging.State
	for _, tr := range out.Transitions {
		states = append(states, tr.To)
	}
	assert.Equal(t, []staging.State{staging.StateLocked, staging.StateRetrying, staging.StateResolved}, states)
}

func TestReplaceExhaustedRenameFallback(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	require.NoError(t, os.MkdirAll(old+"_new", 0o755))

	mover := &lockingMover{path: old, fails: -1, err: lockedErr()}
	script := decide.NewScript(true, true, true, true)
	rec := &progress.Recorder{}
	s := stage(t, root, staging.WithDecider(script), staging.WithMover(mover), staging.WithSink(rec))

	_, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	out, err := s.Finalize(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, staging.StateRenameFallback, out.State)
	assert.Equal(t, old+"_new_2", out.Target)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, mover.calls)
	assert.Equal(t, []decide.Kind{
		decide.KindOverwrite, decide.KindRetry, decide.KindRetry, decide.KindRenameFallback,
	}, script.Kinds())
	assert.Equal(t, []errors.Code{
		errors.CodeDirectoryExists, errors.CodeLockedArtifact, errors.CodeLockedArtifact, errors.CodeRetriesExhausted,
	}, rec.Codes())

	assert.Equal(t, "old", read(t, filepath.Join(old, "old.txt")), "original untouched")
	assert.FileExists(t, filepath.Join(out.Target, "raw_inventory_2026-06-30.txt"))
	assert.NoDirExists(t, s.Dir())
}

func TestReplaceDeleteFailureOffersFallback(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	mover := &lockingMover{path: old, fails: -1, err: fmt.Errorf("device error")}
	script := decide.NewScript(true, false)
	s := stage(t, root, staging.WithDecider(script), staging.WithMover(mover))

	_, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	out, err := s.Finalize(context.Background(), true)
	require.Error(t, err)

	assert.Equal(t, staging.StateAborted, out.State)
	assert.Equal(t, []decide.Kind{decide.KindOverwrite, decide.KindRenameFallback}, script.Kinds())

	var aborted *errors.AbortedError
	require.ErrorAs(t, err, &aborted)
	assert.True(t, aborted.Committed)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.CodeDeleteFailure, code)

	assert.NoDirExists(t, s.Dir())
	assert.Equal(t, "old", read(t, filepath.Join(old, "old.txt")))
}

func TestReplaceRetryCancelled(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	mover := &lockingMover{path: old, fails: -1, err: lockedErr()}
	s := stage(t, root, staging.WithDecider(decide.NewScript(true, false)), staging.WithMover(mover))

	_, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	out, err := s.Finalize(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))
	assert.True(t, errors.IsLocked(err))
	assert.Equal(t, staging.StateAborted, out.State)
	assert.True(t, out.State.Terminal())
	assert.NoDirExists(t, s.Dir())
}

func TestResume(t *testing.T) {
	root := t.TempDir()
	s := stage(t, root)

	resumed, err := staging.Resume(root, date, "other-run", s.Dir(), false)
	require.NoError(t, err)
	out, err := resumed.Finalize(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, staging.StateResolved, out.State)
	assert.DirExists(t, s.Canonical())

	_, err = staging.Resume(root, date, "other-run", filepath.Join(root, "missing"), false)
	assert.True(t, errors.IsNotFound(err))
}

func TestFinalizeAsksWhenDirectoryAppearsLate(t *testing.T) {
	tests := []struct {
		name    string
		answers []bool
		state   staging.State
		target  string
		kept    bool
		wantErr bool
	}{
		{name: "declined", answers: []bool{false, false}, state: staging.StateAborted, kept: true, wantErr: true},
		{name: "renamed", answers: []bool{false, true}, state: staging.StateRenameFallback, target: "_new", kept: true},
		{name: "overwritten", answers: []bool{true}, state: staging.StateResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			script := decide.NewScript(tt.answers...)
			s := stage(t, root, staging.WithDecider(script))

			overwrite, err := s.ConflictCheck(context.Background())
			require.NoError(t, err)
			require.False(t, overwrite)

			// another operator finalizes the same date in the meantime
			theirs := filepath.Join(s.Canonical(), "theirs.txt")
			require.NoError(t, os.MkdirAll(s.Canonical(), 0o755))
			require.NoError(t, os.WriteFile(theirs, []byte("theirs"), 0o644))

			out, err := s.Finalize(context.Background(), true)
			require.NotNil(t, out)
			assert.Equal(t, tt.state, out.State)
			assert.Equal(t, decide.KindOverwrite, script.Kinds()[0])
			assert.Len(t, script.Kinds(), len(tt.answers))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsAborted(err))
				code, _ := errors.CodeOf(err)
				assert.Equal(t, errors.CodeDirectoryExists, code)
				var aborted *errors.AbortedError
				require.ErrorAs(t, err, &aborted)
				assert.True(t, aborted.Committed)
			} else {
				require.NoError(t, err)
			}
			if tt.target != "" {
				assert.Equal(t, s.Canonical()+tt.target, out.Target)
			}
			if tt.kept {
				assert.Equal(t, "theirs", read(t, theirs))
			} else {
				assert.NoFileExists(t, theirs)
			}
			assert.NoDirExists(t, s.Dir())
		})
	}
}

func TestResumeAsksWithoutRecordedOverwrite(t *testing.T) {
	root := t.TempDir()
	old := existing(t, root)
	s := stage(t, root)

	resumed, err := staging.Resume(root, date, "other-run", s.Dir(), false, staging.WithDecider(decide.Always(false)))
	require.NoError(t, err)
	_, err = resumed.Finalize(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))
	assert.Equal(t, "old", read(t, filepath.Join(old, "old.txt")))

	s = stage(t, t.TempDir())
	root = filepath.Dir(s.Dir())
	old = existing(t, root)
	resumed, err = staging.Resume(root, date, "other-run", s.Dir(), true, staging.WithDecider(decide.Always(false)))
	require.NoError(t, err)
	out, err := resumed.Finalize(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, staging.StateResolved, out.State)
	assert.NoFileExists(t, filepath.Join(old, "old.txt"))
}

func TestPromoteFailureKeepsStaging(t *testing.T) {
	root := t.TempDir()
	mover := &lockingMover{fails: -1, err: fmt.Errorf("cross-device link")}
	s := stage(t, root, staging.WithMover(mover))
	mover.path = s.Dir()

	_, err := s.ConflictCheck(context.Background())
	require.NoError(t, err)
	_, err = s.Finalize(context.Background(), true)
	require.Error(t, err)
	assert.False(t, errors.IsAborted(err))
	assert.DirExists(t, s.Dir())
	assert.NoDirExists(t, s.Canonical())

	rec := &progress.Recorder{}
	s2, err := staging.Resume(root, date, "run-2", s.Dir(), false, staging.WithSink(rec))
	require.NoError(t, err)
	s2.Abort(context.Background(), true)
	assert.NoDirExists(t, s.Dir())
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, progress.Warning, rec.Events()[0].Level)
}
