// Package journal keeps a durable intent record per run so that a run
// interrupted between the ledger commit and the promotion of its staging
// directory can be finished later.
//
// Records live in <root>/.journal/<date>_<run-id>.yaml, one per run, so a
// later run for the same date never hides an unfinished one. They move
// through
//
//	pending -> committed -> promoted
//	pending | committed -> aborted
package journal

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
)

// State is the progress of a journaled run.
type State string

// Journal states.
const (
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StatePromoted  State = "promoted"
	StateAborted   State = "aborted"
)

// Terminal reports whether nothing is left to do for the run.
func (s State) Terminal() bool {
	return s == StatePromoted || s == StateAborted
}

// Record is the journal entry of one run.
type Record struct {
	RunID     string            `yaml:"run_id"`
	Date      string            `yaml:"date"`
	State     State             `yaml:"state"`
	Staging   string            `yaml:"staging"`
	Canonical string            `yaml:"canonical"`
	Overwrite bool              `yaml:"overwrite"`
	Target    string            `yaml:"target,omitempty"`
	Error     string            `yaml:"error,omitempty"`
	Movements []ledger.Movement `yaml:"movements,omitempty"`
	CreatedAt time.Time         `yaml:"created_at"`
	UpdatedAt time.Time         `yaml:"updated_at"`
}

// Journal stores records under a directory.
type Journal struct {
	dir string
}

// New returns the journal of an inventory root.
func New(root string) *Journal {
	return &Journal{dir: filepath.Join(root, constants.JournalDir)}
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

func (j *Journal) path(date, runID string) string {
	return filepath.Join(j.dir, date+"_"+runID+".yaml")
}

// Begin writes a pending record for a run.
func (j *Journal) Begin(ctx context.Context, rec *Record) error {
	if rec.RunID == "" || rec.Date == "" {
		return &errors.ValidationError{Field: "record", Message: "run id and date are required"}
	}
	now := time.Now().UTC()
	rec.State = StatePending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return j.write(ctx, rec)
}

// Mark moves a record to a new state. target and cause are recorded when set.
func (j *Journal) Mark(ctx context.Context, rec *Record, state State, target string, cause error) error {
	rec.State = state
	rec.UpdatedAt = time.Now().UTC()
	if target != "" {
		rec.Target = target
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return j.write(ctx, rec)
}

// write replaces the record file through a rename so a crash never leaves a
// truncated record.
func (j *Journal) write(ctx context.Context, rec *Record) error {
	path := j.path(rec.Date, rec.RunID)
	data, err := yaml.MarshalWithOptions(rec, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.MkdirAll(j.dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", j.dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WrapIO("rename", tmp, err)
	}
	logging.FromContext(ctx).Debug().
		Str("run_id", rec.RunID).
		Str("state", string(rec.State)).
		Msg("Journal updated")
	return nil
}

// Load reads the record of one run.
func (j *Journal) Load(date, runID string) (*Record, error) {
	rec, err := load(j.path(date, runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.NewNotFoundError("journal", date+"_"+runID)
	}
	return rec, err
}

func load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &rec, nil
}

// List returns every record ordered by date, then creation time.
func (j *Journal) List() ([]*Record, error) {
	entries, err := os.ReadDir(j.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", j.dir, err)
	}

	var out []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		rec, err := load(filepath.Join(j.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Date != out[b].Date {
			return out[a].Date < out[b].Date
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

// Unfinished returns the records that are neither promoted nor aborted.
func (j *Journal) Unfinished() ([]*Record, error) {
	all, err := j.List()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, rec := range all {
		if !rec.State.Terminal() {
			out = append(out, rec)
		}
	}
	return out, nil
}
