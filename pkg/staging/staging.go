// Package staging builds the artifacts of a run in a private temporary
// directory and promotes it to the canonical inventory directory in one
// rename. Readers only ever see a canonical directory that is complete.
//
// Layout under the root directory:
//
//	inventory_<date>/                  canonical, finalized
//	    raw_inventory_<date>.txt
//	    sorted_inventory_<date>.csv
//	    families/<family>.csv
//	temp_inventory_<date>_<run>/       staging, one per attempt
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/scan"
)

// Stager owns the staging directory of one run.
type Stager struct {
	root      string
	date      string
	runID     string
	temp      string
	canonical string

	mover       Mover
	decider     decide.Decider
	sink        progress.Sink
	maxAttempts int
	backoff     time.Duration
	isLocked    func(error) bool

	overwrite bool
	done      bool
}

// New creates a stager for the run. Nothing touches the disk until Init.
func New(root string, date time.Time, runID string, opts ...Option) (*Stager, error) {
	if root == "" {
		return nil, &errors.ValidationError{Field: "root", Message: "cannot be empty"}
	}
	if runID == "" {
		return nil, &errors.ValidationError{Field: "run id", Message: "cannot be empty"}
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	d := date.Format(constants.DateFormat)
	return &Stager{
		root:        root,
		date:        d,
		runID:       runID,
		temp:        filepath.Join(root, TempName(d, runID)),
		canonical:   filepath.Join(root, CanonicalName(d)),
		mover:       o.mover,
		decider:     o.decider,
		sink:        o.sink,
		maxAttempts: o.maxAttempts,
		backoff:     o.backoff,
		isLocked:    o.isLocked,
	}, nil
}

// Resume adopts the staging directory of an interrupted run so that it can be
// promoted. The directory must exist. overwrite carries the answer the run
// already gave to the conflict check; without it an existing canonical
// directory is asked about again.
func Resume(root string, date time.Time, runID, temp string, overwrite bool, opts ...Option) (*Stager, error) {
	s, err := New(root, date, runID, opts...)
	if err != nil {
		return nil, err
	}
	if !exists(temp) {
		return nil, errors.NewNotFoundError("staging directory", temp)
	}
	s.temp = temp
	s.overwrite = overwrite
	return s, nil
}

// CanonicalName returns the name of the finalized directory of a date.
func CanonicalName(date string) string {
	return constants.InventoryDirPrefix + date
}

// TempName returns the name of the staging directory of a run.
func TempName(date, runID string) string {
	return constants.TempDirPrefix + date + "_" + shortID(runID)
}

func shortID(runID string) string {
	short := strings.ReplaceAll(runID, "-", "")
	if len(short) > constants.ShortIDLength {
		short = short[:constants.ShortIDLength]
	}
	return short
}

// Dir returns the staging directory.
func (s *Stager) Dir() string { return s.temp }

// Canonical returns the canonical directory of the date.
func (s *Stager) Canonical() string { return s.canonical }

// Date returns the formatted reconciliation date.
func (s *Stager) Date() string { return s.date }

// Init creates the staging directory. It fails if the directory exists.
func (s *Stager) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.root, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", s.root, err)
	}
	if err := os.Mkdir(s.temp, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", s.temp, err)
	}
	logging.FromContext(ctx).Debug().Str("dir", s.temp).Msg("Staging directory created")
	return nil
}

// Populate writes the raw scan copy, the sorted listing and one listing per
// family. On failure the staging directory is removed.
func (s *Stager) Populate(ctx context.Context, rec *scan.Record, counts *scan.Counts, groups []family.Group) error {
	if err := s.populate(rec, counts, groups); err != nil {
		s.cleanup(ctx)
		return err
	}
	s.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageStage,
		Message: fmt.Sprintf("staged %d items in %d families", counts.Len(), len(groups)),
	})
	return nil
}

func (s *Stager) populate(rec *scan.Record, counts *scan.Counts, groups []family.Group) error {
	if err := writeFile(filepath.Join(s.temp, fmt.Sprintf(constants.RawScanFile, s.date)), rec.Raw); err != nil {
		return err
	}

	data, err := listing(counts.Sorted())
	if err != nil {
		return errors.WrapIO("write", constants.SortedCountFile, err)
	}
	if err := writeFile(filepath.Join(s.temp, fmt.Sprintf(constants.SortedCountFile, s.date)), data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(s.temp, constants.FamiliesDir), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", constants.FamiliesDir, err)
	}
	for _, g := range groups {
		data, err := listing(g.Items)
		if err != nil {
			return errors.WrapIO("write", string(g.Family.Code), err)
		}
		if err := writeFile(s.FamilyPath(string(g.Family.Code), ".csv"), data); err != nil {
			return err
		}
	}
	return nil
}

// FamilyPath returns the path of a family artifact in the staging directory.
func (s *Stager) FamilyPath(code, ext string) string {
	return filepath.Join(s.temp, constants.FamiliesDir, code+ext)
}

// ConflictCheck asks to overwrite when the canonical directory already
// exists. Declining removes the staging directory and aborts.
func (s *Stager) ConflictCheck(ctx context.Context) (bool, error) {
	if !exists(s.canonical) {
		return false, nil
	}
	conflict := &errors.DirectoryConflictError{Path: s.canonical}
	ok, err := s.askOverwrite(ctx, conflict)
	if err != nil || !ok {
		s.cleanup(ctx)
		reason := "operator declined to overwrite " + s.canonical
		if err != nil {
			reason = err.Error()
		}
		return false, errors.NewAbortedError(string(progress.StageStage), reason, false, conflict)
	}
	s.overwrite = true
	return true, nil
}

func (s *Stager) askOverwrite(ctx context.Context, conflict *errors.DirectoryConflictError) (bool, error) {
	s.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageStage,
		Level:   progress.Warning,
		Code:    errors.CodeDirectoryExists,
		Message: conflict.Error(),
	})
	return s.decider.Decide(ctx, decide.Prompt{
		Kind:    decide.KindOverwrite,
		Code:    errors.CodeDirectoryExists,
		Message: conflict.Error(),
		Path:    s.canonical,
	})
}

// Finalize promotes the staging directory. An existing canonical directory
// is only replaced when overwriting was accepted; one that appeared after
// ConflictCheck is asked about here, and declining offers the rename
// fallback. committed tells whether the ledger was already committed, which
// only changes the warnings of an abort.
//
// A failed promotion leaves the staging directory in place so that the caller
// can either resume it or Abort.
func (s *Stager) Finalize(ctx context.Context, committed bool) (*Outcome, error) {
	if s.done {
		return nil, errors.NewResourceError("finalize", "staging directory", s.temp, errors.New("already finalized"))
	}
	if !exists(s.canonical) {
		out := &Outcome{State: StateResolved, Target: s.canonical}
		if err := s.promote(ctx, s.canonical); err != nil {
			return nil, err
		}
		return out, nil
	}
	if !s.overwrite {
		conflict := &errors.DirectoryConflictError{Path: s.canonical}
		ok, err := s.askOverwrite(ctx, conflict)
		out := &Outcome{State: StatePending, Target: s.canonical}
		switch {
		case err != nil:
			return s.abortReplace(ctx, out, conflict, err, committed)
		case !ok:
			return s.fallback(ctx, out, conflict, committed)
		}
		s.overwrite = true
	}
	return s.replace(ctx, committed)
}

// Abort removes the staging directory and leaves the canonical directory
// untouched. When the ledger was committed a warning says so.
func (s *Stager) Abort(ctx context.Context, committed bool) {
	s.cleanup(ctx)
	if committed {
		s.sink.Notify(ctx, progress.Event{
			Stage:   progress.StagePromote,
			Level:   progress.Warning,
			Message: "stock changes were committed to the ledger but no inventory directory was produced",
		})
	}
}

func (s *Stager) promote(ctx context.Context, target string) error {
	if err := s.mover.Rename(s.temp, target); err != nil {
		return errors.WrapIO("rename", s.temp, err)
	}
	s.done = true
	s.sink.Notify(ctx, progress.Event{
		Stage:   progress.StagePromote,
		Message: "inventory finalized in " + target,
	})
	return nil
}

func (s *Stager) cleanup(ctx context.Context) {
	if s.done {
		return
	}
	s.done = true
	if err := s.mover.RemoveAll(s.temp); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("dir", s.temp).Msg("Failed to remove staging directory")
	}
}
