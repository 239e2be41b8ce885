package stocktake

import (
	"time"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/reconciler"
	"github.com/agentstation/stocktake/pkg/report"
	"github.com/agentstation/stocktake/pkg/scan"
	"github.com/agentstation/stocktake/pkg/staging"
	"github.com/agentstation/stocktake/pkg/transaction"
	"github.com/agentstation/stocktake/pkg/validate"
)

// Outcome is how a run ended.
type Outcome string

// Run outcomes.
const (
	// OutcomeFinalized means the inventory was promoted to its canonical directory.
	OutcomeFinalized Outcome = "finalized"
	// OutcomeRenamed means the inventory was promoted under a fallback name.
	OutcomeRenamed Outcome = "renamed"
	// OutcomeAborted means the operator declined to continue.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means an error stopped the run.
	OutcomeFailed Outcome = "failed"
)

// Run is everything one reconciliation produced. Fields are filled as the
// pipeline advances, so an aborted run carries what was done before it
// stopped.
type Run struct {
	ID       string
	Date     time.Time
	ScanPath string

	Record     *scan.Record
	Counts     *scan.Counts
	Orphans    *scan.Counts
	Exclusions []validate.Exclusion
	Families   []family.Group

	Reconciliation *reconciler.Result
	Applied        *transaction.Result
	Committed      bool

	Staging string
	Replace *staging.Outcome
	Target  string

	ReportPath  string
	FamilyPaths []string
	Archived    []string

	Outcome Outcome
	Report  report.Data
	Err     error

	Started  time.Time
	Finished time.Time
}

// Movements returns the movements the run planned, applied or not.
func (r *Run) Movements() []ledger.Movement {
	if r.Reconciliation == nil {
		return nil
	}
	return r.Reconciliation.Movements
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Code returns the error code the run stopped on, if any.
func (r *Run) Code() errors.Code {
	c, _ := errors.CodeOf(r.Err)
	return c
}

func outcomeOf(err error, out *staging.Outcome) Outcome {
	switch {
	case err == nil && out != nil && out.State == staging.StateRenameFallback:
		return OutcomeRenamed
	case err == nil:
		return OutcomeFinalized
	case errors.IsAborted(err) || errors.IsCanceled(err):
		return OutcomeAborted
	default:
		return OutcomeFailed
	}
}
