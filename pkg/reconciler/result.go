package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
)

// Result represents the outcome of a reconciliation.
type Result struct {
	// Lines holds one line per catalog entry, in catalog order.
	Lines []Line

	// Movements are the corrections to apply, in catalog order.
	Movements []ledger.Movement

	// Valuations holds the counted stock value per family, ordered by code.
	Valuations []Valuation

	// Orphans are entries whose family did not resolve. They are still
	// corrected but valued nowhere.
	Orphans []*errors.OrphanFamilyError

	Metadata ResultMetadata
}

// Line is the comparison of one catalog entry.
type Line struct {
	Entry       ledger.Entry
	Real        int64
	Theoretical int64
	Diff        int64
	Value       decimal.Decimal

	// Family is zero for orphans.
	Family ledger.Family

	// Movement is nil when no correction is needed.
	Movement *ledger.Movement
}

// Valuation is the counted value of a family.
type Valuation struct {
	Family   ledger.Family
	Value    decimal.Decimal
	Items    int
	Quantity int64
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Stats     ResultStatistics
}

// ResultStatistics contains statistics about the reconciliation.
type ResultStatistics struct {
	ItemsProcessed int
	Inbound        int
	Outbound       int
	Unchanged      int
	Orphans        int
}

// HasChanges returns true if any movement is needed.
func (r *Result) HasChanges() bool {
	return len(r.Movements) > 0
}

// Valuation returns the valuation of a family.
func (r *Result) Valuation(code ledger.FamilyCode) (Valuation, bool) {
	for _, v := range r.Valuations {
		if v.Family.Code == code {
			return v, true
		}
	}
	return Valuation{}, false
}

// LinesOf returns the lines of a family, in catalog order.
func (r *Result) LinesOf(code ledger.FamilyCode) []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Family.Code == code && code != "" {
			out = append(out, l)
		}
	}
	return out
}

// TotalValue sums every family valuation.
func (r *Result) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.Valuations {
		total = total.Add(v.Value)
	}
	return total
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	if !r.HasChanges() {
		return fmt.Sprintf("%d items checked, stock already matches the count", s.ItemsProcessed)
	}
	return fmt.Sprintf("%d items checked: %d inbound, %d outbound, %d unchanged",
		s.ItemsProcessed, s.Inbound, s.Outbound, s.Unchanged)
}

// NewResult creates a new result with defaults.
func NewResult() *Result {
	return &Result{
		Metadata: ResultMetadata{StartTime: time.Now()},
	}
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}
