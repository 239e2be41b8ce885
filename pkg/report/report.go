// Package report accumulates what a reconciliation run observed so that it
// can be rendered once the run is over. A Builder is threaded through the
// pipeline stages and Build freezes it into Data.
package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/reconciler"
	"github.com/agentstation/stocktake/pkg/scan"
	"github.com/agentstation/stocktake/pkg/validate"
)

// Renderer turns report data into files. Rendering failures never fail a run.
type Renderer interface {
	// Render writes the run report into dir and returns its path.
	Render(ctx context.Context, dir string, data Data) (string, error)

	// RenderFamily writes the report of one family into dir and returns its path.
	RenderFamily(ctx context.Context, dir string, fr FamilyReport) (string, error)
}

// Stats are the headline numbers of a run.
type Stats struct {
	ScannedLines     int
	DistinctItems    int
	DistinctFamilies int
	Excluded         int
	Errors           int
	Inbound          int
	Outbound         int
	Unchanged        int
}

// Issue is one error observed during the run.
type Issue struct {
	Name   string
	Code   errors.Code
	Detail string
}

// FamilyValue is the counted value of a family.
type FamilyValue struct {
	Code     ledger.FamilyCode
	Label    string
	Value    decimal.Decimal
	Items    int
	Quantity int64
}

// Data is the frozen content of a run report.
type Data struct {
	RunID   string
	Date    time.Time
	Target  string
	Outcome string

	Stats Stats

	// Issues are the errors in the order they were recorded. Errors maps
	// each issue name to its detail.
	Issues []Issue
	Errors map[string]string

	// Families holds the valuation per family, ordered by code.
	Families []FamilyValue
	Total    decimal.Decimal

	GeneratedAt time.Time
}

// Family returns the valuation of a family.
func (d Data) Family(code ledger.FamilyCode) (FamilyValue, bool) {
	for _, f := range d.Families {
		if f.Code == code {
			return f, true
		}
	}
	return FamilyValue{}, false
}

// FamilyLine is one catalog item in a family report.
type FamilyLine struct {
	Code        string
	Name        string
	Quantity    int64
	Theoretical int64
	UnitCost    decimal.Decimal
	Value       decimal.Decimal
}

// FamilyReport lists every catalog item of a family after reconciliation.
type FamilyReport struct {
	Family   ledger.Family
	Date     time.Time
	Lines    []FamilyLine
	Quantity int64
	Total    decimal.Decimal
}

// Builder accumulates report data. It is safe for concurrent use.
type Builder struct {
	mu       sync.Mutex
	runID    string
	date     time.Time
	target   string
	outcome  string
	stats    Stats
	issues   []Issue
	names    map[string]int
	families map[ledger.FamilyCode]FamilyValue
}

// NewBuilder creates a builder for a run.
func NewBuilder(runID string, date time.Time) *Builder {
	return &Builder{
		runID:    runID,
		date:     date,
		names:    make(map[string]int),
		families: make(map[ledger.FamilyCode]FamilyValue),
	}
}

// Scanned records the parsed scan file.
func (b *Builder) Scanned(rec *scan.Record) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.ScannedLines = rec.NonBlank()
	return b
}

// Validated records the validation outcome and its exclusions.
func (b *Builder) Validated(res *validate.Result) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.DistinctItems = res.Counts.Len()
	b.stats.DistinctFamilies = len(res.Families)
	b.stats.Excluded = int(res.Excluded())
	for _, e := range res.Exclusions {
		b.add(e.Code(), e.Item, e.Message())
	}
	return b
}

// Reconciled records movements, valuations and update time orphans.
func (b *Builder) Reconciled(res *reconciler.Result) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := res.Metadata.Stats
	b.stats.Inbound = s.Inbound
	b.stats.Outbound = s.Outbound
	b.stats.Unchanged = s.Unchanged
	for _, v := range res.Valuations {
		b.families[v.Family.Code] = FamilyValue{
			Code:     v.Family.Code,
			Label:    v.Family.Label,
			Value:    v.Value,
			Items:    v.Items,
			Quantity: v.Quantity,
		}
	}
	for _, o := range res.Orphans {
		b.add(o.Code(), o.Item, "stock corrected but not valued: "+o.Error())
	}
	return b
}

// Fail records an error that stopped or degraded the run.
func (b *Builder) Fail(err error) *Builder {
	if err == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	code, _ := errors.CodeOf(err)
	b.add(code, "", err.Error())
	return b
}

// Outcome records where the run ended.
func (b *Builder) Outcome(outcome, target string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcome = outcome
	b.target = target
	return b
}

func (b *Builder) add(code errors.Code, item, detail string) {
	name := code.Title()
	if code == "" {
		name = "error"
	}
	if item != "" {
		name += " " + item
	}
	b.names[name]++
	if n := b.names[name]; n > 1 {
		name = fmt.Sprintf("%s (%d)", name, n)
	}
	b.issues = append(b.issues, Issue{Name: name, Code: code, Detail: detail})
}

// Build returns a snapshot of the accumulated data. The builder can keep
// accumulating; earlier snapshots do not change.
func (b *Builder) Build() Data {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := Data{
		RunID:       b.runID,
		Date:        b.date,
		Target:      b.target,
		Outcome:     b.outcome,
		Stats:       b.stats,
		Issues:      make([]Issue, len(b.issues)),
		Errors:      make(map[string]string, len(b.issues)),
		Families:    make([]FamilyValue, 0, len(b.families)),
		Total:       decimal.Zero,
		GeneratedAt: time.Now().UTC(),
	}
	copy(d.Issues, b.issues)
	for _, i := range b.issues {
		d.Errors[i.Name] = i.Detail
	}
	d.Stats.Errors = len(b.issues)
	for _, f := range b.families {
		d.Families = append(d.Families, f)
		d.Total = d.Total.Add(f.Value)
	}
	sort.Slice(d.Families, func(i, j int) bool { return d.Families[i].Code < d.Families[j].Code })
	return d
}

// FamilyReports builds one report per valued family from a reconciliation.
// Quantities are the counted ones, which are the stock after commit.
func FamilyReports(date time.Time, res *reconciler.Result) []FamilyReport {
	out := make([]FamilyReport, 0, len(res.Valuations))
	for _, v := range res.Valuations {
		fr := FamilyReport{Family: v.Family, Date: date, Total: decimal.Zero}
		for _, l := range res.LinesOf(v.Family.Code) {
			fr.Lines = append(fr.Lines, FamilyLine{
				Code:        l.Entry.Code,
				Name:        l.Entry.Name,
				Quantity:    l.Real,
				Theoretical: l.Theoretical,
				UnitCost:    l.Entry.UnitCost,
				Value:       l.Value,
			})
			fr.Quantity += l.Real
			fr.Total = fr.Total.Add(l.Value)
		}
		out = append(out, fr)
	}
	return out
}
