package output

import (
	"io"
	"strconv"
	"time"

	"github.com/agentstation/stocktake"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/period"
)

// RunSummary is the operator view of a finished run.
type RunSummary struct {
	RunID      string   `json:"run_id" yaml:"run_id"`
	Date       string   `json:"date" yaml:"date"`
	Outcome    string   `json:"outcome" yaml:"outcome"`
	Code       string   `json:"code,omitempty" yaml:"code,omitempty"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Scanned    int      `json:"scanned" yaml:"scanned"`
	Items      int      `json:"items" yaml:"items"`
	Excluded   int      `json:"excluded" yaml:"excluded"`
	Inbound    int      `json:"inbound" yaml:"inbound"`
	Outbound   int      `json:"outbound" yaml:"outbound"`
	Unchanged  int      `json:"unchanged" yaml:"unchanged"`
	Committed  bool     `json:"committed" yaml:"committed"`
	Value      string   `json:"value" yaml:"value"`
	Report     string   `json:"report,omitempty" yaml:"report,omitempty"`
	Archived   int      `json:"archived,omitempty" yaml:"archived,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Exclusions []string `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

// NewRunSummary summarizes a run.
func NewRunSummary(run *stocktake.Run) RunSummary {
	stats := run.Report.Stats
	s := RunSummary{
		RunID:     run.ID,
		Date:      period.Format(run.Date),
		Outcome:   string(run.Outcome),
		Code:      string(run.Code()),
		Target:    run.Target,
		Scanned:   stats.ScannedLines,
		Items:     stats.DistinctItems,
		Excluded:  stats.Excluded,
		Inbound:   stats.Inbound,
		Outbound:  stats.Outbound,
		Unchanged: stats.Unchanged,
		Committed: run.Committed,
		Value:     run.Report.Total.StringFixed(2),
		Report:    run.ReportPath,
		Archived:  len(run.Archived),
	}
	if run.Err != nil {
		s.Error = run.Err.Error()
	}
	for _, x := range run.Exclusions {
		s.Exclusions = append(s.Exclusions, x.Message())
	}
	return s
}

// RunToTableData lays a run summary out as property rows.
func RunToTableData(s RunSummary) Data {
	rows := [][]string{
		{"Run", s.RunID},
		{"Date", s.Date},
		{"Outcome", s.Outcome},
	}
	if s.Code != "" {
		rows = append(rows, []string{"Code", s.Code})
	}
	if s.Target != "" {
		rows = append(rows, []string{"Directory", s.Target})
	}
	rows = append(rows,
		[]string{"Scanned lines", strconv.Itoa(s.Scanned)},
		[]string{"Items", strconv.Itoa(s.Items)},
		[]string{"Excluded", strconv.Itoa(s.Excluded)},
		[]string{"Inbound", strconv.Itoa(s.Inbound)},
		[]string{"Outbound", strconv.Itoa(s.Outbound)},
		[]string{"Unchanged", strconv.Itoa(s.Unchanged)},
		[]string{"Committed", strconv.FormatBool(s.Committed)},
		[]string{"Value", s.Value},
	)
	if s.Report != "" {
		rows = append(rows, []string{"Report", s.Report})
	}
	for _, x := range s.Exclusions {
		rows = append(rows, []string{"Excluded item", x})
	}
	if s.Error != "" {
		rows = append(rows, []string{"Error", s.Error})
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

// EntryView is a catalog item as listed to the operator.
type EntryView struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Family      string `json:"family" yaml:"family"`
	Supply      int64  `json:"supply" yaml:"supply"`
	Consumption int64  `json:"consumption" yaml:"consumption"`
	Stock       int64  `json:"stock" yaml:"stock"`
	UnitCost    string `json:"unit_cost" yaml:"unit_cost"`
}

// NewEntryViews converts catalog entries for display.
func NewEntryViews(entries []ledger.Entry) []EntryView {
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, EntryView{
			Code:        e.Code,
			Name:        e.Name,
			Family:      string(e.Family),
			Supply:      e.Supply,
			Consumption: e.Consumption,
			Stock:       e.Theoretical(),
			UnitCost:    e.UnitCost.StringFixed(2),
		})
	}
	return views
}

// EntriesToTableData lays catalog entries out as a table.
func EntriesToTableData(views []EntryView) Data {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Code, v.Name, v.Family,
			strconv.FormatInt(v.Supply, 10),
			strconv.FormatInt(v.Consumption, 10),
			strconv.FormatInt(v.Stock, 10),
			v.UnitCost,
		})
	}
	return Data{
		Headers: []string{"Code", "Name", "Family", "Supply", "Consumption", "Stock", "Unit cost"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight,
		},
	}
}

// RecoveryView is one recovered run.
type RecoveryView struct {
	RunID   string `json:"run_id" yaml:"run_id"`
	Date    string `json:"date" yaml:"date"`
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Target  string `json:"target,omitempty" yaml:"target,omitempty"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewRecoveryViews converts recoveries for display.
func NewRecoveryViews(recoveries []stocktake.Recovery) []RecoveryView {
	views := make([]RecoveryView, 0, len(recoveries))
	for _, r := range recoveries {
		v := RecoveryView{
			RunID:   r.RunID,
			Date:    r.Date,
			From:    string(r.From),
			To:      string(r.To),
			Target:  r.Target,
			Outcome: string(r.Outcome),
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		views = append(views, v)
	}
	return views
}

// RecoveriesToTableData lays recoveries out as a table.
func RecoveriesToTableData(views []RecoveryView) Data {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.RunID, v.Date, v.From + " -> " + v.To, v.Target, v.Error})
	}
	return Data{Headers: []string{"Run", "Date", "State", "Directory", "Error"}, Rows: rows}
}

// Write prints raw in format, or table when the format is a table one.
func Write(w io.Writer, format string, table Data, raw any) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON, FormatYAML:
		return NewFormatter(f).Format(w, raw)
	default:
		return NewFormatter(FormatTable).Format(w, table)
	}
}

// MovementsToTableData lays ledger movements out as a table.
func MovementsToTableData(moves []ledger.Movement) Data {
	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, []string{
			m.OccurredAt.Format(time.DateOnly),
			m.RunID,
			m.Item,
			m.Direction.String(),
			strconv.FormatInt(m.Quantity, 10),
			m.Note,
		})
	}
	return Data{
		Headers:         []string{"Date", "Run", "Item", "Direction", "Quantity", "Note"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
}

// WriteAny prints raw in format. Tables are derived from the struct fields.
func WriteAny(w io.Writer, format string, raw any) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	return NewFormatter(f).Format(w, raw)
}
