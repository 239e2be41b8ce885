// Package render writes the human facing reports of a run: a Markdown run
// report and one spreadsheet per family.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/report"
)

// Renderer renders Markdown run reports and spreadsheet family reports.
type Renderer struct {
	lang     language.Tag
	currency string
	printer  *message.Printer
	title    cases.Caser
}

var _ report.Renderer = (*Renderer)(nil)

// Option configures a Renderer.
type Option func(*Renderer) error

// WithLanguage sets the BCP 47 language used to format numbers.
func WithLanguage(lang string) Option {
	return func(r *Renderer) error {
		if lang == "" {
			return nil
		}
		tag, err := language.Parse(lang)
		if err != nil {
			return &errors.ValidationError{Field: "report.language", Value: lang, Message: err.Error()}
		}
		r.lang = tag
		return nil
	}
}

// WithCurrency sets the currency symbol appended to amounts.
func WithCurrency(currency string) Option {
	return func(r *Renderer) error {
		r.currency = currency
		return nil
	}
}

// New creates a renderer. Numbers default to English formatting without a
// currency symbol.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{lang: language.English}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.printer = message.NewPrinter(r.lang)
	r.title = cases.Title(r.lang)
	return r, nil
}

// Money formats an amount with two decimals in the renderer's language.
func (r *Renderer) Money(v decimal.Decimal) string {
	s := r.printer.Sprint(number.Decimal(v.Round(2).InexactFloat64(), number.Scale(2)))
	if r.currency != "" {
		s += " " + r.currency
	}
	return s
}

// Count formats an integer in the renderer's language.
func (r *Renderer) Count(n int64) string {
	return r.printer.Sprint(number.Decimal(n))
}

// Render implements report.Renderer.
func (r *Renderer) Render(ctx context.Context, dir string, data report.Data) (string, error) {
	date := data.Date.Format(constants.DateFormat)
	path := filepath.Join(dir, fmt.Sprintf(constants.RunReportFile, date))

	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Stock count of " + date).LF()
	doc.PlainTextf("Run %s", md.Code(data.RunID)).LF()
	if data.Outcome != "" {
		doc.PlainTextf("Outcome: %s", md.Bold(r.title.String(humanize(data.Outcome)))).LF()
	}
	if data.Target != "" {
		doc.PlainTextf("Inventory: %s", md.Code(data.Target)).LF()
	}
	doc.LF()

	s := data.Stats
	doc.H2("Statistics").LF()
	doc.Table(md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Scanned lines", r.Count(int64(s.ScannedLines))},
			{"Distinct items", r.Count(int64(s.DistinctItems))},
			{"Distinct families", r.Count(int64(s.DistinctFamilies))},
			{"Excluded lines", r.Count(int64(s.Excluded))},
			{"Inbound movements", r.Count(int64(s.Inbound))},
			{"Outbound movements", r.Count(int64(s.Outbound))},
			{"Unchanged items", r.Count(int64(s.Unchanged))},
			{"Errors", r.Count(int64(s.Errors))},
		},
	}).LF()

	doc.H2("Errors").LF()
	if len(data.Issues) == 0 {
		doc.PlainText("No errors.").LF()
	} else {
		rows := make([][]string, 0, len(data.Issues))
		for _, i := range data.Issues {
			rows = append(rows, []string{string(i.Code), i.Name, i.Detail})
		}
		doc.Table(md.TableSet{Header: []string{"Code", "Error", "Detail"}, Rows: rows})
	}
	doc.LF()

	doc.H2("Valuation by family").LF()
	if len(data.Families) == 0 {
		doc.PlainText("No family valued.").LF()
	} else {
		rows := make([][]string, 0, len(data.Families)+1)
		for _, f := range data.Families {
			rows = append(rows, []string{
				string(f.Code), f.Label, strconv.Itoa(f.Items), r.Count(f.Quantity), r.Money(f.Value),
			})
		}
		rows = append(rows, []string{md.Bold("Total"), "", "", "", md.Bold(r.Money(data.Total))})
		doc.Table(md.TableSet{Header: []string{"Family", "Label", "Items", "Quantity", "Value"}, Rows: rows})
	}

	if err := doc.Build(); err != nil {
		return "", errors.WrapIO("render", path, err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Debug().Str("path", path).Msg("Run report rendered")
	return path, nil
}

func humanize(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
