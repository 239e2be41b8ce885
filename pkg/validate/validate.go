// Package validate classifies scanned codes against the catalog. Every
// distinct code either resolves to a catalog entry with a valid family or is
// excluded with a reason after the operator agreed to skip it. Declining a
// skip aborts the run before anything is written.
package validate

import (
	"context"
	"fmt"

	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/scan"
)

// Reason is why a code was excluded.
type Reason string

// Exclusion reasons.
const (
	ReasonUnknownItem  Reason = "unknown_item"
	ReasonOrphanFamily Reason = "orphan_family"
)

// Exclusion is a scanned code left out of the family listings.
type Exclusion struct {
	Item     string
	Reason   Reason
	Line     int
	Quantity int64

	// Family is the dangling family reference of an orphan, if any.
	Family ledger.FamilyCode

	// Context locates an unknown item among its resolvable neighbours.
	Context string

	// Err is the taxonomy error that caused the exclusion.
	Err error
}

// Code returns the taxonomy code of the exclusion.
func (e Exclusion) Code() errors.Code {
	if e.Reason == ReasonOrphanFamily {
		return errors.CodeOrphanFamily
	}
	return errors.CodeUnknownItem
}

// Message renders the exclusion for reports.
func (e Exclusion) Message() string {
	switch e.Reason {
	case ReasonOrphanFamily:
		return fmt.Sprintf("item %s has no valid family. Skipped, run resumed", e.Item)
	default:
		return fmt.Sprintf("item %s is not in the catalog. Located %s. Skipped, run resumed", e.Item, e.Context)
	}
}

// Result is the outcome of validation.
type Result struct {
	// Counts holds items that resolve to an entry and a family.
	Counts *scan.Counts

	// Orphans holds accepted items without a valid family. They are not
	// grouped but their stock is still corrected.
	Orphans *scan.Counts

	// Exclusions lists skipped codes in first-seen order.
	Exclusions []Exclusion

	// Families lists distinct family codes in first-seen order.
	Families []ledger.FamilyCode
}

// Excluded returns the number of scanned lines that were skipped.
func (r *Result) Excluded() int64 {
	var n int64
	for _, e := range r.Exclusions {
		n += e.Quantity
	}
	return n
}

// Validator classifies scan counts against the catalog.
type Validator interface {
	Validate(ctx context.Context, counts *scan.Counts) (*Result, error)
}

type validator struct {
	reader   ledger.Reader
	decider  decide.Decider
	sink     progress.Sink
	resolver *family.Resolver
}

// New creates a Validator over the catalog.
func New(reader ledger.Reader, opts ...Option) (Validator, error) {
	if reader == nil {
		return nil, &errors.ValidationError{Field: "reader", Message: "cannot be nil"}
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if o.resolver == nil {
		o.resolver = family.NewResolver(reader)
	}
	return &validator{
		reader:   reader,
		decider:  o.decider,
		sink:     o.sink,
		resolver: o.resolver,
	}, nil
}

// Validate walks the distinct codes in first-seen order. Unknown codes are
// checked first, then family resolution. Each code is asked about at most
// once.
func (v *validator) Validate(ctx context.Context, counts *scan.Counts) (*Result, error) {
	ctx = logging.WithStage(ctx, string(progress.StageValidate))
	logger := logging.FromContext(ctx)

	codes := counts.Codes()
	known := make(map[string]bool, len(codes))
	for _, code := range codes {
		ok, err := v.reader.Exists(ctx, code)
		if err != nil {
			return nil, errors.WrapResource("query", "item", code, err)
		}
		known[code] = ok
	}

	result := &Result{
		Counts:  scan.NewCounts(),
		Orphans: scan.NewCounts(),
	}
	seenFamily := make(map[ledger.FamilyCode]bool)

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewAbortedError(string(progress.StageValidate), "cancelled", false, err)
		}

		qty, line := counts.Get(code), counts.FirstLine(code)

		if !known[code] {
			where, err := v.locate(ctx, codes, known, i, line)
			if err != nil {
				return nil, err
			}
			cause := &errors.UnknownItemError{Item: code, Line: line, Context: where}
			excl := Exclusion{Item: code, Reason: ReasonUnknownItem, Line: line, Quantity: qty, Context: where, Err: cause}
			if err := v.ask(ctx, decide.KindUnknownItem, excl, cause); err != nil {
				return nil, err
			}
			result.Exclusions = append(result.Exclusions, excl)
			continue
		}

		res, err := v.resolver.Resolve(ctx, code)
		if err != nil {
			return nil, errors.WrapResource("query", "family", code, err)
		}
		if !res.OK {
			cause := &errors.OrphanFamilyError{Item: code, Family: string(res.Referenced)}
			excl := Exclusion{Item: code, Reason: ReasonOrphanFamily, Line: line, Quantity: qty, Family: res.Referenced, Err: cause}
			if err := v.ask(ctx, decide.KindOrphanFamily, excl, cause); err != nil {
				return nil, err
			}
			result.Exclusions = append(result.Exclusions, excl)
			result.Orphans.AddN(code, qty, line)
			continue
		}

		result.Counts.AddN(code, qty, line)
		if !seenFamily[res.Family.Code] {
			seenFamily[res.Family.Code] = true
			result.Families = append(result.Families, res.Family.Code)
		}
	}

	logger.Debug().
		Int("validated", result.Counts.Len()).
		Int("orphans", result.Orphans.Len()).
		Int("excluded", len(result.Exclusions)).
		Int("families", len(result.Families)).
		Msg("Validation complete")

	return result, nil
}

// ask reports the problem and asks whether to skip the item. It returns an
// AbortedError when the operator declines.
func (v *validator) ask(ctx context.Context, kind decide.Kind, excl Exclusion, cause error) error {
	code := excl.Code()
	ctx = logging.WithItem(ctx, excl.Item)
	logging.FromContext(ctx).Warn().
		Str("code", code.String()).
		Int("line", excl.Line).
		Str("context", excl.Context).
		Msg(code.Title())
	v.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageValidate,
		Level:   progress.Warning,
		Message: cause.Error(),
		Code:    code,
		Item:    excl.Item,
		Line:    excl.Line,
		Context: excl.Context,
		Err:     cause,
	})

	proceed, err := v.decider.Decide(ctx, decide.Prompt{
		Kind:    kind,
		Code:    code,
		Message: cause.Error(),
		Item:    excl.Item,
	})
	if err != nil {
		return errors.NewAbortedError(string(progress.StageValidate), err.Error(), false, fmt.Errorf("%w: %w", cause, err))
	}
	if !proceed {
		return errors.NewAbortedError(string(progress.StageValidate), "operator declined to skip item "+excl.Item, false, cause)
	}

	v.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageValidate,
		Level:   progress.Info,
		Message: fmt.Sprintf("item %s skipped", excl.Item),
		Item:    excl.Item,
	})
	return nil
}

// locate describes where an unknown code sits among the nearest resolvable
// codes of the distinct first-seen sequence.
func (v *validator) locate(ctx context.Context, codes []string, known map[string]bool, i, line int) (string, error) {
	prev, next := "", ""
	for j := i - 1; j >= 0; j-- {
		if known[codes[j]] {
			prev = codes[j]
			break
		}
	}
	for j := i + 1; j < len(codes); j++ {
		if known[codes[j]] {
			next = codes[j]
			break
		}
	}

	label := func(code string) (string, error) {
		e, err := v.reader.Entry(ctx, code)
		if err != nil {
			return "", errors.WrapResource("query", "item", code, err)
		}
		return fmt.Sprintf("%s (%s)", code, e.Name), nil
	}

	switch {
	case prev == "" && next == "":
		return fmt.Sprintf("alone at line %d", line), nil
	case prev == "":
		n, err := label(next)
		return "first, before " + n, err
	case next == "":
		p, err := label(prev)
		return "last, after " + p, err
	default:
		p, err := label(prev)
		if err != nil {
			return "", err
		}
		n, err := label(next)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("between %s and %s at line %d", p, n, line), nil
	}
}
