// Package period computes the reconciliation date of a stock count. Counts
// are booked on fixed reference dates, by default June 30 and December 31:
// the reconciliation date is the latest reference date on or before today.
package period

import (
	"sort"
	"strings"
	"time"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
)

// Reference is a month and day of the year.
type Reference struct {
	Month time.Month
	Day   int
}

// DefaultReferences returns the semiannual pair June 30 and December 31.
func DefaultReferences() []Reference {
	return []Reference{{time.June, 30}, {time.December, 31}}
}

// ParseReference parses an MM-DD value.
func ParseReference(s string) (Reference, error) {
	t, err := time.Parse(constants.ReferenceDateFormat, strings.TrimSpace(s))
	if err != nil {
		return Reference{}, &errors.ValidationError{Field: "reference_dates", Value: s, Message: "must be MM-DD"}
	}
	return Reference{Month: t.Month(), Day: t.Day()}, nil
}

// ParseReferences parses a list of MM-DD values. An empty list yields the
// defaults.
func ParseReferences(values []string) ([]Reference, error) {
	if len(values) == 0 {
		return DefaultReferences(), nil
	}
	out := make([]Reference, 0, len(values))
	for _, v := range values {
		r, err := ParseReference(v)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// String returns the MM-DD form.
func (r Reference) String() string {
	return time.Date(2000, r.Month, r.Day, 0, 0, 0, 0, time.UTC).Format(constants.ReferenceDateFormat)
}

// in returns the reference in the given year. February 29 falls back to the
// 28th on common years.
func (r Reference) in(year int, loc *time.Location) time.Time {
	day := r.Day
	if last := time.Date(year, r.Month+1, 0, 0, 0, 0, 0, loc).Day(); day > last {
		day = last
	}
	return time.Date(year, r.Month, day, 0, 0, 0, 0, loc)
}

// Date returns the latest reference date on or before now, walking back into
// the previous year when none of this year's dates has been reached.
func Date(now time.Time, refs []Reference) time.Time {
	if len(refs) == 0 {
		refs = DefaultReferences()
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var candidates []time.Time
	for _, year := range []int{now.Year(), now.Year() - 1} {
		for _, r := range refs {
			candidates = append(candidates, r.in(year, loc))
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].After(candidates[j]) })

	for _, c := range candidates {
		if !c.After(today) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// Format renders a reconciliation date the way it appears in directory names.
func Format(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// Parse reads a date as produced by Format.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &errors.ValidationError{Field: "date", Value: s, Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}
