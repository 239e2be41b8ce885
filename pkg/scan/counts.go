package scan

import (
	"sort"
)

// Counts maps item codes to scanned quantities. Iteration follows the order
// in which codes were first seen.
type Counts struct {
	order  []string
	counts map[string]int64
	first  map[string]int
}

// Pair is a code with its quantity.
type Pair struct {
	Code     string
	Quantity int64
}

// NewCounts returns an empty tally.
func NewCounts() *Counts {
	return &Counts{
		counts: make(map[string]int64),
		first:  make(map[string]int),
	}
}

// Add counts one occurrence of code seen at the given line.
func (c *Counts) Add(code string, line int) {
	c.AddN(code, 1, line)
}

// AddN counts n occurrences of code.
func (c *Counts) AddN(code string, n int64, line int) {
	if _, ok := c.counts[code]; !ok {
		c.order = append(c.order, code)
		c.first[code] = line
	}
	c.counts[code] += n
}

// Get returns the quantity of code, zero when it was not scanned.
func (c *Counts) Get(code string) int64 {
	return c.counts[code]
}

// Has reports whether code was scanned.
func (c *Counts) Has(code string) bool {
	_, ok := c.counts[code]
	return ok
}

// FirstLine returns the 1-based line of the first occurrence of code.
func (c *Counts) FirstLine(code string) int {
	return c.first[code]
}

// Codes returns the distinct codes in first-seen order.
func (c *Counts) Codes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct codes.
func (c *Counts) Len() int {
	return len(c.order)
}

// Total returns the sum of all quantities.
func (c *Counts) Total() int64 {
	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Remove drops code and returns the quantity it had.
func (c *Counts) Remove(code string) int64 {
	n, ok := c.counts[code]
	if !ok {
		return 0
	}
	delete(c.counts, code)
	delete(c.first, code)
	for i, o := range c.order {
		if o == code {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return n
}

// Pairs returns every code with its quantity in first-seen order.
func (c *Counts) Pairs() []Pair {
	out := make([]Pair, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, Pair{Code: code, Quantity: c.counts[code]})
	}
	return out
}

// Sorted returns every code with its quantity ordered by code.
func (c *Counts) Sorted() []Pair {
	out := c.Pairs()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Map returns a copy of the tally as a plain map.
func (c *Counts) Map() map[string]int64 {
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Merge returns a new tally holding c followed by the codes of other that c
// does not already have. Quantities of shared codes are summed.
func (c *Counts) Merge(other *Counts) *Counts {
	out := NewCounts()
	for _, src := range []*Counts{c, other} {
		if src == nil {
			continue
		}
		for _, code := range src.order {
			out.AddN(code, src.counts[code], src.first[code])
		}
	}
	return out
}
