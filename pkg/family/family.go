// Package family resolves catalog items to their product family and
// partitions validated scan counts by family.
package family

import (
	"context"
	"sync"

	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/scan"
)

// Resolution is the outcome of resolving one item.
type Resolution struct {
	// Referenced is the normalized family code stored on the item, possibly
	// empty or dangling.
	Referenced ledger.FamilyCode

	// Family is the resolved family, valid when OK is true.
	Family ledger.Family
	OK     bool
}

// Resolver memoizes item to family lookups for the duration of a run.
type Resolver struct {
	reader ledger.Reader

	mu       sync.Mutex
	items    map[string]Resolution
	families map[ledger.FamilyCode]familyLookup
}

type familyLookup struct {
	family ledger.Family
	ok     bool
}

// NewResolver creates a resolver over the ledger.
func NewResolver(reader ledger.Reader) *Resolver {
	return &Resolver{
		reader:   reader,
		items:    make(map[string]Resolution),
		families: make(map[ledger.FamilyCode]familyLookup),
	}
}

// Resolve looks up the family of an item by code.
func (r *Resolver) Resolve(ctx context.Context, item string) (Resolution, error) {
	r.mu.Lock()
	if res, ok := r.items[item]; ok {
		r.mu.Unlock()
		return res, nil
	}
	r.mu.Unlock()

	code, err := r.reader.FamilyOf(ctx, item)
	if err != nil {
		return Resolution{}, err
	}
	return r.resolve(ctx, item, code)
}

// ResolveEntry resolves the family of an entry already read from the ledger.
func (r *Resolver) ResolveEntry(ctx context.Context, e ledger.Entry) (Resolution, error) {
	r.mu.Lock()
	if res, ok := r.items[e.Code]; ok {
		r.mu.Unlock()
		return res, nil
	}
	r.mu.Unlock()

	return r.resolve(ctx, e.Code, e.Family)
}

func (r *Resolver) resolve(ctx context.Context, item string, code ledger.FamilyCode) (Resolution, error) {
	res := Resolution{Referenced: code.Normalize()}
	if !res.Referenced.IsZero() {
		fam, ok, err := r.lookupFamily(ctx, res.Referenced)
		if err != nil {
			return Resolution{}, err
		}
		res.Family, res.OK = fam, ok
	}

	r.mu.Lock()
	r.items[item] = res
	r.mu.Unlock()
	return res, nil
}

func (r *Resolver) lookupFamily(ctx context.Context, code ledger.FamilyCode) (ledger.Family, bool, error) {
	r.mu.Lock()
	if l, ok := r.families[code]; ok {
		r.mu.Unlock()
		return l.family, l.ok, nil
	}
	r.mu.Unlock()

	fam, ok, err := r.reader.Family(ctx, code)
	if err != nil {
		return ledger.Family{}, false, err
	}
	fam.Code = fam.Code.Normalize()

	r.mu.Lock()
	r.families[code] = familyLookup{family: fam, ok: ok}
	r.mu.Unlock()
	return fam, ok, nil
}

// Group is the listing of one family.
type Group struct {
	Family ledger.Family
	Items  []scan.Pair
}

// Total returns the number of scanned units in the group.
func (g Group) Total() int64 {
	var total int64
	for _, p := range g.Items {
		total += p.Quantity
	}
	return total
}

// Partition groups validated counts by family. Families appear in the order
// their first item was scanned, items in first-seen order. Items whose family
// does not resolve are left out.
func Partition(ctx context.Context, r *Resolver, counts *scan.Counts) ([]Group, error) {
	index := make(map[ledger.FamilyCode]int)
	var groups []Group

	for _, p := range counts.Pairs() {
		res, err := r.Resolve(ctx, p.Code)
		if err != nil {
			return nil, err
		}
		if !res.OK {
			continue
		}
		i, ok := index[res.Family.Code]
		if !ok {
			i = len(groups)
			index[res.Family.Code] = i
			groups = append(groups, Group{Family: res.Family})
		}
		groups[i].Items = append(groups[i].Items, p)
	}
	return groups, nil
}
