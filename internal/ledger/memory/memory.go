// Package memory provides an in-memory ledger. Transactions work on a copy of
// the catalog taken at Begin and replace it on Commit. FailOn injects apply
// failures for a given item.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
)

// Ledger is a map backed ledger.
type Ledger struct {
	mu        sync.RWMutex
	families  map[ledger.FamilyCode]ledger.Family
	entries   map[string]ledger.Entry
	movements []ledger.Movement
	failOn    map[string]error
	commits   int
	rollbacks int
}

var (
	_ ledger.Ledger         = (*Ledger)(nil)
	_ ledger.MovementLister = (*Ledger)(nil)
	_ ledger.Importer       = (*Ledger)(nil)
)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		families: make(map[ledger.FamilyCode]ledger.Family),
		entries:  make(map[string]ledger.Entry),
		failOn:   make(map[string]error),
	}
}

// AddFamily stores a family.
func (l *Ledger) AddFamily(f ledger.Family) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	f.Code = f.Code.Normalize()
	l.families[f.Code] = f
	return l
}

// AddEntry stores a catalog entry.
func (l *Ledger) AddEntry(e ledger.Entry) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Code] = e
	return l
}

// FailOn makes ApplyMovement fail for the given item. A nil err uses a
// generic failure.
func (l *Ledger) FailOn(item string, err error) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("injected failure for %s", item)
	}
	l.failOn[item] = err
	return l
}

// Import implements ledger.Importer.
func (l *Ledger) Import(_ context.Context, families []ledger.Family, entries []ledger.Entry) error {
	for _, f := range families {
		l.AddFamily(f)
	}
	for _, e := range entries {
		l.AddEntry(e)
	}
	return nil
}

// Exists implements ledger.Reader.
func (l *Ledger) Exists(_ context.Context, code string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[code]
	return ok, nil
}

// FamilyOf implements ledger.Reader.
func (l *Ledger) FamilyOf(_ context.Context, code string) (ledger.FamilyCode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[code]
	if !ok {
		return "", errors.NewNotFoundError("item", code)
	}
	return e.Family.Normalize(), nil
}

// Family implements ledger.Reader.
func (l *Ledger) Family(_ context.Context, code ledger.FamilyCode) (ledger.Family, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.families[code.Normalize()]
	return f, ok, nil
}

// Entry implements ledger.Reader.
func (l *Ledger) Entry(_ context.Context, code string) (ledger.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[code]
	if !ok {
		return ledger.Entry{}, errors.NewNotFoundError("item", code)
	}
	return e, nil
}

// Entries implements ledger.Reader.
func (l *Ledger) Entries(_ context.Context) ([]ledger.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ledger.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Movements implements ledger.MovementLister.
func (l *Ledger) Movements(_ context.Context, runID string) ([]ledger.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ledger.Movement
	for _, m := range l.movements {
		if runID == "" || m.RunID == runID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Stats returns the number of committed and rolled back transactions.
func (l *Ledger) Stats() (commits, rollbacks int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.commits, l.rollbacks
}

// Begin implements ledger.Ledger.
func (l *Ledger) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make(map[string]ledger.Entry, len(l.entries))
	for k, v := range l.entries {
		entries[k] = v
	}
	return &tx{ledger: l, entries: entries}, nil
}

// Close implements ledger.Ledger.
func (l *Ledger) Close() error {
	return nil
}

type tx struct {
	ledger    *Ledger
	entries   map[string]ledger.Entry
	movements []ledger.Movement
	done      bool
}

func (t *tx) ApplyMovement(ctx context.Context, m ledger.Movement) error {
	if t.done {
		return errors.NewResourceError("apply", "movement", m.Item, errors.New("transaction already finished"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	t.ledger.mu.RLock()
	failure := t.ledger.failOn[m.Item]
	t.ledger.mu.RUnlock()
	if failure != nil {
		return errors.WrapResource("apply", "movement", m.Item, failure)
	}

	e, ok := t.entries[m.Item]
	if !ok {
		return errors.NewNotFoundError("item", m.Item)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	t.entries[m.Item] = m.Apply(e)
	t.movements = append(t.movements, m)
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errors.NewResourceError("commit", "transaction", "", errors.New("transaction already finished"))
	}
	t.done = true

	l := t.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = t.entries
	l.movements = append(l.movements, t.movements...)
	l.commits++
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	t.ledger.mu.Lock()
	t.ledger.rollbacks++
	t.ledger.mu.Unlock()
	return nil
}
