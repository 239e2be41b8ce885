// Package ledger defines the catalog and stock ledger model used by a
// reconciliation: catalog entries with their supply and consumption counters,
// families, stock movements, and the Ledger/Tx interfaces that concrete
// stores implement.
//
// Theoretical stock is always derived as supply minus consumption. The ledger
// is only ever mutated through a Tx.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentstation/stocktake/pkg/errors"
)

// FamilyCode identifies a product family.
type FamilyCode string

// Normalize trims surrounding spaces and trailing dots. Legacy catalogs store
// family codes as "F1." and items reference them as "F1".
func (f FamilyCode) Normalize() FamilyCode {
	return FamilyCode(strings.TrimRight(strings.TrimSpace(string(f)), "."))
}

// IsZero reports whether no family is set.
func (f FamilyCode) IsZero() bool {
	return f.Normalize() == ""
}

// String returns the code as a string.
func (f FamilyCode) String() string {
	return string(f)
}

// Family is a product family.
type Family struct {
	Code  FamilyCode `json:"code" yaml:"code"`
	Label string     `json:"label" yaml:"label"`
}

// Entry is one catalog item with its stock counters.
type Entry struct {
	Code        string          `json:"code" yaml:"code"`
	Name        string          `json:"name" yaml:"name"`
	Family      FamilyCode      `json:"family,omitempty" yaml:"family,omitempty"`
	Supply      int64           `json:"supply" yaml:"supply"`
	Consumption int64           `json:"consumption" yaml:"consumption"`
	UnitCost    decimal.Decimal `json:"unit_cost" yaml:"-"`
}

// Theoretical returns the stock the ledger believes is on hand.
func (e Entry) Theoretical() int64 {
	return e.Supply - e.Consumption
}

// Reader is the read side of a ledger.
type Reader interface {
	// Exists reports whether the code is a catalog item.
	Exists(ctx context.Context, code string) (bool, error)

	// FamilyOf returns the family code referenced by an item, normalized.
	// It is empty when the item has none.
	FamilyOf(ctx context.Context, code string) (FamilyCode, error)

	// Family looks up a family. The boolean is false when it does not exist.
	Family(ctx context.Context, code FamilyCode) (Family, bool, error)

	// Entry returns one catalog item or a NotFoundError.
	Entry(ctx context.Context, code string) (Entry, error)

	// Entries returns the full catalog ordered by code.
	Entries(ctx context.Context) ([]Entry, error)
}

// Ledger is a catalog and stock ledger.
type Ledger interface {
	Reader

	// Begin starts the transaction that applies a run's movements.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the underlying resources.
	Close() error
}

// Tx applies movements atomically. After Commit or Rollback the Tx must not
// be used again; Rollback after Commit is a no-op.
type Tx interface {
	ApplyMovement(ctx context.Context, m Movement) error
	Commit() error
	Rollback() error
}

// MovementLister is implemented by ledgers that can list recorded movements.
type MovementLister interface {
	// Movements returns the movements of a run, or every movement when runID
	// is empty, oldest first.
	Movements(ctx context.Context, runID string) ([]Movement, error)
}

// Direction is the sense of a stock movement.
type Direction int

const (
	// Inbound adds stock and increments supply.
	Inbound Direction = iota + 1
	// Outbound removes stock and increments consumption.
	Outbound
)

// String returns the persisted name of the direction.
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "in"
	case Outbound:
		return "out"
	default:
		return "unknown"
	}
}

// ParseDirection parses a persisted direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "inbound":
		return Inbound, nil
	case "out", "outbound":
		return Outbound, nil
	default:
		return 0, &errors.ValidationError{Field: "direction", Value: s, Message: "must be in or out"}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Movement is one corrective stock movement.
type Movement struct {
	ID         string          `json:"id" yaml:"id"`
	RunID      string          `json:"run_id" yaml:"run_id"`
	Item       string          `json:"item" yaml:"item"`
	Direction  Direction       `json:"direction" yaml:"direction"`
	Quantity   int64           `json:"quantity" yaml:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost" yaml:"-"`
	Source     string          `json:"source" yaml:"source"`
	Note       string          `json:"note" yaml:"note"`
	OccurredAt time.Time       `json:"occurred_at" yaml:"occurred_at"`
}

// Validate checks the movement can be applied.
func (m Movement) Validate() error {
	if m.Item == "" {
		return &errors.ValidationError{Field: "item", Message: "cannot be empty"}
	}
	if m.Direction != Inbound && m.Direction != Outbound {
		return &errors.ValidationError{Field: "direction", Value: int(m.Direction), Message: "must be inbound or outbound"}
	}
	if m.Quantity <= 0 {
		return &errors.ValidationError{Field: "quantity", Value: m.Quantity, Message: "must be positive"}
	}
	return nil
}

// Signed returns the quantity with the sign of its effect on stock.
func (m Movement) Signed() int64 {
	if m.Direction == Outbound {
		return -m.Quantity
	}
	return m.Quantity
}

// Apply returns the entry with the movement's counter incremented.
func (m Movement) Apply(e Entry) Entry {
	switch m.Direction {
	case Inbound:
		e.Supply += m.Quantity
	case Outbound:
		e.Consumption += m.Quantity
	}
	return e
}

// Importer is implemented by ledgers that can be bootstrapped from a seed.
// Families and items are upserted by code.
type Importer interface {
	Import(ctx context.Context, families []Family, entries []Entry) error
}
