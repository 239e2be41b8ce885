// Package sqlstore provides a database/sql ledger over SQLite (pure Go
// modernc driver) or PostgreSQL (pgx stdlib driver). The schema is created on
// open. Queries are written with ? placeholders and rebound for PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
)

// Driver selects the database engine.
type Driver string

// Supported drivers.
const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

// ParseDriver parses a configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", &errors.ValidationError{Field: "ledger.driver", Value: s, Message: "must be sqlite or postgres"}
	}
}

func (d Driver) sqlName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS families (
		code  TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		code        TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		family_code TEXT NOT NULL DEFAULT '',
		supply      BIGINT NOT NULL DEFAULT 0,
		consumption BIGINT NOT NULL DEFAULT 0,
		unit_cost   TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id          TEXT PRIMARY KEY,
		run_id      TEXT NOT NULL,
		position    BIGINT NOT NULL,
		item_code   TEXT NOT NULL REFERENCES items(code),
		direction   TEXT NOT NULL,
		quantity    BIGINT NOT NULL CHECK (quantity > 0),
		unit_cost   TEXT NOT NULL DEFAULT '0',
		source      TEXT NOT NULL DEFAULT '',
		note        TEXT NOT NULL DEFAULT '',
		occurred_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS movements_run_idx ON movements (run_id, position)`,
}

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store is a SQL backed ledger.
type Store struct {
	db     *sql.DB
	driver Driver
	dsn    string
}

var (
	_ ledger.Ledger         = (*Store)(nil)
	_ ledger.MovementLister = (*Store)(nil)
	_ ledger.Importer       = (*Store)(nil)
)

// Open connects to the database and creates the schema. For SQLite the dsn is
// a file path; its directory is created when missing.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, &errors.ValidationError{Field: "ledger.dsn", Message: "cannot be empty"}
	}
	if driver == SQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(dsn), err)
		}
	}

	db, err := sql.Open(driver.sqlName(), dsn)
	if err != nil {
		return nil, errors.WrapResource("open", "ledger", string(driver), err)
	}
	if driver == SQLite {
		// One connection keeps pragmas and in-memory databases consistent.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("open", "ledger", string(driver), err)
	}

	s := &Store{db: db, driver: driver, dsn: dsn}
	if err := s.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	if s.driver == SQLite {
		for _, p := range pragmas {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				logger.Warn().Err(err).Str("pragma", p).Msg("Failed to apply pragma")
			}
		}
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapResource("create", "schema", "", err)
		}
	}
	logger.Debug().Str("driver", string(s.driver)).Msg("Ledger schema ready")
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database engine.
func (s *Store) Driver() Driver { return s.driver }

// Close implements ledger.Ledger.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL.
func rebind(driver Driver, query string) string {
	if driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, rebind(s.driver, query), args...)
}

// Import implements ledger.Importer. Families and items are upserted in one
// transaction.
func (s *Store) Import(ctx context.Context, families []ledger.Family, entries []ledger.Entry) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("begin", "ledger", "", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, f := range families {
		code := f.Code.Normalize()
		if code == "" {
			return &errors.ValidationError{Field: "families.code", Message: "cannot be empty"}
		}
		if _, err := s.exec(ctx, tx,
			`INSERT INTO families (code, label) VALUES (?, ?)
			 ON CONFLICT (code) DO UPDATE SET label = excluded.label`,
			string(code), f.Label); err != nil {
			return errors.WrapResource("import", "family", string(code), err)
		}
	}
	for _, e := range entries {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO items (code, name, family_code, supply, consumption, unit_cost) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (code) DO UPDATE SET name = excluded.name, family_code = excluded.family_code,
			 supply = excluded.supply, consumption = excluded.consumption, unit_cost = excluded.unit_cost`,
			e.Code, e.Name, string(e.Family), e.Supply, e.Consumption, e.UnitCost.String()); err != nil {
			return errors.WrapResource("import", "item", e.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapResource("commit", "ledger", "", err)
	}
	logging.FromContext(ctx).Info().
		Int("families", len(families)).
		Int("items", len(entries)).
		Msg("Catalog imported")
	return nil
}

// Exists implements ledger.Reader.
func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT COUNT(*) FROM items WHERE code = ?`), code).Scan(&n)
	if err != nil {
		return false, errors.WrapResource("query", "item", code, err)
	}
	return n > 0, nil
}

// FamilyOf implements ledger.Reader.
func (s *Store) FamilyOf(ctx context.Context, code string) (ledger.FamilyCode, error) {
	var fam string
	err := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT family_code FROM items WHERE code = ?`), code).Scan(&fam)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("item", code)
	}
	if err != nil {
		return "", errors.WrapResource("query", "item", code, err)
	}
	return ledger.FamilyCode(fam).Normalize(), nil
}

// Family implements ledger.Reader.
func (s *Store) Family(ctx context.Context, code ledger.FamilyCode) (ledger.Family, bool, error) {
	code = code.Normalize()
	f := ledger.Family{Code: code}
	err := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT label FROM families WHERE code = ?`), string(code)).Scan(&f.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Family{}, false, nil
	}
	if err != nil {
		return ledger.Family{}, false, errors.WrapResource("query", "family", string(code), err)
	}
	return f, true, nil
}

const entryColumns = `code, name, family_code, supply, consumption, unit_cost`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e    ledger.Entry
		fam  string
		cost string
	)
	if err := row.Scan(&e.Code, &e.Name, &fam, &e.Supply, &e.Consumption, &cost); err != nil {
		return ledger.Entry{}, err
	}
	e.Family = ledger.FamilyCode(fam)
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return ledger.Entry{}, errors.NewParseError("decimal", "", "invalid unit cost of "+e.Code, err)
	}
	e.UnitCost = d
	return e, nil
}

// Entry implements ledger.Reader.
func (s *Store) Entry(ctx context.Context, code string) (ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT `+entryColumns+` FROM items WHERE code = ?`), code)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, errors.NewNotFoundError("item", code)
	}
	if err != nil {
		return ledger.Entry{}, errors.WrapResource("query", "item", code, err)
	}
	return e, nil
}

// Entries implements ledger.Reader.
func (s *Store) Entries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM items ORDER BY code`)
	if err != nil {
		return nil, errors.WrapResource("query", "catalog", "", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.WrapResource("scan", "item", "", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("query", "catalog", "", err)
	}
	return out, nil
}

// Movements implements ledger.MovementLister.
func (s *Store) Movements(ctx context.Context, runID string) ([]ledger.Movement, error) {
	query := `SELECT id, run_id, item_code, direction, quantity, unit_cost, source, note, occurred_at FROM movements`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY occurred_at, run_id, position`

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, errors.WrapResource("query", "movement", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.Movement
	for rows.Next() {
		var (
			m         ledger.Movement
			direction string
			cost      string
			occurred  string
		)
		if err := rows.Scan(&m.ID, &m.RunID, &m.Item, &direction, &m.Quantity, &cost, &m.Source, &m.Note, &occurred); err != nil {
			return nil, errors.WrapResource("scan", "movement", "", err)
		}
		if m.Direction, err = ledger.ParseDirection(direction); err != nil {
			return nil, err
		}
		if m.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, errors.NewParseError("decimal", "", "invalid unit cost of movement "+m.ID, err)
		}
		if m.OccurredAt, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return nil, errors.NewParseError("time", "", "invalid timestamp of movement "+m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("query", "movement", runID, err)
	}
	return out, nil
}

// Begin implements ledger.Ledger.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapResource("begin", "ledger", "", err)
	}
	return &tx{store: s, tx: sqlTx}, nil
}

type tx struct {
	store    *Store
	tx       *sql.Tx
	position int64
	done     bool
}

func (t *tx) ApplyMovement(ctx context.Context, m ledger.Movement) error {
	if t.done {
		return errors.NewResourceError("apply", "movement", m.Item, errors.New("transaction already finished"))
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	counter := "supply"
	if m.Direction == ledger.Outbound {
		counter = "consumption"
	}
	res, err := t.store.exec(ctx, t.tx,
		`UPDATE items SET `+counter+` = `+counter+` + ? WHERE code = ?`, m.Quantity, m.Item)
	if err != nil {
		return errors.WrapResource("apply", "movement", m.Item, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapResource("apply", "movement", m.Item, err)
	}
	if n == 0 {
		return errors.NewNotFoundError("item", m.Item)
	}

	t.position++
	if _, err := t.store.exec(ctx, t.tx,
		`INSERT INTO movements (id, run_id, position, item_code, direction, quantity, unit_cost, source, note, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RunID, t.position, m.Item, m.Direction.String(), m.Quantity, m.UnitCost.String(),
		m.Source, m.Note, m.OccurredAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.WrapResource("apply", "movement", m.Item, err)
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errors.NewResourceError("commit", "transaction", "", errors.New("transaction already finished"))
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return errors.WrapResource("commit", "ledger", "", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	// A cancelled context has already rolled the transaction back.
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.WrapResource("rollback", "ledger", "", err)
	}
	return nil
}
