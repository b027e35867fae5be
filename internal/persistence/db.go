// Package persistence provides SQLite-based game state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/finance"
	"github.com/talgya/tapajos/internal/property"
)

// ErrNoGame is returned by LoadGame when nothing has been saved.
var ErrNoGame = errors.New("no saved game")

// DB wraps a SQLite connection for game state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		condition TEXT NOT NULL,
		central INTEGER NOT NULL,
		units INTEGER NOT NULL,
		satisfaction INTEGER NOT NULL,
		consent INTEGER NOT NULL,
		loan_id TEXT,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		principal INTEGER NOT NULL,
		balance INTEGER NOT NULL,
		rate REAL NOT NULL,
		term INTEGER NOT NULL,
		payment INTEGER NOT NULL,
		hint TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		net_worth INTEGER NOT NULL,
		property_count INTEGER NOT NULL,
		avg_satisfaction INTEGER NOT NULL,
		year INTEGER NOT NULL,
		version TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn);
	CREATE INDEX IF NOT EXISTS idx_results_worth ON results(net_worth DESC);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type buildingRow struct {
	ID           string         `db:"id"`
	Position     int            `db:"position"`
	Type         string         `db:"type"`
	Condition    string         `db:"condition"`
	Central      bool           `db:"central"`
	Units        int            `db:"units"`
	Satisfaction int            `db:"satisfaction"`
	Consent      int            `db:"consent"`
	LoanID       sql.NullString `db:"loan_id"`
	StateJSON    string         `db:"state_json"`
}

type loanRow struct {
	ID        string  `db:"id"`
	Position  int     `db:"position"`
	Principal int64   `db:"principal"`
	Balance   int64   `db:"balance"`
	Rate      float64 `db:"rate"`
	Term      int     `db:"term"`
	Payment   int64   `db:"payment"`
	Hint      string  `db:"hint"`
}

// Meta keys holding the scalar parts of a saved game.
const (
	keyCash           = "cash"
	keyTurn           = "turn"
	keyMarket         = "market"
	keyPayouts        = "pending_payouts"
	keyMarketPool     = "market_pool"
	keyMarketPoolTurn = "market_pool_turn"
	keyIncident       = "incident"
	keyOver           = "over"
	keySavedAt        = "saved_at"
)

var gameKeys = []string{keyCash, keyTurn, keyMarket, keyPayouts, keyMarketPool, keyMarketPoolTurn, keyIncident, keyOver, keySavedAt}

// SaveGame performs a full save of the game state (full replace).
func (db *DB) SaveGame(st engine.State) error {
	slog.Debug("saving game", "turn", st.Turn, "buildings", len(st.Buildings), "loans", len(st.Ledger.Loans))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM buildings"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM loans"); err != nil {
		return err
	}

	for i, b := range st.Buildings {
		stateJSON, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode building %s: %w", b.ID, err)
		}
		row := buildingRow{
			ID: b.ID, Position: i, Type: string(b.Type), Condition: string(b.Condition),
			Central: b.Central, Units: b.Units, Satisfaction: b.Satisfaction, Consent: b.Consent,
			LoanID:    sql.NullString{String: b.LoanID, Valid: b.LoanID != ""},
			StateJSON: string(stateJSON),
		}
		_, err = tx.NamedExec(`INSERT INTO buildings
			(id, position, type, condition, central, units, satisfaction, consent, loan_id, state_json)
			VALUES (:id, :position, :type, :condition, :central, :units, :satisfaction, :consent, :loan_id, :state_json)`, row)
		if err != nil {
			return fmt.Errorf("insert building %s: %w", b.ID, err)
		}
	}

	for i, l := range st.Ledger.Loans {
		row := loanRow{ID: l.ID, Position: i, Principal: l.Principal, Balance: l.Balance,
			Rate: l.Rate, Term: l.Term, Payment: l.Payment, Hint: l.Hint}
		_, err := tx.NamedExec(`INSERT INTO loans
			(id, position, principal, balance, rate, term, payment, hint)
			VALUES (:id, :position, :principal, :balance, :rate, :term, :payment, :hint)`, row)
		if err != nil {
			return fmt.Errorf("insert loan %s: %w", l.ID, err)
		}
	}

	meta := map[string]any{
		keyMarket:     st.Market,
		keyPayouts:    st.PendingPayouts,
		keyMarketPool: st.MarketPool,
		keyIncident:   st.Incident,
	}
	values := map[string]string{
		keyCash:           strconv.FormatInt(st.Cash, 10),
		keyTurn:           strconv.Itoa(st.Turn),
		keyMarketPoolTurn: strconv.Itoa(st.MarketPoolTurn),
		keyOver:           strconv.FormatBool(st.Over),
		keySavedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		values[k] = string(data)
	}
	for k, v := range values {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// HasGame reports whether a game has been saved.
func (db *DB) HasGame() (bool, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM meta WHERE key = ?", keyTurn)
	return n > 0, err
}

// LoadGame reads the saved game state.
func (db *DB) LoadGame() (engine.State, error) {
	var st engine.State

	values := map[string]string{}
	rows, err := db.conn.Queryx("SELECT key, value FROM meta")
	if err != nil {
		return st, fmt.Errorf("load meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return st, err
		}
		values[k] = v
	}
	rows.Close()
	if _, ok := values[keyTurn]; !ok {
		return st, ErrNoGame
	}

	if st.Cash, err = strconv.ParseInt(values[keyCash], 10, 64); err != nil {
		return st, fmt.Errorf("parse cash: %w", err)
	}
	if st.Turn, err = strconv.Atoi(values[keyTurn]); err != nil {
		return st, fmt.Errorf("parse turn: %w", err)
	}
	st.MarketPoolTurn, _ = strconv.Atoi(values[keyMarketPoolTurn])
	st.Over, _ = strconv.ParseBool(values[keyOver])

	decode := map[string]any{
		keyMarket:     &st.Market,
		keyPayouts:    &st.PendingPayouts,
		keyMarketPool: &st.MarketPool,
		keyIncident:   &st.Incident,
	}
	for k, dst := range decode {
		raw, ok := values[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return st, fmt.Errorf("decode %s: %w", k, err)
		}
	}

	var brows []buildingRow
	if err := db.conn.Select(&brows, "SELECT * FROM buildings ORDER BY position"); err != nil {
		return st, fmt.Errorf("load buildings: %w", err)
	}
	for _, r := range brows {
		var b property.Building
		if err := json.Unmarshal([]byte(r.StateJSON), &b); err != nil {
			return st, fmt.Errorf("decode building %s: %w", r.ID, err)
		}
		if _, ok := economy.Lookup(b.Type); !ok || !b.Condition.Valid() {
			return st, fmt.Errorf("building %s: unknown type %q or condition %q", r.ID, b.Type, b.Condition)
		}
		st.Buildings = append(st.Buildings, &b)
	}
	for _, o := range st.MarketPool {
		if _, ok := economy.Lookup(o.Type); !ok {
			return st, fmt.Errorf("offer %s: unknown type %q", o.ID, o.Type)
		}
	}

	var lrows []loanRow
	if err := db.conn.Select(&lrows, "SELECT * FROM loans ORDER BY position"); err != nil {
		return st, fmt.Errorf("load loans: %w", err)
	}
	for _, r := range lrows {
		st.Ledger.Loans = append(st.Ledger.Loans, &finance.Loan{
			ID: r.ID, Principal: r.Principal, Balance: r.Balance,
			Rate: r.Rate, Term: r.Term, Payment: r.Payment, Hint: r.Hint,
		})
	}

	return st, nil
}

// DeleteGame removes the saved game and its event log. Results and other
// metadata are kept.
func (db *DB) DeleteGame() error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM buildings", "DELETE FROM loans", "DELETE FROM events"} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	query, args, err := sqlx.In("DELETE FROM meta WHERE key IN (?)", gameKeys)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.NamedExec(
			"INSERT INTO events (turn, description, category) VALUES (:turn, :description, :category)", e)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT turn, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// Result is a finished game kept in the local high-score list.
type Result struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	NetWorth        int64     `db:"net_worth" json:"net_worth"`
	PropertyCount   int       `db:"property_count" json:"property_count"`
	AvgSatisfaction int       `db:"avg_satisfaction" json:"avg_satisfaction"`
	Year            int       `db:"year" json:"year"`
	Version         string    `db:"version" json:"version"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SaveResult records a finished game.
func (db *DB) SaveResult(r Result) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := db.conn.NamedExec(`INSERT INTO results
		(name, net_worth, property_count, avg_satisfaction, year, version, created_at)
		VALUES (:name, :net_worth, :property_count, :avg_satisfaction, :year, :version, :created_at)`, r)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	return res.LastInsertId()
}

// Results returns the best local results, highest net worth first.
func (db *DB) Results(limit int) ([]Result, error) {
	var out []Result
	err := db.conn.Select(&out,
		"SELECT * FROM results ORDER BY net_worth DESC, created_at DESC LIMIT ?", limit)
	return out, err
}
