package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ozzyboz/rsm-starship-game/combat"
)

// ErrDigestMismatch is returned when a stored snapshot no longer matches its digest
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// DB is the battle journal
type DB struct {
	conn *sql.DB
	log  zerolog.Logger
}

// BattleRow is a journalled battle
type BattleRow struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Steps      int        `json:"steps"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// EventRow is one journalled step. The snapshot itself is fetched with LoadSnapshot.
type EventRow struct {
	BattleID string `json:"bid"`
	Step     int    `json:"n"`
	Op       string `json:"op"`
	Desc     string `json:"d"`
	Digest   string `json:"h"`
}

// OpenDB opens (or creates) the SQLite journal
func OpenDB(path string, log zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Battles journal from their own goroutines; one connection serializes
	// writers and keeps the pragmas below in effect.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, log: log}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("battle journal ready")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS battles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		scenario TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		steps INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS battle_events (
		battle_id TEXT NOT NULL REFERENCES battles(id),
		step INTEGER NOT NULL,
		op TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL,
		snapshot BLOB NOT NULL,
		PRIMARY KEY (battle_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_battles_started ON battles(started_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		db.log.Error().Err(err).Msg("journal migration failed")
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetSetting returns a stored setting, or "" if unset
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.log.Warn().Err(err).Str("key", key).Msg("read setting")
	}
	return value
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreateBattle journals the start of a battle
func (db *DB) CreateBattle(id string, sc *Scenario) error {
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO battles (id, name, scenario, status, started_at) VALUES (?, ?, ?, ?, ?)",
		id, sc.Name, string(raw), StatusRunning, time.Now().UTC(),
	)
	return err
}

// FinishBattle records the final status and step count
func (db *DB) FinishBattle(id, status string, steps int) error {
	_, err := db.conn.Exec(
		"UPDATE battles SET status = ?, steps = ?, finished_at = ? WHERE id = ?",
		status, steps, time.Now().UTC(), id,
	)
	return err
}

// RecordEvent stores an event with its snapshot compressed
func (db *DB) RecordEvent(ev Event) error {
	raw, err := EncodeState(ev.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	blob, err := compressLZ4(raw)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`INSERT INTO battle_events (battle_id, step, op, description, digest, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.BattleID, ev.Step, ev.Op, ev.Desc, ev.Digest, blob,
	)
	return err
}

// GetBattle returns a battle, or nil if unknown
func (db *DB) GetBattle(id string) (*BattleRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, status, steps, started_at, finished_at FROM battles WHERE id = ?",
		id,
	)
	b, err := scanBattle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// GetScenario returns the scenario a battle was started with
func (db *DB) GetScenario(id string) (*Scenario, error) {
	var raw string
	err := db.conn.QueryRow("SELECT scenario FROM battles WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseScenario([]byte(raw))
}

// ListBattles returns the most recent battles first
func (db *DB) ListBattles(limit int) ([]BattleRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, status, steps, started_at, finished_at
		 FROM battles ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BattleRow
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// GetEvents returns a battle's events in step order
func (db *DB) GetEvents(battleID string) ([]EventRow, error) {
	rows, err := db.conn.Query(
		`SELECT battle_id, step, op, description, digest
		 FROM battle_events WHERE battle_id = ? ORDER BY step`,
		battleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.BattleID, &e.Step, &e.Op, &e.Desc, &e.Digest); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LoadSnapshot decodes the stored state after step and checks it against its digest.
// It returns nil if no such step was journalled.
func (db *DB) LoadSnapshot(battleID string, step int) (*combat.BattleState, error) {
	var digest string
	var blob []byte
	err := db.conn.QueryRow(
		"SELECT digest, snapshot FROM battle_events WHERE battle_id = ? AND step = ?",
		battleID, step,
	).Scan(&digest, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := decompressLZ4(blob)
	if err != nil {
		return nil, err
	}
	if StateDigest(raw) != digest {
		return nil, fmt.Errorf("battle %s step %d: %w", battleID, step, ErrDigestMismatch)
	}
	state, err := DecodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBattle(r rowScanner) (*BattleRow, error) {
	b := &BattleRow{}
	var finished sql.NullTime
	if err := r.Scan(&b.ID, &b.Name, &b.Status, &b.Steps, &b.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		b.FinishedAt = &finished.Time
	}
	return b, nil
}
