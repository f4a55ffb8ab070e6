// Package journal records one row per wake cycle in SQLite.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"thingcode-go/types"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one journaled cycle.
type Entry = types.CycleEntry

type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path. ":memory:" works for tests.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores e, assigning an ID when it has none, and returns the ID.
func (j *Journal) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	rep := e.Reported
	if rep == nil {
		rep = map[string]any{}
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("journal reported: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO cycles (id, thing, started_at, elapsed_ms, outcome, status, reported, cause)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Thing, e.StartedAt.UnixMilli(), e.Elapsed.Milliseconds(), string(e.Outcome), e.Status, string(b), e.Cause)
	if err != nil {
		return "", fmt.Errorf("journal insert: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to n entries, newest first. An empty thing matches all.
func (j *Journal) Recent(ctx context.Context, thing string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, thing, started_at, elapsed_ms, outcome, status, reported, cause
		 FROM cycles WHERE ? = '' OR thing = ?
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`, thing, thing, n)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			started  int64
			elapsed  int64
			outcome  string
			reported string
		)
		if err := rows.Scan(&e.ID, &e.Thing, &started, &elapsed, &outcome, &e.Status, &reported, &e.Cause); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.Elapsed = time.Duration(elapsed) * time.Millisecond
		e.Outcome = types.Outcome(outcome)
		if err := json.Unmarshal([]byte(reported), &e.Reported); err != nil {
			return nil, fmt.Errorf("journal reported: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
