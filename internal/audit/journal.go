// Package audit persists capability decisions to a local SQLite
// journal so they can be inspected after the fact.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Op identifies the facade operation that produced an event.
type Op string

const (
	OpQuery   Op = "query"
	OpRequest Op = "request"
	OpRevoke  Op = "revoke"
)

// Event is a single journal entry.
type Event struct {
	ID        string           `json:"id"`
	Time      time.Time        `json:"time"`
	Op        Op               `json:"op"`
	Name      permission.Name  `json:"name"`
	Qualifier string           `json:"qualifier,omitempty"`
	State     permission.State `json:"state"`
	Source    string           `json:"source,omitempty"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Name  permission.Name
	Op    Op
	Since time.Time
	Limit int
}

// Journal is an append-only record of capability decisions backed by a
// SQLite database.
type Journal struct {
	db *sql.DB
}

// DefaultJournalPath returns the default audit journal location.
func DefaultJournalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gatelet", "audit.db"), nil
}

// Open creates or opens the journal database at path, applying pragmas
// and the schema. The parent directory is created if missing.
func Open(path string) (*Journal, error) {
	//nolint:gosec // G301: journal directory needs user access
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports a single writer, keep one connection to avoid
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an event. A missing ID or Time is filled in.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events (id, time, op, name, qualifier, state, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Time.UnixNano(), string(e.Op), string(e.Name), e.Qualifier, e.State, e.Source)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Event, error) {
	query := `SELECT id, time, op, name, qualifier, state, source FROM events`

	var conds []string
	var args []any
	if f.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, string(f.Name))
	}
	if f.Op != "" {
		conds = append(conds, "op = ?")
		args = append(args, string(f.Op))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "time >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			nanos int64
			op    string
			name  string
		)
		if err := rows.Scan(&e.ID, &nanos, &op, &name, &e.Qualifier, &e.State, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Time = time.Unix(0, nanos).UTC()
		e.Op = Op(op)
		e.Name = permission.Name(name)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}
