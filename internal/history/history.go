// Package history persists a bounded record of past launch requests in
// SQLite. Independent of the plain-text audit log: history is
// structured data the UI re-plays, the audit log is an operator
// artifact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MaxEntries bounds the store: inserts beyond it evict the oldest
// records.
const MaxEntries = 50

// createdAtLayout keeps the fractional second fixed-width so the TEXT
// column sorts lexicographically in time order. RFC3339Nano trims
// trailing zeros, which breaks ordering when one fraction is a prefix
// of another (".1Z" vs ".15Z").
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one past launch request.
type Record struct {
	ID         string         `json:"id,omitempty"`
	ScriptPath string         `json:"script_path"`
	Args       map[string]any `json:"args"`
	PreCommand string         `json:"pre_command"`
	Comment    string         `json:"comment"`
	Session    string         `json:"session_name"`
	Command    string         `json:"command"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Store is a SQLite-backed launch history.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS launches (
  id TEXT PRIMARY KEY,
  script_path TEXT NOT NULL,
  args TEXT NOT NULL,
  pre_command TEXT,
  comment TEXT,
  session_name TEXT NOT NULL,
  command TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create launches table: %w", err)
	}
	return nil
}

// Append stores one record and trims the table back to MaxEntries,
// oldest first.
func (s *Store) Append(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	argsJSON, err := json.Marshal(r.Args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	const insert = `
INSERT INTO launches (id, script_path, args, pre_command, comment, session_name, command, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, insert,
		r.ID, r.ScriptPath, string(argsJSON), r.PreCommand, r.Comment,
		r.Session, r.Command, r.Timestamp.UTC().Format(createdAtLayout),
	); err != nil {
		return fmt.Errorf("insert launch: %w", err)
	}

	const trim = `
DELETE FROM launches WHERE id NOT IN (
  SELECT id FROM launches ORDER BY created_at DESC, id LIMIT ?
);
`
	if _, err := s.db.ExecContext(ctx, trim, MaxEntries); err != nil {
		return fmt.Errorf("trim launches: %w", err)
	}
	return nil
}

// Recent returns up to MaxEntries records, newest first.
func (s *Store) Recent(ctx context.Context) ([]Record, error) {
	const query = `
SELECT id, script_path, args, pre_command, comment, session_name, command, created_at
FROM launches ORDER BY created_at DESC, id LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var argsJSON, createdAt string
		if err := rows.Scan(&r.ID, &r.ScriptPath, &argsJSON, &r.PreCommand,
			&r.Comment, &r.Session, &r.Command, &createdAt); err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &r.Args); err != nil {
			// A corrupt args blob should not hide the rest of the row.
			r.Args = map[string]any{}
		}
		if t, err := time.Parse(createdAtLayout, createdAt); err == nil {
			r.Timestamp = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
