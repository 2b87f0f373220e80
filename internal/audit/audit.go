// Package audit persists gate decisions to a local SQLite database,
// optionally encrypted with SQLCipher. Every non-allow ruling is
// recorded; allows are recorded only when configured, since they
// dominate the volume.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/fileutil"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
	_ "github.com/mutecomm/go-sqlcipher/v4" // SQLCipher driver for encrypted SQLite
)

var log = logger.New("audit")

// MinEncryptionKeyLength is the minimum accepted key length.
const MinEncryptionKeyLength = 16

// MaxRetentionDays caps the retention window.
const MaxRetentionDays = 36500

// Store handles the decision log database.
type Store struct {
	conn      *sql.DB
	encrypted bool
}

// Record is one gate decision.
type Record struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tool      string    `json:"tool"`
	Kind      string    `json:"kind"`
	Decision  string    `json:"decision"`
	Origin    string    `json:"origin,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	// Input is the command line or path that was ruled on.
	Input string `json:"input,omitempty"`
}

// Open opens (or creates) the decision log. The encryption key travels
// in the DSN, never through a PRAGMA statement built from strings.
func Open(dbPath, encryptionKey string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := fileutil.SecureMkdirAll(dir); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")

	if encryptionKey != "" {
		if len(encryptionKey) < MinEncryptionKeyLength {
			return nil, fmt.Errorf("encryption key must be at least %d characters", MinEncryptionKeyLength)
		}
		params.Set("_pragma_key", encryptionKey)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	// SQLite allows one writer; serializing at the Go level avoids
	// SQLITE_BUSY instead of retrying around it.
	conn.SetMaxOpenConns(1)

	encrypted := false
	if encryptionKey != "" {
		var one int
		if err := conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&one); err != nil {
			conn.Close()
			return nil, fmt.Errorf("encryption key verification failed: %w", err)
		}
		encrypted = true
		log.Debug("audit database encryption enabled")
	}

	s := &Store{conn: conn, encrypted: encrypted}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}
	return s, nil
}

// IsEncrypted reports whether the database is encrypted.
func (s *Store) IsEncrypted() bool { return s.encrypted }

// Close closes the database connection.
func (s *Store) Close() error { return s.conn.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	tool TEXT NOT NULL,
	kind TEXT NOT NULL,
	decision TEXT NOT NULL,
	origin TEXT,
	reason TEXT,
	input TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_tool ON decisions(tool);
`

func (s *Store) initSchema() error {
	_, err := s.conn.ExecContext(context.Background(), schema)
	return err
}

// Insert records one decision.
func (s *Store) Insert(rec Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(context.Background(), `
		INSERT INTO decisions (timestamp, tool, kind, decision, origin, reason, input)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ts, rec.Tool, rec.Kind, rec.Decision, rec.Origin, rec.Reason, rec.Input)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Recent returns decisions from the last N minutes, newest first.
func (s *Store) Recent(minutes, limit int) ([]Record, error) {
	if minutes <= 0 {
		minutes = 60
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(context.Background(), `
		SELECT id, timestamp, tool, kind, decision, origin, reason, input
		FROM decisions
		WHERE timestamp > datetime('now', ?)
		ORDER BY timestamp DESC
		LIMIT ?
	`, fmt.Sprintf("-%d minutes", minutes), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var origin, reason, input sql.NullString
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Tool, &r.Kind, &r.Decision,
			&origin, &reason, &input); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		r.Origin = origin.String
		r.Reason = reason.String
		r.Input = input.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Prune deletes records older than the retention window and returns the
// number removed.
func (s *Store) Prune(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	if days > MaxRetentionDays {
		days = MaxRetentionDays
	}
	result, err := s.conn.ExecContext(context.Background(), `
		DELETE FROM decisions WHERE timestamp < datetime('now', ?)
	`, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	if deleted > 0 {
		log.Info("pruned %d audit records (retention: %d days)", deleted, days)
	}
	return deleted, nil
}
