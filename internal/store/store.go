// Package store persists scan sessions to a local SQLite database.
// Sessions, tasks, assets and findings are stored in four tables keyed
// by primary key, with findings/assets/tasks carrying a foreign key
// back to their owning session.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed persistence layer for scan sessions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes its schema. A single connection is kept open — SQLite
// allows only one writer at a time, and funnelling every query through
// one *sql.DB connection avoids SQLITE_BUSY errors from the driver
// opening independent connections under load.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			progress REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error TEXT,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			type TEXT NOT NULL,
			value TEXT NOT NULL,
			discovered_by TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			score REAL NOT NULL DEFAULT 0,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			host TEXT,
			description TEXT,
			discovered_by TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			evidence TEXT,
			recommendations TEXT,
			metadata TEXT
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// SaveSession upserts a session's own row (not its children).
func (s *Store) SaveSession(ctx context.Context, sess *scan.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal session metadata: %w", err)
	}
	var completedAt *string
	if sess.CompletedAt != nil {
		v := sess.CompletedAt.Format(time.RFC3339)
		completedAt = &v
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, target, started_at, completed_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Target, sess.StartedAt.Format(time.RFC3339), completedAt, string(meta))
	if err != nil {
		return fmt.Errorf("store: save session %s: %w", sess.ID, err)
	}
	return nil
}

// SaveTask upserts a single task row under sessionID.
func (s *Store) SaveTask(ctx context.Context, sessionID string, t *scan.Task) error {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal task metadata: %w", err)
	}
	startedAt := nullableTime(t.StartedAt)
	completedAt := nullableTime(t.CompletedAt)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tasks
			(id, session_id, name, description, status, progress, created_at, started_at, completed_at, error, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, sessionID, t.Name, t.Description, t.Status.String(), t.Progress,
		t.CreatedAt.Format(time.RFC3339), startedAt, completedAt, t.Error, string(meta))
	if err != nil {
		return fmt.Errorf("store: save task %s: %w", t.ID, err)
	}
	return nil
}

// SaveAsset upserts a single asset row under sessionID.
func (s *Store) SaveAsset(ctx context.Context, sessionID string, a *scan.Asset) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal asset metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO assets (id, session_id, type, value, discovered_by, timestamp, score, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, sessionID, a.Type, a.Value, a.DiscoveredBy, a.Timestamp.Format(time.RFC3339), a.Score, string(meta))
	if err != nil {
		return fmt.Errorf("store: save asset %s: %w", a.ID, err)
	}
	return nil
}

// SaveFinding upserts a single finding row under sessionID.
func (s *Store) SaveFinding(ctx context.Context, sessionID string, f *scan.Finding) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal finding metadata: %w", err)
	}
	recs, err := json.Marshal(f.Recommendations)
	if err != nil {
		return fmt.Errorf("store: marshal finding recommendations: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO findings
			(id, session_id, severity, title, host, description, discovered_by, timestamp, evidence, recommendations, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, sessionID, f.Severity.String(), f.Title, f.Host, f.Description, f.DiscoveredBy,
		f.Timestamp.Format(time.RFC3339), f.Evidence, string(recs), string(meta))
	if err != nil {
		return fmt.Errorf("store: save finding %s: %w", f.ID, err)
	}
	return nil
}

// GetSession reconstructs a complete session graph, including its
// tasks, assets and findings, ordered by discovery timestamp.
func (s *Store) GetSession(ctx context.Context, id string) (*scan.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target, started_at, completed_at, metadata FROM sessions WHERE id = ?`, id)

	sess, err := scanSessionRow(row)
	if err != nil {
		return nil, err
	}

	if sess.Tasks, err = s.loadTasks(ctx, id); err != nil {
		return nil, err
	}
	if sess.Assets, err = s.loadAssets(ctx, id); err != nil {
		return nil, err
	}
	if sess.Findings, err = s.loadFindings(ctx, id); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns every session's own row (without children),
// most recently started first.
func (s *Store) ListSessions(ctx context.Context) ([]*scan.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, started_at, completed_at, metadata FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*scan.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and all of its children, in
// foreign-key-safe order: findings, then assets, then tasks, then the
// session row itself.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete session %s: %w", id, err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM findings WHERE session_id = ?`,
		`DELETE FROM assets WHERE session_id = ?`,
		`DELETE FROM tasks WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("store: delete session %s: %w", id, err)
		}
	}
	return tx.Commit()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSessionRow(row scannable) (*scan.Session, error) {
	var sess scan.Session
	var startedAt string
	var completedAt sql.NullString
	var metaJSON sql.NullString

	if err := row.Scan(&sess.ID, &sess.Target, &startedAt, &completedAt, &metaJSON); err != nil {
		return nil, fmt.Errorf("store: scan session row: %w", err)
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse session started_at: %w", err)
	}
	sess.StartedAt = t

	if completedAt.Valid {
		v, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse session completed_at: %w", err)
		}
		sess.CompletedAt = &v
	}

	sess.Metadata = map[string]any{}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &sess.Metadata); err != nil {
			log.Printf("store: discarding unparseable session metadata for %s: %v", sess.ID, err)
		}
	}
	return &sess, nil
}

func (s *Store) loadTasks(ctx context.Context, sessionID string) ([]*scan.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, status, progress, created_at, started_at, completed_at, error, metadata
		 FROM tasks WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scan.Task
	for rows.Next() {
		var t scan.Task
		var statusStr, createdAt string
		var startedAt, completedAt, metaJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &statusStr, &t.Progress,
			&createdAt, &startedAt, &completedAt, &t.Error, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: scan task row: %w", err)
		}
		if err := (&t.Status).UnmarshalJSON([]byte(`"` + statusStr + `"`)); err != nil {
			return nil, fmt.Errorf("store: parse task status: %w", err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("store: parse task created_at: %w", err)
		}
		t.StartedAt = parseNullableTime(startedAt)
		t.CompletedAt = parseNullableTime(completedAt)
		t.Metadata = map[string]any{}
		if metaJSON.Valid && metaJSON.String != "" {
			json.Unmarshal([]byte(metaJSON.String), &t.Metadata)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (s *Store) loadAssets(ctx context.Context, sessionID string) ([]*scan.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, value, discovered_by, timestamp, score, metadata
		 FROM assets WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: load assets: %w", err)
	}
	defer rows.Close()

	var assets []*scan.Asset
	for rows.Next() {
		var a scan.Asset
		var ts string
		var metaJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.Type, &a.Value, &a.DiscoveredBy, &ts, &a.Score, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: scan asset row: %w", err)
		}
		if a.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("store: parse asset timestamp: %w", err)
		}
		a.Metadata = map[string]any{}
		if metaJSON.Valid && metaJSON.String != "" {
			json.Unmarshal([]byte(metaJSON.String), &a.Metadata)
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (s *Store) loadFindings(ctx context.Context, sessionID string) ([]*scan.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, severity, title, host, description, discovered_by, timestamp, evidence, recommendations, metadata
		 FROM findings WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: load findings: %w", err)
	}
	defer rows.Close()

	var findings []*scan.Finding
	for rows.Next() {
		var f scan.Finding
		var severityStr, ts string
		var evidence, recsJSON, metaJSON sql.NullString
		if err := rows.Scan(&f.ID, &severityStr, &f.Title, &f.Host, &f.Description, &f.DiscoveredBy,
			&ts, &evidence, &recsJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: scan finding row: %w", err)
		}
		if err := (&f.Severity).UnmarshalJSON([]byte(`"` + severityStr + `"`)); err != nil {
			return nil, fmt.Errorf("store: parse finding severity: %w", err)
		}
		if f.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("store: parse finding timestamp: %w", err)
		}
		f.Evidence = evidence.String
		if recsJSON.Valid && recsJSON.String != "" {
			json.Unmarshal([]byte(recsJSON.String), &f.Recommendations)
		}
		f.Metadata = map[string]any{}
		if metaJSON.Valid && metaJSON.String != "" {
			json.Unmarshal([]byte(metaJSON.String), &f.Metadata)
		}
		findings = append(findings, &f)
	}
	return findings, rows.Err()
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
