package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/legacyckpt/internal/versions"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		version TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		file_count INTEGER NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_version ON attempts(version);
	CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record adds a new attempt.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO attempts (run_id, version, status, exit_code, duration_ns, file_count, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.RunID, e.Version, string(e.Status), e.ExitCode, int64(e.Duration), e.FileCount, e.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

const latestQuery = `
SELECT a.id, a.run_id, a.version, a.status, a.exit_code, a.duration_ns, a.file_count, a.timestamp
FROM attempts a
WHERE a.id = (SELECT MAX(b.id) FROM attempts b WHERE b.version = a.version)`

// Latest retrieves the newest attempt per version. Skipped entries count as
// attempts, so a version skipped after a success keeps reporting "skipped".
func (s *SQLiteStore) Latest(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, latestQuery)
	if err != nil {
		return nil, fmt.Errorf("query latest attempts: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return versions.Compare(entries[i].Version, entries[j].Version) < 0
	})
	return entries, nil
}

// Succeeded returns versions whose latest non-skipped attempt succeeded.
func (s *SQLiteStore) Succeeded(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT a.version, a.status FROM attempts a
WHERE a.id = (SELECT MAX(b.id) FROM attempts b WHERE b.version = a.version AND b.status != ?)`,
		string(StatusSkipped))
	if err != nil {
		return nil, fmt.Errorf("query succeeded versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var version, status string
		if err := rows.Scan(&version, &status); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if Status(status) == StatusSucceeded {
			out[version] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ByRun retrieves all attempts for a specific run.
func (s *SQLiteStore) ByRun(ctx context.Context, runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, version, status, exit_code, duration_ns, file_count, timestamp FROM attempts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run attempts: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		var durationNS, tsNano int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Version, &status, &e.ExitCode, &durationNS, &e.FileCount, &tsNano); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		e.Status = Status(status)
		e.Duration = time.Duration(durationNS)
		e.Timestamp = time.Unix(0, tsNano)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
