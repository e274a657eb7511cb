package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFilename is the cache database file inside cache.dir.
const DBFilename = "transforms.db"

// SQLiteStore persists entries across processes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the cache database in dir.
// Use ":memory:" as dir for an ephemeral database.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	dsn := dir
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		dsn = filepath.Join(dir, DBFilename) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Workers share one connection so an in-memory database stays a single database.
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
	CREATE TABLE IF NOT EXISTS transforms (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_created_at ON transforms(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var value []byte
	var created int64
	err := s.db.QueryRowContext(ctx, "SELECT value, created_at FROM transforms WHERE key = ?", key).Scan(&value, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query transform: %w", err)
	}
	return Entry{Value: value, CreatedAt: time.Unix(0, created)}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transforms (key, value, created_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at",
		key, e.Value, created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transform: %w", err)
	}
	return nil
}

// Prune removes entries created before cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transforms WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune transforms: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
