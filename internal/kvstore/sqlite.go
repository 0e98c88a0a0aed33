package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
	_ "modernc.org/sqlite"
)

var _ compliance.KVStore = (*SQLite)(nil)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("compliance store is closed")

// SQLiteFileName is the database created inside the data directory.
const SQLiteFileName = "compliance.db"

// SQLite persists compliance keys in a single table. Non-durable rows are written
// with durable=0 and expire TransientTTL after their last write.
type SQLite struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLite opens (or creates) the compliance database in dir.
func NewSQLite(dir string) (*SQLite, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("dir is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return nil, fmt.Errorf("create compliance store dir: %w", err)
	}

	dbPath := filepath.Join(dir, SQLiteFileName)
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open compliance db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS compliance_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		durable    INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init compliance schema: %w", err)
	}
	return s.purgeExpired()
}

func (s *SQLite) purgeExpired() error {
	cutoff := s.now().Add(-TransientTTL).Unix()
	if _, err := s.db.Exec(`DELETE FROM compliance_kv WHERE durable = 0 AND updated_at < ?`, cutoff); err != nil {
		return fmt.Errorf("purge expired compliance keys: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", false, ErrStoreClosed
	}

	var (
		value     string
		durable   bool
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, durable, updated_at FROM compliance_kv WHERE key = ?`, key,
	).Scan(&value, &durable, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	if !durable && s.now().Sub(time.Unix(updatedAt, 0)) > TransientTTL {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreClosed
	}

	durableInt := 0
	if durable {
		durableInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_kv (key, value, durable, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, durable = excluded.durable, updated_at = excluded.updated_at
	`, key, value, durableInt, s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM compliance_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
