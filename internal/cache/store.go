package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// ErrMiss reports that a key is absent or its entry has expired.
var ErrMiss = errors.New("cache miss")

// Store is a TTL key-value cache backed by SQLite. All methods are safe for
// concurrent use; expired rows are treated as misses and lazily deleted.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

// Open initializes the cache database at path, creating parent directories
// and the schema as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("cache pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS entries (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or ErrMiss when absent or expired.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(
		"SELECT value, expires_at FROM entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache read: %w", err)
	}

	if s.now().Unix() >= expiresAt {
		if _, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
			s.logger.Debug("expired entry delete failed", zap.String("key", key), zap.Error(err))
		}
		return nil, ErrMiss
	}
	return value, nil
}

// Set stores value under key for the given lifetime. A non-positive ttl is
// a no-op.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(ttl).Unix()
	_, err := s.db.Exec(
		"INSERT INTO entries (key, value, expires_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at",
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Delete removes key from the store. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Prune removes all expired rows and returns how many were deleted.
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entries WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return res.RowsAffected()
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result. Concurrent calls for the same key are collapsed into a single
// compute invocation. Read and write failures degrade to a plain compute:
// the value is still produced, the cache is just bypassed.
func (s *Store) GetOrCompute(key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error) {
	if cached, err := s.Get(key); err == nil {
		return cached, true, nil
	} else if !errors.Is(err, ErrMiss) {
		s.logger.Warn("cache read failed, computing", zap.String("key", key), zap.Error(err))
	}

	value, err, shared := s.group.Do(key, func() (any, error) {
		// A peer may have finished while we waited on the flight group.
		if cached, err := s.Get(key); err == nil {
			return cached, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		if err := s.Set(key, result, ttl); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value.([]byte), shared, nil
}

// GetJSON unmarshals the cached value under key into out.
func (s *Store) GetJSON(key string, out any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode cached value: %w", err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.Set(key, raw, ttl)
}
