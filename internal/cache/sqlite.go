package cache

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	counters
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS kv_cache (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

// Migrate creates the cache schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cache: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_cache WHERE namespace = ? AND key = ? AND expires_at > ?`,
		namespace, key, time.Now().UTC(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.miss()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite get")
	}
	s.hit()
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_cache (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		namespace, key, value, time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "cache: sqlite set")
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_cache WHERE namespace = ? AND key = ?`, namespace, key)
	return eris.Wrap(err, "cache: sqlite delete")
}

func (s *SQLiteStore) GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(keys)+2)
	args = append(args, namespace)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, time.Now().UTC())

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv_cache WHERE namespace = ? AND key IN (`+placeholders+`) AND expires_at > ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite get many")
	}
	defer rows.Close() //nolint:errcheck

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "cache: sqlite scan")
		}
		found[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: sqlite rows")
	}

	for _, k := range keys {
		if _, ok := found[k]; ok {
			s.hit()
		} else {
			s.miss()
		}
	}
	return found, nil
}

func (s *SQLiteStore) SetMany(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	expires := time.Now().UTC().Add(ttl)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "cache: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kv_cache (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`)
	if err != nil {
		return eris.Wrap(err, "cache: sqlite prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, namespace, k, v, expires); err != nil {
			return eris.Wrapf(err, "cache: sqlite set %s", k)
		}
	}
	return eris.Wrap(tx.Commit(), "cache: sqlite commit")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite rows affected")
	}
	return int(n), nil
}
