package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the cache uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool, for deployments where
// multiple pipeline instances share one cache.
type PostgresStore struct {
	counters
	pool Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS kv_cache (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres parse config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the cache schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cache: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_cache WHERE namespace = $1 AND key = $2 AND expires_at > now()`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		s.miss()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres get")
	}
	s.hit()
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_cache (namespace, key, value, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		namespace, key, value, time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "cache: postgres set")
}

func (s *PostgresStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_cache WHERE namespace = $1 AND key = $2`, namespace, key)
	return eris.Wrap(err, "cache: postgres delete")
}

func (s *PostgresStore) GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM kv_cache WHERE namespace = $1 AND key = ANY($2) AND expires_at > now()`,
		namespace, keys,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres get many")
	}
	defer rows.Close()

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "cache: postgres scan")
		}
		found[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: postgres rows")
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

func (s *PostgresStore) SetMany(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	expires := time.Now().UTC().Add(ttl)
	for k, v := range values {
		if err := s.setAt(ctx, namespace, k, v, expires); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) setAt(ctx context.Context, namespace, key string, value []byte, expires time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_cache (namespace, key, value, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		namespace, key, value, expires,
	)
	return eris.Wrapf(err, "cache: postgres set %s", key)
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: postgres delete expired")
	}
	return int(tag.RowsAffected()), nil
}
