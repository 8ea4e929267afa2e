package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS store_snapshots (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectSnapshot = `SELECT data FROM store_snapshots WHERE key = $1`

const upsertSnapshot = `INSERT INTO store_snapshots (key, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

// NewPool opens a pgx pool and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// DBTX is the subset of a pgx pool or transaction used by PostgresStorage.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage keeps each store's snapshot as one JSONB row keyed by
// store key.
type PostgresStorage struct {
	db  DBTX
	key string
}

func NewPostgresStorage(db DBTX, key string) *PostgresStorage {
	return &PostgresStorage{db: db, key: key}
}

// EnsureSchema creates the snapshots table if it is missing.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("create store_snapshots: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx, selectSnapshot, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.key, err)
	}
	return data, nil
}

func (s *PostgresStorage) Save(ctx context.Context, data []byte) error {
	if _, err := s.db.Exec(ctx, upsertSnapshot, s.key, data); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.key, err)
	}
	return nil
}
