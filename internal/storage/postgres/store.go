package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

const schema = `
	CREATE TABLE IF NOT EXISTS pool_ledger (
		pool_id    TEXT PRIMARY KEY,
		record     JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Store persists the pool record in Postgres, keyed by the pool's own address.
type Store struct {
	pool   *pgxpool.Pool
	poolID string
}

func NewStore(ctx context.Context, dsn string, poolID string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if poolID == "" {
		return nil, fmt.Errorf("pool id is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, poolID: poolID}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the pool_ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load returns the committed pool record.
func (s *Store) Load(ctx context.Context) (model.PoolRecord, bool, error) {
	var raw string
	row := s.pool.QueryRow(ctx, `SELECT record::text FROM pool_ledger WHERE pool_id=$1`, s.poolID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolRecord{}, false, nil
		}
		return model.PoolRecord{}, false, err
	}

	var rec model.PoolRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.PoolRecord{}, false, fmt.Errorf("parse pool record: %w", err)
	}
	return rec, true, nil
}

// Begin opens a database transaction and locks the pool row if it exists.
func (s *Store) Begin(ctx context.Context) (storage.LedgerTx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT 1 FROM pool_ledger WHERE pool_id=$1 FOR UPDATE`, s.poolID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("lock pool row: %w", err)
	}
	return &ledgerTx{tx: tx, poolID: s.poolID}, nil
}

type ledgerTx struct {
	tx     pgx.Tx
	poolID string
}

func (t *ledgerTx) Save(ctx context.Context, record model.PoolRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal pool record: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO pool_ledger (pool_id, record, created_at, updated_at)
		VALUES ($1, $2::text::jsonb, now(), now())
		ON CONFLICT (pool_id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = now()
	`, t.poolID, string(data))
	return err
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return storage.ErrTxDone
		}
		return err
	}
	return nil
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
