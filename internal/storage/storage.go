package storage

import (
	"context"
	"errors"

	"liquidityPool/internal/model"
)

// ErrTxDone is returned when a transaction is used after commit or rollback.
var ErrTxDone = errors.New("ledger transaction already finished")

// LedgerStore persists the single pool record.
type LedgerStore interface {
	Load(ctx context.Context) (model.PoolRecord, bool, error)
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx stages a pool record until Commit. Rollback after Commit is a no-op.
type LedgerTx interface {
	Save(ctx context.Context, record model.PoolRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Journal is a sink for processed transfer entries.
type Journal interface {
	Append(entries ...model.JournalEntry) error
}
