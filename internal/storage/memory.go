package storage

import (
	"context"
	"sync"

	"liquidityPool/internal/model"
)

// MemoryStore keeps the pool record in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	record  *model.PoolRecord
	commits int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (model.PoolRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return model.PoolRecord{}, false, nil
	}
	return *s.record, true, nil
}

// Commits reports how many transactions were committed.
func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryStore) Begin(ctx context.Context) (LedgerTx, error) {
	return &memoryTx{store: s}, nil
}

type memoryTx struct {
	store  *MemoryStore
	staged *model.PoolRecord
	done   bool
}

func (tx *memoryTx) Save(ctx context.Context, record model.PoolRecord) error {
	if tx.done {
		return ErrTxDone
	}
	tx.staged = &record
	return nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.staged != nil {
		rec := *tx.staged
		tx.store.record = &rec
	}
	tx.store.commits++
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	tx.done = true
	tx.staged = nil
	return nil
}
