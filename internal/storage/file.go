package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityPool/internal/model"
)

// FileStore stores the pool record in a local JSON file.
// Commits replace the file atomically through a rename.
type FileStore struct {
	Path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(ctx context.Context) (model.PoolRecord, bool, error) {
	if s == nil || s.Path == "" {
		return model.PoolRecord{}, false, fmt.Errorf("state file path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PoolRecord{}, false, nil
		}
		return model.PoolRecord{}, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return model.PoolRecord{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.PoolRecord{}, false, fmt.Errorf("read state: %w", err)
	}

	var rec model.PoolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PoolRecord{}, false, fmt.Errorf("parse state: %w", err)
	}
	return rec, true, nil
}

func (s *FileStore) Begin(ctx context.Context) (LedgerTx, error) {
	if s == nil || s.Path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	return &fileTx{store: s}, nil
}

func (s *FileStore) write(rec model.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

type fileTx struct {
	store  *FileStore
	staged *model.PoolRecord
	done   bool
}

func (tx *fileTx) Save(ctx context.Context, record model.PoolRecord) error {
	if tx.done {
		return ErrTxDone
	}
	tx.staged = &record
	return nil
}

func (tx *fileTx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	if tx.staged == nil {
		return nil
	}
	return tx.store.write(*tx.staged)
}

func (tx *fileTx) Rollback(ctx context.Context) error {
	tx.done = true
	tx.staged = nil
	return nil
}
