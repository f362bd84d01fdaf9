package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityPool/internal/config"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
)

// openStore returns the configured ledger store and its release func.
func openStore(ctx context.Context, cfg config.StoreConfig, self common.Address) (storage.LedgerStore, func(), error) {
	switch cfg.Backend {
	case "", "file":
		if cfg.StateFile == "" {
			return nil, nil, fmt.Errorf("state file is required")
		}
		return storage.NewFileStore(cfg.StateFile), func() {}, nil
	case "postgres":
		if cfg.PGDSN == "" {
			return nil, nil, fmt.Errorf("pg dsn is required")
		}
		poolID := cfg.PoolID
		if poolID == "" {
			if self == (common.Address{}) {
				return nil, nil, fmt.Errorf("pool id is required: set --pool-id or the pool address")
			}
			poolID = strings.ToLower(self.Hex())
		}
		store, err := postgres.NewStore(ctx, cfg.PGDSN, poolID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
