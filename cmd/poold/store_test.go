package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityPool/internal/config"
	"liquidityPool/internal/storage"
)

func TestOpenStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	store, release, err := openStore(context.Background(), config.StoreConfig{Backend: "file", StateFile: path}, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()

	fileStore, ok := store.(*storage.FileStore)
	if !ok || fileStore.Path != path {
		t.Fatalf("expected file store at %s, got %T", path, store)
	}
}

func TestOpenStoreErrors(t *testing.T) {
	cases := []config.StoreConfig{
		{Backend: "file"},
		{Backend: "postgres"},
		{Backend: "postgres", PGDSN: "postgres://localhost/pool"},
		{Backend: "redis"},
	}
	for _, cfg := range cases {
		if _, _, err := openStore(context.Background(), cfg, common.Address{}); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestLoadKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	encoded := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	loaded, err := loadKey(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crypto.PubkeyToAddress(loaded.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("loaded key mismatch")
	}

	if _, err := loadKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := loadKey("zz"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}
