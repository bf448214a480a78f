package testsupport

import (
	"context"
	"testing"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/config"
	"vidpipe/internal/registry"
	"vidpipe/internal/statestore"
)

// OpenBlobStore opens a blob store under the config's data directory and
// closes it when the test finishes.
func OpenBlobStore(t testing.TB, cfg *config.Config) *blobstore.Store {
	t.Helper()
	store, err := blobstore.Open(cfg.BlobStorePath())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close blob store: %v", err)
		}
	})
	return store
}

// OpenStateStore opens a queue-state store under the config's data directory
// and closes it when the test finishes.
func OpenStateStore(t testing.TB, cfg *config.Config) *statestore.Store {
	t.Helper()
	store, err := statestore.Open(cfg.StateStorePath())
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close state store: %v", err)
		}
	})
	return store
}

// NewRegistry seeds a registry from a fresh state store.
func NewRegistry(t testing.TB, cfg *config.Config) (*registry.Registry, *statestore.Store) {
	t.Helper()
	store := OpenStateStore(t, cfg)
	reg, err := registry.New(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg, store
}
