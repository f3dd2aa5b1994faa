package testsupport

import (
	"context"
	"testing"

	"reflow/internal/config"
	"reflow/internal/logging"
	"reflow/internal/registry"
	"reflow/internal/store"
)

// MustOpenStore opens a session store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return st
}

// MustOpenRegistry loads a registry over the given store and registers
// cleanup so dirty sessions are flushed when the test ends.
func MustOpenRegistry(t testing.TB, cfg *config.Config, st *store.Store) *registry.Registry {
	t.Helper()

	reg, err := registry.New(context.Background(), cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	t.Cleanup(reg.Close)
	return reg
}
