package testsupport

import (
	"testing"

	"dlpanel/internal/config"
	"dlpanel/internal/snapcache"
)

// MustOpenStore opens the snapshot cache for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *snapcache.Store {
	t.Helper()

	store, err := snapcache.Open(cfg.Paths.StateDir, nil)
	if err != nil {
		t.Fatalf("snapcache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
