package testutil

import (
	"testing"

	"dcat-go/internal/database"
)

// NewTestStore opens a migrated in-memory catalog that is closed when the
// test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
