package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/facility-reservations/internal/persistence/sqlite"
	"github.com/example/facility-reservations/internal/persistence/sqlite/migration"
)

// SQLiteHarness is a Harness backed by a migrated SQLite document store in a temp dir.
type SQLiteHarness struct {
	*Harness
	Documents *sqlite.DocumentStore
	Path      string
}

// NewSQLiteHarness opens and migrates a temporary database. The store is closed through
// tb.Cleanup.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "reservations.db")
	store, err := sqlite.Open(context.Background(), migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})

	return &SQLiteHarness{
		Harness:   NewHarness(tb, store, opts...),
		Documents: store,
		Path:      path,
	}
}
