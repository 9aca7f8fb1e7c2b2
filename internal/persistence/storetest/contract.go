// Package storetest holds the behaviour every persistence.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/example/facility-reservations/internal/persistence"
)

// Run exercises store against the Store contract. The store must start empty.
func Run(t *testing.T, store persistence.Store) {
	t.Helper()
	ctx := context.Background()
	const things = "things"

	t.Run("lists in insertion order and keeps order on replace", func(t *testing.T) {
		first, err := store.Insert(ctx, things, map[string]any{"name": "first"})
		if err != nil || first == "" {
			t.Fatalf("Insert = %q, %v", first, err)
		}
		if err := store.SetByID(ctx, things, "manual", map[string]any{"name": "second", "extra": "x"}); err != nil {
			t.Fatalf("SetByID failed: %v", err)
		}
		if err := store.SetByID(ctx, things, "last", map[string]any{"name": "third"}); err != nil {
			t.Fatalf("SetByID failed: %v", err)
		}
		if err := store.SetByID(ctx, things, "manual", map[string]any{"name": "second again"}); err != nil {
			t.Fatalf("SetByID replace failed: %v", err)
		}

		docs, err := store.ListAll(ctx, things)
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if got := docIDs(docs); len(got) != 3 || got[0] != first || got[1] != "manual" || got[2] != "last" {
			t.Fatalf("expected [%s manual last], got %v", first, got)
		}
		if docs[1].Fields["name"] != "second again" {
			t.Fatalf("expected replaced fields, got %v", docs[1].Fields)
		}
		if _, ok := docs[1].Fields["extra"]; ok {
			t.Fatalf("expected SetByID to replace rather than merge, got %v", docs[1].Fields)
		}

		got, err := store.GetByID(ctx, things, first)
		if err != nil || got.ID != first || got.Fields["name"] != "first" {
			t.Fatalf("GetByID = %+v, %v", got, err)
		}
	})

	t.Run("merges updates into existing documents", func(t *testing.T) {
		if err := store.UpdateByID(ctx, things, "last", map[string]any{"color": "red"}); err != nil {
			t.Fatalf("UpdateByID failed: %v", err)
		}
		doc, err := store.GetByID(ctx, things, "last")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if doc.Fields["name"] != "third" || doc.Fields["color"] != "red" {
			t.Fatalf("expected merged fields, got %v", doc.Fields)
		}
		if err := store.UpdateByID(ctx, things, "nobody", map[string]any{"color": "blue"}); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
		}
	})

	t.Run("reports missing documents", func(t *testing.T) {
		if _, err := store.GetByID(ctx, things, "nobody"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from GetByID, got %v", err)
		}
		if err := store.DeleteByID(ctx, things, "last"); err != nil {
			t.Fatalf("DeleteByID failed: %v", err)
		}
		if err := store.DeleteByID(ctx, things, "last"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, err := store.GetByID(ctx, things, "last"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("queries by exact field value", func(t *testing.T) {
		for _, token := range []string{"E1", "e1", "E1"} {
			if _, err := store.Insert(ctx, persistence.CollectionAdmin, map[string]any{"token": token}); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
		}
		matches, err := store.QueryByField(ctx, persistence.CollectionAdmin, "token", "E1")
		if err != nil {
			t.Fatalf("QueryByField failed: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("expected 2 exact matches, got %d", len(matches))
		}
		none, err := store.QueryByField(ctx, persistence.CollectionAdmin, "token", "E2")
		if err != nil || len(none) != 0 {
			t.Fatalf("expected no matches, got %d, %v", len(none), err)
		}
	})
}

func docIDs(docs []persistence.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
