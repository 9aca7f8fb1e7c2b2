package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/storetest"
)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	seq := 0
	store := NewWithIDGenerator(func() string {
		seq++
		return []string{"", "x1", "x2", "x3"}[seq]
	})

	id, err := store.Insert(ctx, "things", map[string]any{"name": "first"})
	if err != nil || id != "x1" {
		t.Fatalf("Insert = %q, %v", id, err)
	}
	if err := store.SetByID(ctx, "things", "manual", map[string]any{"name": "second"}); err != nil {
		t.Fatalf("SetByID failed: %v", err)
	}

	docs, err := store.ListAll(ctx, "things")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "x1" || docs[1].ID != "manual" {
		t.Fatalf("expected insertion order [x1 manual], got %+v", docs)
	}

	if err := store.UpdateByID(ctx, "things", "x1", map[string]any{"color": "red"}); err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}
	doc, err := store.GetByID(ctx, "things", "x1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if doc.Fields["name"] != "first" || doc.Fields["color"] != "red" {
		t.Fatalf("expected merged fields, got %+v", doc.Fields)
	}

	doc.Fields["name"] = "mutated"
	again, _ := store.GetByID(ctx, "things", "x1")
	if again.Fields["name"] != "first" {
		t.Fatalf("expected returned documents not to alias stored state")
	}

	if err := store.DeleteByID(ctx, "things", "x1"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if _, err := store.GetByID(ctx, "things", "x1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteByID(ctx, "things", "x1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.UpdateByID(ctx, "missing", "x1", nil); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown collection, got %v", err)
	}
}

func TestStore_QueryByField(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, token := range []string{"alpha", "beta", "alpha"} {
		if _, err := store.Insert(ctx, persistence.CollectionAdmin, map[string]any{"token": token}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	matches, err := store.QueryByField(ctx, persistence.CollectionAdmin, "token", "alpha")
	if err != nil {
		t.Fatalf("QueryByField failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	none, err := store.QueryByField(ctx, persistence.CollectionAdmin, "token", "ALPHA")
	if err != nil {
		t.Fatalf("QueryByField failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected exact-match lookup, got %d matches", len(none))
	}
}

func TestStore_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().ListAll(ctx, "things"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, New())
}
