package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/facility-reservations/internal/persistence/memory"
)

func TestStoreAdminDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewStoreAdminDirectory(memory.NewWithIDGenerator(func() string { return "admin-1" }), nil)

	if ok, err := dir.IsAdmin(ctx, "E1001"); err != nil || ok {
		t.Fatalf("expected unknown token to be rejected, got %v %v", ok, err)
	}

	id, err := dir.AddToken(ctx, "E1001", " Facilities Desk ")
	if err != nil {
		t.Fatalf("add token: %v", err)
	}
	if id != "admin-1" {
		t.Fatalf("expected generated id, got %q", id)
	}

	if ok, err := dir.IsAdmin(ctx, "E1001"); err != nil || !ok {
		t.Fatalf("expected registered token to be accepted, got %v %v", ok, err)
	}
	if ok, _ := dir.IsAdmin(ctx, "e1001"); ok {
		t.Fatalf("expected comparison to be exact")
	}
	if ok, _ := dir.IsAdmin(ctx, ""); ok {
		t.Fatalf("expected empty token to be rejected")
	}

	_, err = dir.AddToken(ctx, "E1001", "again")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected duplicate token validation error, got %v", err)
	}
	if _, err := dir.AddToken(ctx, "  ", ""); !errors.As(err, &vErr) {
		t.Fatalf("expected blank token validation error, got %v", err)
	}
}
