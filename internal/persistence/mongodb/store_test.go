package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/storetest"
)

// testURIEnv names a MongoDB deployment for the integration tests. They skip when unset.
const testURIEnv = "RESERVATIONS_TEST_MONGO_URI"

func TestBSONConversion(t *testing.T) {
	t.Parallel()

	seq := primitive.NewObjectID()
	fields := persistence.ReservationFields(persistence.Reservation{
		Date: "2025-06-10", TimeStart: "09:00", TimeEnd: "10:00", Attendees: 3, FacilityID: "F1",
	})

	raw := toBSON("r-1", fields, seq)
	if raw[idKey] != "r-1" || raw[seqKey] != seq {
		t.Fatalf("expected id and seq keys, got %v", raw)
	}
	if _, leaked := fields[idKey]; leaked {
		t.Fatalf("expected input fields to stay untouched")
	}

	// The driver hands integers back as int32.
	raw[persistence.FieldAttendees] = int32(3)
	doc := fromBSON(bson.M(raw))
	if doc.ID != "r-1" {
		t.Fatalf("expected id r-1, got %q", doc.ID)
	}
	if _, ok := doc.Fields[seqKey]; ok {
		t.Fatalf("expected _seq to be stripped")
	}
	decoded, err := persistence.DecodeReservation(doc)
	if err != nil {
		t.Fatalf("DecodeReservation: %v", err)
	}
	if decoded.Attendees != 3 || decoded.FacilityID != "F1" {
		t.Fatalf("unexpected decoded reservation %#v", decoded)
	}
}

func TestListOptionsSortBySeq(t *testing.T) {
	t.Parallel()

	sort, ok := listOptions().Sort.(bson.D)
	if !ok || len(sort) != 1 || sort[0].Key != seqKey {
		t.Fatalf("expected sort on %s, got %#v", seqKey, listOptions().Sort)
	}
}

func TestStore_Contract(t *testing.T) {
	uri := os.Getenv(testURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testURIEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database := fmt.Sprintf("reservations_test_%d", time.Now().UnixNano())
	store, disconnect, err := Connect(ctx, uri, database)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.db.Drop(cleanupCtx)
		_ = disconnect(cleanupCtx)
	})

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	storetest.Run(t, store)
}
