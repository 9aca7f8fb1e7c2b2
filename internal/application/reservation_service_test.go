package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/memory"
)

type facilityCatalogStub struct {
	known map[string]bool
	err   error
}

func (f *facilityCatalogStub) FacilityExists(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

// failingStore wraps a memory store and injects errors per operation.
type failingStore struct {
	*memory.Store
	listErr   error
	setErr    error
	updateErr error
	deleteErr error
}

func (f *failingStore) ListAll(ctx context.Context, collection string) ([]persistence.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListAll(ctx, collection)
}

func (f *failingStore) SetByID(ctx context.Context, collection, id string, fields map[string]any) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.SetByID(ctx, collection, id, fields)
}

func (f *failingStore) UpdateByID(ctx context.Context, collection, id string, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Store.UpdateByID(ctx, collection, id, fields)
}

func (f *failingStore) DeleteByID(ctx context.Context, collection, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteByID(ctx, collection, id)
}

// barrierStore holds every SetByID call until the expected number of callers arrived.
type barrierStore struct {
	*memory.Store
	arrived sync.WaitGroup
}

func (b *barrierStore) SetByID(ctx context.Context, collection, id string, fields map[string]any) error {
	b.arrived.Done()
	b.arrived.Wait()
	return b.Store.SetByID(ctx, collection, id, fields)
}

// interleavingStore runs afterList once, after ListAll has read the collection.
type interleavingStore struct {
	*memory.Store
	afterList func()
	lists     int
}

func (s *interleavingStore) ListAll(ctx context.Context, collection string) ([]persistence.Document, error) {
	docs, err := s.Store.ListAll(ctx, collection)
	s.lists++
	if s.afterList != nil {
		hook := s.afterList
		s.afterList = nil
		hook()
	}
	return docs, err
}

func sequenceIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
}

func newTestReservationService(store persistence.Store) *ReservationService {
	catalog := &facilityCatalogStub{known: map[string]bool{"F1": true, "F2": true}}
	return NewReservationService(store, catalog, sequenceIDs("res"), fixedNow)
}

func bookingInput(date, start, end, facility string) ReservationInput {
	return ReservationInput{
		Date:          date,
		TimeStart:     start,
		TimeEnd:       end,
		FacilityID:    facility,
		AttendeeCount: 2,
		OrganizerName: "Alice",
	}
}

func TestReservationService_Create(t *testing.T) {
	t.Run("validates required attributes", func(t *testing.T) {
		svc := newTestReservationService(memory.New())

		_, err := svc.Create(context.Background(), CreateReservationParams{
			Input: ReservationInput{Date: "2025/06/10", TimeStart: "10:00", TimeEnd: "09:00"},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"date", "time", "attendees", "organizer", "facility"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
		if len(svc.Snapshot()) != 0 {
			t.Fatalf("expected snapshot to stay empty")
		}
	})

	t.Run("rejects dates before today", func(t *testing.T) {
		svc := newTestReservationService(memory.New())

		_, err := svc.Create(context.Background(), CreateReservationParams{
			OwnerToken: "T1",
			Input:      bookingInput("2025-05-31", "09:00", "10:00", "F1"),
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["date"] == "" {
			t.Fatalf("expected past date validation error, got %v", err)
		}
	})

	t.Run("accepts today even when the start time has passed", func(t *testing.T) {
		svc := newTestReservationService(memory.New())

		if _, err := svc.Create(context.Background(), CreateReservationParams{
			OwnerToken: "T1",
			Input:      bookingInput("2025-06-01", "07:00", "07:30", "F1"),
		}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})

	t.Run("requires an owner token", func(t *testing.T) {
		store := memory.New()
		svc := newTestReservationService(store)

		for _, token := range []string{"", "   "} {
			_, err := svc.Create(context.Background(), CreateReservationParams{
				OwnerToken: token,
				Input:      bookingInput("2025-06-10", "09:00", "10:00", "F1"),
			})

			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors["employee_id"] == "" {
				t.Fatalf("token %q: expected employee_id validation error, got %v", token, err)
			}
		}
		if len(svc.Snapshot()) != 0 {
			t.Fatalf("expected snapshot to stay empty")
		}
		if docs, _ := store.ListAll(context.Background(), persistence.CollectionReservations); len(docs) != 0 {
			t.Fatalf("expected nothing to be written, got %d documents", len(docs))
		}
		if err := svc.Delete(context.Background(), "res-1", ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected anonymous delete to find nothing, got %v", err)
		}
	})

	t.Run("rejects unknown facilities", func(t *testing.T) {
		svc := newTestReservationService(memory.New())

		_, err := svc.Create(context.Background(), CreateReservationParams{
			OwnerToken: "T1",
			Input:      bookingInput("2025-06-10", "09:00", "10:00", "F9"),
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["facility"] == "" {
			t.Fatalf("expected facility validation error, got %v", err)
		}
	})

	t.Run("writes through and publishes the reservation", func(t *testing.T) {
		store := memory.New()
		svc := newTestReservationService(store)

		created, err := svc.Create(context.Background(), CreateReservationParams{
			OwnerToken: "T1",
			Input:      bookingInput("2025-06-10", "09:00", "10:00", " F1 "),
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if created.ID != "res-1" || created.FacilityID != "F1" || created.OwnerToken != "T1" {
			t.Fatalf("unexpected reservation %+v", created)
		}

		doc, err := store.GetByID(context.Background(), persistence.CollectionReservations, "res-1")
		if err != nil {
			t.Fatalf("expected stored document, got %v", err)
		}
		if doc.Fields[persistence.FieldEmployeeID] != "T1" || doc.Fields[persistence.FieldTimeStart] != "09:00" {
			t.Fatalf("unexpected stored fields %v", doc.Fields)
		}

		snapshot := svc.Snapshot()
		if len(snapshot) != 1 || snapshot[0].ID != "res-1" {
			t.Fatalf("expected snapshot to contain created reservation, got %+v", snapshot)
		}
	})

	t.Run("reports every conflicting reservation", func(t *testing.T) {
		svc := newTestReservationService(memory.New())
		ctx := context.Background()
		for _, slot := range [][2]string{{"09:00", "10:00"}, {"11:00", "12:00"}} {
			if _, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", slot[0], slot[1], "F1")}); err != nil {
				t.Fatalf("seed create: %v", err)
			}
		}

		_, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:30", "11:30", "F1")})

		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ConflictError to match ErrConflict")
		}
		if len(cErr.Conflicts) != 2 || cErr.Conflicts[0].ID != "res-1" || cErr.Conflicts[1].ID != "res-2" {
			t.Fatalf("unexpected conflicts %+v", cErr.Conflicts)
		}
		if len(svc.Snapshot()) != 2 {
			t.Fatalf("expected snapshot to be unchanged")
		}
	})

	t.Run("store failure leaves the snapshot unchanged", func(t *testing.T) {
		store := &failingStore{Store: memory.New(), setErr: errors.New("disk full")}
		svc := newTestReservationService(store)

		_, err := svc.Create(context.Background(), CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})

		var sErr *StoreError
		if !errors.As(err, &sErr) || !errors.Is(err, ErrStore) {
			t.Fatalf("expected StoreError, got %v", err)
		}
		if len(svc.Snapshot()) != 0 {
			t.Fatalf("expected snapshot to stay empty after store failure")
		}
	})

	t.Run("facility lookup failure aborts", func(t *testing.T) {
		catalog := &facilityCatalogStub{err: errors.New("catalog down")}
		svc := NewReservationService(memory.New(), catalog, sequenceIDs("res"), fixedNow)

		if _, err := svc.Create(context.Background(), CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")}); err == nil {
			t.Fatalf("expected facility lookup error")
		}
	})
}

func TestReservationService_ConcurrentCreatesBothSucceed(t *testing.T) {
	store := &barrierStore{Store: memory.New()}
	store.arrived.Add(2)
	svc := newTestReservationService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), CreateReservationParams{
				OwnerToken: fmt.Sprintf("T%d", i),
				Input:      bookingInput("2025-06-10", "09:00", "10:00", "F1"),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: expected success on stale snapshot, got %v", i, err)
		}
	}
	if got := len(svc.Snapshot()); got != 2 {
		t.Fatalf("expected both overlapping reservations in snapshot, got %d", got)
	}
}

func TestReservationService_Update(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T, store persistence.Store) (*ReservationService, Reservation) {
		t.Helper()
		svc := newTestReservationService(store)
		created, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})
		if err != nil {
			t.Fatalf("seed create: %v", err)
		}
		return svc, created
	}

	t.Run("unknown reservation is not found", func(t *testing.T) {
		svc, _ := seed(t, memory.New())
		_, err := svc.Update(ctx, UpdateReservationParams{ReservationID: "missing", Token: "T1", Input: bookingInput("", "10:00", "11:00", "F1")})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("token mismatch is unauthorized and changes nothing", func(t *testing.T) {
		store := memory.New()
		svc, created := seed(t, store)
		before := svc.Snapshot()

		_, err := svc.Update(ctx, UpdateReservationParams{ReservationID: created.ID, Token: "T2", Input: bookingInput("", "10:00", "11:00", "F1")})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		after := svc.Snapshot()
		if len(after) != 1 || after[0] != before[0] {
			t.Fatalf("expected snapshot to be unchanged, got %+v", after)
		}
		doc, _ := store.GetByID(ctx, persistence.CollectionReservations, created.ID)
		if doc.Fields[persistence.FieldTimeStart] != "09:00" {
			t.Fatalf("expected stored document to be unchanged, got %v", doc.Fields)
		}
	})

	t.Run("date cannot be changed", func(t *testing.T) {
		svc, created := seed(t, memory.New())
		_, err := svc.Update(ctx, UpdateReservationParams{ReservationID: created.ID, Token: "T1", Input: bookingInput("2025-06-11", "10:00", "11:00", "F1")})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["date"] == "" {
			t.Fatalf("expected date validation error, got %v", err)
		}
	})

	t.Run("does not conflict with itself", func(t *testing.T) {
		store := memory.New()
		svc, created := seed(t, store)

		updated, err := svc.Update(ctx, UpdateReservationParams{ReservationID: created.ID, Token: "T1", Input: bookingInput("2025-06-10", "09:30", "10:30", "F1")})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if updated.TimeRange.String() != "09:30-10:30" || updated.OwnerToken != "T1" || updated.Date != created.Date {
			t.Fatalf("unexpected updated reservation %+v", updated)
		}
		doc, _ := store.GetByID(ctx, persistence.CollectionReservations, created.ID)
		if doc.Fields[persistence.FieldTimeStart] != "09:30" || doc.Fields[persistence.FieldEmployeeID] != "T1" {
			t.Fatalf("unexpected stored fields %v", doc.Fields)
		}
	})

	t.Run("conflicts with other reservations", func(t *testing.T) {
		svc, created := seed(t, memory.New())
		other, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T2", Input: bookingInput("2025-06-10", "11:00", "12:00", "F1")})
		if err != nil {
			t.Fatalf("seed other: %v", err)
		}

		_, err = svc.Update(ctx, UpdateReservationParams{ReservationID: created.ID, Token: "T1", Input: bookingInput("", "10:30", "11:30", "F1")})
		var cErr *ConflictError
		if !errors.As(err, &cErr) || len(cErr.Conflicts) != 1 || cErr.Conflicts[0].ID != other.ID {
			t.Fatalf("expected conflict with %s, got %v", other.ID, err)
		}
	})

	t.Run("document removed underneath maps to not found", func(t *testing.T) {
		store := memory.New()
		svc, created := seed(t, store)
		if err := store.DeleteByID(ctx, persistence.CollectionReservations, created.ID); err != nil {
			t.Fatalf("delete underneath: %v", err)
		}

		_, err := svc.Update(ctx, UpdateReservationParams{ReservationID: created.ID, Token: "T1", Input: bookingInput("", "10:00", "11:00", "F1")})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := svc.Snapshot()[0].TimeRange.String(); got != "09:00-10:00" {
			t.Fatalf("expected snapshot to be unchanged, got %s", got)
		}
	})
}

func TestReservationService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("token mismatch is unauthorized", func(t *testing.T) {
		svc := newTestReservationService(memory.New())
		created, _ := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})

		if err := svc.Delete(ctx, created.ID, "T2"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if err := svc.Delete(ctx, created.ID, ""); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected empty token to be unauthorized, got %v", err)
		}
		if len(svc.Snapshot()) != 1 {
			t.Fatalf("expected reservation to remain")
		}
	})

	t.Run("unknown reservation is not found", func(t *testing.T) {
		svc := newTestReservationService(memory.New())
		if err := svc.Delete(ctx, "missing", "T1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("store failure keeps the reservation", func(t *testing.T) {
		store := &failingStore{Store: memory.New()}
		svc := newTestReservationService(store)
		created, _ := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})
		store.deleteErr = errors.New("connection reset")

		if err := svc.Delete(ctx, created.ID, "T1"); !errors.Is(err, ErrStore) {
			t.Fatalf("expected ErrStore, got %v", err)
		}
		if len(svc.Snapshot()) != 1 {
			t.Fatalf("expected reservation to remain after store failure")
		}
	})

	t.Run("owner can delete", func(t *testing.T) {
		store := memory.New()
		svc := newTestReservationService(store)
		created, _ := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})

		if err := svc.Delete(ctx, created.ID, "T1"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(svc.Snapshot()) != 0 {
			t.Fatalf("expected snapshot to be empty")
		}
		if _, err := store.GetByID(ctx, persistence.CollectionReservations, created.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected stored document to be removed, got %v", err)
		}
	})
}

func TestReservationService_Reload(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the snapshot and skips unreadable documents", func(t *testing.T) {
		store := memory.New()
		_ = store.SetByID(ctx, persistence.CollectionReservations, "good", persistence.ReservationFields(persistence.Reservation{
			Date: "2025-06-10", TimeStart: "09:00", TimeEnd: "10:00", Attendees: 3, Organizer: "Bob", FacilityID: "F1", EmployeeID: "T9",
		}))
		_ = store.SetByID(ctx, persistence.CollectionReservations, "bad-time", map[string]any{
			persistence.FieldDate: "2025-06-10", persistence.FieldTimeStart: "11:00", persistence.FieldTimeEnd: "10:00",
		})
		_ = store.SetByID(ctx, persistence.CollectionReservations, "bad-attendees", map[string]any{
			persistence.FieldDate: "2025-06-10", persistence.FieldTimeStart: "11:00", persistence.FieldTimeEnd: "12:00", persistence.FieldAttendees: "many",
		})

		svc := newTestReservationService(store)
		if err := svc.Reload(ctx); err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		snapshot := svc.Snapshot()
		if len(snapshot) != 1 || snapshot[0].ID != "good" || snapshot[0].OwnerToken != "T9" || snapshot[0].AttendeeCount != 3 {
			t.Fatalf("unexpected snapshot %+v", snapshot)
		}
		got, err := svc.Get("good")
		if err != nil || got.OrganizerName != "Bob" {
			t.Fatalf("expected Get to return reloaded reservation, got %+v %v", got, err)
		}
	})

	t.Run("keeps reservations created while listing", func(t *testing.T) {
		store := &interleavingStore{Store: memory.New()}
		svc := newTestReservationService(store)
		var created Reservation
		store.afterList = func() {
			var err error
			created, err = svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})
			if err != nil {
				t.Errorf("create during reload: %v", err)
			}
		}

		if err := svc.Reload(ctx); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if store.lists != 2 {
			t.Fatalf("expected reload to list again after the concurrent create, listed %d times", store.lists)
		}
		if snapshot := svc.Snapshot(); len(snapshot) != 1 || snapshot[0].ID != created.ID {
			t.Fatalf("expected the concurrent create to survive reload, got %+v", snapshot)
		}
	})

	t.Run("list failure keeps the previous snapshot", func(t *testing.T) {
		store := &failingStore{Store: memory.New()}
		svc := newTestReservationService(store)
		if _, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")}); err != nil {
			t.Fatalf("seed create: %v", err)
		}
		store.listErr = errors.New("timeout")

		if err := svc.Reload(ctx); !errors.Is(err, ErrStore) {
			t.Fatalf("expected ErrStore, got %v", err)
		}
		if len(svc.Snapshot()) != 1 {
			t.Fatalf("expected previous snapshot to survive")
		}
	})
}

func TestReservationService_CheckAvailability(t *testing.T) {
	ctx := context.Background()
	svc := newTestReservationService(memory.New())
	created, err := svc.Create(ctx, CreateReservationParams{OwnerToken: "T1", Input: bookingInput("2025-06-10", "09:00", "10:00", "F1")})
	if err != nil {
		t.Fatalf("seed create: %v", err)
	}

	conflicts, err := svc.CheckAvailability(ctx, bookingInput("2025-06-10", "09:59", "10:30", "F1"), "")
	if err != nil || len(conflicts) != 1 || conflicts[0].ID != created.ID {
		t.Fatalf("expected one conflict, got %+v %v", conflicts, err)
	}

	conflicts, err = svc.CheckAvailability(ctx, bookingInput("2025-06-10", "10:00", "10:30", "F1"), "")
	if err != nil || len(conflicts) != 0 {
		t.Fatalf("expected touching slot to be free, got %+v %v", conflicts, err)
	}

	conflicts, err = svc.CheckAvailability(ctx, bookingInput("2025-06-10", "09:00", "10:00", "F1"), created.ID)
	if err != nil || len(conflicts) != 0 {
		t.Fatalf("expected excluded reservation to be ignored, got %+v %v", conflicts, err)
	}

	if _, err := svc.CheckAvailability(ctx, bookingInput("2025-06-10", "10:00", "09:00", "F1"), ""); err == nil {
		t.Fatalf("expected validation error for inverted range")
	}
	if len(svc.Snapshot()) != 1 {
		t.Fatalf("expected CheckAvailability not to mutate")
	}
}
