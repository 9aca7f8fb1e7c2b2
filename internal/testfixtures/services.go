package testfixtures

import (
	"context"
	"log/slog"
	"testing"

	"github.com/example/facility-reservations/internal/application"
	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/memory"
)

// Harness wires the application services over one store with a deterministic clock and
// id sequence. The admin token AdminToken and DefaultFacilityNames are registered.
type Harness struct {
	Store        persistence.Store
	Clock        *Clock
	IDs          *IDGenerator
	Admins       *application.StoreAdminDirectory
	Facilities   *application.FacilityRegistry
	Reservations *application.ReservationService
	Calendar     *application.CalendarIndex
}

// HarnessOption configures a Harness before it is wired.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	clock      *Clock
	ids        *IDGenerator
	facilities []string
	logger     *slog.Logger
}

// WithClock overrides the harness clock.
func WithClock(clock *Clock) HarnessOption {
	return func(c *harnessConfig) { c.clock = clock }
}

// WithIDGenerator overrides the reservation id sequence.
func WithIDGenerator(generator *IDGenerator) HarnessOption {
	return func(c *harnessConfig) { c.ids = generator }
}

// WithFacilities replaces DefaultFacilityNames.
func WithFacilities(names ...string) HarnessOption {
	return func(c *harnessConfig) { c.facilities = names }
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(c *harnessConfig) { c.logger = logger }
}

// NewMemoryHarness wires the services over a fresh in-memory store.
func NewMemoryHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()
	return NewHarness(tb, memory.New(), opts...)
}

// NewHarness wires the services over store and seeds it.
func NewHarness(tb testing.TB, store persistence.Store, opts ...HarnessOption) *Harness {
	tb.Helper()

	cfg := harnessConfig{facilities: DefaultFacilityNames}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock(ReferenceTime())
	}
	if cfg.ids == nil {
		cfg.ids = NewIDGenerator("res")
	}

	ctx := context.Background()
	admins := application.NewStoreAdminDirectory(store, cfg.logger)
	registered, err := admins.IsAdmin(ctx, AdminToken)
	if err != nil {
		tb.Fatalf("failed to look up admin token: %v", err)
	}
	if !registered {
		if _, err := admins.AddToken(ctx, AdminToken, "Test Admin"); err != nil {
			tb.Fatalf("failed to register admin token: %v", err)
		}
	}

	facilities := application.NewFacilityRegistryWithLogger(store, admins, cfg.logger)
	if err := facilities.Reload(ctx); err != nil {
		tb.Fatalf("failed to load facilities: %v", err)
	}
	if _, err := facilities.Seed(ctx, cfg.facilities); err != nil {
		tb.Fatalf("failed to seed facilities: %v", err)
	}

	reservations := application.NewReservationServiceWithLogger(store, facilities, cfg.ids.NextFunc(), cfg.clock.NowFunc(), cfg.logger)
	if err := reservations.Reload(ctx); err != nil {
		tb.Fatalf("failed to load reservations: %v", err)
	}

	return &Harness{
		Store:        store,
		Clock:        cfg.clock,
		IDs:          cfg.ids,
		Admins:       admins,
		Facilities:   facilities,
		Reservations: reservations,
		Calendar:     application.NewCalendarIndex(reservations),
	}
}

// Book creates the fixture through the reservation service and fails the test on error.
func (h *Harness) Book(tb testing.TB, fixture ReservationFixture) application.Reservation {
	tb.Helper()
	reservation, err := h.Reservations.Create(context.Background(), fixture.CreateParams())
	if err != nil {
		tb.Fatalf("failed to book %+v: %v", fixture, err)
	}
	return reservation
}
