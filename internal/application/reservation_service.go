package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/scheduler"
)

// FacilityCatalog exposes facility lookup operations.
type FacilityCatalog interface {
	FacilityExists(ctx context.Context, id string) (bool, error)
}

// ReservationService orchestrates validation, authorization, conflict detection and
// write-through persistence for reservations. It owns the authoritative snapshot.
//
// Authorization is a plain equality check between the caller supplied token and the
// token recorded at creation. It is a convenience for a cooperative environment, not a
// security boundary.
//
// The snapshot lock is never held across store I/O. Two mutations in flight at the same
// time both check against the pre-mutation snapshot, so overlapping creates can both
// succeed; the store is last-write-wins.
type ReservationService struct {
	store       persistence.Store
	facilities  FacilityCatalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	mu           sync.RWMutex
	reservations []Reservation
	// version counts snapshot mutations so Reload can detect writes made while it listed.
	version uint64
}

// reloadAttempts bounds how often Reload re-lists when mutations keep landing mid-list.
const reloadAttempts = 3

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(store persistence.Store, facilities FacilityCatalog, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(store, facilities, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(store persistence.Store, facilities FacilityCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		store:       store,
		facilities:  facilities,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Snapshot returns a point-in-time copy of every reservation in insertion order.
func (s *ReservationService) Snapshot() []Reservation {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reservation, len(s.reservations))
	copy(out, s.reservations)
	return out
}

// Get returns a single reservation from the snapshot.
func (s *ReservationService) Get(id string) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	r, ok := findReservation(s.Snapshot(), id)
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

// Reload replaces the snapshot wholesale with the contents of the store. Documents that
// cannot be decoded into a valid reservation are skipped and logged.
func (s *ReservationService) Reload(ctx context.Context) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("reservation store not configured")
	}

	logger := s.loggerWith(ctx, "Reload")
	var loaded, skipped int
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reload reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservations reloaded", "result_count", loaded, "skipped", skipped)
	}()

	for attempt := 1; attempt <= reloadAttempts; attempt++ {
		s.mu.RLock()
		seen := s.version
		s.mu.RUnlock()

		docs, listErr := s.store.ListAll(ctx, persistence.CollectionReservations)
		if listErr != nil {
			err = storeError("list", persistence.CollectionReservations, listErr)
			return
		}

		next := make([]Reservation, 0, len(docs))
		skipped = 0
		for _, doc := range docs {
			r, decodeErr := decodeReservationDocument(doc)
			if decodeErr != nil {
				skipped++
				logger.WarnContext(ctx, "skipping unreadable reservation", "reservation_id", doc.ID, "error", decodeErr)
				continue
			}
			next = append(next, r)
		}

		s.mu.Lock()
		if s.version == seen {
			s.reservations = next
			s.version++
			s.mu.Unlock()
			loaded = len(next)
			return nil
		}
		s.mu.Unlock()
		logger.DebugContext(ctx, "snapshot changed while listing, retrying", "attempt", attempt)
	}

	// Mutations kept landing; the current snapshot already reflects them.
	loaded = len(s.Snapshot())
	logger.WarnContext(ctx, "reload skipped, snapshot kept changing", "attempts", reloadAttempts)
	return nil
}

// CheckAvailability validates a candidate and returns the reservations it would conflict
// with, without mutating anything. A non-empty excludeID ignores that reservation.
func (s *ReservationService) CheckAvailability(ctx context.Context, input ReservationInput, excludeID string) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}

	date, timeRange, vErr := validateReservationInput(input)
	if vErr.HasErrors() {
		return nil, vErr
	}
	if err := s.ensureFacilityExists(ctx, input.FacilityID); err != nil {
		return nil, err
	}

	candidate := Reservation{ID: excludeID, Date: date, TimeRange: timeRange, FacilityID: strings.TrimSpace(input.FacilityID)}
	return findConflicts(candidate, s.Snapshot(), excludeID), nil
}

// Create validates the request, checks availability and writes the reservation through
// to the store before publishing it in the snapshot.
func (s *ReservationService) Create(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Create",
		"facility_id", params.Input.FacilityID,
		"date", params.Input.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	date, timeRange, vErr := validateReservationInput(params.Input)
	if strings.TrimSpace(params.OwnerToken) == "" {
		vErr.add("employee_id", "employee id is required")
	}
	if !date.IsZero() && date.Before(scheduler.DateOf(s.now())) {
		vErr.add("date", "cannot book dates in the past")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureFacilityExists(ctx, params.Input.FacilityID); err != nil {
		return
	}

	candidate := Reservation{
		Date:          date,
		TimeRange:     timeRange,
		FacilityID:    strings.TrimSpace(params.Input.FacilityID),
		AttendeeCount: params.Input.AttendeeCount,
		OrganizerName: strings.TrimSpace(params.Input.OrganizerName),
		OwnerToken:    params.OwnerToken,
	}

	if conflicts := findConflicts(candidate, s.Snapshot(), ""); len(conflicts) > 0 {
		err = &ConflictError{Conflicts: conflicts}
		return
	}

	candidate.ID = s.idGenerator()
	if setErr := s.store.SetByID(ctx, persistence.CollectionReservations, candidate.ID, persistence.ReservationFields(toPersistenceReservation(candidate))); setErr != nil {
		err = storeError("set", persistence.CollectionReservations, setErr)
		return
	}

	s.replace(func(current []Reservation) []Reservation {
		return append(current, candidate)
	})

	reservation = candidate
	return
}

// Update changes the time range, facility, attendee count and organizer of a reservation.
// The date and owner token are immutable.
func (s *ReservationService) Update(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	existing, ok := findReservation(s.Snapshot(), params.ReservationID)
	if !ok {
		err = ErrNotFound
		return
	}
	if params.Token != existing.OwnerToken {
		err = ErrUnauthorized
		return
	}

	input := params.Input
	vErr := &ValidationError{}
	if raw := strings.TrimSpace(input.Date); raw != "" && raw != existing.Date.String() {
		vErr.add("date", "date cannot be changed")
	}
	input.Date = existing.Date.String()

	_, timeRange, shapeErr := validateReservationInput(input)
	vErr.merge(shapeErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureFacilityExists(ctx, input.FacilityID); err != nil {
		return
	}

	updated := existing
	updated.TimeRange = timeRange
	updated.FacilityID = strings.TrimSpace(input.FacilityID)
	updated.AttendeeCount = input.AttendeeCount
	updated.OrganizerName = strings.TrimSpace(input.OrganizerName)

	if conflicts := findConflicts(updated, s.Snapshot(), updated.ID); len(conflicts) > 0 {
		err = &ConflictError{Conflicts: conflicts}
		return
	}

	record := toPersistenceReservation(updated)
	if updateErr := s.store.UpdateByID(ctx, persistence.CollectionReservations, updated.ID, map[string]any{
		persistence.FieldTimeStart: record.TimeStart,
		persistence.FieldTimeEnd:   record.TimeEnd,
		persistence.FieldAttendees: record.Attendees,
		persistence.FieldOrganizer: record.Organizer,
		persistence.FieldFacility:  record.FacilityID,
	}); updateErr != nil {
		err = mapReservationStoreError("update", updateErr)
		return
	}

	s.replace(func(current []Reservation) []Reservation {
		for i := range current {
			if current[i].ID == updated.ID {
				current[i] = updated
			}
		}
		return current
	})

	reservation = updated
	return
}

// Delete removes a reservation when the supplied token matches the owner token.
func (s *ReservationService) Delete(ctx context.Context, reservationID, token string) error {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("reservation store not configured")
	}

	logger := s.loggerWith(ctx, "Delete",
		"reservation_id", reservationID,
	)

	existing, ok := findReservation(s.Snapshot(), reservationID)
	if !ok {
		logger.ErrorContext(ctx, "failed to delete reservation", "error", ErrNotFound, "error_kind", ErrorKind(ErrNotFound))
		return ErrNotFound
	}
	if token != existing.OwnerToken {
		logger.ErrorContext(ctx, "failed to delete reservation", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.store.DeleteByID(ctx, persistence.CollectionReservations, reservationID); err != nil {
		err = mapReservationStoreError("delete", err)
		logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.replace(func(current []Reservation) []Reservation {
		out := current[:0]
		for _, r := range current {
			if r.ID != reservationID {
				out = append(out, r)
			}
		}
		return out
	})

	logger.InfoContext(ctx, "reservation deleted")
	return nil
}

// replace builds the next snapshot from a private copy of the current one and swaps it in.
func (s *ReservationService) replace(mutate func(current []Reservation) []Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := make([]Reservation, len(s.reservations), len(s.reservations)+1)
	copy(current, s.reservations)
	s.reservations = mutate(current)
	s.version++
}

func (s *ReservationService) ensureFacilityExists(ctx context.Context, facilityID string) error {
	facilityID = strings.TrimSpace(facilityID)
	if facilityID == "" || s.facilities == nil {
		return nil
	}
	exists, err := s.facilities.FacilityExists(ctx, facilityID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("facility", "facility does not exist")
	return vErr
}

// validateReservationInput checks the shape shared by create and update. The past-date
// rule is create-only and applied by the caller.
func validateReservationInput(input ReservationInput) (scheduler.Date, scheduler.TimeRange, *ValidationError) {
	vErr := &ValidationError{}

	var date scheduler.Date
	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", "date is required")
	} else if parsed, err := scheduler.ParseDate(input.Date); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	} else {
		date = parsed
	}

	var timeRange scheduler.TimeRange
	if start, err := scheduler.ParseTimeOfDay(input.TimeStart); err != nil {
		vErr.add("time", "start time must be HH:MM")
	} else if end, err := scheduler.ParseTimeOfDay(input.TimeEnd); err != nil {
		vErr.add("time", "end time must be HH:MM")
	} else if parsed, err := scheduler.NewTimeRange(start, end); err != nil {
		vErr.add("time", "end time must be after start time")
	} else {
		timeRange = parsed
	}

	if input.AttendeeCount < 1 {
		vErr.add("attendees", "attendees must be at least 1")
	}
	if strings.TrimSpace(input.OrganizerName) == "" {
		vErr.add("organizer", "organizer is required")
	}
	if strings.TrimSpace(input.FacilityID) == "" {
		vErr.add("facility", "facility is required")
	}

	return date, timeRange, vErr
}

func findConflicts(candidate Reservation, snapshot []Reservation, excludeID string) []Reservation {
	existing := make([]scheduler.Booking, len(snapshot))
	byID := make(map[string]Reservation, len(snapshot))
	for i, r := range snapshot {
		existing[i] = r.booking()
		byID[r.ID] = r
	}

	hits := scheduler.FindConflicts(candidate.booking(), existing, excludeID)
	if len(hits) == 0 {
		return nil
	}
	conflicts := make([]Reservation, 0, len(hits))
	for _, hit := range hits {
		conflicts = append(conflicts, byID[hit.ID])
	}
	return conflicts
}

func findReservation(snapshot []Reservation, id string) (Reservation, bool) {
	if id == "" {
		return Reservation{}, false
	}
	for _, r := range snapshot {
		if r.ID == id {
			return r, true
		}
	}
	return Reservation{}, false
}

func toPersistenceReservation(r Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:         r.ID,
		Date:       r.Date.String(),
		TimeStart:  r.TimeRange.Start.String(),
		TimeEnd:    r.TimeRange.End.String(),
		Attendees:  r.AttendeeCount,
		Organizer:  r.OrganizerName,
		FacilityID: r.FacilityID,
		EmployeeID: r.OwnerToken,
	}
}

func decodeReservationDocument(doc persistence.Document) (Reservation, error) {
	record, err := persistence.DecodeReservation(doc)
	if err != nil {
		return Reservation{}, err
	}
	date, err := scheduler.ParseDate(record.Date)
	if err != nil {
		return Reservation{}, err
	}
	timeRange, err := scheduler.ParseTimeRange(record.TimeStart, record.TimeEnd)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ID:            record.ID,
		Date:          date,
		TimeRange:     timeRange,
		FacilityID:    record.FacilityID,
		AttendeeCount: record.Attendees,
		OrganizerName: record.Organizer,
		OwnerToken:    record.EmployeeID,
	}, nil
}

func mapReservationStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return storeError(op, persistence.CollectionReservations, err)
}
