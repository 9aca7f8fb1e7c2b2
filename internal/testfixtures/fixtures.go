package testfixtures

import (
	"time"

	"github.com/example/facility-reservations/internal/application"
	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/scheduler"
)

const (
	// AdminToken is registered as an administrator by the harnesses.
	AdminToken = "ADMIN"
	// OwnerToken is the default owner token of reservation fixtures.
	OwnerToken = "T1"
)

// DefaultFacilityNames are seeded by the harnesses. Their ids are RoomA and RoomB.
var DefaultFacilityNames = []string{"Room A", "Room B"}

var referenceTime = time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical "now" used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReservationFixture is a deterministic reservation that can be rendered as service
// input, an application value, or a stored record.
type ReservationFixture struct {
	ID         string
	Date       string
	TimeStart  string
	TimeEnd    string
	FacilityID string
	Attendees  int
	Organizer  string
	Owner      string
}

// ReservationOption configures a ReservationFixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a one-hour booking of RoomA on the day after ReferenceTime.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	f := ReservationFixture{
		Date:       scheduler.DateOf(referenceTime).AddDays(1).String(),
		TimeStart:  "09:00",
		TimeEnd:    "10:00",
		FacilityID: "RoomA",
		Attendees:  2,
		Organizer:  "Alice",
		Owner:      OwnerToken,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

func WithReservationDate(date string) ReservationOption {
	return func(f *ReservationFixture) { f.Date = date }
}

func WithReservationTimes(start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.TimeStart = start
		f.TimeEnd = end
	}
}

func WithReservationFacility(id string) ReservationOption {
	return func(f *ReservationFixture) { f.FacilityID = id }
}

func WithReservationAttendees(n int) ReservationOption {
	return func(f *ReservationFixture) { f.Attendees = n }
}

func WithReservationOrganizer(name string) ReservationOption {
	return func(f *ReservationFixture) { f.Organizer = name }
}

func WithReservationOwner(token string) ReservationOption {
	return func(f *ReservationFixture) { f.Owner = token }
}

// Input returns the service input form.
func (f ReservationFixture) Input() application.ReservationInput {
	return application.ReservationInput{
		Date:          f.Date,
		TimeStart:     f.TimeStart,
		TimeEnd:       f.TimeEnd,
		FacilityID:    f.FacilityID,
		AttendeeCount: f.Attendees,
		OrganizerName: f.Organizer,
	}
}

// CreateParams wraps Input with the owner token.
func (f ReservationFixture) CreateParams() application.CreateReservationParams {
	return application.CreateReservationParams{OwnerToken: f.Owner, Input: f.Input()}
}

// Persistence returns the stored record form.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:         f.ID,
		Date:       f.Date,
		TimeStart:  f.TimeStart,
		TimeEnd:    f.TimeEnd,
		Attendees:  f.Attendees,
		Organizer:  f.Organizer,
		FacilityID: f.FacilityID,
		EmployeeID: f.Owner,
	}
}

// Fields returns the document fields written to a store.
func (f ReservationFixture) Fields() map[string]any {
	return persistence.ReservationFields(f.Persistence())
}
