package application

import (
	"github.com/example/facility-reservations/internal/scheduler"
)

// FacilityAll is the facility filter value that matches every facility.
const FacilityAll = "all"

// ReservationInput captures caller provided reservation fields in their wire form.
type ReservationInput struct {
	Date          string
	TimeStart     string
	TimeEnd       string
	FacilityID    string
	AttendeeCount int
	OrganizerName string
}

// Reservation is a booking of one facility for one time range on one date.
// OwnerToken is set at creation and never changes afterwards.
type Reservation struct {
	ID            string
	Date          scheduler.Date
	TimeRange     scheduler.TimeRange
	FacilityID    string
	AttendeeCount int
	OrganizerName string
	OwnerToken    string
}

func (r Reservation) booking() scheduler.Booking {
	return scheduler.Booking{
		ID:         r.ID,
		Date:       r.Date,
		FacilityID: r.FacilityID,
		Range:      r.TimeRange,
	}
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	OwnerToken string
	Input      ReservationInput
}

// UpdateReservationParams wraps the data required to update a reservation.
type UpdateReservationParams struct {
	ReservationID string
	Token         string
	Input         ReservationInput
}

// Facility is a bookable room or space.
type Facility struct {
	ID          string
	DisplayName string
	ColorKey    string
}

// DayCell is one square of the month grid.
type DayCell struct {
	Date    scheduler.Date
	InMonth bool
}

// UpcomingPage is a truncated, start-ordered list of reservations that have not ended yet.
// Remaining counts the matching reservations cut off by the limit.
type UpcomingPage struct {
	Reservations []Reservation
	Remaining    int
}
