package persistence

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeReservation_NumericRepresentations(t *testing.T) {
	t.Parallel()

	for _, attendees := range []any{3, int32(3), int64(3), float64(3), json.Number("3")} {
		doc := Document{ID: "r1", Fields: map[string]any{
			FieldDate:       "2025-06-10",
			FieldTimeStart:  "09:00",
			FieldTimeEnd:    "10:00",
			FieldAttendees:  attendees,
			FieldOrganizer:  "Alice",
			FieldFacility:   "F1",
			FieldEmployeeID: "T1",
		}}
		got, err := DecodeReservation(doc)
		if err != nil {
			t.Fatalf("DecodeReservation(%T): %v", attendees, err)
		}
		if got.Attendees != 3 {
			t.Fatalf("DecodeReservation(%T): attendees = %d", attendees, got.Attendees)
		}
		if got.ID != "r1" || got.FacilityID != "F1" || got.EmployeeID != "T1" {
			t.Fatalf("unexpected record %+v", got)
		}
	}
}

func TestDecodeReservation_RejectsBadAttendees(t *testing.T) {
	t.Parallel()

	for _, attendees := range []any{2.5, "three", json.Number("x")} {
		_, err := DecodeReservation(Document{ID: "r1", Fields: map[string]any{FieldAttendees: attendees}})
		if !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("attendees %v: expected ErrInvalidDocument, got %v", attendees, err)
		}
	}
}

func TestReservationFields_RoundTrip(t *testing.T) {
	t.Parallel()

	in := Reservation{ID: "r1", Date: "2025-06-10", TimeStart: "09:00", TimeEnd: "10:00", Attendees: 2, Organizer: "Alice", FacilityID: "F1", EmployeeID: "T1"}
	out, err := DecodeReservation(Document{ID: in.ID, Fields: ReservationFields(in)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}
