package persistence

import (
	"encoding/json"
	"fmt"
	"math"
)

// Field names of reservation documents. They match the records written by the browser
// calendar so existing collections remain readable.
const (
	FieldDate       = "date"
	FieldTimeStart  = "timeStart"
	FieldTimeEnd    = "timeEnd"
	FieldAttendees  = "attendees"
	FieldOrganizer  = "organizer"
	FieldFacility   = "facility"
	FieldEmployeeID = "employeeID"

	FieldName     = "name"
	FieldColorKey = "colorKey"

	FieldToken = "token"
)

// Reservation is the stored shape of a booking.
type Reservation struct {
	ID         string
	Date       string
	TimeStart  string
	TimeEnd    string
	Attendees  int
	Organizer  string
	FacilityID string
	EmployeeID string
}

// Facility is the stored shape of a bookable room.
type Facility struct {
	ID       string
	Name     string
	ColorKey string
}

// AdminToken is an entry of the admin token directory.
type AdminToken struct {
	ID    string
	Token string
	Name  string
}

// ReservationFields encodes a reservation into document fields.
func ReservationFields(r Reservation) map[string]any {
	return map[string]any{
		FieldDate:       r.Date,
		FieldTimeStart:  r.TimeStart,
		FieldTimeEnd:    r.TimeEnd,
		FieldAttendees:  r.Attendees,
		FieldOrganizer:  r.Organizer,
		FieldFacility:   r.FacilityID,
		FieldEmployeeID: r.EmployeeID,
	}
}

// DecodeReservation decodes a stored document into a reservation record.
func DecodeReservation(doc Document) (Reservation, error) {
	attendees, err := intField(doc.Fields, FieldAttendees)
	if err != nil {
		return Reservation{}, fmt.Errorf("reservation %s: %w", doc.ID, err)
	}
	return Reservation{
		ID:         doc.ID,
		Date:       stringField(doc.Fields, FieldDate),
		TimeStart:  stringField(doc.Fields, FieldTimeStart),
		TimeEnd:    stringField(doc.Fields, FieldTimeEnd),
		Attendees:  attendees,
		Organizer:  stringField(doc.Fields, FieldOrganizer),
		FacilityID: stringField(doc.Fields, FieldFacility),
		EmployeeID: stringField(doc.Fields, FieldEmployeeID),
	}, nil
}

// FacilityFields encodes a facility into document fields.
func FacilityFields(f Facility) map[string]any {
	return map[string]any{
		FieldName:     f.Name,
		FieldColorKey: f.ColorKey,
	}
}

// DecodeFacility decodes a stored document into a facility record.
func DecodeFacility(doc Document) Facility {
	return Facility{
		ID:       doc.ID,
		Name:     stringField(doc.Fields, FieldName),
		ColorKey: stringField(doc.Fields, FieldColorKey),
	}
}

// AdminTokenFields encodes an admin directory entry.
func AdminTokenFields(a AdminToken) map[string]any {
	return map[string]any{
		FieldToken: a.Token,
		FieldName:  a.Name,
	}
}

// DecodeAdminToken decodes an admin directory entry.
func DecodeAdminToken(doc Document) AdminToken {
	return AdminToken{
		ID:    doc.ID,
		Token: stringField(doc.Fields, FieldToken),
		Name:  stringField(doc.Fields, FieldName),
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// intField accepts every numeric representation the store backends produce:
// Go ints from memory, float64 or json.Number from JSON, int32/int64 from BSON.
func intField(fields map[string]any, key string) (int, error) {
	switch v := fields[key].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidDocument, key)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
		}
		return int(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidDocument, key, v)
	}
}
