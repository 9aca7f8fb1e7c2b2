// Package ics renders reservations as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/facility-reservations/internal/application"
)

// ProductID identifies the feed producer.
const ProductID = "-//facility-reservations//EN"

// Encode writes one VEVENT per reservation. Start and end are expressed in loc; stamp
// is written as DTSTAMP on every event.
func Encode(w io.Writer, reservations []application.Reservation, facilities []application.Facility, loc *time.Location, stamp time.Time) error {
	cal := Calendar(reservations, facilities, loc, stamp)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode reservations to iCal format: %w", err)
	}
	return nil
}

// Calendar builds the calendar without encoding it.
func Calendar(reservations []application.Reservation, facilities []application.Facility, loc *time.Location, stamp time.Time) *ical.Calendar {
	if loc == nil {
		loc = time.Local
	}
	names := make(map[string]string, len(facilities))
	for _, f := range facilities {
		names[f.ID] = f.DisplayName
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	for _, r := range reservations {
		cal.Children = append(cal.Children, toEvent(r, names, loc, stamp))
	}
	return cal
}

func toEvent(r application.Reservation, names map[string]string, loc *time.Location, stamp time.Time) *ical.Component {
	facility, ok := names[r.FacilityID]
	if !ok {
		facility = r.FacilityID
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, r.ID)
	ve.Props.SetText(ical.PropSummary, fmt.Sprintf("%s: %s", facility, r.OrganizerName))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, r.Date.At(r.TimeRange.Start, loc))
	ve.Props.SetDateTime(ical.PropDateTimeEnd, r.Date.At(r.TimeRange.End, loc))
	ve.Props.SetText(ical.PropLocation, facility)
	ve.Props.SetText(ical.PropDescription, "Attendees: "+strconv.Itoa(r.AttendeeCount))
	return ve
}
