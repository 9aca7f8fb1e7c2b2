package scheduler

// Booking is the slice of a reservation the availability engine needs.
type Booking struct {
	ID         string
	Date       Date
	FacilityID string
	Range      TimeRange
}

// FindConflicts returns every existing booking on the candidate's date and facility whose
// range overlaps the candidate's. A non-empty excludeID skips the booking with that id so
// a reservation being edited is never compared against itself. Results keep the order of existing.
func FindConflicts(candidate Booking, existing []Booking, excludeID string) []Booking {
	var conflicts []Booking
	for _, booking := range existing {
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if booking.Date != candidate.Date || booking.FacilityID != candidate.FacilityID {
			continue
		}
		if booking.Range.Overlaps(candidate.Range) {
			conflicts = append(conflicts, booking)
		}
	}
	return conflicts
}

// IsAvailable reports whether FindConflicts yields nothing for the candidate.
func IsAvailable(candidate Booking, existing []Booking, excludeID string) bool {
	return len(FindConflicts(candidate, existing, excludeID)) == 0
}
