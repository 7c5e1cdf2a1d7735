package reservations

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// FindConflicts returns the reservations in existing that block candidate.
// The reservation with id excludeID (the one being edited) is ignored.
func FindConflicts(existing []Reservation, candidate Interval, excludeID string) []Reservation {
	var out []Reservation
	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if !r.Occupies() {
			continue
		}
		if Overlaps(r.Interval(), candidate) {
			out = append(out, r)
		}
	}
	return out
}
