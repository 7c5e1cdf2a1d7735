package reservations

import "testing"

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b Interval
		want bool
	}{
		{slot("08:00", "09:00"), slot("09:00", "10:00"), false},
		{slot("09:00", "10:00"), slot("08:00", "09:00"), false},
		{slot("08:00", "09:00"), slot("08:30", "09:30"), true},
		{slot("08:00", "12:00"), slot("09:00", "10:00"), true},
		{slot("09:00", "10:00"), slot("08:00", "12:00"), true},
		{slot("08:00", "09:00"), slot("08:00", "09:00"), true},
		{slot("08:00", "09:00"), slot("10:00", "11:00"), false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.a, tc.b); got != tc.want {
			t.Fatalf("Overlaps(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := Overlaps(tc.b, tc.a); got != tc.want {
			t.Fatalf("Overlaps not symmetric for %s, %s", tc.a, tc.b)
		}
	}
}

func TestFindConflicts(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		{ID: "r1", Start: MustTimeOfDay("08:00"), End: MustTimeOfDay("09:00"), Status: StatusPending},
		{ID: "r2", Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("10:00"), Status: StatusCancelled},
		{ID: "r3", Start: MustTimeOfDay("10:00"), End: MustTimeOfDay("11:00"), Status: StatusCompleted},
		{ID: "r4", Start: MustTimeOfDay("11:00"), End: MustTimeOfDay("12:00"), Status: StatusConfirmed},
	}

	t.Run("cancelled does not block", func(t *testing.T) {
		if got := FindConflicts(existing, slot("09:00", "10:00"), ""); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %v", got)
		}
	})

	t.Run("completed and confirmed block", func(t *testing.T) {
		got := FindConflicts(existing, slot("10:30", "11:30"), "")
		if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r4" {
			t.Fatalf("expected r3 and r4, got %v", got)
		}
	})

	t.Run("excluded reservation ignored", func(t *testing.T) {
		if got := FindConflicts(existing, slot("08:15", "09:00"), "r1"); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %v", got)
		}
	})

	t.Run("touching boundaries", func(t *testing.T) {
		if got := FindConflicts(existing, slot("12:00", "13:00"), ""); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %v", got)
		}
	})
}
