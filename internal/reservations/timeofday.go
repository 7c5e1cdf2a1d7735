package reservations

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
// 24:00 is accepted as the end of the day.
type TimeOfDay int

const endOfDay TimeOfDay = 24 * 60

// ParseTimeOfDay accepts "HH:mm" and "HH:mm:ss" (seconds must be zero).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("seconds not supported in %q", s)
		}
	}
	t := TimeOfDay(h*60 + m)
	if h < 0 || t > endOfDay {
		return 0, fmt.Errorf("time of day out of range %q", s)
	}
	return t, nil
}

// MustTimeOfDay is ParseTimeOfDay for constants and tests.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Interval is the half-open slot [Start, End).
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// OperatingHours is the window [Open, Close] in which slots may lie.
type OperatingHours struct {
	Open  TimeOfDay
	Close TimeOfDay
}

func (h OperatingHours) Contains(i Interval) bool {
	return i.Start >= h.Open && i.End <= h.Close
}
