package redisx

import "time"

const (
	// Dedup of consumed events: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Availability view of one resource and date, tagged with the resource
	// version so a single INCR invalidates every cached date:
	// availability:{resource_id}:{version}:{date}
	KeyAvailability = "availability:%s:%d:%s"

	// availability:{resource_id}:v -> integer bumped on every write
	KeyAvailabilityVersion = "availability:%s:v"
)

var (
	TTLDedup               = 48 * time.Hour
	TTLAvailabilityVersion = 7 * 24 * time.Hour
)
