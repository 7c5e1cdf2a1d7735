package reservations

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventReservationStatusChanged = "ReservationStatusChanged"
	EventVersion                  = 1
)

// Envelope wraps every event written to the lifecycle topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation id
	Payload       json.RawMessage `json:"payload"`
}

// LifecycleEvent is emitted whenever a reservation changes status, including
// creation (new_status=pending). Manual and automatic cancellations share it.
type LifecycleEvent struct {
	ReservationID string    `json:"reservation_id"`
	NewStatus     Status    `json:"new_status"`
	ResourceID    string    `json:"resource_id"`
	RequesterID   string    `json:"requester_id"`
	Date          string    `json:"date"`
	Start         string    `json:"start_time"`
	End           string    `json:"end_time"`
	Timestamp     time.Time `json:"timestamp"`
}

func newLifecycleEvent(r Reservation, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ReservationID: r.ID,
		NewStatus:     r.Status,
		ResourceID:    r.ResourceID,
		RequesterID:   r.RequesterID,
		Date:          r.Date.Format(DateLayout),
		Start:         r.Start.String(),
		End:           r.End.String(),
		Timestamp:     at,
	}
}

// EventPublisher hands lifecycle events to the notification pipeline. It must
// not block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, LifecycleEvent) error { return nil }

// DateLayout is the ISO-8601 calendar date format used on the wire.
const DateLayout = "2006-01-02"
