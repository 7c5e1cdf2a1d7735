package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

const HeaderEventType = "event_type"

// MessageSink is the part of Producer the lifecycle publisher needs.
type MessageSink interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// LifecyclePublisher wraps lifecycle events in an Envelope and hands them to
// the producer keyed by reservation id.
type LifecyclePublisher struct {
	sink     MessageSink
	producer string
}

var _ reservations.EventPublisher = (*LifecyclePublisher)(nil)

func NewLifecyclePublisher(sink MessageSink, producer string) *LifecyclePublisher {
	return &LifecyclePublisher{sink: sink, producer: producer}
}

func (p *LifecyclePublisher) Publish(ctx context.Context, ev reservations.LifecycleEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	env := reservations.Envelope{
		EventID:       uuid.NewString(),
		EventType:     reservations.EventReservationStatusChanged,
		EventVersion:  reservations.EventVersion,
		OccurredAt:    ev.Timestamp,
		Producer:      p.producer,
		CorrelationID: ev.ReservationID,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.sink.Publish(reservations.PartitionKey(ev.ReservationID), b,
		kafka.Header{Key: HeaderEventType, Value: []byte(env.EventType)})
}
