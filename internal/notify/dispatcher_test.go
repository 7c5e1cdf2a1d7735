package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/logger"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/settings"
)

type recordingNotifier struct {
	mu    sync.Mutex
	msgs  []Message
	fails int
}

func (n *recordingNotifier) Notify(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails > 0 {
		n.fails--
		return errors.New("smtp unavailable")
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

type memDeduper struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: map[string]bool{}} }

func (d *memDeduper) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	d.released = append(d.released, id)
	return nil
}

func lifecycleMessage(t *testing.T, eventID string, status reservations.Status) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(reservations.LifecycleEvent{
		ReservationID: "res-1",
		NewStatus:     status,
		ResourceID:    "court-1",
		RequesterID:   "user-1",
		Date:          "2025-03-12",
		Start:         "18:00",
		End:           "19:00",
		Timestamp:     time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	b, err := json.Marshal(reservations.Envelope{
		EventID:      eventID,
		EventType:    reservations.EventReservationStatusChanged,
		EventVersion: reservations.EventVersion,
		OccurredAt:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Producer:     "booking-api",
		Payload:      payload,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return kafkago.Message{Key: []byte("res-1"), Value: b}
}

func newTestDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	base := []DispatcherOption{
		WithRetry(3, time.Millisecond),
		WithDispatcherLogger(logger.Discard()),
	}
	return NewDispatcher(n, append(base, opts...)...)
}

func TestDispatcher_Handle(t *testing.T) {
	t.Parallel()

	t.Run("delivers once per event id", func(t *testing.T) {
		n := &recordingNotifier{}
		dedup := newMemDeduper()
		d := newTestDispatcher(n,
			WithDeduper(dedup),
			WithSettings(settings.Static{SettingCompanyName: "Vanguard"}, "Canchas"),
		)

		m := lifecycleMessage(t, "ev-1", reservations.StatusCancelled)
		for i := 0; i < 3; i++ {
			if err := d.Handle(context.Background(), m); err != nil {
				t.Fatalf("handle %d: %v", i, err)
			}
		}
		if len(n.msgs) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(n.msgs))
		}
		got := n.msgs[0]
		if got.Subject != "Vanguard: reservation cancelled" {
			t.Fatalf("unexpected subject %q", got.Subject)
		}
		if got.ReservationID != "res-1" || got.Status != "cancelled" || got.EventID != "ev-1" {
			t.Fatalf("unexpected message %+v", got)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		n := &recordingNotifier{fails: 2}
		d := newTestDispatcher(n)

		if err := d.Handle(context.Background(), lifecycleMessage(t, "ev-2", reservations.StatusPending)); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if len(n.msgs) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(n.msgs))
		}
		if n.msgs[0].Subject != "reservation received" {
			t.Fatalf("unexpected subject %q", n.msgs[0].Subject)
		}
	})

	t.Run("exhausted retries release dedup key", func(t *testing.T) {
		n := &recordingNotifier{fails: 10}
		dedup := newMemDeduper()
		d := newTestDispatcher(n, WithDeduper(dedup))

		err := d.Handle(context.Background(), lifecycleMessage(t, "ev-3", reservations.StatusCompleted))
		if err == nil {
			t.Fatalf("expected delivery error")
		}
		if n.fails != 7 {
			t.Fatalf("expected 3 attempts, %d failures left", n.fails)
		}
		if len(dedup.released) != 1 || dedup.released[0] != "ev-3" {
			t.Fatalf("expected ev-3 released, got %v", dedup.released)
		}
	})

	t.Run("dedup outage still delivers", func(t *testing.T) {
		n := &recordingNotifier{}
		dedup := newMemDeduper()
		dedup.err = errors.New("redis down")
		d := newTestDispatcher(n, WithDeduper(dedup))

		if err := d.Handle(context.Background(), lifecycleMessage(t, "ev-4", reservations.StatusConfirmed)); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if len(n.msgs) != 1 {
			t.Fatalf("expected delivery, got %d", len(n.msgs))
		}
	})

	t.Run("malformed and foreign messages dropped", func(t *testing.T) {
		n := &recordingNotifier{}
		d := newTestDispatcher(n)

		if err := d.Handle(context.Background(), kafkago.Message{Value: []byte("{not json")}); err != nil {
			t.Fatalf("malformed: %v", err)
		}
		foreign, _ := json.Marshal(reservations.Envelope{EventID: "x", EventType: "PaymentCaptured"})
		if err := d.Handle(context.Background(), kafkago.Message{Value: foreign}); err != nil {
			t.Fatalf("foreign: %v", err)
		}
		if len(n.msgs) != 0 {
			t.Fatalf("expected nothing delivered, got %d", len(n.msgs))
		}
	})
}

type capturePublisher struct {
	key, id string
	v       any
}

func (p *capturePublisher) PublishJSON(_ context.Context, key, messageID string, v any) error {
	p.key, p.id, p.v = key, messageID, v
	return nil
}

func TestRabbitNotifier_RoutingKey(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	n := NewRabbitNotifier(pub)
	msg := Message{EventID: "ev-9", Status: "completed"}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pub.key != "booking.completed" || pub.id != "ev-9" {
		t.Fatalf("unexpected publish key=%q id=%q", pub.key, pub.id)
	}
	if got, ok := pub.v.(Message); !ok || got.EventID != "ev-9" {
		t.Fatalf("unexpected payload %#v", pub.v)
	}
}
