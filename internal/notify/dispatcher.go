package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/LiamFranKi/vanguard-canchasintetica/internal/kafka"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

const SettingCompanyName = "company_name"

// Deduper is implemented by redisx.Deduper.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type SettingsGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Dispatcher consumes lifecycle events and delivers one notification per
// event. Delivery runs outside the booking path, so its failures only delay
// notifications.
type Dispatcher struct {
	notifier       Notifier
	dedup          Deduper
	settings       SettingsGetter
	defaultCompany string
	log            *slog.Logger

	attempts  uint64
	baseDelay time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithDeduper(d Deduper) DispatcherOption {
	return func(x *Dispatcher) { x.dedup = d }
}

func WithSettings(s SettingsGetter, defaultCompany string) DispatcherOption {
	return func(x *Dispatcher) {
		x.settings = s
		x.defaultCompany = defaultCompany
	}
}

// WithRetry sets the delivery attempts and the first backoff interval.
func WithRetry(attempts int, baseDelay time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		if attempts > 0 {
			x.attempts = uint64(attempts)
		}
		if baseDelay > 0 {
			x.baseDelay = baseDelay
		}
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(x *Dispatcher) {
		if l != nil {
			x.log = l
		}
	}
}

func NewDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier:  n,
		log:       slog.Default(),
		attempts:  3,
		baseDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle is a kafka.Handler. Malformed and foreign messages are dropped
// (nil, so the offset moves on); a delivery failure is returned so the
// offset stays uncommitted.
func (d *Dispatcher) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		d.log.Warn("drop malformed lifecycle message", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != reservations.EventReservationStatusChanged {
		return nil
	}
	ev, err := kafkax.UnwrapPayload[reservations.LifecycleEvent](env.Payload)
	if err != nil {
		d.log.Warn("drop lifecycle event with bad payload", "event_id", env.EventID, "error", err)
		return nil
	}

	if d.dedup != nil {
		first, err := d.dedup.Claim(ctx, env.EventID)
		switch {
		case err != nil:
			// at-least-once: deliver rather than lose the notification
			d.log.Warn("dedup unavailable", "event_id", env.EventID, "error", err)
		case !first:
			d.log.Debug("duplicate lifecycle event", "event_id", env.EventID)
			return nil
		}
	}

	msg := d.render(ctx, env, ev)
	if err := d.deliver(ctx, msg); err != nil {
		if d.dedup != nil {
			if rerr := d.dedup.Release(ctx, env.EventID); rerr != nil {
				d.log.Warn("release dedup key", "event_id", env.EventID, "error", rerr)
			}
		}
		return fmt.Errorf("deliver event %s: %w", env.EventID, err)
	}

	d.log.Info("notification delivered",
		"event_id", env.EventID,
		"reservation_id", ev.ReservationID,
		"status", string(ev.NewStatus),
	)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.baseDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, d.attempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := d.notifier.Notify(ctx, msg)
		if err != nil {
			d.log.Warn("notify attempt failed",
				"event_id", msg.EventID,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}, policy)
}

func (d *Dispatcher) render(ctx context.Context, env reservations.Envelope, ev reservations.LifecycleEvent) Message {
	subject := subjectFor(ev.NewStatus)
	if company := d.companyName(ctx); company != "" {
		subject = company + ": " + subject
	}
	return Message{
		EventID:       env.EventID,
		ReservationID: ev.ReservationID,
		Status:        string(ev.NewStatus),
		ResourceID:    ev.ResourceID,
		RequesterID:   ev.RequesterID,
		Date:          ev.Date,
		Start:         ev.Start,
		End:           ev.End,
		Subject:       subject,
		Body: fmt.Sprintf("Your reservation on %s from %s to %s is now %s.",
			ev.Date, ev.Start, ev.End, ev.NewStatus),
		OccurredAt: env.OccurredAt,
	}
}

func (d *Dispatcher) companyName(ctx context.Context) string {
	if d.settings == nil {
		return d.defaultCompany
	}
	v, err := d.settings.Get(ctx, SettingCompanyName)
	if err != nil || v == "" {
		return d.defaultCompany
	}
	return v
}

func subjectFor(s reservations.Status) string {
	switch s {
	case reservations.StatusPending:
		return "reservation received"
	case reservations.StatusConfirmed:
		return "reservation confirmed"
	case reservations.StatusCompleted:
		return "payment received, reservation completed"
	case reservations.StatusCancelled:
		return "reservation cancelled"
	}
	return "reservation updated"
}
