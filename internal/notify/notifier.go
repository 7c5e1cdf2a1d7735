package notify

import (
	"context"
	"log/slog"
	"time"
)

// Message is what delivery collaborators (push, email) receive.
type Message struct {
	EventID       string    `json:"event_id"`
	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status"`
	ResourceID    string    `json:"resource_id"`
	RequesterID   string    `json:"requester_id"`
	Date          string    `json:"date"`
	Start         string    `json:"start_time"`
	End           string    `json:"end_time"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// JSONPublisher is implemented by mq.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key, messageID string, v any) error
}

// RabbitNotifier forwards messages to the delivery exchange with routing key
// booking.<status>.
type RabbitNotifier struct {
	pub JSONPublisher
}

func NewRabbitNotifier(pub JSONPublisher) *RabbitNotifier {
	return &RabbitNotifier{pub: pub}
}

func (n *RabbitNotifier) Notify(ctx context.Context, msg Message) error {
	return n.pub.PublishJSON(ctx, RoutingKey(msg.Status), msg.EventID, msg)
}

func RoutingKey(status string) string {
	return "booking." + status
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.log.Info("notification",
		"reservation_id", msg.ReservationID,
		"status", msg.Status,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
