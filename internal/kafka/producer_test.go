package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestDrain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		waiting  int
		closed   bool
		limit    int
		expected int
	}{
		{name: "nothing waiting", waiting: 0, limit: 10, expected: 1},
		{name: "takes what is buffered", waiting: 4, limit: 10, expected: 5},
		{name: "stops at limit", waiting: 20, limit: 10, expected: 10},
		{name: "closed inbox", waiting: 2, closed: true, limit: 10, expected: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inbox := make(chan kafka.Message, tt.waiting)
			for i := 0; i < tt.waiting; i++ {
				inbox <- kafka.Message{Offset: int64(i + 1)}
			}
			if tt.closed {
				close(inbox)
			}

			batch := drain(kafka.Message{Offset: 0}, inbox, tt.limit)
			if len(batch) != tt.expected {
				t.Fatalf("expected %d messages, got %d", tt.expected, len(batch))
			}
			for i, m := range batch {
				if m.Offset != int64(i) {
					t.Fatalf("expected fetch order, got offset %d at %d", m.Offset, i)
				}
			}
			if left := len(inbox); left != tt.waiting+1-tt.expected {
				t.Fatalf("expected %d left in inbox, got %d", tt.waiting+1-tt.expected, left)
			}
		})
	}
}
