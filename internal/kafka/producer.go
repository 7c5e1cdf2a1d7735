package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrBufferFull is returned when the producer inbox cannot take a message
// without blocking the caller.
var ErrBufferFull = errors.New("kafka producer buffer full")

var ErrClosed = errors.New("kafka producer closed")

// Producer buffers messages in an inbox and writes them from one goroutine,
// so Publish never waits on the broker.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// maxBatch bounds how many buffered messages one write hands to the writer.
const maxBatch = 100

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	if buf <= 0 {
		buf = 1024
	}
	log = log.With("topic", topic)
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchSize:    maxBatch,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					log.Error("kafka write failed", "messages", len(msgs), "error", err)
				}
			},
		},
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Start hands buffered messages to the async writer in batches. Delivery
// failures surface through the writer's completion callback.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			batch := drain(m, p.inbox, maxBatch)
			if err := p.w.WriteMessages(context.Background(), batch...); err != nil {
				p.log.Error("kafka write failed", "messages", len(batch), "error", err)
			}
		}
		// Close flushes the writer's pending batches.
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", "error", err)
		}
	}()
}

// drain returns first plus whatever is already waiting in inbox, up to limit.
func drain(first kafka.Message, inbox <-chan kafka.Message, limit int) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < limit {
		select {
		case m, ok := <-inbox:
			if !ok {
				return batch
			}
			batch = append(batch, m)
		default:
			return batch
		}
	}
	return batch
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting messages; the writer goroutine flushes what is left.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the remaining messages are flushed or ctx ends.
func (p *Producer) WaitClosed(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
