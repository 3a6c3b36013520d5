package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "queue")

// Topics published by the support service.
const (
	TopicCustomerUpdated = "customer.updated"
	TopicTicketCreated   = "ticket.created"
)

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue is closed")

// Event is the envelope carried by every queue implementation.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s event %s", e.Topic, e.ID)
	}
	return nil
}

// NewEvent marshals payload into a new event for topic.
func NewEvent(topic string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s event", topic)
	}
	return &Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Handler processes one event. A returned error asks for redelivery.
type Handler func(e *Event) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue fans events out to subscribers in-process, with retry
type InMemoryQueue struct {
	// MaxRetries is the number of redeliveries after the first attempt.
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool
	wg       sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		handlers:   make(map[string][]Handler),
	}
}

// Publish sends an event to all subscribers of topic
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	e, err := NewEvent(topic, payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return errors.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(handler, e)
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "published", "topic", topic, "event", e.ID)
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, e *Event) {
	defer q.wg.Done()

	for attempt := 0; attempt <= q.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * q.Backoff)
		}
		err := handler(e)
		if err == nil {
			return
		}
		logger.KV(xlog.WARNING,
			"reason", "handler_failed",
			"topic", e.Topic,
			"event", e.ID,
			"attempt", attempt+1,
			"err", err.Error())
	}
	logger.KV(xlog.ERROR, "reason", "dropped", "topic", e.Topic, "event", e.ID, "attempts", q.MaxRetries+1)
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops accepting events and waits for in-flight deliveries.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
