package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/streadway/amqp"
)

// AMQPQueue publishes events to a durable topic exchange on a broker.
// Each Subscribe declares a durable queue named "<queue>.<topic>" bound to
// the exchange with the topic as routing key.
type AMQPQueue struct {
	Exchange string
	Queue    string

	conn *amqp.Connection

	mu    sync.Mutex
	pubCh *amqp.Channel

	subs []*amqp.Channel
	wg   sync.WaitGroup
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange, queueName string) (*AMQPQueue, error) {
	if exchange == "" || queueName == "" {
		return nil, errors.New("exchange and queue names are required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to open a channel")
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // delete when unused
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to declare exchange %s", exchange)
	}

	logger.KV(xlog.INFO, "status", "connected", "exchange", exchange, "queue", queueName)
	return &AMQPQueue{
		Exchange: exchange,
		Queue:    queueName,
		conn:     conn,
		pubCh:    ch,
	}, nil
}

// Publish sends a persistent event to the exchange with topic as routing key.
func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload any) error {
	e, err := NewEvent(topic, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubCh == nil {
		return ErrClosed
	}
	err = q.pubCh.Publish(q.Exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         topic,
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s event", topic)
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "published", "topic", topic, "event", e.ID)
	return nil
}

// Subscribe consumes topic events with manual acknowledgement. A failed
// delivery is requeued once, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open a channel")
	}

	name := q.Queue + "." + topic
	declared, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		return errors.Wrapf(err, "failed to declare queue %s", name)
	}
	if err = ch.QueueBind(declared.Name, topic, q.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return errors.Wrapf(err, "failed to bind queue %s", name)
	}

	msgs, err := ch.Consume(
		declared.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return errors.Wrapf(err, "failed to register consumer on %s", name)
	}

	q.mu.Lock()
	q.subs = append(q.subs, ch)
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for d := range msgs {
			deliver(d, handler)
		}
	}()
	return nil
}

func deliver(d amqp.Delivery, handler Handler) {
	var e Event
	if err := json.Unmarshal(d.Body, &e); err != nil {
		logger.KV(xlog.ERROR, "reason", "invalid_event", "message", d.MessageId, "err", err.Error())
		_ = d.Ack(false)
		return
	}

	if err := handler(&e); err != nil {
		requeue := !d.Redelivered
		logger.KV(xlog.WARNING,
			"reason", "handler_failed",
			"topic", e.Topic,
			"event", e.ID,
			"requeue", requeue,
			"err", err.Error())
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Close closes all channels and the connection, then waits for consumers.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	subs := q.subs
	q.subs = nil
	pub := q.pubCh
	q.pubCh = nil
	q.mu.Unlock()

	for _, ch := range subs {
		_ = ch.Close()
	}
	if pub != nil {
		_ = pub.Close()
	}
	err := q.conn.Close()
	q.wg.Wait()
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return errors.Wrap(err, "failed to close RabbitMQ connection")
	}
	return nil
}
