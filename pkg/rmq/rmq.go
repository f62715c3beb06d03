package rmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNacked = errors.New("broker rejected publish")

// Publisher publishes to a single durable queue with publisher confirms
// enabled, so a nil error means the broker has taken the message.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Queue() string { return p.queue }

func (p *Publisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

func (p *Publisher) publish(ctx context.Context, msg amqp.Publishing) error {
	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp.Persistent
	msg.Timestamp = time.Now()

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, msg)
	if err != nil {
		return err
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNacked
	}
	return nil
}

func (p *Publisher) PublishJSONWithHeaders(ctx context.Context, body []byte, headers amqp.Table) error {
	return p.publish(ctx, amqp.Publishing{Headers: headers, Body: body})
}

func (p *Publisher) PublishMessage(ctx context.Context, id string, body []byte) error {
	return p.publish(ctx, amqp.Publishing{MessageId: id, Body: body})
}

type Consumer struct {
	conn  *amqp.Connection
	Ch    *amqp.Channel
	Queue string
}

func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := prepareConsumer(ch, queue, prefetch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, Ch: ch, Queue: queue}, nil
}

type consumerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

// prepareConsumer declares the durable queue and applies the prefetch
// window; prefetch <= 0 falls back to 10.
func prepareConsumer(ch consumerChannel, queue string, prefetch int) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch %d: %w", prefetch, err)
	}
	return nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	return c.Ch.Consume(c.Queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	_ = c.Ch.Close()
	return c.conn.Close()
}
