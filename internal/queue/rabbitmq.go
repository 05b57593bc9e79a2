package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const (
	defaultRabbitQueue = "resume-analysis"
	publishTimeout     = 5 * time.Second
	consumerTag        = "prepup-worker"
)

// amqpChannel is the subset of *amqp.Channel used here.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// RabbitClient sends and receives queue messages through a durable RabbitMQ queue.
type RabbitClient struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
}

// NewRabbitClient dials the broker and declares the queue.
func NewRabbitClient(url, queueName string) (*RabbitClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	if strings.TrimSpace(queueName) == "" {
		queueName = defaultRabbitQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare queue: %w", err)
	}

	telemetry.Info("queue.rabbitmq.connected", map[string]any{"queue": q.Name})
	return &RabbitClient{conn: conn, channel: ch, queue: q.Name}, nil
}

// Send publishes a persistent message to the queue.
func (r *RabbitClient) Send(ctx context.Context, msg Message) error {
	body, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode rabbitmq message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = r.channel.PublishWithContext(ctx,
		"",      // default exchange
		r.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.AnalysisID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Consume delivers messages to handle with manual acknowledgement until ctx is
// done. Settled deliveries are acked; the rest are nacked and requeued.
func (r *RabbitClient) Consume(ctx context.Context, concurrency int, handle Handler) error {
	concurrency = max(1, concurrency)
	if err := r.channel.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}
	deliveries, err := r.channel.Consume(r.queue, consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			if err := r.channel.Cancel(consumerTag, false); err != nil {
				telemetry.Warn("queue.rabbitmq.cancel_failed", map[string]any{"error": err.Error()})
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				settle(d, handle(ctx, string(d.Body)))
			}(d)
		}
	}
}

func settle(d amqp.Delivery, ok bool) {
	var err error
	if ok {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, true)
	}
	if err != nil {
		telemetry.Error("queue.rabbitmq.settle_failed", map[string]any{
			"message_id": d.MessageId,
			"ack":        ok,
			"error":      err.Error(),
		})
	}
}

// Close releases the channel and connection.
func (r *RabbitClient) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}

var _ Client = (*RabbitClient)(nil)
