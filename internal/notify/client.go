// Package notify publishes and consumes collection-change announcements
// over AMQP. Publishing is best-effort behind a circuit breaker: a broker
// outage degrades notifications, never mutations.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 3
	openTimeout = 30 * time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount    int64
	state           int32
	lastFailureNano int64
}

// NewClient connects and declares the fanout topology. queueName names the
// durable queue of a dedicated consumer (the replica worker); pass "" for
// publishers and session subscriptions.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		conn:         conn,
		channel:      channel,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

// setup declares the fanout exchange every client shares. A client with a
// queue name also declares and binds that durable queue; clients without
// one publish only, or get a private queue per ConsumeChanges call.
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if c.queueName == "" {
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		"",             // routing key (ignored by fanout)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishChange announces that a collection of a project changed.
func (c *Client) PublishChange(ctx context.Context, collection, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish change: circuit breaker is open")
	}

	msg := NewChangeMessage(collection, projectID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key (ignored by fanout)
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()

	slog.InfoContext(ctx, "Published change message",
		"collection", collection,
		"project_id", projectID,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeChanges consumes change messages until the context is cancelled.
// A client without a named queue gets a private server-named queue bound to
// the fanout exchange, so session subscriptions never steal deliveries from
// the replica worker's durable queue.
func (c *Client) ConsumeChanges(ctx context.Context, handler func(*ChangeMessage) error) error {
	queue := c.queueName
	if queue == "" {
		q, err := c.channel.QueueDeclare(
			"",    // server-named
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare session queue: %w", err)
		}
		if err := c.channel.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind session queue: %w", err)
		}
		queue = q.Name
	}

	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (manual ack below)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming change messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ChangeMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"collection", msg.Collection,
					"project_id", msg.ProjectID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}

	last := time.Unix(0, atomic.LoadInt64(&c.lastFailureNano))
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}

	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	atomic.StoreInt64(&c.lastFailureNano, time.Now().UnixNano())
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
