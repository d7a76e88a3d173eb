// Package amqp hands scheduled email to the notification consumer through a
// durable RabbitMQ queue instead of talking to a mail server directly.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
)

// DefaultQueue is the queue the notification consumer drains.
const DefaultQueue = "email_notifications"

// EventType tags payloads produced by the scheduled mailer.
const EventType = "scheduled.email"

// NotificationEvent is the per-recipient payload published to the queue.
type NotificationEvent struct {
	Type      string `json:"type"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	From      string `json:"from"`
	MessageID string `json:"message_id,omitempty"`
	TriggerID string `json:"trigger_id,omitempty"`
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (connection, channel, error)

// Publisher publishes one persistent message per recipient. Publishers built
// by Dial reconnect when the broker has dropped the connection, which happens
// while Lambda keeps the process frozen between invocations.
type Publisher struct {
	mu    sync.Mutex
	url   string
	dial  dialFunc
	conn  connection
	ch    channel
	queue string
	clock func() time.Time
}

// Dial connects to url, opens a channel, and declares queue.
func Dial(url string, queue string) (*Publisher, error) {
	return newPublisher(url, queue, dialBroker, nil)
}

func newPublisher(url string, queue string, dial dialFunc, clock func() time.Time) (*Publisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if dial == nil {
		return nil, fmt.Errorf("amqp dialer is required")
	}
	p := &Publisher{url: url, dial: dial, queue: queueName(queue), clock: clockOrNow(clock)}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialBroker(url string) (connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	return conn, ch, nil
}

// NewWithChannel declares queue on an open channel. The publisher cannot
// reconnect because it does not own the connection.
func NewWithChannel(ch channel, queue string, clock func() time.Time) (*Publisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("amqp channel is required")
	}
	p := &Publisher{queue: queueName(queue), clock: clockOrNow(clock)}
	if err := p.declare(ch); err != nil {
		return nil, err
	}
	p.ch = ch
	return p, nil
}

func queueName(queue string) string {
	if queue = strings.TrimSpace(queue); queue != "" {
		return queue
	}
	return DefaultQueue
}

func clockOrNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}

func (p *Publisher) declare(ch channel) error {
	q, err := ch.QueueDeclare(p.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare %s: %w", p.queue, err)
	}
	p.queue = q.Name
	return nil
}

// connect opens a fresh connection and channel and re-declares the queue.
func (p *Publisher) connect() error {
	conn, ch, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if err := p.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) disconnect() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *Publisher) reconnect() error {
	p.disconnect()
	if err := p.connect(); err != nil {
		return fmt.Errorf("amqp reconnect: %w", err)
	}
	return nil
}

func (p *Publisher) canReconnect() bool {
	return p.dial != nil
}

// Name implements domain.Sender.
func (p *Publisher) Name() string { return "amqp" }

// Send implements domain.Sender. A publish failure stops at the failing
// recipient; earlier recipients stay published. A closed connection is
// re-dialed once per recipient before giving up.
func (p *Publisher) Send(ctx context.Context, msg domain.Message) error {
	if p == nil {
		return domain.ErrSenderNotConfigured
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil && !p.canReconnect() {
		return domain.ErrSenderNotConfigured
	}
	if len(msg.To) == 0 {
		return domain.Permanent(domain.ErrRecipientRequired)
	}
	if p.canReconnect() && (p.ch == nil || p.conn == nil || p.conn.IsClosed()) {
		if err := p.reconnect(); err != nil {
			return err
		}
	}

	now := p.clock().UTC()
	for _, recipient := range msg.To {
		body, err := json.Marshal(NotificationEvent{
			Type:      EventType,
			Email:     recipient,
			Subject:   msg.Subject,
			Message:   msg.BodyText,
			From:      msg.From,
			MessageID: msg.ID,
			TriggerID: msg.TriggerID,
		})
		if err != nil {
			return domain.Permanent(fmt.Errorf("encode notification event: %w", err))
		}
		publishing := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    now,
			Body:         body,
		}
		err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, publishing)
		if errors.Is(err, amqp.ErrClosed) && p.canReconnect() {
			if rerr := p.reconnect(); rerr != nil {
				return fmt.Errorf("publish to %s for %s: %w", p.queue, recipient, rerr)
			}
			err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, publishing)
		}
		if err != nil {
			return fmt.Errorf("publish to %s for %s: %w", p.queue, recipient, err)
		}
	}
	return nil
}

// Close closes the channel and, when Dial opened it, the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.conn, p.ch = nil, nil
	return firstErr
}
