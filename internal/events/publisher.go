// Package events publishes subscription domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Routing keys
const (
	SubscriptionRequested   = "subscription.requested"
	SubscriptionApproved    = "subscription.approved"
	SubscriptionRejected    = "subscription.rejected"
	SubscriptionOverdue     = "subscription.overdue"
	SubscriptionCancelled   = "subscription.cancelled"
	OrganizationSuspended   = "organization.suspended"
	OrganizationReactivated = "organization.reactivated"
)

type Event struct {
	ID             uuid.UUID              `json:"id"`
	Type           string                 `json:"type"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

func New(eventType string, orgID uuid.UUID, payload map[string]interface{}) Event {
	return Event{
		ID:             uuid.New(),
		Type:           eventType,
		OrganizationID: orgID,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Connect dials url with retries and declares a durable topic exchange.
func Connect(url, exchange string, retries int, delay time.Duration) (Publisher, error) {
	const op = "events.Connect"

	var (
		conn *amqp.Connection
		err  error
	)
	retries = max(retries, 1)
	for attempt := 1; attempt <= retries; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if attempt < retries {
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: declare exchange %s: %w", op, exchange, err)
	}

	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, event Event) error {
	const op = "events.Publish"
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// amqp.Channel is not safe for concurrent publishers.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
