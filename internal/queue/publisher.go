// Package queue publishes campaign activity events for the wider CRM's audit
// trail. Publishing is fire-and-forget: a lost event never blocks or fails
// the engine operation that produced it.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Activity event types.
const (
	EventEnrollmentCreated = "enrollment_created"
	EventMessageSent       = "message_sent"
	EventMessageFailed     = "message_failed"
	EventEnrollmentPaused  = "enrollment_paused"
	EventCampaignCompleted = "campaign_completed"
)

// Event is one audit record.
type Event struct {
	Type         string    `json:"type"`
	CampaignID   string    `json:"campaign_id,omitempty"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	LeadID       string    `json:"lead_id,omitempty"`
	JobID        string    `json:"job_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AMQPPublisher pushes events onto a durable RabbitMQ queue.
type AMQPPublisher struct {
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(conn *amqp.Connection, queue string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &AMQPPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// MemoryPublisher collects events in memory. Used in tests and in deployments
// without a broker.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = (*MemoryPublisher)(nil)
)
