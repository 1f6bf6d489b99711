// Package events publishes job lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobFinished is emitted once per job when it reaches a terminal state.
type JobFinished struct {
	JobID        string    `json:"job_id"`
	PredictionID string    `json:"prediction_id"`
	UserID       string    `json:"user_id"`
	Kind         string    `json:"kind"`
	State        string    `json:"state"`
	Progress     int       `json:"progress"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RoutingKey is jobs.<kind>.<state>.
func (e JobFinished) RoutingKey() string {
	return fmt.Sprintf("jobs.%s.%s", e.Kind, e.State)
}

// Publisher delivers job events.
type Publisher interface {
	PublishJobFinished(ctx context.Context, evt JobFinished) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishJobFinished(context.Context, JobFinished) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// RabbitPublisher publishes JSON events to a durable topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

// DialRabbit connects to url and declares exchange.
func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// PublishJobFinished sends evt with routing key jobs.<kind>.<state>.
func (p *RabbitPublisher) PublishJobFinished(ctx context.Context, evt JobFinished) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		evt.RoutingKey(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.FinishedAt,
			MessageId:    evt.JobID,
			Body:         body,
		},
	)
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	return p.conn.Close()
}
