package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"creator_sync/internal/domain"
)

const (
	ActionCompleted = "sync.completed"
	ActionFailed    = "sync.failed"
)

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "publisher"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// RunMessage is the event emitted after every sync run that reached the
// history table.
type RunMessage struct {
	Action    string            `json:"action"`
	RunID     string            `json:"run_id"`
	Success   bool              `json:"success"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Stats     *domain.SyncStats `json:"stats,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewRunMessage builds the event body for a sync result.
func NewRunMessage(result domain.SyncResult, at time.Time) RunMessage {
	action := ActionFailed
	if result.Success {
		action = ActionCompleted
	}
	return RunMessage{
		Action:    action,
		RunID:     result.RunID,
		Success:   result.Success,
		Status:    string(result.Status),
		Message:   result.Message,
		Stats:     result.Stats,
		Timestamp: at.UTC(),
	}
}

// Publish sends the outcome of a sync run. Results without a run id (the run
// was refused before it started) are not published.
func (r *RabbitMQ) Publish(ctx context.Context, result domain.SyncResult) error {
	if result.RunID == "" {
		return nil
	}

	now := time.Now()
	msg := NewRunMessage(result, now)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    result.RunID,
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published sync run",
		"run_id", result.RunID,
		"action", msg.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
