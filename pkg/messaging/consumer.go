package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Outcome is how a delivery is settled with the broker.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Reject
)

// maxRetries is the number of dead-letter round trips before a message is
// dropped for good.
const maxRetries = 3

// Router dispatches decoded events to handlers by type. It holds no broker
// state, so handlers can be exercised without RabbitMQ.
type Router struct {
	handlers map[string]MessageHandler
	logger   *logger.Logger
}

// NewRouter creates an empty router.
func NewRouter(log *logger.Logger) *Router {
	return &Router{handlers: make(map[string]MessageHandler), logger: log}
}

// RegisterHandler registers a handler for a specific event type
func (r *Router) RegisterHandler(eventType string, handler MessageHandler) {
	r.handlers[eventType] = handler
}

// Route decodes body and runs the matching handler. retries is the number of
// times the message has already been dead-lettered.
func (r *Router) Route(ctx context.Context, body []byte, retries int) Outcome {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		r.logger.Error().Err(err).Msg("failed to unmarshal event")
		return Reject
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := r.handlers[event.Type]
	if !ok {
		r.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return Ack
	}

	r.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if retries >= maxRetries {
			r.logger.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retries).
				Msg("max retries exceeded, sending to DLQ")
			return Reject
		}
		return Requeue
	}

	return Ack
}

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	*Router
	rmq       *RabbitMQ
	queueName string
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		Router:    NewRouter(log),
		rmq:       rmq,
		queueName: queueName,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// Start consumes the queue until ctx is cancelled. When the broker drops the
// connection, the consumer reconnects and resumes on the same durable queue.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	go c.run(ctx, msgs)
	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")
	return msgs, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				if msgs = c.resume(ctx); msgs == nil {
					return
				}
				continue
			}
			settle(msg, c.Route(ctx, msg.Body, getRetryCount(msg)))
		}
	}
}

// resume reconnects after the delivery channel closed. It returns nil when
// the consumer should stop.
func (c *Consumer) resume(ctx context.Context) <-chan amqp.Delivery {
	if ctx.Err() != nil {
		return nil
	}
	c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed, reconnecting")

	if err := c.rmq.Reconnect(ctx); err != nil {
		if !errors.Is(err, ErrClosed) && ctx.Err() == nil {
			c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer stopped")
		}
		return nil
	}

	msgs, err := c.consume()
	if err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer stopped")
		return nil
	}
	return msgs
}

func settle(msg amqp.Delivery, outcome Outcome) {
	switch outcome {
	case Requeue:
		msg.Nack(false, true)
	case Reject:
		msg.Reject(false)
	default:
		msg.Ack(false)
	}
}

func getRetryCount(msg amqp.Delivery) int {
	return retryCount(msg.Headers)
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	if deaths, ok := headers["x-death"].([]any); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
