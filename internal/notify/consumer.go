package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"agrohub.dev/garden-hub/pkg/metrics"
	"agrohub.dev/garden-hub/pkg/mq"
)

// Consumer consumes notification events from RabbitMQ and delivers them
// to operator chats.
type Consumer struct {
	logger   *slog.Logger
	mqClient mq.ClientInterface
	sender   Sender
	metrics  *metrics.NotifierMetrics // Optional metrics
	done     chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	MQClient mq.ClientInterface
	Sender   Sender
	Metrics  *metrics.NotifierMetrics
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	if cfg.Sender == nil {
		return nil, errors.New("sender cannot be nil")
	}

	return &Consumer{
		logger:   cfg.Logger,
		mqClient: cfg.MQClient,
		sender:   cfg.Sender,
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming notification events from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting notification consumer")

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("notification consumer started, waiting for events")

	// Process messages in a goroutine
	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming events from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping event processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(delivery)
		}
	}
}

// handleDelivery delivers a single notification event. Malformed events
// are acked and dropped; transient send failures are nacked for redelivery.
func (c *Consumer) handleDelivery(delivery amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Error("failed to unmarshal notification event",
			"error", err,
		)
		// Acknowledge event even on parse error to avoid reprocessing
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack event", "error", ackErr)
		}
		return
	}

	chatID, err := strconv.ParseInt(event.TelegramID, 10, 64)
	if err != nil {
		c.logger.Error("notification event has invalid telegram id",
			"telegram_id", event.TelegramID,
			"error", err,
		)
		// A bad chat id will never become deliverable
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack event", "error", ackErr)
		}
		return
	}

	c.logger.Info("received notification event",
		"kind", string(event.Kind),
		"telegram_id", event.TelegramID,
	)

	if err := c.deliver(chatID, event); err != nil {
		c.logger.Error("failed to deliver notification",
			"kind", string(event.Kind),
			"telegram_id", event.TelegramID,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.DeliveriesTotal.WithLabelValues(string(event.Kind), "error").Inc()
		}
		// Nack the event so it can be redelivered
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack event", "error", nackErr)
		}
		return
	}

	if c.metrics != nil {
		c.metrics.DeliveriesTotal.WithLabelValues(string(event.Kind), "success").Inc()
	}

	// Acknowledge successful delivery
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack event", "error", err)
		return
	}

	c.logger.Debug("notification delivered",
		"kind", string(event.Kind),
		"telegram_id", event.TelegramID,
	)
}

// deliver sends the event to the chat, choosing the transport by shape.
func (c *Consumer) deliver(chatID int64, event Event) error {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.DeliveryDuration.WithLabelValues(string(event.Kind)).Observe(time.Since(start).Seconds())
		}
	}()

	if event.PhotoURL != "" {
		return c.sender.SendPhoto(chatID, event.PhotoURL, event.Caption)
	}
	return c.sender.SendText(chatID, event.Text)
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping notification consumer")

	// Close MQ client
	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for event processing to complete
	<-c.done

	c.logger.Info("notification consumer stopped")
	return nil
}
