package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"agrohub.dev/garden-hub/pkg/metrics"
	"agrohub.dev/garden-hub/pkg/mq"
)

// Publisher pushes notification events onto the notifications queue.
type Publisher struct {
	logger   *slog.Logger
	mqClient mq.ClientInterface
	metrics  *metrics.NotifierMetrics // Optional metrics
}

// PublisherConfig holds the configuration for the Publisher.
type PublisherConfig struct {
	Logger   *slog.Logger
	MQClient mq.ClientInterface
	Metrics  *metrics.NotifierMetrics
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("publisher config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	return &Publisher{
		logger:   cfg.Logger,
		mqClient: cfg.MQClient,
		metrics:  cfg.Metrics,
	}, nil
}

// Publish queues one event. The error return is for callers that want to
// log it with their own context; the event is never retried here.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.TelegramID == "" {
		return errors.New("event telegram id cannot be empty")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PublishFailures.WithLabelValues(string(event.Kind), "marshal_error").Inc()
		}
		return fmt.Errorf("failed to encode notification event: %w", err)
	}

	if err := p.mqClient.Push(ctx, payload); err != nil {
		if p.metrics != nil {
			p.metrics.PublishFailures.WithLabelValues(string(event.Kind), "push_error").Inc()
		}
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()
	}

	p.logger.Debug("notification event published",
		"kind", string(event.Kind),
		"telegram_id", event.TelegramID,
	)
	return nil
}
