// Package mq provides a RabbitMQ client with automatic reconnection and error handling.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrohub.dev/garden-hub/pkg/metrics"
)

// Client is a RabbitMQ client that owns one queue, manages its connection
// lifecycle, and reconnects in the background after failures.
type Client struct {
	mu              *sync.Mutex
	log             *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	isReady         bool
	metrics         *metrics.MQMetrics // Optional metrics
}

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Initial backoff delay for Push retries.
	initialBackoff = 100 * time.Millisecond

	// Maximum backoff delay for Push retries.
	maxBackoff = 10 * time.Second

	// Maximum number of retry attempts before giving up.
	maxRetryAttempts = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New creates a new client bound to the named queue and starts connecting
// to the server in the background.
func New(queueName, addr string, l *slog.Logger) *Client {
	client := Client{
		mu:        &sync.Mutex{},
		log:       l,
		queueName: queueName,
		done:      make(chan bool),
	}
	go client.handleReconnect(addr)
	return &client
}

// SetMetrics sets the metrics collector for this client.
// This should be called before the client starts processing messages.
func (client *Client) SetMetrics(m *metrics.MQMetrics) {
	client.metrics = m
}

// handleReconnect loops until shutdown, re-establishing the connection
// whenever notifyConnClose fires.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.log.Info("attempting to connect")

		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.log.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			break
		}
	}
}

// connect creates a new AMQP connection.
func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	client.changeConnection(conn)
	client.log.Info("connected")

	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(1)
	}

	return conn, nil
}

// handleReInit re-initializes the channel after channel-level exceptions
// until the connection itself drops or the client shuts down.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.log.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.log.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.log.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.log.Info("channel closed, re-running init")
		}
	}
}

// init opens a channel in confirm mode and declares the queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}
	_, err = ch.QueueDeclare(
		client.queueName,
		false, // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return err
	}

	client.changeChannel(ch)
	client.setReady(true)
	client.log.Info("client init done")

	return nil
}

func (client *Client) setReady(ready bool) {
	client.mu.Lock()
	client.isReady = ready
	client.mu.Unlock()
}

func (client *Client) ready() bool {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.isReady
}

// changeConnection swaps in a new connection and re-arms the close listener.
func (client *Client) changeConnection(connection *amqp.Connection) {
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

// changeChannel swaps in a new channel and re-arms the channel listeners.
func (client *Client) changeChannel(channel *amqp.Channel) {
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

// backoffWait blocks for the current backoff interval and returns the next
// one, doubling up to maxBackoff. A false return means the wait was
// interrupted by cancellation or shutdown.
func (client *Client) backoffWait(ctx context.Context, backoff time.Duration) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return backoff, ctx.Err()
	case <-client.done:
		return backoff, errShutdown
	case <-time.After(backoff):
	}

	backoff *= 2
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff, nil
}

// Push pushes data onto the queue and waits for the broker confirmation.
// While the client is disconnected it retries with exponential backoff,
// giving the background reconnect loop time to recover; after
// maxRetryAttempts failed attempts it returns an error.
func (client *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if client.metrics != nil {
		timer = prometheus.NewTimer(client.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	var err error

	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if !client.ready() {
			client.log.Info("not connected, waiting for reconnection",
				"backoff", backoff,
				"attempt", attempt)

			if backoff, err = client.backoffWait(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		if err := client.UnsafePush(ctx, data); err != nil {
			client.log.Error("push failed, retrying with backoff",
				"error", err,
				"backoff", backoff,
				"attempt", attempt)

			if backoff, err = client.backoffWait(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			if client.metrics != nil {
				client.metrics.PushFailures.WithLabelValues(client.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-client.notifyConfirm:
			if confirm.Ack {
				if client.metrics != nil {
					client.metrics.MessagesPushed.WithLabelValues(client.queueName).Inc()
				}
				client.log.Debug("push confirmed",
					"delivery_tag", confirm.DeliveryTag,
					"attempt", attempt)
				return nil
			}
			// Negative acknowledgment from the broker - retry with backoff
			client.log.Warn("push not acknowledged, retrying",
				"delivery_tag", confirm.DeliveryTag,
				"backoff", backoff)

			if backoff, err = client.backoffWait(ctx, backoff); err != nil {
				return err
			}
		}
	}

	client.log.Error("maximum retry attempts exceeded", "max_attempts", maxRetryAttempts)
	if client.metrics != nil {
		client.metrics.PushFailures.WithLabelValues(client.queueName, "max_retries_exceeded").Inc()
	}
	return errMaxRetriesExceeded
}

// UnsafePush pushes to the queue without waiting for confirmation.
// It returns an error if the client is not connected. No guarantees are
// provided for whether the server received the message.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	if !client.ready() {
		return errNotConnected
	}

	return client.channel.PublishWithContext(
		ctx,
		"",               // Exchange
		client.queueName, // Routing key
		false,            // Mandatory
		false,            // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}

// Consume continuously puts queue items on the returned channel.
// Callers must Ack each delivery once processed, or Nack on failure;
// ignoring this causes data to build up on the server.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	if !client.ready() {
		return nil, errNotConnected
	}

	if err := client.channel.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return client.channel.Consume(
		client.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close cleanly shuts down the channel and connection.
func (client *Client) Close() error {
	client.mu.Lock()
	// isReady is read and written in several places, so grab the lock and
	// hold it until we are finished
	defer client.mu.Unlock()

	if !client.isReady {
		return errAlreadyClosed
	}
	close(client.done)
	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}

	client.isReady = false

	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}

	return nil
}
