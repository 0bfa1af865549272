// Package mq provides end-to-end tests for the RabbitMQ client and the
// notification pipeline built on top of it.
package mq

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	clientmq "agrohub.dev/garden-hub/pkg/mq"
)

var _ = Describe("MQ Client E2E", func() {
	var (
		ctx       context.Context
		client    *clientmq.Client
		queueName string
	)

	BeforeEach(func() {
		ctx = context.Background()
		// Generate unique queue name for this test
		queueName = "test-queue-" + time.Now().Format("20060102-150405.000")
	})

	AfterEach(func() {
		if client != nil {
			_ = client.Close()
			client = nil
		}
	})

	Describe("Connection", func() {
		It("should connect to RabbitMQ successfully", func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			Expect(client).NotTo(BeNil())

			// Give client time to connect
			time.Sleep(1 * time.Second)
		})

		It("should handle invalid URL gracefully", func() {
			invalidClient := clientmq.New("test-queue", "amqp://invalid:5672", testLogger)
			Expect(invalidClient).NotTo(BeNil())

			// Should not crash, will keep retrying in background
			time.Sleep(500 * time.Millisecond)

			_ = invalidClient.Close()
		})
	})

	Describe("Publishing", func() {
		BeforeEach(func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			time.Sleep(2 * time.Second) // Wait for connection
		})

		It("should publish a message successfully", func() {
			err := client.Push(ctx, []byte("test message"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should publish multiple messages successfully", func() {
			messages := []string{
				"message 1",
				"message 2",
				"message 3",
			}

			for _, msg := range messages {
				err := client.Push(ctx, []byte(msg))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should use UnsafePush without blocking", func() {
			err := client.UnsafePush(ctx, []byte("unsafe message"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should give up when the context is already canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			err := client.Push(canceled, []byte("never sent"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Consuming", func() {
		BeforeEach(func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			time.Sleep(2 * time.Second) // Wait for connection
		})

		It("should consume messages successfully", func() {
			// Start consuming FIRST
			deliveries, err := client.Consume()
			Expect(err).NotTo(HaveOccurred())
			Expect(deliveries).NotTo(BeNil())

			// Wait for consumer to register on server
			time.Sleep(500 * time.Millisecond)

			// THEN publish a message
			err = client.Push(ctx, []byte("consume test message"))
			Expect(err).NotTo(HaveOccurred())

			// Receive the message
			select {
			case delivery := <-deliveries:
				Expect(string(delivery.Body)).To(ContainSubstring("consume test message"))
			case <-time.After(5 * time.Second):
				Fail("Did not receive message within timeout")
			}
		})

		It("should consume multiple messages in order", func() {
			// Start consuming FIRST
			deliveries, err := client.Consume()
			Expect(err).NotTo(HaveOccurred())

			// Wait for consumer to register on server
			time.Sleep(500 * time.Millisecond)

			// THEN publish multiple messages
			messages := []string{"first", "second", "third"}
			for _, msg := range messages {
				err := client.Push(ctx, []byte(msg))
				Expect(err).NotTo(HaveOccurred())
			}

			// Receive all messages and acknowledge each one
			receivedMessages := make([]string, 0, 3)
			for i := 0; i < 3; i++ {
				select {
				case delivery := <-deliveries:
					receivedMessages = append(receivedMessages, string(delivery.Body))
					// Acknowledge the message so the next one can be delivered
					err := delivery.Ack(false)
					Expect(err).NotTo(HaveOccurred())
				case <-time.After(5 * time.Second):
					Fail("Did not receive all messages within timeout")
				}
			}

			// Verify order and content
			Expect(receivedMessages).To(HaveLen(3))
			Expect(receivedMessages[0]).To(ContainSubstring("first"))
			Expect(receivedMessages[1]).To(ContainSubstring("second"))
			Expect(receivedMessages[2]).To(ContainSubstring("third"))
		})

		It("should preserve message content exactly", func() {
			// Start consuming FIRST
			deliveries, err := client.Consume()
			Expect(err).NotTo(HaveOccurred())

			// Wait for consumer to register on server
			time.Sleep(500 * time.Millisecond)

			// THEN publish
			originalMessage := []byte(`{"telegram_id":"42","kind":"robot_stopped","text":"Robot R7 stopped scanning."}`)
			err = client.Push(ctx, originalMessage)
			Expect(err).NotTo(HaveOccurred())

			// Receive and verify
			select {
			case delivery := <-deliveries:
				Expect(delivery.Body).To(Equal(originalMessage))
			case <-time.After(5 * time.Second):
				Fail("Did not receive message within timeout")
			}
		})
	})

	Describe("Error Handling", func() {
		It("should handle operations before connection", func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			// Don't wait for connection

			// Operations should fail gracefully
			err := client.UnsafePush(ctx, []byte("test"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Resource Cleanup", func() {
		It("should close client cleanly", func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			time.Sleep(2 * time.Second)

			err := client.Close()
			Expect(err).NotTo(HaveOccurred())

			client = nil // Prevent double close in AfterEach
		})

		It("should handle double close gracefully", func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			time.Sleep(2 * time.Second)

			err1 := client.Close()
			Expect(err1).NotTo(HaveOccurred())

			err2 := client.Close()
			Expect(err2).To(HaveOccurred()) // Second close should error

			client = nil
		})
	})
})
