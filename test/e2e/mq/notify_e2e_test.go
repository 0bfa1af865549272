package mq

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrohub.dev/garden-hub/internal/notify"
	clientmq "agrohub.dev/garden-hub/pkg/mq"
)

// recordingSender captures deliveries instead of talking to Telegram.
type recordingSender struct {
	mu     sync.Mutex
	texts  []string
	photos []string
}

func (s *recordingSender) SendText(_ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) SendPhoto(_ int64, photoURL, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, photoURL)
	return nil
}

func (s *recordingSender) allTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *recordingSender) allPhotos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.photos...)
}

var _ = Describe("Notification Pipeline E2E", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		queueName string
		producer  *clientmq.Client
		worker    *clientmq.Client
		publisher *notify.Publisher
		consumer  *notify.Consumer
		sender    *recordingSender
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		queueName = "notifications-e2e-" + time.Now().Format("20060102-150405.000")

		// Hub side publishes, bot side consumes, over the same queue
		producer = clientmq.New(queueName, rabbitmqURL, testLogger)
		worker = clientmq.New(queueName, rabbitmqURL, testLogger)
		time.Sleep(2 * time.Second) // Wait for connections

		var err error
		publisher, err = notify.NewPublisher(&notify.PublisherConfig{
			Logger:   testLogger,
			MQClient: producer,
		})
		Expect(err).NotTo(HaveOccurred())

		sender = &recordingSender{}
		consumer, err = notify.NewConsumer(&notify.ConsumerConfig{
			Logger:   testLogger,
			MQClient: worker,
			Sender:   sender,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(consumer.Start(ctx)).To(Succeed())
		time.Sleep(500 * time.Millisecond) // Wait for consumer to register
	})

	AfterEach(func() {
		cancel()
		// Stop closes the worker client
		_ = consumer.Stop()
		_ = producer.Close()
	})

	It("should deliver a published text alert to the operator chat", func() {
		err := publisher.Publish(ctx, notify.Event{
			TelegramID: "42",
			Kind:       notify.KindRobotStopped,
			Text:       "Robot R7 finished its route and stopped scanning.",
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(sender.allTexts, 5*time.Second, 100*time.Millisecond).
			Should(ContainElement("Robot R7 finished its route and stopped scanning."))
	})

	It("should deliver a published scan photo to the operator chat", func() {
		err := publisher.Publish(ctx, notify.Event{
			TelegramID: "42",
			Kind:       notify.KindScanResult,
			PhotoURL:   "http://hub.local/files/scan_R7_2024-05-08_14:03:22.jpg",
			Caption:    "Plant: Cherry Tomato\nLocation: Greenhouse 1\nDiseases: no diseases detected\nTime: 2024-05-08 14:03:22",
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(sender.allPhotos, 5*time.Second, 100*time.Millisecond).
			Should(ContainElement("http://hub.local/files/scan_R7_2024-05-08_14:03:22.jpg"))
	})

	It("should drop malformed payloads without stalling later events", func() {
		// A payload the consumer cannot parse is acknowledged and dropped
		err := producer.Push(ctx, []byte("not a notification"))
		Expect(err).NotTo(HaveOccurred())

		err = publisher.Publish(ctx, notify.Event{
			TelegramID: "42",
			Kind:       notify.KindRobotStopped,
			Text:       "still flowing",
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(sender.allTexts, 5*time.Second, 100*time.Millisecond).
			Should(ContainElement("still flowing"))
	})
})
