// Package main provides the unified CLI entry point for the garden-hub services.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrohub.dev/garden-hub/internal/bot"
	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/notify"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/metrics"
	"agrohub.dev/garden-hub/pkg/mq"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the operator bot",
	Long: `Run the Telegram bot that:
- Handles operator menus, robot binding, and plant management
- Writes desired scan commands for polling robots
- Consumes notification events from RabbitMQ and delivers them to chats`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)

	// Bot-specific flags
	botCmd.Flags().String("token", "", "Telegram bot token")
	botCmd.Flags().String("webhook-url", "", "public webhook URL; long polling is used when empty")
	botCmd.Flags().Int("webhook-port", 8443, "local port the webhook listener binds to")
	botCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	botCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	botCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	botCmd.Flags().String("db-password", "", "PostgreSQL password")
	botCmd.Flags().String("db-name", "garden", "PostgreSQL database name")
	botCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	botCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the command cells")
	botCmd.Flags().String("redis-password", "", "Redis password")
	botCmd.Flags().Int("redis-db", 0, "Redis database number")
	botCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	botCmd.Flags().String("queue-name", "notifications", "RabbitMQ queue name for notification events")

	// Bind flags to viper
	_ = viper.BindPFlag("bot.token", botCmd.Flags().Lookup("token"))
	_ = viper.BindPFlag("bot.webhook.url", botCmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("bot.webhook.port", botCmd.Flags().Lookup("webhook-port"))
	_ = viper.BindPFlag("bot.db.host", botCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("bot.db.port", botCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("bot.db.user", botCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("bot.db.password", botCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("bot.db.name", botCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("bot.db.sslmode", botCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("bot.redis.addr", botCmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("bot.redis.password", botCmd.Flags().Lookup("redis-password"))
	_ = viper.BindPFlag("bot.redis.db", botCmd.Flags().Lookup("redis-db"))
	_ = viper.BindPFlag("bot.rabbitmq.url", botCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("bot.rabbitmq.queue_name", botCmd.Flags().Lookup("queue-name"))
}

func runBot(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting bot service")

	token := viper.GetString("bot.token")
	if token == "" {
		return errors.New("telegram bot token is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("failed to create telegram api client", "error", err)
		return err
	}
	logger.Info("authorized on telegram", "username", api.Self.UserName)

	db, err := store.NewDB(&store.DBConfig{
		Logger:   logger,
		Host:     viper.GetString("bot.db.host"),
		Port:     viper.GetInt("bot.db.port"),
		User:     viper.GetString("bot.db.user"),
		Password: viper.GetString("bot.db.password"),
		DBName:   viper.GetString("bot.db.name"),
		SSLMode:  viper.GetString("bot.db.sslmode"),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer func() {
		if err := store.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	records, err := store.NewStore(db, logger)
	if err != nil {
		logger.Error("failed to create record store", "error", err)
		return err
	}

	cells, err := command.NewRedisStore(&command.RedisConfig{
		Logger:   logger,
		Addr:     viper.GetString("bot.redis.addr"),
		Password: viper.GetString("bot.redis.password"),
		DB:       viper.GetInt("bot.redis.db"),
	})
	if err != nil {
		logger.Error("failed to create command store", "error", err)
		return err
	}
	defer func() {
		if err := cells.Close(); err != nil {
			logger.Error("failed to close command store", "error", err)
		}
	}()

	// Notification delivery worker
	mqClient := mq.New(
		viper.GetString("bot.rabbitmq.queue_name"),
		viper.GetString("bot.rabbitmq.url"),
		logger,
	)
	mqClient.SetMetrics(metrics.NewMQMetrics("garden_bot"))

	sender, err := notify.NewTelegramSender(api)
	if err != nil {
		logger.Error("failed to create telegram sender", "error", err)
		return err
	}

	consumer, err := notify.NewConsumer(&notify.ConsumerConfig{
		Logger:   logger,
		MQClient: mqClient,
		Sender:   sender,
		Metrics:  metrics.NewNotifierMetrics("garden_bot"),
	})
	if err != nil {
		logger.Error("failed to create notification consumer", "error", err)
		return err
	}

	// The MQ client reconnects in the background; give it a moment.
	time.Sleep(2 * time.Second)
	if err := consumer.Start(ctx); err != nil {
		logger.Error("failed to start notification consumer", "error", err)
		return err
	}
	defer func() {
		if err := consumer.Stop(); err != nil {
			logger.Error("failed to stop notification consumer", "error", err)
		}
	}()

	// Chat update handling
	chatBot, err := bot.New(&bot.Config{
		Logger:   logger,
		API:      api,
		Records:  records,
		Commands: cells,
		Metrics:  metrics.NewBotMetrics("garden_bot"),
	})
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		return err
	}

	updates, cleanup, err := botUpdates(api, logger)
	if err != nil {
		logger.Error("failed to subscribe to updates", "error", err)
		return err
	}
	defer cleanup()

	if err := chatBot.Run(ctx, updates); err != nil {
		logger.Error("bot error", "error", err)
		return err
	}

	logger.Info("bot service stopped")
	return nil
}

// botUpdates subscribes to Telegram updates, via webhook when a public
// URL is configured and long polling otherwise.
func botUpdates(api *tgbotapi.BotAPI, logger *slog.Logger) (tgbotapi.UpdatesChannel, func(), error) {
	webhookURL := viper.GetString("bot.webhook.url")

	if webhookURL == "" {
		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = 30
		logger.Info("receiving updates via long polling")
		return api.GetUpdatesChan(cfg), api.StopReceivingUpdates, nil
	}

	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	updates := api.ListenForWebhook("/webhook")
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("bot.webhook.port")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook listener error", "error", err)
		}
	}()

	logger.Info("receiving updates via webhook", "url", webhookURL)
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return updates, cleanup, nil
}
