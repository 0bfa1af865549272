// Package main provides the unified CLI entry point for the garden-hub services.
package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrohub.dev/garden-hub/internal/blob"
	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/hub"
	"agrohub.dev/garden-hub/internal/ingest"
	"agrohub.dev/garden-hub/internal/notify"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/metrics"
	"agrohub.dev/garden-hub/pkg/mq"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run the hub server",
	Long: `Run the hub server that:
- Serves the robot-facing REST API (binding lookup, command polling)
- Ingests scan submissions and stores their images
- Publishes operator notifications to RabbitMQ
- Serves stored scan images over HTTP`,
	RunE: runHub,
}

func init() {
	rootCmd.AddCommand(hubCmd)

	// Hub-specific flags
	hubCmd.Flags().Int("http-port", 8080, "HTTP server port")
	hubCmd.Flags().String("files-dir", "./scans", "directory scan images are stored in")
	hubCmd.Flags().String("files-base-url", "http://localhost:8080/files", "public base URL for stored scan images")
	hubCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	hubCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	hubCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	hubCmd.Flags().String("db-password", "", "PostgreSQL password")
	hubCmd.Flags().String("db-name", "garden", "PostgreSQL database name")
	hubCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	hubCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the command cells")
	hubCmd.Flags().String("redis-password", "", "Redis password")
	hubCmd.Flags().Int("redis-db", 0, "Redis database number")
	hubCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	hubCmd.Flags().String("queue-name", "notifications", "RabbitMQ queue name for notification events")

	// Bind flags to viper
	_ = viper.BindPFlag("hub.http.port", hubCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("hub.files.dir", hubCmd.Flags().Lookup("files-dir"))
	_ = viper.BindPFlag("hub.files.base_url", hubCmd.Flags().Lookup("files-base-url"))
	_ = viper.BindPFlag("hub.db.host", hubCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("hub.db.port", hubCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("hub.db.user", hubCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("hub.db.password", hubCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("hub.db.name", hubCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("hub.db.sslmode", hubCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("hub.redis.addr", hubCmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("hub.redis.password", hubCmd.Flags().Lookup("redis-password"))
	_ = viper.BindPFlag("hub.redis.db", hubCmd.Flags().Lookup("redis-db"))
	_ = viper.BindPFlag("hub.rabbitmq.url", hubCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("hub.rabbitmq.queue_name", hubCmd.Flags().Lookup("queue-name"))
}

func runHub(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting hub service")

	db, err := store.NewDB(&store.DBConfig{
		Logger:   logger,
		Host:     viper.GetString("hub.db.host"),
		Port:     viper.GetInt("hub.db.port"),
		User:     viper.GetString("hub.db.user"),
		Password: viper.GetString("hub.db.password"),
		DBName:   viper.GetString("hub.db.name"),
		SSLMode:  viper.GetString("hub.db.sslmode"),
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
		Addr:     viper.GetString("hub.redis.addr"),
		Password: viper.GetString("hub.redis.password"),
		DB:       viper.GetInt("hub.redis.db"),
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

	blobs, err := blob.NewFileStore(&blob.FileConfig{
		Logger:   logger,
		BasePath: viper.GetString("hub.files.dir"),
		BaseURL:  viper.GetString("hub.files.base_url"),
	})
	if err != nil {
		logger.Error("failed to create blob store", "error", err)
		return err
	}

	mqClient := mq.New(
		viper.GetString("hub.rabbitmq.queue_name"),
		viper.GetString("hub.rabbitmq.url"),
		logger,
	)
	defer func() {
		if err := mqClient.Close(); err != nil {
			logger.Error("failed to close mq client", "error", err)
		}
	}()

	mqMetrics := metrics.NewMQMetrics("garden_hub")
	mqClient.SetMetrics(mqMetrics)

	notifierMetrics := metrics.NewNotifierMetrics("garden_hub")
	publisher, err := notify.NewPublisher(&notify.PublisherConfig{
		Logger:   logger,
		MQClient: mqClient,
		Metrics:  notifierMetrics,
	})
	if err != nil {
		logger.Error("failed to create notification publisher", "error", err)
		return err
	}

	hubMetrics := metrics.NewHubMetrics("garden_hub")
	ingestSvc, err := ingest.NewService(&ingest.ServiceConfig{
		Logger:    logger,
		Store:     records,
		Blobs:     blobs,
		Publisher: publisher,
		Metrics:   hubMetrics,
	})
	if err != nil {
		logger.Error("failed to create ingest service", "error", err)
		return err
	}

	server, err := hub.NewServer(&hub.ServerConfig{
		Logger:    logger,
		HTTPPort:  viper.GetInt("hub.http.port"),
		FilesDir:  blobs.BasePath(),
		Directory: records,
		Commands:  cells,
		Ingest:    ingestSvc,
		Publisher: publisher,
		Metrics:   hubMetrics,
	})
	if err != nil {
		logger.Error("failed to create hub server", "error", err)
		return err
	}

	logger.Info("hub server configuration",
		"http_port", viper.GetInt("hub.http.port"),
		"db_host", viper.GetString("hub.db.host"),
		"db_name", viper.GetString("hub.db.name"),
		"redis_addr", viper.GetString("hub.redis.addr"),
		"rabbitmq_url", viper.GetString("hub.rabbitmq.url"),
		"queue_name", viper.GetString("hub.rabbitmq.queue_name"),
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("hub server error", "error", err)
		return err
	}

	logger.Info("hub server stopped")
	return nil
}
