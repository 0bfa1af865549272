// Package bot is the operator-facing chat surface: robot binding, scan
// control, plant management with QR labels, and scan history browsing.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/metrics"
)

// API is the slice of the Telegram client the bot uses. *tgbotapi.BotAPI
// satisfies it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Records is the slice of the record store the bot needs. *store.Store
// satisfies it.
type Records interface {
	EnsureUser(ctx context.Context, telegramID, username string) (*store.User, error)
	UserByTelegramID(ctx context.Context, telegramID string) (*store.User, error)
	BindRobot(ctx context.Context, robotID string, userID uint) error
	RobotForUser(ctx context.Context, userID uint) (*store.Robot, error)
	AddPlant(ctx context.Context, plant *store.Plant) error
	ActivePlants(ctx context.Context, userID uint) ([]store.Plant, error)
	ActivePlant(ctx context.Context, userID uint, plantID string) (*store.Plant, error)
	DeletePlant(ctx context.Context, userID uint, plantID string) error
	SetQRMessageID(ctx context.Context, plantID string, messageID int) error
	QRMessageID(ctx context.Context, plantID string) (int, error)
	ScansByPlant(ctx context.Context, plantID string, limit int) ([]store.ScanRecord, error)
	ScanTimestamps(ctx context.Context, robotID string, limit int) ([]time.Time, error)
	ScansByTimestamp(ctx context.Context, robotID string, ts time.Time) ([]store.ScanRecord, error)
}

// Bot handles inbound chat updates.
type Bot struct {
	logger   *slog.Logger
	api      API
	records  Records
	commands command.Store
	sessions *Sessions
	metrics  *metrics.BotMetrics // Optional metrics
}

// Config holds the configuration for the Bot.
type Config struct {
	Logger   *slog.Logger
	API      API
	Records  Records
	Commands command.Store
	Metrics  *metrics.BotMetrics
}

// New creates a new Bot instance.
func New(cfg *Config) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.API == nil {
		return nil, errors.New("telegram api cannot be nil")
	}

	if cfg.Records == nil {
		return nil, errors.New("record store cannot be nil")
	}

	if cfg.Commands == nil {
		return nil, errors.New("command store cannot be nil")
	}

	return &Bot{
		logger:   cfg.Logger,
		api:      cfg.API,
		records:  cfg.Records,
		commands: cfg.Commands,
		sessions: NewSessions(cfg.Metrics),
		metrics:  cfg.Metrics,
	}, nil
}

// Run processes updates until the context is canceled or the channel
// closes. Updates are handled sequentially; per-session handling is
// never concurrent.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.logger.Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("context canceled, stopping bot")
			return nil

		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("updates channel closed")
				return nil
			}

			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one inbound update. Handler failures are
// reported to the operator as an inline message, never a crash.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if b.metrics != nil {
			b.metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		}
		b.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil:
		if b.metrics != nil {
			b.metrics.UpdatesTotal.WithLabelValues("message").Inc()
		}
		b.handleMessage(ctx, update.Message)
	}
}

// send pushes one chattable and logs the failure; chat delivery problems
// must never take the update loop down.
func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	msg, err := b.api.Send(c)
	if err != nil {
		b.logger.Error("failed to send chat message", "error", err)
	}
	return msg
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMenu(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) editMenu(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup))
}

// fail reports a handler error to the operator and the log.
func (b *Bot) fail(chatID int64, action string, err error) {
	b.logger.Error("handler failed", "action", action, "error", err)
	if b.metrics != nil {
		b.metrics.HandlerErrors.WithLabelValues(action).Inc()
	}
	b.sendText(chatID, "Something went wrong. Please try again.")
}
