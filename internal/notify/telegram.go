package notify

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers a notification to one chat. Implementations decide the
// transport; the consumer only cares whether delivery succeeded.
type Sender interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, photoURL, caption string) error
}

// TelegramSender delivers notifications through the Telegram Bot API.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender creates a new TelegramSender instance.
func NewTelegramSender(api *tgbotapi.BotAPI) (*TelegramSender, error) {
	if api == nil {
		return nil, errors.New("bot api cannot be nil")
	}
	return &TelegramSender{api: api}, nil
}

// SendText implements Sender.
func (s *TelegramSender) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendPhoto implements Sender. The photo is passed by URL so Telegram
// fetches it from the hub's file server directly.
func (s *TelegramSender) SendPhoto(chatID int64, photoURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	if _, err := s.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// Ensure TelegramSender implements Sender.
var _ Sender = (*TelegramSender)(nil)
