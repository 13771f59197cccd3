package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/adapter"
)

const (
	Platform = "telegram"
	// MessageLimit is Telegram's per-message character limit.
	MessageLimit = 4096
)

var _ adapter.ChatBot = (*RealTelegramBotAdapter)(nil)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RealTelegramBotAdapter uses tgbotapi long polling and forwards text
// messages to a handler. Channel ids are chat ids in decimal form.
type RealTelegramBotAdapter struct {
	bot    *tgbotapi.BotAPI
	sender messageSender
	selfID int64
	log    *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(token string, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &RealTelegramBotAdapter{bot: bot, sender: bot, selfID: bot.Self.ID, log: logger}, nil
}

func (r *RealTelegramBotAdapter) Platform() string      { return Platform }
func (r *RealTelegramBotAdapter) MaxMessageLength() int { return MessageLimit }

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, channelID string, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", channelID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Start long-polls for updates until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) Start(ctx context.Context, handle adapter.MessageFunc) error {
	if handle == nil {
		return errors.New("telegram: nil message handler")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	defer r.bot.StopReceivingUpdates()

	r.log.Info().Str("user", r.bot.Self.UserName).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, ok := toIncoming(r.selfID, up.Message); ok {
				handle(ctx, msg)
			}
		}
	}
}

// StopPolling stops the polling loop gracefully.
func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func toIncoming(selfID int64, m *tgbotapi.Message) (model.IncomingMessage, bool) {
	if m == nil || m.Chat == nil || m.Text == "" {
		return model.IncomingMessage{}, false
	}
	msg := model.IncomingMessage{
		Platform:  Platform,
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		Content:   m.Text,
	}
	if m.From != nil {
		msg.AuthorID = strconv.FormatInt(m.From.ID, 10)
		msg.AuthorName = m.From.UserName
		msg.FromSelf = m.From.ID == selfID
	}
	return msg, true
}
