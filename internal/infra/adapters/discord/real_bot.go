package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/adapter"
)

const (
	Platform = "discord"
	// MessageLimit is Discord's per-message character limit.
	MessageLimit = 2000
)

var _ adapter.ChatBot = (*RealDiscordBotAdapter)(nil)

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// RealDiscordBotAdapter connects to the Discord gateway with discordgo and
// forwards message-create events to a handler.
type RealDiscordBotAdapter struct {
	session *discordgo.Session
	sender  messageSender
	log     *zerolog.Logger
}

func NewRealDiscordBotAdapter(token string, logger *zerolog.Logger) (*RealDiscordBotAdapter, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return &RealDiscordBotAdapter{session: s, sender: s, log: logger}, nil
}

func (r *RealDiscordBotAdapter) Platform() string      { return Platform }
func (r *RealDiscordBotAdapter) MaxMessageLength() int { return MessageLimit }

func (r *RealDiscordBotAdapter) SendMessage(ctx context.Context, channelID string, text string) error {
	if channelID == "" {
		return errors.New("discord: empty channel id")
	}
	if _, err := r.sender.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send to %s: %w", channelID, err)
	}
	return nil
}

// Start opens the gateway connection and blocks until ctx is cancelled.
func (r *RealDiscordBotAdapter) Start(ctx context.Context, handle adapter.MessageFunc) error {
	if handle == nil {
		return errors.New("discord: nil message handler")
	}
	remove := r.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		msg, ok := toIncoming(selfID, m)
		if !ok {
			return
		}
		handle(ctx, msg)
	})
	defer remove()

	r.session.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		r.log.Info().Str("user", ev.User.Username).Int("guilds", len(ev.Guilds)).Msg("connected to discord")
	})

	if err := r.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	<-ctx.Done()
	if err := r.session.Close(); err != nil {
		r.log.Warn().Err(err).Msg("discord close")
	}
	return nil
}

func toIncoming(selfID string, m *discordgo.MessageCreate) (model.IncomingMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return model.IncomingMessage{}, false
	}
	return model.IncomingMessage{
		Platform:   Platform,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		FromSelf:   selfID != "" && m.Author.ID == selfID,
	}, true
}
