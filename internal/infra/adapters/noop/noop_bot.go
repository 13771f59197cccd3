package noop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/adapter"
)

var _ adapter.ChatBot = (*NoopBotAdapter)(nil)

// NoopBotAdapter is a chat platform for local/dev runs. It logs outgoing
// messages instead of sending them and delivers whatever is pushed with Inject.
type NoopBotAdapter struct {
	limit int
	delay time.Duration
	log   *zerolog.Logger

	mu      sync.Mutex
	sent    []Sent
	inbound chan model.IncomingMessage
}

// Sent is one recorded outgoing message.
type Sent struct {
	ChannelID string
	Text      string
}

func NewNoopBotAdapter(limit int, logger *zerolog.Logger) *NoopBotAdapter {
	if limit <= 0 {
		limit = 2000
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopBotAdapter{limit: limit, delay: 100 * time.Millisecond, log: logger, inbound: make(chan model.IncomingMessage, 16)}
}

func (b *NoopBotAdapter) Platform() string      { return "noop" }
func (b *NoopBotAdapter) MaxMessageLength() int { return b.limit }

// SendMessage logs the message and simulates a small delay.
func (b *NoopBotAdapter) SendMessage(ctx context.Context, channelID string, text string) error {
	if b.delay > 0 {
		t := time.NewTimer(b.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	b.sent = append(b.sent, Sent{ChannelID: channelID, Text: text})
	b.mu.Unlock()
	b.log.Info().Str("channel_id", channelID).Int("len", len(text)).Msg("[noop-chat] " + text)
	return nil
}

// Inject queues a message as if a user had typed it.
func (b *NoopBotAdapter) Inject(msg model.IncomingMessage) {
	if msg.Platform == "" {
		msg.Platform = b.Platform()
	}
	b.inbound <- msg
}

// Sent returns a copy of all messages sent so far.
func (b *NoopBotAdapter) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

func (b *NoopBotAdapter) Start(ctx context.Context, handle adapter.MessageFunc) error {
	b.log.Info().Msg("noop chat adapter started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.inbound:
			handle(ctx, msg)
		}
	}
}
