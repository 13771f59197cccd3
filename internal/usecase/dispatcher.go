package usecase

import (
	"context"
	"fmt"
	"unicode"

	"quickcommand-bridge/internal/domain/ports/adapter"
	"quickcommand-bridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// SplitMessage cuts content into chunks of at most limit characters (runes).
// Each cut is made at the last whitespace at or before limit, or exactly at
// limit when the window holds no whitespace. Leading whitespace is trimmed from
// what remains after each cut. A non-positive limit means the platform has none.
func SplitMessage(content string, limit int) []string {
	runes := []rune(content)
	if limit <= 0 || len(runes) <= limit {
		return []string{content}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = trimLeftSpace(runes[cut:])
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func trimLeftSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}

// Dispatcher sends arbitrarily long text through a chat adapter.
type Dispatcher struct {
	chat adapter.ChatAdapter
	log  *zerolog.Logger
}

func NewDispatcher(chat adapter.ChatAdapter, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{chat: chat, log: logger}
}

// SendLong sends content as one or more sequential messages. The first failed
// send stops the dispatch; chunks already sent stay delivered.
func (d *Dispatcher) SendLong(ctx context.Context, channelID, content string) error {
	parts := SplitMessage(content, d.chat.MaxMessageLength())
	for i, part := range parts {
		err := d.chat.SendMessage(ctx, channelID, part)
		metrics.IncChatMessageSent(d.chat.Platform(), err == nil)
		if err != nil {
			d.log.Error().Err(err).Str("channel_id", channelID).Int("chunk", i+1).Int("chunks", len(parts)).Msg("failed to send message chunk")
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// Send sends a single short message.
func (d *Dispatcher) Send(ctx context.Context, channelID, text string) error {
	err := d.chat.SendMessage(ctx, channelID, text)
	metrics.IncChatMessageSent(d.chat.Platform(), err == nil)
	return err
}
