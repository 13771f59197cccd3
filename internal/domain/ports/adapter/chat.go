package adapter

import (
	"context"

	"quickcommand-bridge/internal/domain/model"
)

// ChatAdapter is the outbound port of a chat platform.
type ChatAdapter interface {
	// Platform returns a short name used in logs and metrics ("discord", "telegram").
	Platform() string
	// MaxMessageLength is the per-message character limit of the platform.
	MaxMessageLength() int
	SendMessage(ctx context.Context, channelID string, text string) error
}

// MessageFunc receives every message a chat platform delivers.
type MessageFunc func(ctx context.Context, msg model.IncomingMessage)

// ChatBot is a ChatAdapter that also owns the inbound event loop.
type ChatBot interface {
	ChatAdapter
	// Start connects, delivers messages to handle and blocks until ctx is done.
	Start(ctx context.Context, handle MessageFunc) error
}
