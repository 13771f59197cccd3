package application

import (
	"context"

	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/infra/worker"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----

type QuickCommandRunner interface {
	Submit(ctx context.Context, payload string) (model.JobID, error)
	Poll(ctx context.Context, id model.JobID) (string, error)
}

type Sender interface {
	Send(ctx context.Context, channelID, text string) error
	SendLong(ctx context.Context, channelID, content string) error
}

type Translator interface {
	T(key string, args ...interface{}) string
}

type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// MessageHandler is what chat adapters deliver incoming events to.
type MessageHandler interface {
	OnMessage(ctx context.Context, msg model.IncomingMessage)
}
