package application

import (
	"context"
	"errors"
	"time"

	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/repository"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/infra/metrics"
	red "quickcommand-bridge/internal/infra/redis"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

var _ MessageHandler = (*BotFacade)(nil)

// Guard holds the optional per-user limits. Nil Limiter/Locker disable them.
type Guard struct {
	Limiter  repository.RateLimiter
	Locker   repository.Locker
	Requests int
	Window   time.Duration
	LockTTL  time.Duration
}

// BotFacade is the command handler: it turns chat messages into
// submit -> poll -> reply runs and maps failures to user messages.
type BotFacade struct {
	QuickUC QuickCommandRunner
	sender  Sender
	tr      Translator
	tasks   TaskSubmitter
	guard   Guard
	log     *zerolog.Logger
}

func NewBotFacade(quickUC QuickCommandRunner, sender Sender, tr Translator, tasks TaskSubmitter, guard Guard, logger *zerolog.Logger) *BotFacade {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BotFacade{QuickUC: quickUC, sender: sender, tr: tr, tasks: tasks, guard: guard, log: logger}
}

// OnMessage filters an incoming event and hands quick commands to the worker
// pool. It never blocks on the remote API.
func (b *BotFacade) OnMessage(ctx context.Context, msg model.IncomingMessage) {
	if msg.FromSelf {
		return
	}
	if _, err := model.ParseCommand(msg.Content); errors.Is(err, domain.ErrNotCommand) {
		return
	}
	metrics.IncCommandReceived(msg.Platform)

	ctx = b.withMessage(ctx, msg)
	traceID := logging.TraceID(ctx)
	err := b.tasks.Submit(func(taskCtx context.Context) error {
		taskCtx = b.withMessage(logging.WithTraceID(taskCtx, traceID), msg)
		return b.HandleMessage(taskCtx, msg)
	})
	if err != nil {
		metrics.IncCommandOutcome("queue_full")
		logging.With(ctx, b.log).Warn().Err(err).Msg("dropping quick command")
		_ = b.sender.Send(ctx, msg.ChannelID, b.tr.T("error_queue_full"))
	}
}

func (b *BotFacade) withMessage(ctx context.Context, msg model.IncomingMessage) context.Context {
	if logging.TraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, ulid.Make().String())
	}
	ctx = logging.WithPlatform(ctx, msg.Platform)
	ctx = logging.WithChannelID(ctx, msg.ChannelID)
	return logging.WithUserID(ctx, msg.AuthorID)
}

// HandleMessage runs one quick command synchronously.
func (b *BotFacade) HandleMessage(ctx context.Context, msg model.IncomingMessage) error {
	if msg.FromSelf {
		return nil
	}
	cmd, err := model.ParseCommand(msg.Content)
	switch {
	case errors.Is(err, domain.ErrNotCommand):
		return nil
	case errors.Is(err, domain.ErrEmptyArgument):
		metrics.IncCommandOutcome("usage")
		return b.sender.Send(ctx, msg.ChannelID, b.tr.T("usage_quickcommand"))
	}

	l := logging.With(ctx, b.log)

	if !b.allow(ctx, msg) {
		metrics.IncRateLimitTriggered()
		metrics.IncCommandOutcome("rate_limited")
		return b.sender.Send(ctx, msg.ChannelID, b.tr.T("error_rate_limited"))
	}

	unlock, err := b.lock(ctx, msg)
	if err != nil {
		metrics.IncCommandOutcome("busy")
		return b.sender.Send(ctx, msg.ChannelID, b.tr.T("error_busy"))
	}
	defer unlock()

	l.Info().Int("payload_len", len(cmd.Argument)).Msg("running quick command")

	id, err := b.QuickUC.Submit(ctx, cmd.Argument)
	if err != nil {
		metrics.IncCommandOutcome("submit_failed")
		l.Error().Err(err).Msg("quick command submission failed")
		return b.sender.Send(ctx, msg.ChannelID, b.tr.T("error_remote_command"))
	}

	answer, err := b.QuickUC.Poll(ctx, id)
	if errors.Is(err, context.Canceled) {
		metrics.IncCommandOutcome("cancelled")
		l.Warn().Str("execution_id", id.String()).Msg("quick command abandoned on shutdown")
		return nil
	}
	if err != nil {
		metrics.IncCommandOutcome("poll_failed")
		l.Error().Err(err).Str("execution_id", id.String()).Msg("quick command polling failed")
		key := "error_poll"
		if errors.Is(err, domain.ErrPollExhausted) {
			key = "error_poll_timeout"
		}
		return b.sender.Send(ctx, msg.ChannelID, b.tr.T(key))
	}

	metrics.IncCommandOutcome("completed")
	return b.sender.SendLong(ctx, msg.ChannelID, b.tr.T("result_header", answer))
}

func (b *BotFacade) allow(ctx context.Context, msg model.IncomingMessage) bool {
	if b.guard.Limiter == nil || b.guard.Requests <= 0 {
		return true
	}
	key := red.UserCommandKey(msg.Platform, msg.AuthorID, "quickcommand")
	ok, err := b.guard.Limiter.Allow(ctx, key, b.guard.Requests, b.guard.Window)
	if err != nil {
		// fail open: the limiter is an optional safeguard
		logging.With(ctx, b.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func (b *BotFacade) lock(ctx context.Context, msg model.IncomingMessage) (func(), error) {
	if b.guard.Locker == nil || b.guard.LockTTL <= 0 {
		return func() {}, nil
	}
	key := red.UserLockKey(msg.Platform, msg.AuthorID)
	token, err := b.guard.Locker.TryLock(ctx, key, b.guard.LockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrBusy) {
			logging.With(ctx, b.log).Warn().Err(err).Msg("lock unavailable")
			return func() {}, nil
		}
		return nil, err
	}
	return func() {
		if err := b.guard.Locker.Unlock(context.Background(), key, token); err != nil {
			logging.With(ctx, b.log).Warn().Err(err).Msg("unlock failed")
		}
	}, nil
}
