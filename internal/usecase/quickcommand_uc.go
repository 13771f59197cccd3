package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/adapter"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ QuickCommandUseCase = (*quickCommandUC)(nil)

type QuickCommandUseCase interface {
	// Submit fetches a fresh token and starts a remote execution.
	Submit(ctx context.Context, payload string) (model.JobID, error)
	// Poll queries the execution until it is COMPLETED and returns its answer.
	Poll(ctx context.Context, id model.JobID) (string, error)
	// Status performs a single status query.
	Status(ctx context.Context, id model.JobID) (*model.StatusRecord, error)
	// Run is Submit followed by Poll.
	Run(ctx context.Context, payload string) (model.JobID, string, error)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// PollOptions tunes the poll loop. Zero MaxAttempts and Timeout keep it unbounded.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

type quickCommandUC struct {
	tokens adapter.TokenProvider
	remote adapter.QuickCommandClient
	opts   PollOptions
	wait   WaitFunc
	log    *zerolog.Logger
}

func NewQuickCommandUseCase(tokens adapter.TokenProvider, remote adapter.QuickCommandClient, opts PollOptions, logger *zerolog.Logger) *quickCommandUC {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &quickCommandUC{tokens: tokens, remote: remote, opts: opts, wait: ContextWait, log: logger}
}

// WithWait swaps the wait primitive (tests use it to observe sleeps).
func (uc *quickCommandUC) WithWait(w WaitFunc) *quickCommandUC {
	uc.wait = w
	return uc
}

// ContextWait waits on a timer without blocking other goroutines and returns
// early with ctx.Err() on cancellation.
func ContextWait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (uc *quickCommandUC) Submit(ctx context.Context, payload string) (model.JobID, error) {
	defer logging.TraceDuration(uc.log, "QuickCommandUC.Submit")()
	if strings.TrimSpace(payload) == "" {
		return "", domain.ErrEmptyArgument
	}
	l := logging.With(ctx, uc.log)

	token, err := uc.tokens.FetchAccessToken(ctx)
	if err != nil {
		l.Error().Err(err).Msg("could not obtain access token for submission")
		return "", err
	}
	id, err := uc.remote.Submit(ctx, token, payload)
	if err != nil {
		l.Error().Err(err).Msg("quick command submission failed")
		return "", err
	}
	l.Info().Str("execution_id", id.String()).Msg("quick command submitted")
	return id, nil
}

func (uc *quickCommandUC) Status(ctx context.Context, id model.JobID) (*model.StatusRecord, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	token, err := uc.tokens.FetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return uc.remote.Status(ctx, token, id)
}

func (uc *quickCommandUC) Poll(ctx context.Context, id model.JobID) (string, error) {
	defer logging.TraceDuration(uc.log, "QuickCommandUC.Poll")()
	if err := id.Validate(); err != nil {
		return "", err
	}
	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}
	l := logging.With(ctx, uc.log).With().Str("execution_id", id.String()).Logger()

	for attempt := 1; ; attempt++ {
		rec, err := uc.Status(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", pollStopped(ctxErr)
			}
			l.Error().Err(err).Int("attempt", attempt).Msg("status query failed")
			return "", err
		}

		if rec.Progress.Status.IsTerminal() {
			metrics.ObservePollAttempts(attempt)
			answer, ok := rec.Answer()
			if !ok {
				l.Warn().Msg("execution completed without steps[0].step_result.answer")
				return model.AnswerNotFound, nil
			}
			l.Info().Int("attempts", attempt).Msg("quick command completed")
			return answer, nil
		}

		if uc.opts.MaxAttempts > 0 && attempt >= uc.opts.MaxAttempts {
			metrics.ObservePollAttempts(attempt)
			l.Warn().Int("attempts", attempt).Str("status", string(rec.Progress.Status)).Msg("giving up on quick command")
			return "", fmt.Errorf("%w: %d status queries", domain.ErrPollExhausted, attempt)
		}

		l.Info().Str("status", string(rec.Progress.Status)).Dur("interval", uc.opts.Interval).Msg("quick command still running")
		if err := uc.wait(ctx, uc.opts.Interval); err != nil {
			return "", pollStopped(err)
		}
	}
}

// pollStopped maps a context error ending the loop: a deadline means the job
// ran out of time, a cancellation (shutdown, client gone) is returned as-is.
func pollStopped(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrPollExhausted, err)
	}
	return err
}

func (uc *quickCommandUC) Run(ctx context.Context, payload string) (model.JobID, string, error) {
	id, err := uc.Submit(ctx, payload)
	if err != nil {
		return "", "", err
	}
	answer, err := uc.Poll(ctx, id)
	if err != nil {
		return id, "", err
	}
	return id, answer, nil
}
