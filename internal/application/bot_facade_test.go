//go:build !integration

package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"quickcommand-bridge/internal/application"
	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/infra/i18n"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/infra/worker"
)

// ---- Fakes ----

type mockRunner struct {
	mu        sync.Mutex
	submitted []string
	polled    []model.JobID
	submitErr error
	pollErr   error
	answer    string
	traceIDs  []string
}

func (m *mockRunner) Submit(ctx context.Context, payload string) (model.JobID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, payload)
	m.traceIDs = append(m.traceIDs, logging.TraceID(ctx))
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return "exec-1", nil
}

func (m *mockRunner) Poll(ctx context.Context, id model.JobID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polled = append(m.polled, id)
	if m.pollErr != nil {
		return "", m.pollErr
	}
	return m.answer, nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []string
	long []string
}

func (m *mockSender) Send(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockSender) SendLong(ctx context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.long = append(m.long, content)
	return nil
}

// inlineTasks runs submitted tasks synchronously.
type inlineTasks struct{ full bool }

func (i inlineTasks) Submit(task worker.Task) error {
	if i.full {
		return domain.ErrQueueFull
	}
	return task(context.Background())
}

type mockLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, m.err
}

type mockLocker struct {
	held     map[string]string
	err      error
	unlocked []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrBusy
	}
	m.held[key] = "tok"
	return "tok", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	delete(m.held, key)
	m.unlocked = append(m.unlocked, key)
	return nil
}

func newFacade(t *testing.T, runner *mockRunner, sender *mockSender, tasks application.TaskSubmitter, guard application.Guard) *application.BotFacade {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	return application.NewBotFacade(runner, sender, tr, tasks, guard, nil)
}

func msg(content string) model.IncomingMessage {
	return model.IncomingMessage{Platform: "discord", ChannelID: "c1", AuthorID: "u1", Content: content}
}

// ---- Tests ----

func TestHandleMessage_RunsPipeline(t *testing.T) {
	runner := &mockRunner{answer: "42"}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	if err := f.HandleMessage(context.Background(), msg("!quickcommand   what is 6*7  ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.submitted) != 1 || runner.submitted[0] != "what is 6*7" {
		t.Fatalf("unexpected submissions %q", runner.submitted)
	}
	if len(runner.polled) != 1 || runner.polled[0] != "exec-1" {
		t.Fatalf("unexpected polls %v", runner.polled)
	}
	if len(sender.long) != 1 || sender.long[0] != "Quick Command result:\n42" {
		t.Fatalf("unexpected reply %q", sender.long)
	}
}

func TestHandleMessage_BarePrefixRepliesUsage(t *testing.T) {
	runner := &mockRunner{}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	if err := f.HandleMessage(context.Background(), msg("!quickcommand")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.submitted) != 0 {
		t.Fatal("usage hint must not submit")
	}
	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0], "Please provide the code") {
		t.Fatalf("expected usage hint, got %q", sender.sent)
	}
}

func TestHandleMessage_IgnoresSelfAndOtherText(t *testing.T) {
	runner := &mockRunner{}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	self := msg("!quickcommand loop")
	self.FromSelf = true
	for _, m := range []model.IncomingMessage{self, msg("hello"), msg("!quickcommander x")} {
		if err := f.HandleMessage(context.Background(), m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(runner.submitted) != 0 || len(sender.sent) != 0 || len(sender.long) != 0 {
		t.Fatal("nothing should happen for ignored messages")
	}
}

func TestHandleMessage_SubmissionFailure(t *testing.T) {
	runner := &mockRunner{submitErr: &domain.RemoteError{Op: domain.OpSubmit, StatusCode: 500, Err: domain.ErrSubmission}}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
	if len(runner.polled) != 0 {
		t.Fatal("poll must not run after a failed submission")
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Error executing the remote command." {
		t.Fatalf("expected generic failure, got %q", sender.sent)
	}
}

func TestHandleMessage_PollFailures(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"status error": {err: domain.ErrPoll, want: "The remote command was started but its result could not be retrieved."},
		"timeout":      {err: domain.ErrPollExhausted, want: "The remote command did not finish in time."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &mockRunner{pollErr: tc.err}
			sender := &mockSender{}
			f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})
			_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
			if len(sender.sent) != 1 || sender.sent[0] != tc.want {
				t.Fatalf("wanted %q, got %q", tc.want, sender.sent)
			}
			if len(sender.long) != 0 {
				t.Fatal("no result should be dispatched")
			}
		})
	}
}

func TestHandleMessage_ShutdownDuringPollIsSilent(t *testing.T) {
	runner := &mockRunner{pollErr: context.Canceled}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	if err := f.HandleMessage(context.Background(), msg("!quickcommand x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 || len(sender.long) != 0 {
		t.Fatalf("no reply expected on shutdown, got %q %q", sender.sent, sender.long)
	}
}

func TestHandleMessage_RateLimit(t *testing.T) {
	t.Run("should reject when over the limit", func(t *testing.T) {
		runner := &mockRunner{}
		sender := &mockSender{}
		lim := &mockLimiter{allow: false}
		f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{Limiter: lim, Requests: 1, Window: time.Minute})
		_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
		if len(runner.submitted) != 0 {
			t.Fatal("limited command must not submit")
		}
		if len(lim.keys) != 1 || lim.keys[0] != "rate_limit:discord:u1:quickcommand" {
			t.Fatalf("unexpected limiter key %v", lim.keys)
		}
		if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Too many") {
			t.Fatalf("unexpected reply %q", sender.sent)
		}
	})

	t.Run("should fail open when the limiter errors", func(t *testing.T) {
		runner := &mockRunner{answer: "ok"}
		sender := &mockSender{}
		lim := &mockLimiter{err: errors.New("redis down")}
		f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{Limiter: lim, Requests: 1, Window: time.Minute})
		_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
		if len(runner.submitted) != 1 {
			t.Fatal("command should run when the limiter is unavailable")
		}
	})
}

func TestHandleMessage_Lock(t *testing.T) {
	runner := &mockRunner{answer: "ok"}
	sender := &mockSender{}
	locker := &mockLocker{held: map[string]string{"quickcommand_lock:discord:u1": "other"}}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{Locker: locker, LockTTL: time.Minute})

	_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
	if len(runner.submitted) != 0 || len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "already have") {
		t.Fatalf("busy user should be told to wait, got %q", sender.sent)
	}

	delete(locker.held, "quickcommand_lock:discord:u1")
	_ = f.HandleMessage(context.Background(), msg("!quickcommand x"))
	if len(runner.submitted) != 1 {
		t.Fatal("command should run once the lock is free")
	}
	if len(locker.unlocked) != 1 || len(locker.held) != 0 {
		t.Fatal("lock must be released after the run")
	}
}

func TestOnMessage_UsesPoolAndTraceID(t *testing.T) {
	runner := &mockRunner{answer: "ok"}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{}, application.Guard{})

	f.OnMessage(context.Background(), msg("!quickcommand x"))
	if len(runner.traceIDs) != 1 || runner.traceIDs[0] == "" {
		t.Fatalf("expected a trace id in the task context, got %q", runner.traceIDs)
	}
}

func TestOnMessage_QueueFull(t *testing.T) {
	runner := &mockRunner{}
	sender := &mockSender{}
	f := newFacade(t, runner, sender, inlineTasks{full: true}, application.Guard{})

	f.OnMessage(context.Background(), msg("!quickcommand x"))
	f.OnMessage(context.Background(), msg("just chatting"))
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "busy") {
		t.Fatalf("expected one busy reply, got %q", sender.sent)
	}
}
