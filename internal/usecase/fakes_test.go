//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"quickcommand-bridge/internal/domain/model"
)

// fakeTokens hands out numbered tokens or a scripted error.
type fakeTokens struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTokens) FetchAccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

// scriptedRemote replays status records in order; the last one repeats.
type scriptedRemote struct {
	mu          sync.Mutex
	submitID    model.JobID
	submitErr   error
	submits     []string
	statuses    []*model.StatusRecord
	statusErr   error
	statusCalls int
}

func (s *scriptedRemote) Submit(ctx context.Context, token, payload string) (model.JobID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, payload)
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.submitID, nil
}

func (s *scriptedRemote) Status(ctx context.Context, token string, id model.JobID) (*model.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	i := s.statusCalls - 1
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i], nil
}

func record(status model.JobStatus, answer *string) *model.StatusRecord {
	rec := &model.StatusRecord{Progress: model.Progress{Status: status}}
	if answer != nil {
		steps, _ := json.Marshal([]map[string]map[string]string{{"step_result": {"answer": *answer}}})
		rec.Steps = steps
	}
	return rec
}

func strPtr(s string) *string { return &s }

// waitRecorder records requested waits without sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

// recordingChat captures outgoing messages.
type recordingChat struct {
	mu      sync.Mutex
	limit   int
	sent    []string
	failAt  int // 1-based send index that fails; 0 never
	sendErr error
}

func (r *recordingChat) Platform() string      { return "test" }
func (r *recordingChat) MaxMessageLength() int { return r.limit }
func (r *recordingChat) SendMessage(ctx context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt > 0 && len(r.sent)+1 == r.failAt {
		return r.sendErr
	}
	r.sent = append(r.sent, text)
	return nil
}
