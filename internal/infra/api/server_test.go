//go:build !integration

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/infra/api"
)

type fakeQuickUC struct {
	runInput string
	runErr   error
	answer   string
	status   *model.StatusRecord
	statErr  error
}

func (f *fakeQuickUC) Submit(ctx context.Context, payload string) (model.JobID, error) {
	return "exec-1", nil
}

func (f *fakeQuickUC) Poll(ctx context.Context, id model.JobID) (string, error) {
	return f.answer, nil
}

func (f *fakeQuickUC) Status(ctx context.Context, id model.JobID) (*model.StatusRecord, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return f.status, f.statErr
}

func (f *fakeQuickUC) Run(ctx context.Context, payload string) (model.JobID, string, error) {
	f.runInput = payload
	if f.runErr != nil {
		return "exec-1", "", f.runErr
	}
	return "exec-1", f.answer, nil
}

const secret = "test-secret"

func newHandler(t *testing.T, uc *fakeQuickUC) (http.Handler, string) {
	t.Helper()
	auth := api.NewAuthManager(secret)
	tok, err := auth.Mint("ci-runner", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return api.NewServer(uc, auth, 0, time.Second, nil).Handler(), tok
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := api.NewServer(nil, nil, 0, 0, nil).Handler()

	rec := do(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if rec := do(h, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/quickcommands", "", `{"input":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("api must not be mounted without auth, got %d", rec.Code)
	}
}

func TestRun(t *testing.T) {
	t.Run("should return execution id and answer", func(t *testing.T) {
		uc := &fakeQuickUC{answer: "42"}
		h, tok := newHandler(t, uc)
		rec := do(h, http.MethodPost, "/api/v1/quickcommands", tok, `{"input":"select 1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("wanted 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["execution_id"] != "exec-1" || body["answer"] != "42" || uc.runInput != "select 1" {
			t.Fatalf("unexpected body %v (input %q)", body, uc.runInput)
		}
	})

	t.Run("should require a valid token", func(t *testing.T) {
		h, _ := newHandler(t, &fakeQuickUC{})
		if rec := do(h, http.MethodPost, "/api/v1/quickcommands", "", `{"input":"x"}`); rec.Code != http.StatusUnauthorized {
			t.Fatalf("wanted 401, got %d", rec.Code)
		}
		other, _ := api.NewAuthManager("other").Mint("x", time.Minute)
		if rec := do(h, http.MethodPost, "/api/v1/quickcommands", other, `{"input":"x"}`); rec.Code != http.StatusUnauthorized {
			t.Fatalf("wanted 401 for foreign signature, got %d", rec.Code)
		}
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		h, tok := newHandler(t, &fakeQuickUC{})
		if rec := do(h, http.MethodPost, "/api/v1/quickcommands", tok, `{`); rec.Code != http.StatusBadRequest {
			t.Fatalf("wanted 400, got %d", rec.Code)
		}
	})

	cases := map[string]struct {
		err  error
		code int
	}{
		"empty input":  {domain.ErrEmptyArgument, http.StatusBadRequest},
		"token":        {&domain.RemoteError{Op: domain.OpToken, StatusCode: 401, Body: "secret body", Err: domain.ErrToken}, http.StatusBadGateway},
		"poll timeout": {domain.ErrPollExhausted, http.StatusGatewayTimeout},
		"cancelled":    {context.Canceled, http.StatusServiceUnavailable},
		"unexpected":   {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h, tok := newHandler(t, &fakeQuickUC{runErr: tc.err})
			rec := do(h, http.MethodPost, "/api/v1/quickcommands", tok, `{"input":"x"}`)
			if rec.Code != tc.code {
				t.Fatalf("wanted %d, got %d", tc.code, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "secret body") {
				t.Fatal("remote body leaked to the client")
			}
		})
	}
}

func TestStatus(t *testing.T) {
	uc := &fakeQuickUC{status: &model.StatusRecord{
		Progress: model.Progress{Status: model.JobStatusCompleted},
		Steps:    json.RawMessage(`[{"step_result":{"answer":"42"}}]`),
	}}
	h, tok := newHandler(t, uc)

	rec := do(h, http.MethodGet, "/api/v1/quickcommands/exec-1", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}
	var body struct {
		ExecutionID string  `json:"execution_id"`
		Status      string  `json:"status"`
		Answer      *string `json:"answer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ExecutionID != "exec-1" || body.Status != "COMPLETED" || body.Answer == nil || *body.Answer != "42" {
		t.Fatalf("unexpected body %+v", body)
	}

	uc.status = nil
	uc.statErr = &domain.RemoteError{Op: domain.OpStatus, StatusCode: 404, Err: domain.ErrPoll}
	if rec := do(h, http.MethodGet, "/api/v1/quickcommands/exec-1", tok, ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("wanted 502, got %d", rec.Code)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := api.NewServer(nil, nil, 0, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server kept listening after shutdown")
	}
}

func TestShutdownWhileStarting(t *testing.T) {
	srv := api.NewServer(nil, nil, 0, 0, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
