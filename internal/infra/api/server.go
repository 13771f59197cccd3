package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes health, metrics and the quick command API over HTTP.
type Server struct {
	quickUC usecase.QuickCommandUseCase
	auth    *AuthManager
	timeout time.Duration
	log     *zerolog.Logger
	server  *http.Server
}

// NewServer builds the HTTP layer listening on port. A nil auth leaves
// /api/v1 unmounted.
func NewServer(quickUC usecase.QuickCommandUseCase, auth *AuthManager, port int, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{quickUC: quickUC, auth: auth, timeout: requestTimeout, log: logger}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.auth != nil && s.quickUC != nil {
		r.Route("/api/v1/quickcommands", func(r chi.Router) {
			r.Use(s.auth.Require(), Timeout(s.timeout))
			r.Post("/", s.handleRun)
			r.Get("/{id}", s.handleStatus)
		})
	}
	return r
}

// Start serves until Shutdown. It returns nil at once if Shutdown came first.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type runRequest struct {
	Input string `json:"input"`
}

type runResponse struct {
	ExecutionID string `json:"execution_id"`
	Answer      string `json:"answer"`
}

type statusResponse struct {
	ExecutionID string          `json:"execution_id"`
	Status      model.JobStatus `json:"status"`
	Answer      *string         `json:"answer"`
}

type errorResponse struct {
	Error       string `json:"error"`
	ExecutionID string `json:"execution_id,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, answer, err := s.quickUC.Run(r.Context(), req.Input)
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Str("execution_id", id.String()).Msg("api quick command failed")
		writeJSON(w, statusFor(err), errorResponse{Error: publicMessage(err), ExecutionID: id.String()})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{ExecutionID: id.String(), Answer: answer})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := model.JobID(chi.URLParam(r, "id"))
	rec, err := s.quickUC.Status(r.Context(), id)
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Str("execution_id", id.String()).Msg("api status query failed")
		writeError(w, statusFor(err), publicMessage(err))
		return
	}
	resp := statusResponse{ExecutionID: id.String(), Status: rec.Progress.Status}
	if a, ok := rec.Answer(); ok {
		resp.Answer = &a
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyArgument), errors.Is(err, domain.ErrInvalidJobID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPollExhausted), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrToken), errors.Is(err, domain.ErrSubmission), errors.Is(err, domain.ErrPoll):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides remote response bodies from API clients.
func publicMessage(err error) string {
	for _, e := range []error{
		domain.ErrEmptyArgument, domain.ErrInvalidJobID, domain.ErrPollExhausted,
		domain.ErrToken, domain.ErrSubmission, domain.ErrPoll,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
