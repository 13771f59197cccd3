package stackspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quickcommand-bridge/internal/domain"
	"quickcommand-bridge/internal/domain/model"
	"quickcommand-bridge/internal/domain/ports/adapter"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.QuickCommandClient = (*Client)(nil)

const maxBody = 1 << 20

// Client implements adapter.QuickCommandClient against the StackSpot
// Remote Quick Command API.
// Submit:  POST {quickCommandURL}/{slug}   body {"input_data": ...}
// Status:  GET  {callbackURL}/{executionID}
// Authorization: Bearer <token>
type Client struct {
	quickCommandURL string
	callbackURL     string
	slug            string
	client          *http.Client
	log             *zerolog.Logger
}

func NewClient(quickCommandURL, callbackURL, slug string, client *http.Client, log *zerolog.Logger) (*Client, error) {
	if quickCommandURL == "" || callbackURL == "" {
		return nil, errors.New("quick command urls empty")
	}
	if slug == "" {
		return nil, errors.New("slug empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Client{
		quickCommandURL: strings.TrimRight(quickCommandURL, "/"),
		callbackURL:     strings.TrimRight(callbackURL, "/"),
		slug:            slug,
		client:          client,
		log:             log,
	}, nil
}

func (c *Client) Submit(ctx context.Context, token, payload string) (id model.JobID, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(string(domain.OpSubmit), time.Since(start).Milliseconds(), err == nil)
	}()

	b, err := json.Marshal(struct {
		InputData string `json:"input_data"`
	}{InputData: payload})
	if err != nil {
		return "", remoteErr(domain.OpSubmit, 0, "", err)
	}
	endpoint := c.quickCommandURL + "/" + url.PathEscape(c.slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", remoteErr(domain.OpSubmit, 0, "", err)
	}
	setAuth(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("slug", c.slug).Msg("quick command submission failed")
		return "", remoteErr(domain.OpSubmit, 0, "", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("body", truncate(raw)).Str("slug", c.slug).Msg("quick command submission rejected")
		return "", remoteErr(domain.OpSubmit, resp.StatusCode, truncate(raw), nil)
	}

	id = parseExecutionID(raw)
	if err := id.Validate(); err != nil {
		return "", remoteErr(domain.OpSubmit, resp.StatusCode, truncate(raw), err)
	}
	c.log.Info().Str("execution_id", id.String()).Str("slug", c.slug).Msg("quick command submitted")
	return id, nil
}

func (c *Client) Status(ctx context.Context, token string, id model.JobID) (rec *model.StatusRecord, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(string(domain.OpStatus), time.Since(start).Milliseconds(), err == nil)
	}()

	if err := id.Validate(); err != nil {
		return nil, remoteErr(domain.OpStatus, 0, "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.callbackURL+"/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return nil, remoteErr(domain.OpStatus, 0, "", err)
	}
	setAuth(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, remoteErr(domain.OpStatus, 0, "", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("body", truncate(raw)).Str("execution_id", id.String()).Msg("status query rejected")
		return nil, remoteErr(domain.OpStatus, resp.StatusCode, truncate(raw), nil)
	}

	rec = &model.StatusRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, remoteErr(domain.OpStatus, resp.StatusCode, truncate(raw), fmt.Errorf("decode status: %w", err))
	}
	return rec, nil
}

// parseExecutionID accepts a JSON string body ("01J..."), an object carrying
// execution_id or id, or falls back to the raw text.
func parseExecutionID(raw []byte) model.JobID {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.JobID(strings.TrimSpace(s))
	}
	var obj struct {
		ExecutionID string `json:"execution_id"`
		ID          string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ExecutionID != "" {
			return model.JobID(obj.ExecutionID)
		}
		return model.JobID(obj.ID)
	}
	return model.JobID(strings.TrimSpace(string(raw)))
}

func setAuth(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

func remoteErr(op domain.Op, status int, body string, cause error) error {
	err := domain.SentinelFor(op)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return &domain.RemoteError{Op: op, StatusCode: status, Body: body, Err: err}
}

func truncate(raw []byte) string { return logging.Truncate(string(raw), 512) }
