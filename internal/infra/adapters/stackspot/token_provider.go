package stackspot

import (
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
	"quickcommand-bridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.TokenProvider = (*TokenProvider)(nil)

// TokenProvider fetches a bearer token with the OAuth2 client-credentials grant.
// Every call hits the token endpoint; nothing is cached.
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	log          *zerolog.Logger
}

func NewTokenProvider(tokenURL, clientID, clientSecret string, client *http.Client, log *zerolog.Logger) (*TokenProvider, error) {
	if tokenURL == "" {
		return nil, errors.New("token url empty")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("client credentials empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &TokenProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		log:          log,
	}, nil
}

func (p *TokenProvider) FetchAccessToken(ctx context.Context) (tok string, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(string(domain.OpToken), time.Since(start).Milliseconds(), err == nil)
	}()

	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("grant_type", "client_credentials")
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", remoteErr(domain.OpToken, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error().Err(err).Msg("token request failed")
		return "", remoteErr(domain.OpToken, 0, "", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode != http.StatusOK {
		p.log.Error().Int("status", resp.StatusCode).Str("body", truncate(raw)).Msg("token request rejected")
		return "", remoteErr(domain.OpToken, resp.StatusCode, truncate(raw), nil)
	}

	var payload struct {
		AccessToken *string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", remoteErr(domain.OpToken, resp.StatusCode, truncate(raw), fmt.Errorf("decode token response: %w", err))
	}
	if payload.AccessToken == nil {
		p.log.Warn().Msg("token response without access_token")
		return model.NoTokenReceived, nil
	}
	p.log.Debug().Msg("access token obtained")
	return *payload.AccessToken, nil
}
