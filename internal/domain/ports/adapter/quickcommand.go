package adapter

import (
	"context"

	"quickcommand-bridge/internal/domain/model"
)

// TokenProvider obtains a bearer token for the remote quick command API.
// Implementations must not cache: every call is one request to the token endpoint.
type TokenProvider interface {
	FetchAccessToken(ctx context.Context) (string, error)
}

// QuickCommandClient talks to the remote quick command API with a caller-supplied token.
type QuickCommandClient interface {
	Submit(ctx context.Context, token, payload string) (model.JobID, error)
	Status(ctx context.Context, token string, id model.JobID) (*model.StatusRecord, error)
}
