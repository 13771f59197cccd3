package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"quickcommand-bridge/internal/infra/logging"

	"github.com/golang-jwt/jwt/v5"
)

// ===== JWT primitives =====

type ClientClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// AuthManager signs and verifies HS256 bearer tokens for API clients.
type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

// Mint issues a token for subject valid for ttl.
func (a *AuthManager) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ClientClaims{
		Scope: "quickcommand",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*ClientClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errors.New("missing token")
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*ClientClaims, error) {
	claims := &ClientClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Require rejects requests without a valid bearer token.
func (a *AuthManager) Require() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := r.Context()
			if claims.Subject != "" {
				ctx = logging.WithUserID(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
