//go:build !integration

package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickcommand-bridge/internal/config"
	"quickcommand-bridge/internal/infra/api"
)

func TestMintToken(t *testing.T) {
	t.Run("should refuse without a secret", func(t *testing.T) {
		var out bytes.Buffer
		if err := mintToken(&out, &config.Config{}, "ci", time.Minute); err == nil {
			t.Fatal("expected an error for an empty secret")
		}
		if out.Len() != 0 {
			t.Fatalf("nothing should be printed, got %q", out.String())
		}
	})

	t.Run("should print a token the API accepts", func(t *testing.T) {
		cfg := &config.Config{API: config.APIConfig{JWTSecret: "s3cret"}}
		var out bytes.Buffer
		if err := mintToken(&out, cfg, "ci", time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req := httptest.NewRequest("GET", "/api/v1/quickcommand/x", nil)
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out.String()))
		claims, err := api.NewAuthManager("s3cret").ParseFromRequest(req)
		if err != nil {
			t.Fatalf("token rejected: %v", err)
		}
		if claims.Subject != "ci" {
			t.Fatalf("subject = %q, want ci", claims.Subject)
		}
	})
}
