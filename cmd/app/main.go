// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickcommand-bridge/internal/application"
	"quickcommand-bridge/internal/config"
	"quickcommand-bridge/internal/domain/ports/adapter"
	"quickcommand-bridge/internal/infra/adapters/discord"
	"quickcommand-bridge/internal/infra/adapters/noop"
	"quickcommand-bridge/internal/infra/adapters/stackspot"
	"quickcommand-bridge/internal/infra/adapters/telegram"
	"quickcommand-bridge/internal/infra/api"
	"quickcommand-bridge/internal/infra/i18n"
	"quickcommand-bridge/internal/infra/logging"
	"quickcommand-bridge/internal/infra/metrics"
	red "quickcommand-bridge/internal/infra/redis"
	"quickcommand-bridge/internal/infra/worker"
	"quickcommand-bridge/internal/usecase"

	"github.com/rs/zerolog"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted secrets)")
	mintSubject := flag.String("mint-token", "", "print an API bearer token for this client name and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of a token printed by -mint-token")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *mintSubject != "" {
		if err := mintToken(os.Stdout, cfg, *mintSubject, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "mint-token: %v\n", err)
			os.Exit(1)
		}
		return
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("quickcommand bridge stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().
		Str("version", version).
		Str("platform", cfg.Bot.Platform).
		Str("client_id", logging.Redact(cfg.StackSpot.ClientID, cfg.Runtime.Dev)).
		Msg("starting quickcommand bridge")

	// ---- StackSpot ----
	httpClient := &http.Client{Timeout: cfg.StackSpot.HTTPTimeout}
	tokens, err := stackspot.NewTokenProvider(cfg.StackSpot.TokenURL, cfg.StackSpot.ClientID, cfg.StackSpot.ClientSecret, httpClient, logger)
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}
	remote, err := stackspot.NewClient(cfg.StackSpot.QuickCommandURL, cfg.StackSpot.CallbackURL, cfg.StackSpot.Slug, httpClient, logger)
	if err != nil {
		return fmt.Errorf("quick command client: %w", err)
	}

	// ---- Use cases ----
	quickUC := usecase.NewQuickCommandUseCase(tokens, remote, usecase.PollOptions{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Timeout:     cfg.Poll.Timeout,
	}, logger)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	logger.Info().Str("lang", tr.Lang()).Msg("user messages localized")

	// ---- Redis (optional) ----
	var guard application.Guard
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		guard = application.Guard{
			Limiter:  red.NewRateLimiter(redisClient),
			Locker:   red.NewLocker(redisClient),
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			LockTTL:  cfg.RateLimit.LockTTL,
		}
		logger.Info().Int("requests", cfg.RateLimit.Requests).Dur("window", cfg.RateLimit.Window).Msg("redis guard enabled")
	}

	// ---- Worker pool ----
	pool := worker.NewPool(cfg.Bot.Workers, cfg.Bot.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Chat platform ----
	bot, err := newChatBot(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := usecase.NewDispatcher(bot, logger)
	facade := application.NewBotFacade(quickUC, dispatcher, tr, pool, guard, logger)

	// ---- HTTP server ----
	var srv *api.Server
	if cfg.HTTP.Port > 0 {
		var auth *api.AuthManager
		if cfg.API.JWTSecret != "" {
			auth = api.NewAuthManager(cfg.API.JWTSecret)
		} else {
			logger.Warn().Msg("api.jwt_secret not set; /api/v1 is disabled")
		}
		srv = api.NewServer(quickUC, auth, cfg.HTTP.Port, cfg.API.RequestTimeout, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("http server error")
				stop()
			}
		}()
	}

	// ---- Event loop (blocks until shutdown) ----
	err = bot.Start(ctx, facade.OnMessage)
	logger.Info().Msg("shutdown requested")
	stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn().Err(serr).Msg("http shutdown")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", bot.Platform(), err)
	}
	return nil
}

func mintToken(w io.Writer, cfg *config.Config, subject string, ttl time.Duration) error {
	if cfg.API.JWTSecret == "" {
		return errors.New("API_JWT_SECRET (api.jwt_secret) is not set")
	}
	tok, err := api.NewAuthManager(cfg.API.JWTSecret).Mint(subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func newChatBot(cfg *config.Config, logger *zerolog.Logger) (adapter.ChatBot, error) {
	switch cfg.Bot.Platform {
	case discord.Platform:
		b, err := discord.NewRealDiscordBotAdapter(cfg.Bot.DiscordToken, logger)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		return b, nil
	case telegram.Platform:
		b, err := telegram.NewRealTelegramBotAdapter(cfg.Bot.TelegramToken, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		return b, nil
	case "noop":
		return noop.NewNoopBotAdapter(discord.MessageLimit, logger), nil
	default:
		return nil, fmt.Errorf("unsupported bot platform %q", cfg.Bot.Platform)
	}
}
