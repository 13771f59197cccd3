package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultTokenURL is the StackSpot IDM endpoint used when GET_TOKEN_URL is unset.
const DefaultTokenURL = "https://idm.stackspot.com/stackspot-freemium/oidc/oauth/token"

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Platform      string `yaml:"platform"` // discord | telegram | noop
	DiscordToken  string `yaml:"discord_token"`
	TelegramToken string `yaml:"telegram_token"`
	Lang          string `yaml:"lang"`    // en | pt
	Workers       int    `yaml:"workers"` // concurrent commands
	QueueSize     int    `yaml:"queue_size"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables /health, /metrics and the API
}

type APIConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"` // empty disables /api/v1
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables rate limiting and locking
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StackSpotConfig struct {
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	TokenURL        string        `yaml:"token_url"`
	QuickCommandURL string        `yaml:"quick_command_url"`
	CallbackURL     string        `yaml:"callback_url"`
	Slug            string        `yaml:"slug"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = unbounded
	Timeout     time.Duration `yaml:"timeout"`      // 0 = no deadline
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"` // 0 disables
	Window   time.Duration `yaml:"window"`
	LockTTL  time.Duration `yaml:"lock_ttl"` // 0 disables the per-user lock
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	API       APIConfig       `yaml:"api"`
	Redis     RedisConfig     `yaml:"redis"`
	StackSpot StackSpotConfig `yaml:"stackspot"`
	Poll      PollConfig      `yaml:"poll"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, applies .env and environment
// overrides, fills defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BOT_PLATFORM", &cfg.Bot.Platform)
	str("DISCORD_TOKEN", &cfg.Bot.DiscordToken)
	str("TELEGRAM_TOKEN", &cfg.Bot.TelegramToken)
	str("BOT_LANG", &cfg.Bot.Lang)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("API_JWT_SECRET", &cfg.API.JWTSecret)
	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("SLUG", &cfg.StackSpot.Slug)
	str("REMOTE_QUICK_COMMAND_URL", &cfg.StackSpot.QuickCommandURL)
	str("CALLBACK_URL", &cfg.StackSpot.CallbackURL)
	str("GET_TOKEN_URL", &cfg.StackSpot.TokenURL)
	str("STK_CLIENT_ID", &cfg.StackSpot.ClientID)
	str("STK_CLIENT_SECRET", &cfg.StackSpot.ClientSecret)

	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	if v, ok := lookup("POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Platform == "" {
		cfg.Bot.Platform = "discord"
	}
	cfg.Bot.Platform = strings.ToLower(cfg.Bot.Platform)
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "en"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = cfg.Bot.Workers * 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.RequestTimeout <= 0 {
		cfg.API.RequestTimeout = 5 * time.Minute
	}
	if cfg.StackSpot.TokenURL == "" {
		cfg.StackSpot.TokenURL = DefaultTokenURL
	}
	cfg.StackSpot.QuickCommandURL = strings.TrimRight(cfg.StackSpot.QuickCommandURL, "/")
	cfg.StackSpot.CallbackURL = strings.TrimRight(cfg.StackSpot.CallbackURL, "/")
	if cfg.StackSpot.HTTPTimeout <= 0 {
		cfg.StackSpot.HTTPTimeout = 30 * time.Second
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 5 * time.Second
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

// Validate checks that the settings required by the selected platform are present.
func (c *Config) Validate() error {
	switch c.Bot.Platform {
	case "discord":
		if c.Bot.DiscordToken == "" {
			return errors.New("DISCORD_TOKEN (bot.discord_token) is required")
		}
	case "telegram":
		if c.Bot.TelegramToken == "" {
			return errors.New("TELEGRAM_TOKEN (bot.telegram_token) is required")
		}
	case "noop":
	default:
		return fmt.Errorf("bot.platform %q is not supported", c.Bot.Platform)
	}

	if c.StackSpot.ClientID == "" || c.StackSpot.ClientSecret == "" {
		return errors.New("STK_CLIENT_ID and STK_CLIENT_SECRET are required")
	}
	if c.StackSpot.QuickCommandURL == "" {
		return errors.New("REMOTE_QUICK_COMMAND_URL (stackspot.quick_command_url) is required")
	}
	if c.StackSpot.CallbackURL == "" {
		return errors.New("CALLBACK_URL (stackspot.callback_url) is required")
	}
	if c.StackSpot.Slug == "" {
		return errors.New("SLUG (stackspot.slug) is required")
	}
	if c.Poll.MaxAttempts < 0 {
		return errors.New("poll.max_attempts must not be negative")
	}
	return nil
}
