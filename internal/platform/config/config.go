package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" default:"development"`
	Port           string `env:"PORT" default:"8080"`
	AppURL         string `env:"APP_URL" default:"http://localhost:8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	StoreBackend   string `env:"STORE_BACKEND" default:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" default:"10"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" default:"2"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`
	PollChoicesRaw string `env:"POLL_CHOICES" default:"A,B,C,D,E"`

	RoomCacheTTL time.Duration `env:"ROOM_CACHE_TTL" default:"1m"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"5"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"10"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int `env:"MAX_CONNECTIONS_PER_IP" default:"50"`

	ConnectRate  float64 `env:"WS_CONNECT_RATE" default:"10"`
	ConnectBurst int     `env:"WS_CONNECT_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// PollChoices returns the configured poll choice labels in order.
func (c *Config) PollChoices() []string {
	return splitList(c.PollChoicesRaw)
}

// Origins returns the additional websocket origins.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, cfg.StoreBackend)
	}

	if err := validateChoices(strings.Split(cfg.PollChoicesRaw, ",")); err != nil {
		return err
	}

	if cfg.DBMinConns < 0 || cfg.DBMaxConns < 1 || cfg.DBMinConns > cfg.DBMaxConns {
		return errors.New("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}

	if cfg.RoomCacheTTL <= 0 {
		return errors.New("ROOM_CACHE_TTL must be positive")
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if cfg.MaxWebSocketConnections < 1 || cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectRate <= 0 || cfg.ConnectBurst < 1 {
		return errors.New("WS_CONNECT_RATE and WS_CONNECT_BURST must be positive")
	}

	if cfg.IsProduction() && cfg.DatabaseURL != "" {
		if err := validateSSLMode(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateChoices(raw []string) error {
	seen := make(map[string]bool, len(raw))
	for _, label := range raw {
		label = strings.TrimSpace(label)
		if label == "" {
			return errors.New("POLL_CHOICES must not contain empty labels")
		}
		if seen[label] {
			return fmt.Errorf("POLL_CHOICES contains duplicate label %q", label)
		}
		seen[label] = true
	}
	if len(seen) < 2 {
		return errors.New("POLL_CHOICES must list at least 2 labels")
	}
	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
