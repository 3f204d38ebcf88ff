package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, loaded from the environment.
type Config struct {
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL,required,notEmpty"`

	// TieWindow is the buzz tie-break tolerance: arrivals within this
	// distance of the earliest arrival still qualify.
	TieWindow time.Duration `env:"BUZZ_TIE_WINDOW" envDefault:"100ms"`

	// MaxClientsPerSession caps subscribers per session topic.
	MaxClientsPerSession int `env:"MAX_CLIENTS_PER_SESSION" envDefault:"500"`

	// ClientMessageRate / ClientMessageBurst bound inbound frames per
	// connection per second.
	ClientMessageRate  float64 `env:"CLIENT_MESSAGE_RATE" envDefault:"20"`
	ClientMessageBurst int     `env:"CLIENT_MESSAGE_BURST" envDefault:"40"`

	// LeaderboardSize is how many tally rows a leaderboard broadcast carries.
	LeaderboardSize int64 `env:"LEADERBOARD_SIZE" envDefault:"10"`
}

// Load parses and validates configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.TieWindow <= 0 {
		return nil, fmt.Errorf("BUZZ_TIE_WINDOW must be positive, got %s", cfg.TieWindow)
	}
	if cfg.MaxClientsPerSession <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS_PER_SESSION must be positive, got %d", cfg.MaxClientsPerSession)
	}
	if cfg.ClientMessageRate <= 0 || cfg.ClientMessageBurst <= 0 {
		return nil, fmt.Errorf("client message rate and burst must be positive")
	}

	return &cfg, nil
}
