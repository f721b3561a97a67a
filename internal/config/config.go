package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	DiscordBotToken  string
	DiscordChannelId string

	DBDriver    string
	DatabaseDSN string
	LogLevel    zerolog.Level
	ImportDir   string
	HealthAddr  string
}

func Load() (*Config, error) {
	driver := strings.ToLower(env("DB_DRIVER", DriverSQLite))
	dsn := os.Getenv("DATABASE_DSN")
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "transaction.db"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_DSN is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(env("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelId: os.Getenv("DISCORD_CHANNEL_ID"),
		DBDriver:         driver,
		DatabaseDSN:      dsn,
		LogLevel:         level,
		ImportDir:        env("IMPORT_DIR", os.TempDir()),
		HealthAddr:       env("HEALTH_ADDR", ":8080"),
	}, nil
}

// ValidateBot reports the settings the Discord bot cannot run without.
func (c *Config) ValidateBot() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("Bot token is not set")
	}
	if c.DiscordChannelId == "" {
		return fmt.Errorf("Channel ID is not set")
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
