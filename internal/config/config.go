package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration, resolved from the environment.
type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN,required"`

	// DatabaseURL selects the PostgreSQL backend when set (as on the hosting
	// platform); DatabasePath is the local SQLite file used otherwise and as
	// the fallback.
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"filmschool.db"`

	// AdminID seeds the first administrator on initial startup.
	AdminID int64 `env:"ADMIN_ID"`

	Debug          bool          `env:"DEBUG" envDefault:"false"`
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"5s"`
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
