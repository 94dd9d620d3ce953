package bot

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken   string `env:"DISCORD_TOKEN,notEmpty"`
	DefaultPrefix  string `env:"DEFAULT_PREFIX" envDefault:"!"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"jukebox.db"`
	MetricsAddress string `env:"METRICS_ADDRESS"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	ShardID        int    `env:"SHARD_ID" envDefault:"0"`
	ShardCount     int    `env:"SHARD_COUNT" envDefault:"1"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.ShardCount < 1 || cfg.ShardID < 0 || cfg.ShardID >= cfg.ShardCount {
		return nil, fmt.Errorf("invalid shard %d of %d", cfg.ShardID, cfg.ShardCount)
	}

	return cfg, nil
}
