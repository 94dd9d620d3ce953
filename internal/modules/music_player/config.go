package music_player

import (
	"fmt"
	"time"

	"github.com/sglre6355/jukebox/internal/modules/music_player/application/usecases"
)

// Config holds the music player module configuration.
type Config struct {
	LavalinkAddress  string        `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string        `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool          `env:"LAVALINK_SECURE"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT" envDefault:"180s"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"15s"`
	DefaultVolume    int           `env:"DEFAULT_VOLUME" envDefault:"100"`
	EventWorkers     int           `env:"EVENT_WORKERS" envDefault:"4"`
	EventBufferSize  int           `env:"EVENT_BUFFER_SIZE" envDefault:"100"`
}

func (c *Config) validate() error {
	if c.IdleTimeout <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("idle timeout and sweep interval must be positive")
	}
	if c.DefaultVolume < usecases.MinVolume || c.DefaultVolume > usecases.MaxVolume {
		return fmt.Errorf(
			"default volume must be between %d and %d, got %d",
			usecases.MinVolume,
			usecases.MaxVolume,
			c.DefaultVolume,
		)
	}
	if c.EventWorkers < 1 || c.EventBufferSize < 0 {
		return fmt.Errorf("invalid event queue size: %d workers, buffer %d", c.EventWorkers, c.EventBufferSize)
	}
	return nil
}
