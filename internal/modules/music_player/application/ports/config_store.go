package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// GuildAudioConfig is the per-guild music configuration snapshot.
type GuildAudioConfig struct {
	AllowedRoles    []snowflake.ID
	ChannelID       snowflake.ID // configured voice channel, 0 if none
	UserJoinEnabled bool
	Volume          int
}

// GuildConfigStore provides per-guild music configuration.
type GuildConfigStore interface {
	GuildAudioConfig(ctx context.Context, guildID snowflake.ID) (GuildAudioConfig, error)

	// SaveVolume persists the player volume for a guild.
	SaveVolume(ctx context.Context, guildID snowflake.ID, volume int) error
}
