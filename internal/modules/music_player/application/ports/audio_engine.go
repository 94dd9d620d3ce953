package ports

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// ErrConnection is returned when the bot may not connect to a voice channel.
var ErrConnection = errors.New("no access to voice channel")

// AudioEngine defines the external decode/stream capability.
type AudioEngine interface {
	// CreatePlayer allocates the engine player for a guild.
	CreatePlayer(ctx context.Context, guildID snowflake.ID, volume int) (domain.PlayerHandle, error)

	// OpenConnection connects the bot to a voice channel.
	// Returns ErrConnection when the bot lacks permission to connect.
	OpenConnection(ctx context.Context, guildID, channelID snowflake.ID) error

	// ConnectedChannel returns the voice channel the bot is connected to in a guild.
	ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool)

	// Shutdown releases the engine globally.
	Shutdown(ctx context.Context) error
}
