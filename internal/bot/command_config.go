package bot

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/storage"
)

// Compile-time interface check.
var _ command.ConfigStore = (*commandConfigStore)(nil)

// commandConfigStore serves dispatcher configuration from the database.
type commandConfigStore struct {
	client *storage.Client
}

func (s *commandConfigStore) GuildSettings(ctx context.Context, guildID snowflake.ID) (command.GuildSettings, error) {
	settings, err := s.client.GuildSettings(ctx, guildID)
	if err != nil {
		return command.GuildSettings{}, err
	}
	return command.GuildSettings{
		Prefix: settings.Prefix,
		Locale: settings.CommandLocale,
	}, nil
}

func (s *commandConfigStore) CommandConfig(
	ctx context.Context,
	guildID snowflake.ID,
	key string,
) (command.Config, error) {
	stored, found, err := s.client.CommandConfig(ctx, guildID, key)
	if err != nil || !found {
		return command.Config{}, err
	}
	return command.Config{
		Disabled:        stored.Disabled,
		AllowedChannels: stored.AllowedChannels,
		IgnoredChannels: stored.IgnoredChannels,
		AllowedRoles:    stored.AllowedRoles,
		IgnoredRoles:    stored.IgnoredRoles,
		Cooldown: command.CooldownConfig{
			Mode:         command.ParseCooldownMode(stored.CooldownMode),
			Duration:     time.Duration(stored.CooldownSeconds) * time.Second,
			IgnoredRoles: stored.CooldownIgnoredRoles,
		},
		DeleteSource: stored.DeleteSource,
	}, nil
}
