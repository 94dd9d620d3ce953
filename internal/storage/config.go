package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuildSettings returns the settings of a guild, or zero settings if none are stored.
func (c *Client) GuildSettings(ctx context.Context, guildID snowflake.ID) (GuildSettings, error) {
	var settings GuildSettings
	err := c.db.WithContext(ctx).First(&settings, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GuildSettings{GuildID: guildID}, nil
	}
	if err != nil {
		return GuildSettings{}, fmt.Errorf("failed to load guild settings: %w", err)
	}
	return settings, nil
}

// SaveGuildSettings inserts or replaces the settings of a guild.
func (c *Client) SaveGuildSettings(ctx context.Context, settings GuildSettings) error {
	err := c.db.WithContext(ctx).Save(&settings).Error
	if err != nil {
		return fmt.Errorf("failed to save guild settings: %w", err)
	}
	return nil
}

// CommandConfig returns the configuration of a command in a guild. The
// second return value is false when no configuration is stored.
func (c *Client) CommandConfig(
	ctx context.Context,
	guildID snowflake.ID,
	commandKey string,
) (CommandConfig, bool, error) {
	var cfg CommandConfig
	err := c.db.WithContext(ctx).
		Where("guild_id = ? AND command_key = ?", guildID, commandKey).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CommandConfig{GuildID: guildID, CommandKey: commandKey}, false, nil
	}
	if err != nil {
		return CommandConfig{}, false, fmt.Errorf("failed to load command config: %w", err)
	}
	return cfg, true, nil
}

// SaveCommandConfig inserts or updates the configuration of a command.
func (c *Client) SaveCommandConfig(ctx context.Context, cfg CommandConfig) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "command_key"}},
		UpdateAll: true,
	}).Create(&cfg).Error
	if err != nil {
		return fmt.Errorf("failed to save command config: %w", err)
	}
	return nil
}

// DeleteGuild removes every configuration row of a guild.
func (c *Client) DeleteGuild(ctx context.Context, guildID snowflake.ID) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&GuildSettings{}, &CommandConfig{}, &MusicConfig{}} {
			if err := tx.Where("guild_id = ?", guildID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete guild data: %w", err)
			}
		}
		return nil
	})
}

// MusicConfig returns the audio settings of a guild. The second return value
// is false when none are stored.
func (c *Client) MusicConfig(ctx context.Context, guildID snowflake.ID) (MusicConfig, bool, error) {
	var cfg MusicConfig
	err := c.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MusicConfig{GuildID: guildID}, false, nil
	}
	if err != nil {
		return MusicConfig{}, false, fmt.Errorf("failed to load music config: %w", err)
	}
	return cfg, true, nil
}

// SaveMusicConfig inserts or replaces the audio settings of a guild.
func (c *Client) SaveMusicConfig(ctx context.Context, cfg MusicConfig) error {
	err := c.db.WithContext(ctx).Save(&cfg).Error
	if err != nil {
		return fmt.Errorf("failed to save music config: %w", err)
	}
	return nil
}

// SaveMusicVolume stores the player volume of a guild, leaving the rest of
// its audio settings untouched.
func (c *Client) SaveMusicVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"volume", "updated_at"}),
	}).Create(&MusicConfig{GuildID: guildID, Volume: &volume}).Error
	if err != nil {
		return fmt.Errorf("failed to save volume: %w", err)
	}
	return nil
}
