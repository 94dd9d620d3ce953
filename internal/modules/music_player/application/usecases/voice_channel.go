package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
)

// VoiceChannelService decides where the bot plays and connects it there.
type VoiceChannelService struct {
	engine     ports.AudioEngine
	configs    ports.GuildConfigStore
	voiceState ports.VoiceStateProvider
}

// NewVoiceChannelService creates a new VoiceChannelService.
func NewVoiceChannelService(
	engine ports.AudioEngine,
	configs ports.GuildConfigStore,
	voiceState ports.VoiceStateProvider,
) *VoiceChannelService {
	return &VoiceChannelService{
		engine:     engine,
		configs:    configs,
		voiceState: voiceState,
	}
}

// SelectChannel returns the voice channel to play in for a user: their own
// channel when user join is enabled, otherwise the configured channel.
func (v *VoiceChannelService) SelectChannel(
	ctx context.Context,
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	cfg, err := v.configs.GuildAudioConfig(ctx, guildID)
	if err != nil {
		return 0, err
	}

	if cfg.UserJoinEnabled {
		channelID, err := v.voiceState.GetUserVoiceChannel(guildID, userID)
		if err != nil {
			return 0, err
		}
		if channelID != 0 {
			return channelID, nil
		}
	}

	if cfg.ChannelID != 0 {
		return cfg.ChannelID, nil
	}
	if cfg.UserJoinEnabled {
		return 0, ErrUserNotInVoice
	}
	return 0, ErrNoVoiceChannel
}

// EnsureConnected connects the bot to the selected channel unless it already
// holds a voice connection in the guild.
func (v *VoiceChannelService) EnsureConnected(ctx context.Context, guildID, userID snowflake.ID) error {
	if _, ok := v.engine.ConnectedChannel(guildID); ok {
		return nil
	}

	channelID, err := v.SelectChannel(ctx, guildID, userID)
	if err != nil {
		return err
	}

	if err := v.engine.OpenConnection(ctx, guildID, channelID); err != nil {
		if errors.Is(err, ports.ErrConnection) {
			return err
		}
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	return nil
}

// Reconnect rejoins the channel the bot was last connected to. Errors are
// logged only.
func (v *VoiceChannelService) Reconnect(ctx context.Context, guildID snowflake.ID) {
	channelID, ok := v.engine.ConnectedChannel(guildID)
	if !ok {
		return
	}
	if err := v.engine.OpenConnection(ctx, guildID, channelID); err != nil {
		slog.Debug("failed to reconnect to voice channel", "guild", guildID, "error", err)
	}
}

// RequireSameChannel returns ErrNotInSameChannel when the bot is connected in
// the guild and the user is not in its channel.
func (v *VoiceChannelService) RequireSameChannel(ctx context.Context, guildID, userID snowflake.ID) error {
	botChannel, ok := v.engine.ConnectedChannel(guildID)
	if !ok {
		return nil
	}

	userChannel, err := v.voiceState.GetUserVoiceChannel(guildID, userID)
	if err != nil {
		return err
	}
	if userChannel != botChannel {
		return ErrNotInSameChannel
	}
	return nil
}
