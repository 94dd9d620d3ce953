package infrastructure

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
)

// VoiceStateProvider provides Discord voice state information.
type VoiceStateProvider struct {
	state *discordgo.State
}

// NewVoiceStateProvider creates a new VoiceStateProvider.
func NewVoiceStateProvider(state *discordgo.State) *VoiceStateProvider {
	return &VoiceStateProvider{
		state: state,
	}
}

// GetUserVoiceChannel returns the voice channel ID that the user is currently in.
// Returns 0 if the user is not in a voice channel.
func (v *VoiceStateProvider) GetUserVoiceChannel(
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	// Get guild from state
	guild, err := v.state.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	// Find user's voice state
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID.String() && vs.ChannelID != "" {
			channelID, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, err
			}
			return channelID, nil
		}
	}

	return 0, nil
}

// ListenerCount returns how many non-bot users share the bot's voice channel.
// Returns 0 if the bot is not in voice or the guild is not cached.
func (v *VoiceStateProvider) ListenerCount(guildID snowflake.ID) int {
	if v.state.User == nil {
		return 0
	}

	guild, err := v.state.Guild(guildID.String())
	if err != nil {
		return 0
	}

	botChannel := ""
	for _, vs := range guild.VoiceStates {
		if vs.UserID == v.state.User.ID {
			botChannel = vs.ChannelID
			break
		}
	}
	if botChannel == "" {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != botChannel || vs.UserID == v.state.User.ID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			continue
		}
		if member, err := v.state.Member(guildID.String(), vs.UserID); err == nil &&
			member.User != nil && member.User.Bot {
			continue
		}
		count++
	}
	return count
}

// Ensure VoiceStateProvider implements ports.VoiceStateProvider.
var _ ports.VoiceStateProvider = (*VoiceStateProvider)(nil)
