package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
)

// Compile-time interface check.
var _ command.Platform = (*DiscordPlatform)(nil)

// DiscordPlatform implements command.Platform over a discordgo session.
type DiscordPlatform struct {
	session *discordgo.Session
	selfID  snowflake.ID
	shardID int
}

// NewDiscordPlatform creates a DiscordPlatform. The session must be open so
// that the bot user is known.
func NewDiscordPlatform(session *discordgo.Session) (*DiscordPlatform, error) {
	if session.State == nil || session.State.User == nil {
		return nil, fmt.Errorf("session has no bot user")
	}
	selfID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot user ID: %w", err)
	}
	return &DiscordPlatform{
		session: session,
		selfID:  selfID,
		shardID: session.ShardID,
	}, nil
}

// SelfID returns the bot user ID.
func (p *DiscordPlatform) SelfID() snowflake.ID {
	return p.selfID
}

// ShardID returns the gateway shard of the session.
func (p *DiscordPlatform) ShardID() int {
	return p.shardID
}

// Permissions computes the bot's permissions in a channel from the state cache.
func (p *DiscordPlatform) Permissions(channelID snowflake.ID) (int64, error) {
	return p.session.State.UserChannelPermissions(p.selfID.String(), channelID.String())
}

func (p *DiscordPlatform) AddReaction(channelID, messageID snowflake.ID, emoji string) error {
	return p.session.MessageReactionAdd(channelID.String(), messageID.String(), emoji)
}

// SendMessage sends reply as an embed, or as plain text when reply.Plain is set.
func (p *DiscordPlatform) SendMessage(channelID snowflake.ID, reply command.Reply) (snowflake.ID, error) {
	var (
		msg *discordgo.Message
		err error
	)
	if reply.Plain {
		msg, err = p.session.ChannelMessageSend(channelID.String(), reply.Description)
	} else {
		msg, err = p.session.ChannelMessageSendEmbed(channelID.String(), replyEmbed(reply))
	}
	if err != nil {
		return 0, err
	}
	return snowflake.Parse(msg.ID)
}

func (p *DiscordPlatform) DeleteMessage(channelID, messageID snowflake.ID) error {
	return p.session.ChannelMessageDelete(channelID.String(), messageID.String())
}

func replyEmbed(reply command.Reply) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       reply.Title,
		Description: reply.Description,
		Color:       reply.Color,
	}
	if reply.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: reply.Footer}
	}
	return embed
}
