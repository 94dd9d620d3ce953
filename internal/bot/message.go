package bot

import (
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
)

// toCommandMessage converts a gateway message into a dispatcher message.
// guild may be nil when the guild is not cached. The second return value is
// false for messages that cannot be commands.
func toCommandMessage(m *discordgo.Message, guild *discordgo.Guild) (command.Message, bool) {
	if m.Author == nil || m.GuildID == "" {
		return command.Message{}, false
	}

	id, err := snowflake.Parse(m.ID)
	if err != nil {
		return command.Message{}, false
	}
	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		return command.Message{}, false
	}
	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return command.Message{}, false
	}
	authorID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return command.Message{}, false
	}

	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}

	msg := command.Message{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		Author: command.Author{
			ID:          authorID,
			DisplayName: displayName(m.Author, m.Member),
			Bot:         m.Author.Bot,
			RoleIDs:     parseIDs(roles),
			Privileged:  privileged(guild, m.Author.ID, roles),
		},
		Content: m.Content,
	}
	for _, user := range m.Mentions {
		if mentionID, err := snowflake.Parse(user.ID); err == nil {
			msg.Mentions = append(msg.Mentions, mentionID)
		}
	}
	return msg, true
}

func displayName(user *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// privileged reports whether a member owns the guild or holds an
// administrator role.
func privileged(guild *discordgo.Guild, userID string, roles []string) bool {
	if guild == nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}
	for _, role := range guild.Roles {
		if role.Permissions&discordgo.PermissionAdministrator != 0 && slices.Contains(roles, role.ID) {
			return true
		}
	}
	return false
}

func parseIDs(raw []string) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(raw))
	for _, s := range raw {
		if id, err := snowflake.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
