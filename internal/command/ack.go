package command

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// Reaction vocabulary.
const (
	EmojiRestricted = "✋"
	EmojiCooldown   = "\U0001F55C" // 🕜
	EmojiFailure    = "❌"
	EmojiSuccess    = "✅"
)

// tempMessageLifetime is how long denial notices stay in the channel.
const tempMessageLifetime = 10 * time.Second

// Embed colors for denials.
const (
	colorRed    = 0xE74C3C
	colorYellow = 0xF1C40F
)

// Platform is the chat platform the dispatcher talks to.
type Platform interface {
	SelfID() snowflake.ID
	ShardID() int

	// Permissions returns the bot's permission set in a channel.
	Permissions(channelID snowflake.ID) (int64, error)

	AddReaction(channelID, messageID snowflake.ID, emoji string) error
	SendMessage(channelID snowflake.ID, reply Reply) (snowflake.ID, error)
	DeleteMessage(channelID, messageID snowflake.ID) error
}

// allPermissions stands in when the bot's permissions cannot be computed.
const allPermissions int64 = -1

func hasPermission(perms, perm int64) bool {
	return perms&perm == perm
}

// permissionNames names the permissions commands may declare.
var permissionNames = []struct {
	perm int64
	name string
}{
	{discordgo.PermissionViewChannel, "View Channel"},
	{discordgo.PermissionSendMessages, "Send Messages"},
	{discordgo.PermissionEmbedLinks, "Embed Links"},
	{discordgo.PermissionAddReactions, "Add Reactions"},
	{discordgo.PermissionReadMessageHistory, "Read Message History"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionVoiceConnect, "Connect"},
	{discordgo.PermissionVoiceSpeak, "Speak"},
}

// missingPermissionNames lists the names of required permissions absent from perms.
func missingPermissionNames(required, perms int64) []string {
	var names []string
	for _, p := range permissionNames {
		if hasPermission(required, p.perm) && !hasPermission(perms, p.perm) {
			names = append(names, p.name)
		}
	}
	return names
}

// acknowledger reacts to command messages and posts short-lived notices.
// Notices are paced per channel; reactions are not.
type acknowledger struct {
	platform Platform
	every    time.Duration
	burst    int
	after    func(time.Duration, func())

	mu       sync.Mutex
	limiters map[snowflake.ID]map[snowflake.ID]*rate.Limiter // guild -> channel
}

func newAcknowledger(platform Platform) *acknowledger {
	return &acknowledger{
		platform: platform,
		every:    3 * time.Second,
		burst:    2,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		limiters: make(map[snowflake.ID]map[snowflake.ID]*rate.Limiter),
	}
}

// react adds emoji to msg, falling back to posting it as text when the bot
// may not react.
func (a *acknowledger) react(msg Message, perms int64, emoji string) {
	if hasPermission(perms, discordgo.PermissionAddReactions) {
		err := a.platform.AddReaction(msg.ChannelID, msg.ID, emoji)
		if err == nil {
			return
		}
		slog.Debug("failed to add reaction", "channel", msg.ChannelID, "error", err)
	}
	if !hasPermission(perms, discordgo.PermissionSendMessages) {
		return
	}
	if _, err := a.platform.SendMessage(msg.ChannelID, Reply{Description: emoji, Plain: true}); err != nil {
		slog.Debug("failed to send reaction fallback", "channel", msg.ChannelID, "error", err)
	}
}

// notice posts reply to the channel of msg and deletes it after
// tempMessageLifetime.
func (a *acknowledger) notice(msg Message, perms int64, reply Reply) {
	channelID := msg.ChannelID
	if !hasPermission(perms, discordgo.PermissionSendMessages) || !a.allow(msg.GuildID, channelID) {
		return
	}
	if !hasPermission(perms, discordgo.PermissionEmbedLinks) {
		reply = plainReply(reply)
	}

	messageID, err := a.platform.SendMessage(channelID, reply)
	if err != nil {
		slog.Debug("failed to send notice", "channel", channelID, "error", err)
		return
	}

	a.after(tempMessageLifetime, func() {
		if err := a.platform.DeleteMessage(channelID, messageID); err != nil {
			slog.Debug("failed to delete notice", "channel", channelID, "error", err)
		}
	})
}

func (a *acknowledger) allow(guildID, channelID snowflake.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	channels, ok := a.limiters[guildID]
	if !ok {
		channels = make(map[snowflake.ID]*rate.Limiter)
		a.limiters[guildID] = channels
	}

	// A limiter that has refilled completely behaves like a new one.
	for id, limiter := range channels {
		if id != channelID && limiter.Tokens() >= float64(a.burst) {
			delete(channels, id)
		}
	}

	limiter, ok := channels[channelID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(a.every), a.burst)
		channels[channelID] = limiter
	}
	return limiter.Allow()
}

// forget drops the notice pacing state of a guild.
func (a *acknowledger) forget(guildID snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.limiters, guildID)
}

// plainReply folds an embed reply into plain text.
func plainReply(reply Reply) Reply {
	parts := make([]string, 0, 2)
	if reply.Title != "" {
		parts = append(parts, "**"+reply.Title+"**")
	}
	if reply.Description != "" {
		parts = append(parts, reply.Description)
	}
	return Reply{Description: strings.Join(parts, "\n\n"), Plain: true}
}
