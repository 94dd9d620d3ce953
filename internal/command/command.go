// Package command parses chat messages into command invocations and gates
// them behind configuration, cooldowns and permissions.
package command

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// Handler executes a command invocation.
type Handler func(ctx context.Context, inv *Invocation) error

// AvailabilityFunc decides whether a command can be used by an invocation's
// author in its guild.
type AvailabilityFunc func(ctx context.Context, inv *Invocation) bool

// Command is the record of one text command.
type Command struct {
	// Key is the stable identifier used for configuration and metrics.
	Key string

	// Priority orders commands in listings; lower values come first.
	Priority int

	// Permissions is the Discord permission set the bot needs in the channel.
	Permissions int64

	// Aliases maps a locale to the names the command answers to in it.
	Aliases map[string][]string

	// Available is optional; a nil predicate makes the command available to everyone.
	Available AvailabilityFunc

	Handler Handler
}

// Author is the member who sent a message.
type Author struct {
	ID          snowflake.ID
	DisplayName string
	Bot         bool
	RoleIDs     []snowflake.ID
	Privileged  bool // guild owner or administrator
}

// HasAnyRole reports whether the author holds one of roles.
func (a Author) HasAnyRole(roles []snowflake.ID) bool {
	for _, role := range a.RoleIDs {
		for _, r := range roles {
			if role == r {
				return true
			}
		}
	}
	return false
}

// Message is an inbound chat message.
type Message struct {
	ID        snowflake.ID
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Author    Author
	Content   string
	Mentions  []snowflake.ID
}

// Reply is an outbound chat message.
type Reply struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Plain       bool // send as plain text instead of an embed
}

// Invocation is a resolved command call.
type Invocation struct {
	Command *Command
	Message Message
	Name    string // the alias the command was invoked with
	Args    string
	Locale  string

	platform Platform
}

// NewInvocation builds an invocation of cmd under its key in the default
// locale. The dispatcher resolves names and locales itself.
func NewInvocation(platform Platform, cmd *Command, msg Message, args string) *Invocation {
	return &Invocation{
		Command:  cmd,
		Message:  msg,
		Name:     cmd.Key,
		Args:     args,
		Locale:   DefaultLocale,
		platform: platform,
	}
}

// Reply sends reply to the channel the command was invoked in.
func (inv *Invocation) Reply(reply Reply) error {
	_, err := inv.platform.SendMessage(inv.Message.ChannelID, reply)
	return err
}

// React adds emoji to the invoking message.
func (inv *Invocation) React(emoji string) error {
	return inv.platform.AddReaction(inv.Message.ChannelID, inv.Message.ID, emoji)
}
