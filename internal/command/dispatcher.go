package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
)

// DefaultPrefix is used for guilds that have not configured one.
const DefaultPrefix = "!"

// GuildSettings are the command settings of a guild.
type GuildSettings struct {
	Prefix string // empty means the dispatcher default
	Locale string
}

// Config is the per-guild configuration of a command. The zero value
// enables the command without restrictions.
type Config struct {
	Disabled        bool
	AllowedChannels []snowflake.ID
	IgnoredChannels []snowflake.ID
	AllowedRoles    []snowflake.ID
	IgnoredRoles    []snowflake.ID
	Cooldown        CooldownConfig
	DeleteSource    bool
}

// ConfigStore provides guild and command configuration.
type ConfigStore interface {
	GuildSettings(ctx context.Context, guildID snowflake.ID) (GuildSettings, error)
	CommandConfig(ctx context.Context, guildID snowflake.ID, key string) (Config, error)
}

// Metrics records command executions.
type Metrics interface {
	CommandExecuted(key string, shard int, elapsed time.Duration)
	CommandFailed(key string, kind FailureKind)
}

type nopMetrics struct{}

func (nopMetrics) CommandExecuted(string, int, time.Duration) {}
func (nopMetrics) CommandFailed(string, FailureKind)          {}

// Dispatcher turns chat messages into command executions.
type Dispatcher struct {
	holder        *Holder
	configs       ConfigStore
	platform      Platform
	cooldowns     *CooldownTracker
	metrics       Metrics
	ack           *acknowledger
	defaultPrefix string
	now           func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDefaultPrefix sets the prefix used by guilds without one.
func WithDefaultPrefix(prefix string) DispatcherOption {
	return func(d *Dispatcher) {
		if prefix != "" {
			d.defaultPrefix = prefix
		}
	}
}

// WithCooldownTracker sets the cooldown tracker.
func WithCooldownTracker(t *CooldownTracker) DispatcherOption {
	return func(d *Dispatcher) {
		d.cooldowns = t
	}
}

// WithClock sets the time source used for timing and cooldown notices.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	holder *Holder,
	configs ConfigStore,
	platform Platform,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		holder:        holder,
		configs:       configs,
		platform:      platform,
		metrics:       nopMetrics{},
		ack:           newAcknowledger(platform),
		defaultPrefix: DefaultPrefix,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cooldowns == nil {
		d.cooldowns = NewCooldownTracker(WithCooldownClock(d.now))
	}
	return d
}

// Holder returns the command holder.
func (d *Dispatcher) Holder() *Holder {
	return d.holder
}

// ClearGuild drops the cooldown and notice pacing state of a guild.
func (d *Dispatcher) ClearGuild(guildID snowflake.ID) {
	d.cooldowns.Clear(guildID)
	d.ack.forget(guildID)
}

// Dispatch handles msg. It returns false when msg is not a command for this
// bot, true when it was consumed (executed or rejected).
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	if msg.Author.Bot || msg.GuildID == 0 {
		return false
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return false
	}

	settings, err := d.configs.GuildSettings(ctx, msg.GuildID)
	if err != nil {
		slog.Warn("failed to load guild settings", "guild", msg.GuildID, "error", err)
	}

	input, ok := d.stripPrefix(content, settings.Prefix)
	if !ok {
		return false
	}

	name, args, _ := strings.Cut(input, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	cmd, ok := d.holder.Lookup(name, settings.Locale)
	if !ok {
		return false
	}

	inv := &Invocation{
		Command:  cmd,
		Message:  msg,
		Name:     name,
		Args:     strings.TrimSpace(args),
		Locale:   settings.Locale,
		platform: d.platform,
	}

	cfg, err := d.configs.CommandConfig(ctx, msg.GuildID, cmd.Key)
	if err != nil {
		slog.Warn("failed to load command config", "guild", msg.GuildID, "command", cmd.Key, "error", err)
		cfg = Config{}
	}

	if cfg.Disabled || (cmd.Available != nil && !cmd.Available(ctx, inv)) {
		return false
	}

	perms, err := d.platform.Permissions(msg.ChannelID)
	if err != nil {
		slog.Debug("failed to compute bot permissions", "channel", msg.ChannelID, "error", err)
		perms = allPermissions
	}

	if d.restricted(inv, cfg, perms) {
		return true
	}

	if missing := missingPermissionNames(cmd.Permissions, perms); len(missing) > 0 {
		d.denyPermissions(msg.ChannelID, perms, missing)
		return true
	}

	d.execute(ctx, inv, cfg, perms)
	return true
}

// stripPrefix removes a leading self-mention or the guild prefix.
func (d *Dispatcher) stripPrefix(content, prefix string) (string, bool) {
	self := d.platform.SelfID().String()
	for _, mention := range []string{"<@" + self + ">", "<@!" + self + ">"} {
		if strings.HasPrefix(content, mention) {
			return strings.TrimSpace(content[len(mention):]), true
		}
	}

	if prefix == "" {
		prefix = d.defaultPrefix
	}
	if len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(content[len(prefix):]), true
}

// restricted applies channel, role and cooldown restrictions, acknowledging
// any denial.
func (d *Dispatcher) restricted(inv *Invocation, cfg Config, perms int64) bool {
	msg := inv.Message

	if channelRestricted(cfg, msg.ChannelID) {
		d.ack.react(msg, perms, EmojiRestricted)
		d.ack.notice(msg, perms, Reply{
			Description: "This command cannot be used in this channel.",
			Color:       colorYellow,
		})
		return true
	}
	if roleRestricted(cfg, msg.Author) {
		d.ack.react(msg, perms, EmojiRestricted)
		d.ack.notice(msg, perms, Reply{
			Description: "You do not have a role that may use this command.",
			Color:       colorYellow,
		})
		return true
	}

	remaining := d.cooldowns.Perform(msg.GuildID, inv.Command.Key, msg.Author, cfg.Cooldown)
	if remaining > 0 {
		now := d.now()
		d.ack.react(msg, perms, EmojiCooldown)
		d.ack.notice(msg, perms, Reply{
			Description: fmt.Sprintf(
				"This command is on cooldown. Try again %s.",
				humanize.RelTime(now.Add(remaining), now, "ago", "from now"),
			),
			Color: colorYellow,
		})
		return true
	}
	return false
}

func channelRestricted(cfg Config, channelID snowflake.ID) bool {
	if len(cfg.AllowedChannels) > 0 && !slices.Contains(cfg.AllowedChannels, channelID) {
		return true
	}
	return slices.Contains(cfg.IgnoredChannels, channelID)
}

func roleRestricted(cfg Config, author Author) bool {
	if len(cfg.AllowedRoles) > 0 && !author.HasAnyRole(cfg.AllowedRoles) {
		return true
	}
	return author.HasAnyRole(cfg.IgnoredRoles)
}

// denyPermissions lists the permissions the bot lacks, unless it cannot
// even write to the channel.
func (d *Dispatcher) denyPermissions(channelID snowflake.ID, perms int64, missing []string) {
	if !hasPermission(perms, discordgo.PermissionSendMessages) {
		return
	}

	reply := Reply{
		Title:       "Missing permissions",
		Description: "I need the following permissions to run this command:\n" + strings.Join(missing, "\n"),
		Color:       colorRed,
	}
	if !hasPermission(perms, discordgo.PermissionEmbedLinks) {
		reply = plainReply(reply)
	}
	if _, err := d.platform.SendMessage(channelID, reply); err != nil {
		slog.Debug("failed to send permission denial", "channel", channelID, "error", err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, inv *Invocation, cfg Config, perms int64) {
	key := inv.Command.Key
	msg := inv.Message

	slog.Info("invoked command",
		"command", key,
		"guild", msg.GuildID,
		"user", msg.Author.ID,
	)

	start := d.now()
	err := d.run(ctx, inv)
	d.metrics.CommandExecuted(key, d.platform.ShardID(), d.now().Sub(start))

	if err == nil {
		if cfg.DeleteSource && hasPermission(perms, discordgo.PermissionManageMessages) {
			if err := d.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
				slog.Debug("failed to delete command message", "channel", msg.ChannelID, "error", err)
			}
		}
		return
	}

	kind := classify(err)
	d.metrics.CommandFailed(key, kind)

	switch kind {
	case FailureValidation:
		if err := inv.Reply(Reply{Description: err.Error(), Color: colorYellow}); err != nil {
			slog.Debug("failed to send validation message", "command", key, "error", err)
		}

	case FailureDomain:
		slog.Warn("command failed", "command", key, "guild", msg.GuildID, "error", err)

		message := domainMessage(err)
		if err := inv.Reply(Reply{Description: message, Color: colorRed}); err != nil {
			slog.Debug("failed to send error message", "command", key, "error", err)
		}

	default:
		slog.Error("failed to execute command", "command", key, "guild", msg.GuildID, "error", err)
		d.ack.react(msg, perms, EmojiFailure)
	}
}

// run executes the command handler, converting a panic into an error.
func (d *Dispatcher) run(ctx context.Context, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from command panic",
				"command", inv.Command.Key,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return inv.Command.Handler(ctx, inv)
}

func domainMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return "An error occurred while processing your command."
}
