package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/metrics"
	"github.com/sglre6355/jukebox/internal/storage"
)

// intents are the gateway events the bot subscribes to.
const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsMessageContent

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config     *Config
	session    *discordgo.Session
	storage    *storage.Client
	metrics    *metrics.Recorder
	modules    []Module
	holder     *command.Holder
	dispatcher *command.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:  cfg,
		modules: make([]Module, 0),
		holder:  command.NewHolder(),
		metrics: metrics.NewRecorder(),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Metrics returns the bot's metrics recorder.
func (b *Bot) Metrics() *metrics.Recorder {
	return b.metrics
}

// Start initializes the bot, connects to Discord, and registers commands.
func (b *Bot) Start() error {
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if err := b.loadModuleConfigs(); err != nil {
		return err
	}

	client, err := storage.Open(b.config.DatabasePath)
	if err != nil {
		return err
	}
	b.storage = client

	// Create Discord session
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = intents
	session.ShardID = b.config.ShardID
	session.ShardCount = b.config.ShardCount
	b.session = session

	// Open connection; modules need the bot user from the ready state
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Register commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	platform, err := NewDiscordPlatform(b.session)
	if err != nil {
		return err
	}
	b.dispatcher = command.NewDispatcher(
		b.holder,
		&commandConfigStore{client: b.storage},
		platform,
		command.WithMetrics(b.metrics),
		command.WithDefaultPrefix(b.config.DefaultPrefix),
	)

	b.session.AddHandler(b.handleMessageCreate)
	b.session.AddHandler(b.handleGuildDelete)

	// Register module event handlers
	b.registerEventHandlers()

	if b.config.MetricsAddress != "" {
		go func() {
			if err := b.metrics.Serve(b.ctx, b.config.MetricsAddress); err != nil {
				slog.Error("failed to serve metrics", "address", b.config.MetricsAddress, "error", err)
			}
		}()
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
		"shard", b.config.ShardID,
		"shard_count", b.config.ShardCount,
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}

	// Shutdown modules
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	var errs []error

	// Close Discord session
	if b.session != nil {
		errs = append(errs, b.session.Close())
	}
	if b.storage != nil {
		errs = append(errs, b.storage.Close())
	}

	return errors.Join(errs...)
}

// loadModuleConfigs loads the configuration of every configurable module.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		configurable, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := configurable.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
		Storage: b.storage,
		Metrics: b.metrics,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// collectCommands gathers all commands from loaded modules.
func (b *Bot) collectCommands() []*command.Command {
	var commands []*command.Command
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	return commands
}

// registerCommands adds all module commands to the command holder.
func (b *Bot) registerCommands() error {
	for _, cmd := range b.collectCommands() {
		if err := b.holder.Register(cmd); err != nil {
			return err
		}
		slog.Debug("registered command", "command", cmd.Key, "priority", cmd.Priority)
	}
	return nil
}

// handleMessageCreate hands guild messages to the dispatcher.
func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	guild, _ := s.State.Guild(m.GuildID)
	msg, ok := toCommandMessage(m.Message, guild)
	if !ok {
		return
	}
	b.dispatcher.Dispatch(b.ctx, msg)
}

// handleGuildDelete forgets a guild the bot was removed from.
func (b *Bot) handleGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	// An unavailable guild is an outage, not a removal
	if g.Unavailable {
		return
	}

	guildID, err := snowflake.Parse(g.ID)
	if err != nil {
		slog.Error("failed to parse guild ID in guild delete", "error", err)
		return
	}

	b.dispatcher.ClearGuild(guildID)
	if err := b.storage.DeleteGuild(b.ctx, guildID); err != nil {
		slog.Warn("failed to delete guild configuration", "guild", guildID, "error", err)
	}
	slog.Info("removed from guild", "guild", guildID)
}
