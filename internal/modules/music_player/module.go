package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/sglre6355/jukebox/internal/bot"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebox/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/jukebox/internal/modules/music_player/presentation"
)

// shutdownTimeout bounds how long stopping all instances may take.
const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*MusicPlayerModule)(nil)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	commands        []*command.Command
	lavalinkAdapter *infrastructure.LavalinkAdapter
	eventQueue      *infrastructure.EngineEventQueue
	registry        *application.InstanceRegistry
	router          *application.PlaybackEventRouter
	playback        *usecases.PlaybackService
	sweeper         *cron.Cron

	// Context for background work
	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the text commands for this module.
func (m *MusicPlayerModule) Commands() []*command.Command {
	return m.commands
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(_ *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.lavalinkAdapter.OnVoiceServerUpdate(event)
		},
		func(_ *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.lavalinkAdapter.OnVoiceStateUpdate(event)
		},
		func(_ *discordgo.Session, _ *discordgo.Resumed) {
			slog.Info("gateway resumed, reconnecting voice")
			m.playback.ReconnectAll(m.ctx)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil || deps.Storage == nil {
		return errors.New("music_player module requires a Discord session and storage")
	}

	// Create cancellable context for background work
	m.ctx, m.cancel = context.WithCancel(context.Background())

	// Create Lavalink adapter
	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(
		deps.Session,
		infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
			Secure:   m.config.LavalinkSecure,
		},
	)
	if err != nil {
		return err
	}
	m.lavalinkAdapter = lavalinkAdapter

	// Create infrastructure
	notifier := infrastructure.NewNotifier(deps.Session)
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session.State)
	configs := infrastructure.NewMusicConfigStore(deps.Storage, m.config.DefaultVolume)
	playlists := infrastructure.NewPlaylistStore(deps.Storage)

	// Create the registry and route engine callbacks to it
	m.registry = application.NewInstanceRegistry(lavalinkAdapter, configs, voiceState, notifier)
	m.router = application.NewPlaybackEventRouter(m.registry, notifier)
	m.eventQueue = infrastructure.NewEngineEventQueue(
		m.router,
		m.config.EventWorkers,
		m.config.EventBufferSize,
	)
	lavalinkAdapter.SetEventPublisher(m.eventQueue)

	// Create services
	voiceChannel := usecases.NewVoiceChannelService(lavalinkAdapter, configs, voiceState)
	m.playback = usecases.NewPlaybackService(
		m.registry,
		m.router,
		configs,
		voiceChannel,
		usecases.NewPlaylistSyncService(playlists),
		notifier,
	)
	trackLoader := usecases.NewTrackLoaderService(lavalinkAdapter)

	// Create presentation
	m.commands, err = presentation.Commands(
		presentation.NewHandlers(m.playback, voiceChannel, trackLoader),
	)
	if err != nil {
		return err
	}

	if deps.Metrics != nil {
		if err := deps.Metrics.RegisterActiveInstances(m.registry.Count); err != nil {
			return fmt.Errorf("failed to register instance gauge: %w", err)
		}
	}

	// Schedule the idle sweep
	m.sweeper = cron.New()
	spec := "@every " + m.config.SweepInterval.String()
	if _, err := m.sweeper.AddFunc(spec, m.sweep); err != nil {
		return fmt.Errorf("failed to schedule idle sweep: %w", err)
	}
	m.sweeper.Start()

	slog.Info("music_player module initialized with Lavalink",
		"address", m.config.LavalinkAddress,
		"idle_timeout", m.config.IdleTimeout,
		"sweep_interval", m.config.SweepInterval,
	)

	return nil
}

// sweep stops instances that have been idle for too long.
func (m *MusicPlayerModule) sweep() {
	if removed := m.playback.Sweep(m.ctx, m.config.IdleTimeout); removed > 0 {
		slog.Info("stopped idle playback instances", "count", removed)
	}
}

// Shutdown cleans up module resources.
func (m *MusicPlayerModule) Shutdown() error {
	// Stop the sweep and wait for a running one
	if m.sweeper != nil {
		<-m.sweeper.Stop().Done()
	}

	var err error
	if m.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = m.registry.ShutdownAll(ctx)
	}

	// Let pending teardowns finish before closing the event queue
	if m.router != nil {
		m.router.Wait()
	}
	if m.eventQueue != nil {
		m.eventQueue.Close()
	}

	// Cancel context last to signal remaining background work to stop
	if m.cancel != nil {
		m.cancel()
	}

	return err
}
