package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// ErrRegistryShutdown is returned once ShutdownAll has been called.
var ErrRegistryShutdown = errors.New("instance registry is shut down")

// registryEntry is published before construction so that concurrent callers
// wait for the same instance instead of building their own.
type registryEntry struct {
	ready    chan struct{}
	instance *domain.PlaybackInstance
	err      error
}

func (e *registryEntry) wait(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *registryEntry) isReady() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// InstanceRegistry owns the PlaybackInstance of every guild.
type InstanceRegistry struct {
	engine   ports.AudioEngine
	configs  ports.GuildConfigStore
	voice    ports.VoiceStateProvider
	renderer ports.Renderer
	opts     []domain.InstanceOption

	mu      sync.RWMutex
	entries map[snowflake.ID]*registryEntry

	closed atomic.Bool
}

// NewInstanceRegistry creates a new InstanceRegistry.
func NewInstanceRegistry(
	engine ports.AudioEngine,
	configs ports.GuildConfigStore,
	voice ports.VoiceStateProvider,
	renderer ports.Renderer,
	opts ...domain.InstanceOption,
) *InstanceRegistry {
	return &InstanceRegistry{
		engine:   engine,
		configs:  configs,
		voice:    voice,
		renderer: renderer,
		opts:     opts,
		entries:  make(map[snowflake.ID]*registryEntry),
	}
}

// Get returns the instance of a guild without creating one. An instance that
// is still being constructed is waited for.
func (r *InstanceRegistry) Get(ctx context.Context, guildID snowflake.ID) (*domain.PlaybackInstance, bool) {
	r.mu.RLock()
	entry, ok := r.entries[guildID]
	r.mu.RUnlock()

	if !ok || entry.wait(ctx) != nil || entry.instance.IsClosed() {
		return nil, false
	}
	return entry.instance, true
}

// GetOrCreate returns the instance of a guild, constructing it on first
// access. At most one instance is constructed per guild under concurrent calls.
func (r *InstanceRegistry) GetOrCreate(ctx context.Context, guildID snowflake.ID) (*domain.PlaybackInstance, error) {
	for {
		if r.closed.Load() {
			return nil, ErrRegistryShutdown
		}

		r.mu.RLock()
		entry, ok := r.entries[guildID]
		r.mu.RUnlock()

		if !ok {
			r.mu.Lock()
			entry, ok = r.entries[guildID]
			if !ok {
				entry = &registryEntry{ready: make(chan struct{})}
				r.entries[guildID] = entry
				r.mu.Unlock()

				r.build(ctx, guildID, entry)
				return entry.instance, entry.err
			}
			r.mu.Unlock()
		}

		if err := entry.wait(ctx); err != nil {
			return nil, err
		}
		if entry.instance.IsClosed() {
			// Stopped but not yet detached; make room for a fresh instance.
			r.detach(guildID, entry)
			continue
		}
		return entry.instance, nil
	}
}

func (r *InstanceRegistry) build(ctx context.Context, guildID snowflake.ID, entry *registryEntry) {
	defer close(entry.ready)

	cfg, err := r.configs.GuildAudioConfig(ctx, guildID)
	if err != nil {
		slog.Warn(
			"failed to load guild audio config, using defaults",
			"guild", guildID,
			"error", err,
		)
	}

	player, err := r.engine.CreatePlayer(ctx, guildID, cfg.Volume)
	if err != nil {
		entry.err = fmt.Errorf("failed to create player: %w", err)
		r.detach(guildID, entry)
		return
	}

	instance := domain.NewPlaybackInstance(guildID, player, r.opts...)
	if r.closed.Load() {
		_ = instance.Stop(context.WithoutCancel(ctx), domain.EndShutdown, nil)
		entry.err = ErrRegistryShutdown
		r.detach(guildID, entry)
		return
	}
	entry.instance = instance

	slog.Debug("created playback instance", "guild", guildID, "volume", cfg.Volume)
}

// detach removes entry only if it is still the one registered for the guild.
func (r *InstanceRegistry) detach(guildID snowflake.ID, entry *registryEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[guildID] != entry {
		return false
	}
	delete(r.entries, guildID)
	return true
}

func (r *InstanceRegistry) detachInstance(instance *domain.PlaybackInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[instance.GuildID()]
	if !ok || !entry.isReady() || entry.instance != instance {
		return false
	}
	delete(r.entries, instance.GuildID())
	return true
}

// Remove detaches the instance of a guild and hands it to the caller for
// final cleanup. A construction in flight is waited for, so the returned
// instance is always fully built.
func (r *InstanceRegistry) Remove(ctx context.Context, guildID snowflake.ID) (*domain.PlaybackInstance, bool) {
	r.mu.RLock()
	entry, ok := r.entries[guildID]
	r.mu.RUnlock()

	if !ok || entry.wait(ctx) != nil {
		return nil, false
	}
	if !r.detach(guildID, entry) {
		return nil, false
	}
	return entry.instance, true
}

// Release persists the volume of instance, stops it with reason and then
// detaches it. The guild stays reserved until the player is released, so no
// second player is created for it in the meantime. It reports whether this
// call stopped the instance.
func (r *InstanceRegistry) Release(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	reason domain.EndReason,
	by *domain.Member,
) bool {
	return r.release(ctx, instance, func() (bool, error) {
		return true, instance.Stop(ctx, reason, by)
	})
}

// ReleaseAt is Release limited to the submission identified by token.
// Nothing happens once the instance has moved on to another submission.
func (r *InstanceRegistry) ReleaseAt(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	token domain.PlaybackToken,
	reason domain.EndReason,
) bool {
	return r.release(ctx, instance, func() (bool, error) {
		return instance.StopAt(ctx, token, reason, nil)
	})
}

// ReleaseIfIdle releases instance only if nothing was played or queued on it
// after the submission identified by token.
func (r *InstanceRegistry) ReleaseIfIdle(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	token domain.PlaybackToken,
) bool {
	return r.release(ctx, instance, func() (bool, error) {
		return instance.StopIfIdle(ctx, token)
	})
}

func (r *InstanceRegistry) release(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	stop func() (bool, error),
) bool {
	if instance.IsClosed() {
		return false
	}

	guildID := instance.GuildID()
	if err := r.configs.SaveVolume(ctx, guildID, instance.Volume()); err != nil {
		slog.Warn("failed to save volume", "guild", guildID, "error", err)
	}

	stopped, err := stop()
	if err != nil {
		slog.Warn("failed to release player", "guild", guildID, "error", err)
	}
	if !stopped || !instance.IsClosed() {
		return false
	}
	r.detachInstance(instance)

	r.renderer.Notify(ctx, ports.Notification{
		Kind:    ports.NotifyStopped,
		GuildID: guildID,
	})
	return true
}

// Sweep stops and removes every instance without listeners whose last
// activity is older than idleTimeout. Instances with listeners are marked
// active at now. It returns the number of instances removed.
func (r *InstanceRegistry) Sweep(ctx context.Context, now time.Time, idleTimeout time.Duration) int {
	removed := 0
	for _, instance := range r.Instances() {
		if r.voice.ListenerCount(instance.GuildID()) > 0 {
			instance.Touch(now)
			continue
		}
		if now.Sub(instance.LastActiveAt()) <= idleTimeout {
			continue
		}

		token := instance.Token()
		current := instance.Current()
		channelID := instance.TextChannelID()
		if !r.ReleaseAt(ctx, instance, token, domain.EndCleanup) {
			continue
		}

		slog.Info("stopped idle playback instance", "guild", instance.GuildID())
		r.renderer.Notify(ctx, ports.Notification{
			Kind:      ports.NotifyIdle,
			GuildID:   instance.GuildID(),
			ChannelID: channelID,
			Request:   current,
		})
		removed++
	}
	return removed
}

// Instances returns a snapshot of all fully constructed instances.
func (r *InstanceRegistry) Instances() []*domain.PlaybackInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*domain.PlaybackInstance, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.isReady() && entry.instance != nil {
			instances = append(instances, entry.instance)
		}
	}
	return instances
}

// Count returns the number of registered instances.
func (r *InstanceRegistry) Count() int {
	return len(r.Instances())
}

// ShutdownAll stops every instance and releases the audio engine.
// It may be called only once; later calls return ErrRegistryShutdown.
func (r *InstanceRegistry) ShutdownAll(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRegistryShutdown
	}

	r.mu.RLock()
	guildIDs := make([]snowflake.ID, 0, len(r.entries))
	for guildID := range r.entries {
		guildIDs = append(guildIDs, guildID)
	}
	r.mu.RUnlock()

	for _, guildID := range guildIDs {
		instance, ok := r.Remove(ctx, guildID)
		if !ok {
			continue
		}
		r.Release(ctx, instance, domain.EndShutdown, nil)
	}

	slog.Info("stopped all playback instances", "count", len(guildIDs))

	return r.engine.Shutdown(ctx)
}
