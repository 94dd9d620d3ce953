package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// Compile-time check that PlaybackEventRouter implements ports.EngineEventHandler.
var _ ports.EngineEventHandler = (*PlaybackEventRouter)(nil)

// PlaybackEventRouter applies engine lifecycle callbacks to the owning
// PlaybackInstance and forwards them to the renderer.
type PlaybackEventRouter struct {
	registry *InstanceRegistry
	renderer ports.Renderer

	teardowns sync.WaitGroup
}

// NewPlaybackEventRouter creates a new PlaybackEventRouter.
func NewPlaybackEventRouter(registry *InstanceRegistry, renderer ports.Renderer) *PlaybackEventRouter {
	return &PlaybackEventRouter{
		registry: registry,
		renderer: renderer,
	}
}

// Handle routes a single engine event. Events carrying a token the instance
// no longer accepts are dropped.
func (r *PlaybackEventRouter) Handle(ctx context.Context, event ports.EngineEvent) {
	guildID := event.Token.GuildID

	instance, ok := r.registry.Get(ctx, guildID)
	if !ok {
		slog.Debug("dropping engine event without instance", "guild", guildID, "kind", event.Kind)
		return
	}
	if !instance.Accepts(event.Token) {
		slog.Debug(
			"dropping stale engine event",
			"guild", guildID,
			"kind", event.Kind,
			"generation", event.Token.Generation,
		)
		return
	}

	switch event.Kind {
	case ports.EngineTrackEnd:
		r.handleTrackEnd(ctx, instance, event)
	case ports.EngineTrackStart:
		r.notifyIfActive(ctx, instance, ports.NotifyTrackStarted, "")
	case ports.EngineTrackPause:
		r.notifyIfActive(ctx, instance, ports.NotifyTrackPaused, "")
	case ports.EngineTrackResume:
		r.notifyIfActive(ctx, instance, ports.NotifyTrackResumed, "")
	case ports.EngineTrackException:
		slog.Error(
			"audio engine reported track exception",
			"guild", guildID,
			"error", event.Err,
		)
		detail := ""
		if event.Err != nil {
			detail = event.Err.Error()
		}
		r.notifyIfActive(ctx, instance, ports.NotifyTrackException, detail)
	}
}

func (r *PlaybackEventRouter) notifyIfActive(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	kind ports.NotificationKind,
	detail string,
) {
	current := instance.Current()
	if current == nil || !instance.IsActive() {
		return
	}
	instance.Touch(time.Now())

	r.renderer.Notify(ctx, ports.Notification{
		Kind:      kind,
		GuildID:   instance.GuildID(),
		ChannelID: current.ChannelID(),
		Request:   current,
		Detail:    detail,
	})
}

func (r *PlaybackEventRouter) handleTrackEnd(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	event ports.EngineEvent,
) {
	// The engine reports a replacement only for a submission already superseded.
	if event.EndReason == domain.EndReplaced {
		return
	}

	current, ok := instance.ClaimEnd(event.Token)
	if !ok {
		slog.Debug(
			"dropping already handled track end",
			"guild", instance.GuildID(),
			"generation", event.Token.Generation,
		)
		return
	}
	// An explicit skip or stop has already stamped its own reason.
	current.SetEndReason(event.EndReason, nil)

	r.renderer.Notify(ctx, ports.Notification{
		Kind:      ports.NotifyTrackEnded,
		GuildID:   instance.GuildID(),
		ChannelID: current.ChannelID(),
		Request:   current,
	})

	switch event.EndReason {
	case domain.EndStopped, domain.EndCleanup:
		r.teardown(ctx, func(ctx context.Context) {
			r.registry.ReleaseAt(ctx, instance, event.Token, event.EndReason)
		})
		return
	}
	if !event.EndReason.ShouldAdvanceQueue() {
		return
	}

	latest, started, err := instance.PlayNextAfter(ctx, event.Token)
	if errors.Is(err, domain.ErrStaleToken) || errors.Is(err, domain.ErrInstanceClosed) {
		return
	}
	if err != nil {
		slog.Error(
			"failed to start next track",
			"guild", instance.GuildID(),
			"error", err,
		)
	}
	if started {
		return
	}

	r.renderer.Notify(ctx, ports.Notification{
		Kind:      ports.NotifyQueueEnded,
		GuildID:   instance.GuildID(),
		ChannelID: current.ChannelID(),
	})
	r.teardown(ctx, func(ctx context.Context) {
		r.registry.ReleaseIfIdle(ctx, instance, latest)
	})
}

// teardown runs release off the calling goroutine, which may be serving
// engine callbacks.
func (r *PlaybackEventRouter) teardown(ctx context.Context, release func(context.Context)) {
	ctx = context.WithoutCancel(ctx)

	r.teardowns.Add(1)
	go func() {
		defer r.teardowns.Done()
		release(ctx)
	}()
}

// Wait blocks until all scheduled teardowns have finished.
func (r *PlaybackEventRouter) Wait() {
	r.teardowns.Wait()
}
