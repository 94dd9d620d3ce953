package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// Volume bounds accepted by SetVolume.
const (
	MinVolume = 0
	MaxVolume = 150
)

// QueuePageSize is the number of queued requests listed per page.
const QueuePageSize = 25

// PlayInput contains the input for the Play use case.
type PlayInput struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Member        domain.Member
	Tracks        []*domain.Track
}

// PlayOutput contains the result of the Play use case.
type PlayOutput struct {
	Started  bool // whether the first track started immediately
	Requests []*domain.TrackRequest
}

// SkipInput contains the input for the Skip use case.
type SkipInput struct {
	GuildID snowflake.ID
	Member  domain.Member
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	Skipped *domain.TrackRequest
	Next    *domain.TrackRequest // nil if the queue ended
}

// StopInput contains the input for the Stop use case.
type StopInput struct {
	GuildID snowflake.ID
	Member  domain.Member
}

// RemoveInput contains the input for the Remove use case.
type RemoveInput struct {
	GuildID  snowflake.ID
	Position int // 1-based position in the queue
}

// QueueInput contains the input for the Queue use case.
type QueueInput struct {
	GuildID snowflake.ID
	Page    int // 1-based
}

// QueueOutput contains one page of the queue.
type QueueOutput struct {
	Current    *domain.TrackRequest
	Requests   []*domain.TrackRequest
	Offset     int // queue index of Requests[0]
	Page       int
	TotalPages int
	TotalCount int
	Duration   time.Duration
	RepeatMode domain.RepeatMode
	Paused     bool
}

// AccessInput describes the member asking to use audio commands.
type AccessInput struct {
	GuildID    snowflake.ID
	RoleIDs    []snowflake.ID
	Privileged bool // guild owner or administrator
}

// PlaybackService handles playback operations.
type PlaybackService struct {
	registry  *application.InstanceRegistry
	router    *application.PlaybackEventRouter
	configs   ports.GuildConfigStore
	voice     *VoiceChannelService
	playlists *PlaylistSyncService
	renderer  ports.Renderer
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(
	registry *application.InstanceRegistry,
	router *application.PlaybackEventRouter,
	configs ports.GuildConfigStore,
	voice *VoiceChannelService,
	playlists *PlaylistSyncService,
	renderer ports.Renderer,
) *PlaybackService {
	return &PlaybackService{
		registry:  registry,
		router:    router,
		configs:   configs,
		voice:     voice,
		playlists: playlists,
		renderer:  renderer,
	}
}

// Play accepts tracks for a member: the first is played (or queued behind
// the current track) and the rest are queued.
func (p *PlaybackService) Play(ctx context.Context, input PlayInput) (*PlayOutput, error) {
	if len(input.Tracks) == 0 {
		return nil, ErrNoResults
	}

	requests := make([]*domain.TrackRequest, 0, len(input.Tracks))
	for _, track := range input.Tracks {
		req, err := domain.NewTrackRequest(track, input.Member, input.GuildID, input.TextChannelID)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	var output *PlayOutput
	err := p.withInstance(ctx, input.GuildID, func(instance *domain.PlaybackInstance) error {
		if err := p.voice.EnsureConnected(ctx, input.GuildID, input.Member.ID); err != nil {
			p.registry.ReleaseIfIdle(ctx, instance, instance.Token())
			return err
		}

		p.playlists.Append(ctx, instance, requests)

		started, err := p.enqueue(ctx, instance, requests)
		if err != nil {
			return err
		}
		output = &PlayOutput{Started: started, Requests: requests}

		queued := requests
		if started {
			queued = requests[1:]
		}
		if len(queued) > 0 {
			p.renderer.Notify(ctx, ports.Notification{
				Kind:      ports.NotifyTracksAdded,
				GuildID:   input.GuildID,
				ChannelID: input.TextChannelID,
				Request:   queued[0],
				Requests:  queued,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (p *PlaybackService) enqueue(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	requests []*domain.TrackRequest,
) (bool, error) {
	started, playErr := instance.Play(ctx, requests[0])
	if errors.Is(playErr, domain.ErrInstanceClosed) {
		return false, playErr
	}

	for _, req := range requests[1:] {
		if err := instance.Offer(req); err != nil {
			return false, err
		}
	}
	if playErr == nil {
		return started, nil
	}

	slog.Warn(
		"failed to start requested track",
		"guild", instance.GuildID(),
		"error", playErr,
	)
	if len(requests) == 1 {
		return false, fmt.Errorf("%w: %w", ErrLoadFailed, playErr)
	}

	// The head was refused; fall through to the rest of the batch.
	advanced, err := instance.PlayNext(ctx)
	if !advanced {
		return false, fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(playErr, err))
	}
	return false, nil
}

// withInstance runs fn against the guild's instance, retrying once through
// the registry when the instance was stopped concurrently.
func (p *PlaybackService) withInstance(
	ctx context.Context,
	guildID snowflake.ID,
	fn func(*domain.PlaybackInstance) error,
) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var instance *domain.PlaybackInstance
		instance, err = p.registry.GetOrCreate(ctx, guildID)
		if err != nil {
			return err
		}

		err = fn(instance)
		if !errors.Is(err, domain.ErrInstanceClosed) {
			return err
		}
	}
	return err
}

func (p *PlaybackService) existing(ctx context.Context, guildID snowflake.ID) (*domain.PlaybackInstance, error) {
	instance, ok := p.registry.Get(ctx, guildID)
	if !ok {
		return nil, ErrNotPlaying
	}
	return instance, nil
}

// Offer queues tracks without starting playback.
func (p *PlaybackService) Offer(ctx context.Context, input PlayInput) ([]*domain.TrackRequest, error) {
	instance, err := p.existing(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	requests := make([]*domain.TrackRequest, 0, len(input.Tracks))
	for _, track := range input.Tracks {
		req, err := domain.NewTrackRequest(track, input.Member, input.GuildID, input.TextChannelID)
		if err != nil {
			return nil, err
		}
		if err := instance.Offer(req); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	p.playlists.Append(ctx, instance, requests)
	return requests, nil
}

// Skip ends the current track on behalf of a member and advances the queue.
// A current-track repeat is turned off.
func (p *PlaybackService) Skip(ctx context.Context, input SkipInput) (*SkipOutput, error) {
	instance, err := p.existing(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	member := input.Member
	token, skipped, err := instance.PrepareSkip(&member)
	if err != nil {
		if errors.Is(err, domain.ErrNothingPlaying) || errors.Is(err, domain.ErrInstanceClosed) {
			return nil, ErrNotPlaying
		}
		return nil, err
	}

	p.router.Handle(ctx, ports.EngineEvent{
		Kind:      ports.EngineTrackEnd,
		Token:     token,
		EndReason: domain.EndFinished,
	})

	output := &SkipOutput{Skipped: skipped}
	if !instance.IsClosed() {
		output.Next = instance.Current()
	}
	return output, nil
}

// Stop stops playback in a guild and removes its instance. It reports
// whether there was an instance to stop.
func (p *PlaybackService) Stop(ctx context.Context, input StopInput) bool {
	instance, ok := p.registry.Get(ctx, input.GuildID)
	if !ok {
		return false
	}

	if instance.IsActive() {
		member := input.Member
		return p.registry.Release(ctx, instance, domain.EndStopped, &member)
	}
	return p.registry.Release(ctx, instance, "", nil)
}

// Shuffle shuffles the queue. It reports whether the queue had at least two
// requests to shuffle.
func (p *PlaybackService) Shuffle(ctx context.Context, guildID snowflake.ID) (bool, error) {
	instance, err := p.existing(ctx, guildID)
	if err != nil {
		return false, err
	}

	if !instance.Shuffle() {
		return false, nil
	}
	p.playlists.Rewrite(ctx, instance)
	return true, nil
}

// Remove removes a queued request by its 1-based position.
func (p *PlaybackService) Remove(ctx context.Context, input RemoveInput) (*domain.TrackRequest, error) {
	instance, err := p.existing(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	removed, ok := instance.RemoveByIndex(input.Position - 1)
	if !ok {
		return nil, ErrInvalidPosition
	}
	p.playlists.Rewrite(ctx, instance)
	return removed, nil
}

// SetRepeat sets the repeat mode, or cycles to the next one when mode is nil.
func (p *PlaybackService) SetRepeat(
	ctx context.Context,
	guildID snowflake.ID,
	mode *domain.RepeatMode,
) (domain.RepeatMode, error) {
	instance, err := p.existing(ctx, guildID)
	if err != nil {
		return domain.RepeatNone, err
	}

	next := instance.RepeatMode().Next()
	if mode != nil {
		next = *mode
	}
	instance.SetRepeatMode(next)
	return next, nil
}

// Pause pauses the current playback.
func (p *PlaybackService) Pause(ctx context.Context, guildID snowflake.ID) error {
	instance, err := p.existing(ctx, guildID)
	if err != nil {
		return err
	}
	if instance.IsPaused() {
		return ErrAlreadyPaused
	}
	return p.setPaused(ctx, instance, true)
}

// Resume resumes the paused playback.
func (p *PlaybackService) Resume(ctx context.Context, guildID snowflake.ID) error {
	instance, err := p.existing(ctx, guildID)
	if err != nil {
		return err
	}
	if !instance.IsPaused() {
		return ErrNotPaused
	}
	return p.setPaused(ctx, instance, false)
}

func (p *PlaybackService) setPaused(ctx context.Context, instance *domain.PlaybackInstance, paused bool) error {
	err := instance.Pause(ctx, paused)
	if errors.Is(err, domain.ErrNothingPlaying) || errors.Is(err, domain.ErrInstanceClosed) {
		return ErrNotPlaying
	}
	return err
}

// SetVolume changes the volume of the running player, if any, and persists it.
func (p *PlaybackService) SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	if volume < MinVolume || volume > MaxVolume {
		return ErrInvalidVolume
	}

	if instance, ok := p.registry.Get(ctx, guildID); ok {
		if err := instance.SetVolume(ctx, volume); err != nil &&
			!errors.Is(err, domain.ErrInstanceClosed) {
			return err
		}
	}
	return p.configs.SaveVolume(ctx, guildID, volume)
}

// Volume returns the running player's volume, falling back to the stored one.
func (p *PlaybackService) Volume(ctx context.Context, guildID snowflake.ID) (int, error) {
	if instance, ok := p.registry.Get(ctx, guildID); ok {
		return instance.Volume(), nil
	}
	cfg, err := p.configs.GuildAudioConfig(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return cfg.Volume, nil
}

// Queue returns one page of the guild's queue.
func (p *PlaybackService) Queue(ctx context.Context, input QueueInput) (*QueueOutput, error) {
	instance, err := p.existing(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	current := instance.Current()
	if current == nil {
		return nil, ErrNotPlaying
	}

	queue := instance.Queue()
	totalPages := max(1, (len(queue)+QueuePageSize-1)/QueuePageSize)
	page := min(max(input.Page, 1), totalPages)
	start := (page - 1) * QueuePageSize
	end := min(start+QueuePageSize, len(queue))

	return &QueueOutput{
		Current:    current,
		Requests:   slices.Clone(queue[start:end]),
		Offset:     start,
		Page:       page,
		TotalPages: totalPages,
		TotalCount: len(queue),
		Duration:   instance.QueueDuration(),
		RepeatMode: instance.RepeatMode(),
		Paused:     instance.IsPaused(),
	}, nil
}

// HasAccess reports whether a member may use audio commands: the guild has
// no music roles configured, the member is privileged, or holds one of them.
func (p *PlaybackService) HasAccess(ctx context.Context, input AccessInput) bool {
	if input.Privileged {
		return true
	}

	cfg, err := p.configs.GuildAudioConfig(ctx, input.GuildID)
	if err != nil {
		slog.Warn("failed to load guild audio config", "guild", input.GuildID, "error", err)
		return false
	}
	if len(cfg.AllowedRoles) == 0 {
		return true
	}
	for _, role := range input.RoleIDs {
		if slices.Contains(cfg.AllowedRoles, role) {
			return true
		}
	}
	return false
}

// ReconnectAll rejoins voice for every instance that is playing something.
func (p *PlaybackService) ReconnectAll(ctx context.Context) {
	for _, instance := range p.registry.Instances() {
		if instance.Current() != nil {
			p.voice.Reconnect(ctx, instance.GuildID())
		}
	}
}

// Sweep stops instances that have been idle for longer than idleTimeout.
func (p *PlaybackService) Sweep(ctx context.Context, idleTimeout time.Duration) int {
	return p.registry.Sweep(ctx, time.Now(), idleTimeout)
}
