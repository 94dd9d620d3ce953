package domain

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrInstanceClosed is returned by operations on a stopped PlaybackInstance.
	ErrInstanceClosed = errors.New("playback instance is closed")

	// ErrNothingPlaying is returned when an operation needs a current track.
	ErrNothingPlaying = errors.New("nothing is playing")

	// ErrNilRequest is returned when a nil request is submitted.
	ErrNilRequest = errors.New("track request is nil")

	// ErrStaleToken is returned when an operation is bound to a submission
	// that is no longer the latest one.
	ErrStaleToken = errors.New("playback token is stale")
)

// generations issues submission generations. They are unique across
// instances, so a token of a stopped instance never matches its successor.
var generations atomic.Uint64

// PlaybackToken identifies one submission of a track to the audio engine.
// Engine events carry the token they were submitted with; events whose token
// no longer matches the instance are stale.
type PlaybackToken struct {
	GuildID    snowflake.ID
	Generation uint64
}

// IsZero reports whether the token was never issued.
func (t PlaybackToken) IsZero() bool {
	return t.Generation == 0
}

// PlayerHandle is the audio engine player owned by exactly one PlaybackInstance.
type PlayerHandle interface {
	// Play submits a track and associates its lifecycle events with token.
	Play(ctx context.Context, track *Track, token PlaybackToken) error
	// Pause pauses or resumes the current track.
	Pause(ctx context.Context, paused bool) error
	SetVolume(ctx context.Context, volume int) error
	Volume() int
	Paused() bool
	// Connected reports whether the bot holds a voice connection in the guild.
	Connected() bool
	// Release stops playback, destroys the engine player and leaves voice.
	Release(ctx context.Context) error
}

// PlaylistRef points at the persisted playlist mirroring an instance.
type PlaylistRef struct {
	ID      uint
	UUID    string
	Version int
}

// IsZero reports whether the instance has no persisted playlist yet.
func (r PlaylistRef) IsZero() bool {
	return r.ID == 0
}

// InstanceOption configures a PlaybackInstance.
type InstanceOption func(*PlaybackInstance)

// WithShuffler replaces the permutation used by Shuffle.
func WithShuffler(shuffle func(n int, swap func(i, j int))) InstanceOption {
	return func(p *PlaybackInstance) {
		p.shuffle = shuffle
	}
}

// WithClock replaces the clock used for activity stamps.
func WithClock(now func() time.Time) InstanceOption {
	return func(p *PlaybackInstance) {
		p.now = now
	}
}

// PlaybackInstance is the playback state of a single guild: the current
// request, the queue behind it, the repeat mode and the engine player.
// All methods are safe for concurrent use.
type PlaybackInstance struct {
	guildID snowflake.ID

	mu         sync.Mutex
	player     PlayerHandle
	queue      Queue
	current    *TrackRequest
	mode       RepeatMode
	playlist   PlaylistRef
	channelID  snowflake.ID // text channel of the latest request
	generation uint64
	ended      uint64 // generation whose end has been claimed
	closed     bool

	lastActive atomic.Int64

	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

// NewPlaybackInstance creates an instance owning player.
func NewPlaybackInstance(
	guildID snowflake.ID,
	player PlayerHandle,
	opts ...InstanceOption,
) *PlaybackInstance {
	p := &PlaybackInstance{
		guildID: guildID,
		player:  player,
		queue:   NewQueue(),
		mode:    RepeatNone,
		shuffle: rand.Shuffle,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Touch(p.now())
	return p
}

// GuildID returns the guild the instance plays in.
func (p *PlaybackInstance) GuildID() snowflake.ID {
	return p.guildID
}

// Play starts req immediately when nothing is playing, otherwise queues it.
// It reports whether playback started.
func (p *PlaybackInstance) Play(ctx context.Context, req *TrackRequest) (bool, error) {
	if req == nil {
		return false, ErrNilRequest
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrInstanceClosed
	}
	p.channelID = req.ChannelID()
	if p.current != nil {
		p.queue.Push(req)
		return false, nil
	}

	p.current = req
	if err := p.submitLocked(ctx, req); err != nil {
		req.SetEndReason(EndLoadFailed, nil)
		p.current = nil
		return false, err
	}
	return true, nil
}

// Offer appends req to the queue without starting playback.
func (p *PlaybackInstance) Offer(req *TrackRequest) error {
	if req == nil {
		return ErrNilRequest
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrInstanceClosed
	}
	p.channelID = req.ChannelID()
	p.queue.Push(req)
	return nil
}

// PlayNext advances past the current request according to the repeat mode
// and starts the next playable request. Requests the engine refuses are
// marked load_failed and skipped. It reports whether anything started; the
// returned error joins every submission failure along the way.
func (p *PlaybackInstance) PlayNext(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrInstanceClosed
	}
	return p.playNextLocked(ctx)
}

// PlayNextAfter is PlayNext bound to the submission identified by token. It
// fails with ErrStaleToken once anything else has been submitted since.
// The returned token identifies the latest submission after the call.
func (p *PlaybackInstance) PlayNextAfter(ctx context.Context, token PlaybackToken) (PlaybackToken, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return PlaybackToken{}, false, ErrInstanceClosed
	}
	if token != p.tokenLocked() {
		return PlaybackToken{}, false, ErrStaleToken
	}
	started, err := p.playNextLocked(ctx)
	return p.tokenLocked(), started, err
}

func (p *PlaybackInstance) playNextLocked(ctx context.Context) (bool, error) {
	finished := p.current
	p.current = nil

	var next *TrackRequest
	if finished != nil {
		switch p.mode {
		case RepeatCurrent:
			if reason, _ := finished.EndReason(); reason != EndLoadFailed {
				next = finished.Replay()
			}
		case RepeatQueue:
			p.queue.Push(finished.Replay())
		}
	}

	var errs []error
	for {
		if next == nil {
			next = p.queue.Pop()
		}
		if next == nil {
			return false, errors.Join(errs...)
		}

		p.current = next
		if err := p.submitLocked(ctx, next); err != nil {
			next.SetEndReason(EndLoadFailed, nil)
			p.current = nil
			errs = append(errs, err)
			next = nil
			continue
		}
		return true, errors.Join(errs...)
	}
}

func (p *PlaybackInstance) submitLocked(ctx context.Context, req *TrackRequest) error {
	p.generation = generations.Add(1)
	p.Touch(p.now())
	return p.player.Play(ctx, req.Track(), p.tokenLocked())
}

func (p *PlaybackInstance) tokenLocked() PlaybackToken {
	return PlaybackToken{GuildID: p.guildID, Generation: p.generation}
}

// PrepareSkip marks the current request as skipped by member and returns the
// token a synthetic track end event must carry. A current-track repeat is
// turned off so the skip actually advances.
func (p *PlaybackInstance) PrepareSkip(by *Member) (PlaybackToken, *TrackRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return PlaybackToken{}, nil, ErrInstanceClosed
	}
	if p.current == nil {
		return PlaybackToken{}, nil, ErrNothingPlaying
	}

	if p.mode == RepeatCurrent {
		p.mode = RepeatNone
	}
	p.current.SetEndReason(EndSkipped, by)
	return p.tokenLocked(), p.current, nil
}

// ClaimEnd records that the submission identified by token has ended and
// returns its request. Only the first claim of a submission succeeds, so a
// skip and the engine's own end event cannot both advance the queue.
func (p *PlaybackInstance) ClaimEnd(token PlaybackToken) (*TrackRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.acceptsLocked(token) || p.current == nil || p.ended == p.generation {
		return nil, false
	}
	p.ended = p.generation
	return p.current, true
}

// RemoveByIndex removes the queued request at index (0 is the head).
func (p *PlaybackInstance) RemoveByIndex(index int) (*TrackRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := p.queue.RemoveAt(index)
	return removed, removed != nil
}

// Shuffle permutes the queue and reports whether it held at least two requests.
func (p *PlaybackInstance) Shuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.queue.Shuffle(p.shuffle)
}

// Stop ends playback for good: the current request is stamped with reason,
// the queue is cleared and the player released. Outstanding tokens become
// stale. Calling Stop on a closed instance is a no-op.
func (p *PlaybackInstance) Stop(ctx context.Context, reason EndReason, by *Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.stopLocked(ctx, reason, by)
	return err
}

// StopAt stops the instance like Stop, but only while token identifies its
// latest submission. It reports whether the instance was stopped.
func (p *PlaybackInstance) StopAt(
	ctx context.Context,
	token PlaybackToken,
	reason EndReason,
	by *Member,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token != p.tokenLocked() {
		return false, nil
	}
	return p.stopLocked(ctx, reason, by)
}

// StopIfIdle stops the instance without an end reason when token still
// identifies its latest submission and nothing is playing or queued.
func (p *PlaybackInstance) StopIfIdle(ctx context.Context, token PlaybackToken) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token != p.tokenLocked() || p.current != nil || !p.queue.IsEmpty() {
		return false, nil
	}
	return p.stopLocked(ctx, "", nil)
}

func (p *PlaybackInstance) stopLocked(ctx context.Context, reason EndReason, by *Member) (bool, error) {
	if p.closed {
		return false, nil
	}
	p.closed = true
	p.generation = generations.Add(1)

	if p.current != nil {
		p.current.SetEndReason(reason, by)
		p.current = nil
	}
	p.queue.Clear()

	player := p.player
	p.player = nil
	if player == nil {
		return true, nil
	}
	return true, player.Release(ctx)
}

// Reset stops the instance without attributing an end reason.
func (p *PlaybackInstance) Reset(ctx context.Context) error {
	return p.Stop(ctx, "", nil)
}

// Pause pauses or resumes the current track.
func (p *PlaybackInstance) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrInstanceClosed
	}
	if p.current == nil {
		return ErrNothingPlaying
	}
	p.Touch(p.now())
	return p.player.Pause(ctx, paused)
}

// IsPaused reports whether the player is paused.
func (p *PlaybackInstance) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.player != nil && p.player.Paused()
}

// SetVolume changes the player volume.
func (p *PlaybackInstance) SetVolume(ctx context.Context, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrInstanceClosed
	}
	return p.player.SetVolume(ctx, volume)
}

// Volume returns the player volume, or 0 for a closed instance.
func (p *PlaybackInstance) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		return 0
	}
	return p.player.Volume()
}

// IsActive reports whether the instance has a current request and a live
// voice connection.
func (p *PlaybackInstance) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.closed && p.current != nil && p.player != nil && p.player.Connected()
}

// IsClosed reports whether Stop has been called.
func (p *PlaybackInstance) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Accepts reports whether an engine event carrying token belongs to the
// current submission.
func (p *PlaybackInstance) Accepts(token PlaybackToken) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.acceptsLocked(token)
}

func (p *PlaybackInstance) acceptsLocked(token PlaybackToken) bool {
	return !p.closed && !token.IsZero() && token == p.tokenLocked()
}

// Token returns the token of the latest submission.
func (p *PlaybackInstance) Token() PlaybackToken {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tokenLocked()
}

// TextChannelID returns the text channel of the latest accepted request.
func (p *PlaybackInstance) TextChannelID() snowflake.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channelID
}

// Current returns the request being played, or nil.
func (p *PlaybackInstance) Current() *TrackRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current
}

// Queue returns a snapshot of the queued requests.
func (p *PlaybackInstance) Queue() []*TrackRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.queue.List()
}

// QueueDuration returns the summed duration of queued non-stream tracks.
func (p *PlaybackInstance) QueueDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.queue.Duration()
}

// Playlist returns the current request followed by the queue.
func (p *PlaybackInstance) Playlist() []*TrackRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := make([]*TrackRequest, 0, p.queue.Len()+1)
	if p.current != nil {
		list = append(list, p.current)
	}
	return append(list, p.queue.List()...)
}

// RepeatMode returns the repeat mode.
func (p *PlaybackInstance) RepeatMode() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mode
}

// SetRepeatMode changes the repeat mode.
func (p *PlaybackInstance) SetRepeatMode(mode RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mode = mode
}

// PlaylistRef returns the persisted playlist reference.
func (p *PlaybackInstance) PlaylistRef() PlaylistRef {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playlist
}

// SetPlaylistRef records the persisted playlist reference.
func (p *PlaybackInstance) SetPlaylistRef(ref PlaylistRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playlist = ref
}

// Touch records activity at t.
func (p *PlaybackInstance) Touch(t time.Time) {
	p.lastActive.Store(t.UnixNano())
}

// LastActiveAt returns the last recorded activity.
func (p *PlaybackInstance) LastActiveAt() time.Time {
	return time.Unix(0, p.lastActive.Load())
}
