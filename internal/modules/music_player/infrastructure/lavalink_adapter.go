package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// errHandleReleased is returned by a player handle that no longer owns its
// guild's Lavalink player.
var errHandleReleased = errors.New("player handle was released")

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// trackBinding remembers which token the track last submitted in a guild
// carries, so engine callbacks can be attributed.
type trackBinding struct {
	encoded string
	token   domain.PlaybackToken
}

// LavalinkAdapter wraps DisGoLink to implement the engine and resolver ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	voiceMu  sync.Mutex
	voice    map[snowflake.ID]*voiceSession
	channels map[snowflake.ID]snowflake.ID

	bindingMu sync.Mutex
	bindings  map[snowflake.ID]trackBinding
	owners    map[snowflake.ID]*lavalinkPlayer

	events ports.EngineEventPublisher
}

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.AudioEngine   = (*LavalinkAdapter)(nil)
	_ ports.TrackResolver = (*LavalinkAdapter)(nil)
)

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
func NewLavalinkAdapter(
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session:  session,
		botID:    botID,
		voice:    make(map[snowflake.ID]*voiceSession),
		channels: make(map[snowflake.ID]snowflake.ID),
		bindings: make(map[snowflake.ID]trackBinding),
		owners:   make(map[snowflake.ID]*lavalinkPlayer),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link

	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// SetEventPublisher sets where engine callbacks are published.
func (c *LavalinkAdapter) SetEventPublisher(events ports.EngineEventPublisher) {
	c.events = events
}

// CreatePlayer returns a handle for the guild's Lavalink player. The remote
// player is created lazily by the first update.
func (c *LavalinkAdapter) CreatePlayer(
	_ context.Context,
	guildID snowflake.ID,
	volume int,
) (domain.PlayerHandle, error) {
	if c.link.BestNode() == nil {
		return nil, errors.New("no available Lavalink node")
	}
	player := &lavalinkPlayer{adapter: c, guildID: guildID, volume: volume}
	c.adopt(player)
	return player, nil
}

// OpenConnection joins a voice channel and waits until Lavalink has received
// the complete voice handshake.
func (c *LavalinkAdapter) OpenConnection(ctx context.Context, guildID, channelID snowflake.ID) error {
	perms, err := c.session.State.UserChannelPermissions(c.botID.String(), channelID.String())
	if err == nil && perms&discordgo.PermissionVoiceConnect == 0 {
		return ports.ErrConnection
	}

	session := newVoiceSession()
	c.voiceMu.Lock()
	c.voice[guildID] = session
	c.voiceMu.Unlock()

	if err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true); err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-session.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return errors.New("timeout waiting for voice connection")
	}
}

// ConnectedChannel returns the voice channel the bot is in, as last reported by Discord.
func (c *LavalinkAdapter) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	channelID, ok := c.channels[guildID]
	return channelID, ok
}

// Shutdown closes the Lavalink client.
func (c *LavalinkAdapter) Shutdown(context.Context) error {
	c.link.Close()
	return nil
}

func (c *LavalinkAdapter) leave(ctx context.Context, guildID snowflake.ID) error {
	var errs []error
	if player := c.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy player: %w", err))
		}
	}
	if err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		errs = append(errs, fmt.Errorf("failed to leave voice channel: %w", err))
	}

	c.voiceMu.Lock()
	delete(c.channels, guildID)
	delete(c.voice, guildID)
	c.voiceMu.Unlock()

	return errors.Join(errs...)
}

// adopt makes p the handle that owns its guild's Lavalink player. A previous
// handle of the guild loses ownership.
func (c *LavalinkAdapter) adopt(p *lavalinkPlayer) {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()
	c.owners[p.guildID] = p
	delete(c.bindings, p.guildID)
}

// disown gives up ownership of p's guild and forgets its track binding. It
// reports false if another handle owns the guild by now.
func (c *LavalinkAdapter) disown(p *lavalinkPlayer) bool {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()

	if c.owners[p.guildID] != p {
		return false
	}
	delete(c.owners, p.guildID)
	delete(c.bindings, p.guildID)
	return true
}

func (c *LavalinkAdapter) owns(p *lavalinkPlayer) bool {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()
	return c.owners[p.guildID] == p
}

// bind records the track p submitted. It reports false if p no longer owns
// the guild.
func (c *LavalinkAdapter) bind(p *lavalinkPlayer, encoded string, token domain.PlaybackToken) bool {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()

	if c.owners[p.guildID] != p {
		return false
	}
	c.bindings[p.guildID] = trackBinding{encoded: encoded, token: token}
	return true
}

func (c *LavalinkAdapter) currentToken(guildID snowflake.ID) domain.PlaybackToken {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()
	return c.bindings[guildID].token
}

// tokenFor returns the token of the submission that produced track, or the
// zero token if the guild has moved on to another track since.
func (c *LavalinkAdapter) tokenFor(guildID snowflake.ID, track lavalink.Track) domain.PlaybackToken {
	c.bindingMu.Lock()
	defer c.bindingMu.Unlock()

	binding, ok := c.bindings[guildID]
	if !ok || binding.encoded != track.Encoded {
		return domain.PlaybackToken{}
	}
	return binding.token
}

// LoadTracks loads tracks from Lavalink.
func (c *LavalinkAdapter) LoadTracks(
	ctx context.Context,
	query string,
) (*ports.LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, errors.New("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	return convertLoadResult(result), nil
}

// convertLoadResult converts Lavalink result to ports result.
func convertLoadResult(result *lavalink.LoadResult) *ports.LoadResult {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return &ports.LoadResult{
			Type:   ports.LoadTypeTrack,
			Tracks: []*domain.Track{convertTrack(data)},
		}

	case lavalink.Playlist:
		return &ports.LoadResult{
			Type:         ports.LoadTypePlaylist,
			Tracks:       convertTracks(data.Tracks),
			PlaylistName: data.Info.Name,
		}

	case lavalink.Search:
		return &ports.LoadResult{
			Type:   ports.LoadTypeSearch,
			Tracks: convertTracks(data),
		}

	case lavalink.Exception:
		return &ports.LoadResult{
			Type: ports.LoadTypeError,
		}

	default:
		return &ports.LoadResult{
			Type: ports.LoadTypeEmpty,
		}
	}
}

func convertTracks(tracks []lavalink.Track) []*domain.Track {
	converted := make([]*domain.Track, len(tracks))
	for i, track := range tracks {
		converted[i] = convertTrack(track)
	}
	return converted
}

// convertTrack converts a Lavalink track to a domain track.
func convertTrack(track lavalink.Track) *domain.Track {
	info := track.Info
	return &domain.Track{
		Encoded:    track.Encoded,
		Identifier: info.Identifier,
		Title:      info.Title,
		Author:     info.Author,
		Duration:   time.Duration(info.Length) * time.Millisecond,
		URI:        derefString(info.URI),
		ArtworkURL: derefString(info.ArtworkURL),
		SourceName: info.SourceName,
		IsStream:   info.IsStream,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	if h, ok := c.voiceSession(guildID).setServer(event.Token, event.Endpoint); ok {
		c.forwardHandshake(guildID, h)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates of the bot itself.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// The bot left or was disconnected; no server update follows.
	if event.ChannelID == "" {
		c.voiceMu.Lock()
		delete(c.channels, guildID)
		delete(c.voice, guildID)
		c.voiceMu.Unlock()

		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		return
	}

	channelID, err := snowflake.Parse(event.ChannelID)
	if err != nil {
		slog.Error("failed to parse channel ID in voice state update", "error", err)
		return
	}

	c.voiceMu.Lock()
	c.channels[guildID] = channelID
	c.voiceMu.Unlock()

	if h, ok := c.voiceSession(guildID).setState(&channelID, event.SessionID); ok {
		c.forwardHandshake(guildID, h)
	}
}

func (c *LavalinkAdapter) voiceSession(guildID snowflake.ID) *voiceSession {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	session, ok := c.voice[guildID]
	if !ok {
		session = newVoiceSession()
		c.voice[guildID] = session
	}
	return session
}

func (c *LavalinkAdapter) forwardHandshake(guildID snowflake.ID, h voiceHandshake) {
	slog.Debug("forwarding voice handshake to Lavalink",
		"guild", guildID,
		"channel", h.channelID,
		"hasSessionID", h.sessionID != "",
	)

	c.link.OnVoiceStateUpdate(context.Background(), guildID, h.channelID, h.sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, h.token, h.endpoint)
}

func (c *LavalinkAdapter) publish(event ports.EngineEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(event); err != nil {
		slog.Warn(
			"failed to publish engine event",
			"guild", event.Token.GuildID,
			"kind", event.Kind,
			"error", err,
		)
	}
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)

	c.publish(ports.EngineEvent{
		Kind:  ports.EngineTrackStart,
		Token: c.tokenFor(player.GuildID(), event.Track),
	})
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	reason := convertEndReason(event.Reason)
	token := c.tokenFor(player.GuildID(), event.Track)
	if reason == domain.EndReplaced {
		// Always concerns the previous submission, even when the same track was resubmitted.
		token = domain.PlaybackToken{GuildID: player.GuildID()}
	}

	c.publish(ports.EngineEvent{
		Kind:      ports.EngineTrackEnd,
		Token:     token,
		EndReason: reason,
	})
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)

	c.publish(ports.EngineEvent{
		Kind:  ports.EngineTrackException,
		Token: c.tokenFor(player.GuildID(), event.Track),
		Err:   errors.New(event.Exception.Message),
	})
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)

	c.publish(ports.EngineEvent{
		Kind:  ports.EngineTrackException,
		Token: c.tokenFor(player.GuildID(), event.Track),
		Err:   fmt.Errorf("track stuck for %v", event.Threshold),
	})
}

func convertEndReason(reason lavalink.TrackEndReason) domain.EndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return domain.EndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return domain.EndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return domain.EndStopped
	case lavalink.TrackEndReasonReplaced:
		return domain.EndReplaced
	case lavalink.TrackEndReasonCleanup:
		return domain.EndCleanup
	default:
		return domain.EndStopped
	}
}

// lavalinkPlayer is the PlayerHandle of one guild.
type lavalinkPlayer struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID

	mu     sync.Mutex
	volume int
	paused bool
}

func (p *lavalinkPlayer) Play(ctx context.Context, track *domain.Track, token domain.PlaybackToken) error {
	p.mu.Lock()
	volume := p.volume
	p.paused = false
	p.mu.Unlock()

	if !p.adapter.bind(p, track.Encoded, token) {
		return errHandleReleased
	}

	// WithEncodedTrack avoids sending userData:null.
	err := p.adapter.link.Player(p.guildID).Update(ctx,
		lavalink.WithEncodedTrack(track.Encoded),
		lavalink.WithVolume(volume),
		lavalink.WithPaused(false),
	)
	if err != nil {
		return fmt.Errorf("failed to play track: %w", err)
	}
	return nil
}

func (p *lavalinkPlayer) Pause(ctx context.Context, paused bool) error {
	if !p.adapter.owns(p) {
		return errHandleReleased
	}
	if err := p.adapter.link.Player(p.guildID).Update(ctx, lavalink.WithPaused(paused)); err != nil {
		return fmt.Errorf("failed to update pause state: %w", err)
	}

	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()

	kind := ports.EngineTrackResume
	if paused {
		kind = ports.EngineTrackPause
	}
	p.adapter.publish(ports.EngineEvent{Kind: kind, Token: p.adapter.currentToken(p.guildID)})
	return nil
}

func (p *lavalinkPlayer) SetVolume(ctx context.Context, volume int) error {
	if !p.adapter.owns(p) {
		return errHandleReleased
	}
	if player := p.adapter.link.ExistingPlayer(p.guildID); player != nil {
		if err := player.Update(ctx, lavalink.WithVolume(volume)); err != nil {
			return fmt.Errorf("failed to set volume: %w", err)
		}
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

func (p *lavalinkPlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *lavalinkPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *lavalinkPlayer) Connected() bool {
	_, ok := p.adapter.ConnectedChannel(p.guildID)
	return ok
}

// Release tears down the guild's Lavalink player and voice connection, unless
// a newer handle has taken over the guild in the meantime.
func (p *lavalinkPlayer) Release(ctx context.Context) error {
	if !p.adapter.disown(p) {
		return nil
	}
	return p.adapter.leave(ctx, p.guildID)
}
