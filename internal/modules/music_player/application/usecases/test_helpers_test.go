package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

func mockTrack(id string) *domain.Track {
	return &domain.Track{
		Encoded:    "encoded-" + id,
		Identifier: id,
		Title:      "Track " + id,
		Author:     "Artist",
		Duration:   3 * time.Minute,
	}
}

func mockTracks(ids ...string) []*domain.Track {
	tracks := make([]*domain.Track, len(ids))
	for i, id := range ids {
		tracks[i] = mockTrack(id)
	}
	return tracks
}

type mockPlayer struct {
	mu        sync.Mutex
	refuse    map[string]bool
	tokens    []domain.PlaybackToken
	volume    int
	paused    bool
	connected bool
	released  bool
}

func (m *mockPlayer) Play(_ context.Context, track *domain.Track, token domain.PlaybackToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse[track.Title] {
		return fmt.Errorf("refused %s", track.Title)
	}
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *mockPlayer) Pause(_ context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

func (m *mockPlayer) SetVolume(_ context.Context, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

func (m *mockPlayer) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *mockPlayer) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockPlayer) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPlayer) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.connected = false
	return nil
}

type mockAudioEngine struct {
	mu        sync.Mutex
	players   map[snowflake.ID]*mockPlayer
	connected map[snowflake.ID]snowflake.ID
	refuse    map[string]bool
	openErr   error
	opened    []snowflake.ID
}

func newMockAudioEngine() *mockAudioEngine {
	return &mockAudioEngine{
		players:   make(map[snowflake.ID]*mockPlayer),
		connected: make(map[snowflake.ID]snowflake.ID),
		refuse:    make(map[string]bool),
	}
}

func (m *mockAudioEngine) CreatePlayer(_ context.Context, guildID snowflake.ID, volume int) (domain.PlayerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	player := &mockPlayer{volume: volume, connected: true, refuse: m.refuse}
	m.players[guildID] = player
	return player, nil
}

func (m *mockAudioEngine) OpenConnection(_ context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.connected[guildID] = channelID
	m.opened = append(m.opened, channelID)
	return nil
}

func (m *mockAudioEngine) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID, ok := m.connected[guildID]
	return channelID, ok
}

func (m *mockAudioEngine) Shutdown(context.Context) error {
	return nil
}

type mockConfigStore struct {
	mu      sync.Mutex
	configs map[snowflake.ID]ports.GuildAudioConfig
	err     error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{configs: make(map[snowflake.ID]ports.GuildAudioConfig)}
}

func (m *mockConfigStore) GuildAudioConfig(_ context.Context, guildID snowflake.ID) (ports.GuildAudioConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ports.GuildAudioConfig{}, m.err
	}
	cfg, ok := m.configs[guildID]
	if !ok {
		return ports.GuildAudioConfig{UserJoinEnabled: true, Volume: 100}, nil
	}
	return cfg, nil
}

func (m *mockConfigStore) SaveVolume(_ context.Context, guildID snowflake.ID, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[guildID]
	if !ok {
		cfg = ports.GuildAudioConfig{UserJoinEnabled: true}
	}
	cfg.Volume = volume
	m.configs[guildID] = cfg
	return nil
}

type mockVoiceStateProvider struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func newMockVoiceStateProvider() *mockVoiceStateProvider {
	return &mockVoiceStateProvider{channels: make(map[snowflake.ID]snowflake.ID)}
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.channels[userID], nil
}

func (m *mockVoiceStateProvider) ListenerCount(snowflake.ID) int {
	return 0
}

type mockRenderer struct {
	mu            sync.Mutex
	notifications []ports.Notification
}

func (m *mockRenderer) Notify(_ context.Context, n ports.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
}

func (m *mockRenderer) last(kind ports.NotificationKind) *ports.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].Kind == kind {
			n := m.notifications[i]
			return &n
		}
	}
	return nil
}

type mockPlaylistStore struct {
	mu        sync.Mutex
	nextID    uint
	snapshot  *ports.PlaylistSnapshot
	conflicts int // number of upcoming saves that fail with a conflict
	saves     int
	deleted   []ports.PlaylistItem
}

func (m *mockPlaylistStore) LoadOrCreate(
	_ context.Context,
	guildID snowflake.ID,
	_ domain.PlaylistRef,
) (*ports.PlaylistSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		m.snapshot = &ports.PlaylistSnapshot{
			Ref:     domain.PlaylistRef{ID: 1, UUID: "playlist-1", Version: 1},
			GuildID: guildID,
		}
	}
	copied := *m.snapshot
	copied.Items = append([]ports.PlaylistItem(nil), m.snapshot.Items...)
	return &copied, nil
}

func (m *mockPlaylistStore) Save(_ context.Context, snapshot *ports.PlaylistSnapshot) (domain.PlaylistRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.conflicts > 0 {
		m.conflicts--
		return domain.PlaylistRef{}, ports.ErrPlaylistConflict
	}

	items := make([]ports.PlaylistItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		if item.ID == 0 {
			m.nextID++
			item.ID = m.nextID
		}
		items[i] = item
	}
	ref := snapshot.Ref
	ref.Version++
	m.snapshot = &ports.PlaylistSnapshot{Ref: ref, GuildID: snapshot.GuildID, Items: items}
	return ref, nil
}

func (m *mockPlaylistStore) DeleteItems(_ context.Context, items []ports.PlaylistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, items...)
	return nil
}

func (m *mockPlaylistStore) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil
	}
	titles := make([]string, len(m.snapshot.Items))
	for i, item := range m.snapshot.Items {
		titles[i] = item.Track.Title
	}
	return titles
}

type mockTrackResolver struct {
	loadErr    error
	loadResult *ports.LoadResult
	lastQuery  string
}

func (m *mockTrackResolver) LoadTracks(_ context.Context, query string) (*ports.LoadResult, error) {
	m.lastQuery = query
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loadResult, nil
}

type playbackEnv struct {
	engine    *mockAudioEngine
	configs   *mockConfigStore
	voice     *mockVoiceStateProvider
	renderer  *mockRenderer
	playlists *mockPlaylistStore
	registry  *application.InstanceRegistry
	router    *application.PlaybackEventRouter
	service   *PlaybackService
}

func newPlaybackEnv() *playbackEnv {
	env := &playbackEnv{
		engine:    newMockAudioEngine(),
		configs:   newMockConfigStore(),
		voice:     newMockVoiceStateProvider(),
		renderer:  &mockRenderer{},
		playlists: &mockPlaylistStore{},
	}
	env.registry = application.NewInstanceRegistry(env.engine, env.configs, env.voice, env.renderer)
	env.router = application.NewPlaybackEventRouter(env.registry, env.renderer)
	env.service = NewPlaybackService(
		env.registry,
		env.router,
		env.configs,
		NewVoiceChannelService(env.engine, env.configs, env.voice),
		NewPlaylistSyncService(env.playlists),
		env.renderer,
	)
	return env
}

const (
	testGuild   = snowflake.ID(1)
	testChannel = snowflake.ID(2)
	testVoice   = snowflake.ID(3)
	testUser    = snowflake.ID(4)
)

func (e *playbackEnv) play(t *testing.T, ids ...string) *PlayOutput {
	t.Helper()

	e.voice.channels[testUser] = testVoice
	output, err := e.service.Play(context.Background(), PlayInput{
		GuildID:       testGuild,
		TextChannelID: testChannel,
		Member:        domain.Member{ID: testUser, DisplayName: "user"},
		Tracks:        mockTracks(ids...),
	})
	if err != nil {
		t.Fatalf("unexpected play error: %v", err)
	}
	return output
}

func (e *playbackEnv) instance(t *testing.T) *domain.PlaybackInstance {
	t.Helper()

	instance, ok := e.registry.Get(context.Background(), testGuild)
	if !ok {
		t.Fatal("expected an instance for the test guild")
	}
	return instance
}

func requestTitles(reqs []*domain.TrackRequest) []string {
	titles := make([]string, len(reqs))
	for i, r := range reqs {
		titles[i] = r.Track().Title
	}
	return titles
}
