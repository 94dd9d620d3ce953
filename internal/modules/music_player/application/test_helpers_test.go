package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

type mockPlayer struct {
	mu        sync.Mutex
	tokens    []domain.PlaybackToken
	titles    []string
	volume    int
	paused    bool
	connected bool
	released  int
}

func (m *mockPlayer) Play(_ context.Context, track *domain.Track, token domain.PlaybackToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	m.titles = append(m.titles, track.Title)
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

func (m *mockPlayer) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *mockPlayer) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	m.connected = false
	return nil
}

func (m *mockPlayer) lastToken() domain.PlaybackToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[len(m.tokens)-1]
}

func (m *mockPlayer) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

type mockEngine struct {
	mu       sync.Mutex
	players  map[snowflake.ID][]*mockPlayer
	created  int
	gate     chan struct{} // when set, CreatePlayer blocks until closed
	shutdown int
}

func newMockEngine() *mockEngine {
	return &mockEngine{players: make(map[snowflake.ID][]*mockPlayer)}
}

func (m *mockEngine) CreatePlayer(_ context.Context, guildID snowflake.ID, volume int) (domain.PlayerHandle, error) {
	if m.gate != nil {
		<-m.gate
	}
	// Widen the window for concurrent construction.
	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	player := &mockPlayer{volume: volume, connected: true}
	m.players[guildID] = append(m.players[guildID], player)
	return player, nil
}

func (m *mockEngine) OpenConnection(context.Context, snowflake.ID, snowflake.ID) error {
	return nil
}

func (m *mockEngine) ConnectedChannel(snowflake.ID) (snowflake.ID, bool) {
	return 0, false
}

func (m *mockEngine) Shutdown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown++
	return nil
}

func (m *mockEngine) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// liveCount returns how many players of a guild have not been released.
func (m *mockEngine) liveCount(guildID snowflake.ID) int {
	m.mu.Lock()
	players := m.players[guildID]
	m.mu.Unlock()

	live := 0
	for _, player := range players {
		if player.releaseCount() == 0 {
			live++
		}
	}
	return live
}

func (m *mockEngine) player(guildID snowflake.ID) *mockPlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := m.players[guildID]
	return players[len(players)-1]
}

type mockConfigStore struct {
	mu      sync.Mutex
	volumes map[snowflake.ID]int
	onSave  func(guildID snowflake.ID) // called after a volume is saved
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{volumes: make(map[snowflake.ID]int)}
}

func (m *mockConfigStore) GuildAudioConfig(_ context.Context, _ snowflake.ID) (ports.GuildAudioConfig, error) {
	return ports.GuildAudioConfig{Volume: 100}, nil
}

func (m *mockConfigStore) SaveVolume(_ context.Context, guildID snowflake.ID, volume int) error {
	m.mu.Lock()
	m.volumes[guildID] = volume
	onSave := m.onSave
	m.mu.Unlock()

	if onSave != nil {
		onSave(guildID)
	}
	return nil
}

func (m *mockConfigStore) savedVolume(guildID snowflake.ID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[guildID]
	return v, ok
}

type mockVoiceState struct {
	mu        sync.Mutex
	listeners map[snowflake.ID]int
}

func newMockVoiceState() *mockVoiceState {
	return &mockVoiceState{listeners: make(map[snowflake.ID]int)}
}

func (m *mockVoiceState) GetUserVoiceChannel(snowflake.ID, snowflake.ID) (snowflake.ID, error) {
	return 0, nil
}

func (m *mockVoiceState) ListenerCount(guildID snowflake.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners[guildID]
}

type mockRenderer struct {
	mu            sync.Mutex
	notifications []ports.Notification
	hook          func(ports.Notification) // called after a notification is recorded
}

func (m *mockRenderer) Notify(_ context.Context, n ports.Notification) {
	m.mu.Lock()
	m.notifications = append(m.notifications, n)
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

func (m *mockRenderer) count(kind ports.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, notification := range m.notifications {
		if notification.Kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	engine   *mockEngine
	configs  *mockConfigStore
	voice    *mockVoiceState
	renderer *mockRenderer
	registry *InstanceRegistry
	router   *PlaybackEventRouter
}

func newTestEnv(opts ...domain.InstanceOption) *testEnv {
	env := &testEnv{
		engine:   newMockEngine(),
		configs:  newMockConfigStore(),
		voice:    newMockVoiceState(),
		renderer: &mockRenderer{},
	}
	env.registry = NewInstanceRegistry(env.engine, env.configs, env.voice, env.renderer, opts...)
	env.router = NewPlaybackEventRouter(env.registry, env.renderer)
	return env
}

func newRequest(t *testing.T, guildID snowflake.ID, title string) *domain.TrackRequest {
	t.Helper()

	req, err := domain.NewTrackRequest(
		&domain.Track{Encoded: "enc-" + title, Identifier: title, Title: title, Duration: time.Minute},
		domain.Member{ID: 42, DisplayName: "listener"},
		guildID,
		snowflake.ID(500),
	)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return req
}
