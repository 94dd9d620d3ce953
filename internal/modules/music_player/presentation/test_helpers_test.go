package presentation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

const (
	testGuild   = snowflake.ID(1)
	testChannel = snowflake.ID(2)
	testVoice   = snowflake.ID(3)
	testUser    = snowflake.ID(4)
	testRole    = snowflake.ID(5)
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

type mockPlayer struct {
	mu     sync.Mutex
	volume int
	paused bool
}

func (m *mockPlayer) Play(context.Context, *domain.Track, domain.PlaybackToken) error {
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

func (m *mockPlayer) Connected() bool               { return true }
func (m *mockPlayer) Release(context.Context) error { return nil }

type mockAudioEngine struct {
	mu        sync.Mutex
	connected map[snowflake.ID]snowflake.ID
}

func (m *mockAudioEngine) CreatePlayer(_ context.Context, _ snowflake.ID, volume int) (domain.PlayerHandle, error) {
	return &mockPlayer{volume: volume}, nil
}

func (m *mockAudioEngine) OpenConnection(_ context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[guildID] = channelID
	return nil
}

func (m *mockAudioEngine) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID, ok := m.connected[guildID]
	return channelID, ok
}

func (m *mockAudioEngine) Shutdown(context.Context) error { return nil }

type mockConfigStore struct {
	mu  sync.Mutex
	cfg ports.GuildAudioConfig
}

func (m *mockConfigStore) GuildAudioConfig(context.Context, snowflake.ID) (ports.GuildAudioConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *mockConfigStore) SaveVolume(_ context.Context, _ snowflake.ID, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Volume = volume
	return nil
}

type mockVoiceStateProvider struct {
	channels map[snowflake.ID]snowflake.ID
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	return m.channels[userID], nil
}

func (m *mockVoiceStateProvider) ListenerCount(snowflake.ID) int { return 1 }

type mockRenderer struct{}

func (mockRenderer) Notify(context.Context, ports.Notification) {}

type mockPlaylistStore struct{}

func (mockPlaylistStore) LoadOrCreate(
	_ context.Context,
	guildID snowflake.ID,
	ref domain.PlaylistRef,
) (*ports.PlaylistSnapshot, error) {
	return &ports.PlaylistSnapshot{Ref: domain.PlaylistRef{ID: 1, Version: 1}, GuildID: guildID}, nil
}

func (mockPlaylistStore) Save(_ context.Context, snapshot *ports.PlaylistSnapshot) (domain.PlaylistRef, error) {
	ref := snapshot.Ref
	ref.Version++
	return ref, nil
}

func (mockPlaylistStore) DeleteItems(context.Context, []ports.PlaylistItem) error { return nil }

type mockTrackResolver struct {
	result *ports.LoadResult
}

func (m *mockTrackResolver) LoadTracks(context.Context, string) (*ports.LoadResult, error) {
	if m.result == nil {
		return &ports.LoadResult{Type: ports.LoadTypeEmpty}, nil
	}
	return m.result, nil
}

type mockPlatform struct {
	mu        sync.Mutex
	sent      []command.Reply
	reactions []string
}

func (m *mockPlatform) SelfID() snowflake.ID                    { return 100 }
func (m *mockPlatform) ShardID() int                            { return 0 }
func (m *mockPlatform) Permissions(snowflake.ID) (int64, error) { return -1, nil }

func (m *mockPlatform) AddReaction(_, _ snowflake.ID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, emoji)
	return nil
}

func (m *mockPlatform) SendMessage(_ snowflake.ID, reply command.Reply) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, reply)
	return snowflake.ID(len(m.sent)), nil
}

func (m *mockPlatform) DeleteMessage(_, _ snowflake.ID) error { return nil }

func (m *mockPlatform) lastReply(t *testing.T) command.Reply {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a reply, got none")
	}
	return m.sent[len(m.sent)-1]
}

type handlerEnv struct {
	engine   *mockAudioEngine
	configs  *mockConfigStore
	voice    *mockVoiceStateProvider
	resolver *mockTrackResolver
	registry *application.InstanceRegistry
	platform *mockPlatform
	handlers *Handlers
	commands map[string]*command.Command
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	env := &handlerEnv{
		engine:   &mockAudioEngine{connected: make(map[snowflake.ID]snowflake.ID)},
		configs:  &mockConfigStore{cfg: ports.GuildAudioConfig{UserJoinEnabled: true, Volume: 100}},
		voice:    &mockVoiceStateProvider{channels: map[snowflake.ID]snowflake.ID{testUser: testVoice}},
		resolver: &mockTrackResolver{},
		platform: &mockPlatform{},
	}
	renderer := mockRenderer{}
	env.registry = application.NewInstanceRegistry(env.engine, env.configs, env.voice, renderer)
	router := application.NewPlaybackEventRouter(env.registry, renderer)
	voiceChannel := usecases.NewVoiceChannelService(env.engine, env.configs, env.voice)
	playback := usecases.NewPlaybackService(
		env.registry,
		router,
		env.configs,
		voiceChannel,
		usecases.NewPlaylistSyncService(mockPlaylistStore{}),
		renderer,
	)
	env.handlers = NewHandlers(playback, voiceChannel, usecases.NewTrackLoaderService(env.resolver))

	commands, err := Commands(env.handlers)
	if err != nil {
		t.Fatalf("unexpected error building commands: %v", err)
	}
	env.commands = make(map[string]*command.Command, len(commands))
	for _, cmd := range commands {
		env.commands[cmd.Key] = cmd
	}
	return env
}

// run invokes the command with key as testUser in the test channel.
func (e *handlerEnv) run(t *testing.T, key, args string) error {
	t.Helper()

	cmd, ok := e.commands[key]
	if !ok {
		t.Fatalf("unknown command %q", key)
	}
	msg := command.Message{
		ID:        900,
		GuildID:   testGuild,
		ChannelID: testChannel,
		Author:    command.Author{ID: testUser, DisplayName: "user"},
		Content:   "!" + key + " " + args,
	}
	return cmd.Handler(context.Background(), command.NewInvocation(e.platform, cmd, msg, args))
}

// play queues the given tracks through the play command, one per call.
func (e *handlerEnv) play(t *testing.T, ids ...string) {
	t.Helper()

	for _, id := range ids {
		e.resolver.result = &ports.LoadResult{
			Type:   ports.LoadTypeSearch,
			Tracks: []*domain.Track{mockTrack(id)},
		}
		if err := e.run(t, "play", "track "+id); err != nil {
			t.Fatalf("unexpected play error: %v", err)
		}
	}
}
