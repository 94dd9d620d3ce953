package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

const (
	testSelf    snowflake.ID = 100
	testGuild   snowflake.ID = 1
	testChannel snowflake.ID = 2
	testUser    snowflake.ID = 4
)

type sentReply struct {
	channelID snowflake.ID
	reply     Reply
}

type reaction struct {
	messageID snowflake.ID
	emoji     string
}

type mockPlatform struct {
	mu        sync.Mutex
	perms     int64
	permsErr  error
	reactErr  error
	nextID    snowflake.ID
	sent      []sentReply
	reactions []reaction
	deleted   []snowflake.ID
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		perms: discordgo.PermissionSendMessages |
			discordgo.PermissionEmbedLinks |
			discordgo.PermissionAddReactions |
			discordgo.PermissionManageMessages,
		nextID: 500,
	}
}

func (m *mockPlatform) SelfID() snowflake.ID { return testSelf }
func (m *mockPlatform) ShardID() int         { return 0 }

func (m *mockPlatform) Permissions(snowflake.ID) (int64, error) {
	return m.perms, m.permsErr
}

func (m *mockPlatform) AddReaction(_, messageID snowflake.ID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reactErr != nil {
		return m.reactErr
	}
	m.reactions = append(m.reactions, reaction{messageID: messageID, emoji: emoji})
	return nil
}

func (m *mockPlatform) SendMessage(channelID snowflake.ID, reply Reply) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sent = append(m.sent, sentReply{channelID: channelID, reply: reply})
	return m.nextID, nil
}

func (m *mockPlatform) DeleteMessage(_, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockPlatform) emojis() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	emojis := make([]string, len(m.reactions))
	for i, r := range m.reactions {
		emojis[i] = r.emoji
	}
	return emojis
}

type mockConfigStore struct {
	settings    GuildSettings
	settingsErr error
	configs     map[string]Config
	configErr   error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{configs: make(map[string]Config)}
}

func (m *mockConfigStore) GuildSettings(context.Context, snowflake.ID) (GuildSettings, error) {
	return m.settings, m.settingsErr
}

func (m *mockConfigStore) CommandConfig(_ context.Context, _ snowflake.ID, key string) (Config, error) {
	return m.configs[key], m.configErr
}

type mockMetrics struct {
	mu       sync.Mutex
	executed []string
	failed   map[string]FailureKind
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{failed: make(map[string]FailureKind)}
}

func (m *mockMetrics) CommandExecuted(key string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, key)
}

func (m *mockMetrics) CommandFailed(key string, kind FailureKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[key] = kind
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errHandler = errors.New("handler failed")

type dispatchEnv struct {
	platform *mockPlatform
	configs  *mockConfigStore
	metrics  *mockMetrics
	clock    *fakeClock
	holder   *Holder
	d        *Dispatcher
	calls    map[string]int
	mu       sync.Mutex
}

func newDispatchEnv() *dispatchEnv {
	env := &dispatchEnv{
		platform: newMockPlatform(),
		configs:  newMockConfigStore(),
		metrics:  newMockMetrics(),
		clock:    newFakeClock(),
		holder:   NewHolder(),
		calls:    make(map[string]int),
	}
	env.d = NewDispatcher(env.holder, env.configs, env.platform,
		WithMetrics(env.metrics),
		WithClock(env.clock.Now),
	)
	// Run temporary message deletion synchronously.
	env.d.ack.after = func(_ time.Duration, f func()) { f() }
	return env
}

func (e *dispatchEnv) register(key string, handler Handler) *Command {
	cmd := &Command{
		Key:     key,
		Aliases: map[string][]string{DefaultLocale: {key}},
		Handler: func(ctx context.Context, inv *Invocation) error {
			e.mu.Lock()
			e.calls[key]++
			e.mu.Unlock()
			if handler != nil {
				return handler(ctx, inv)
			}
			return nil
		},
	}
	if err := e.holder.Register(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func (e *dispatchEnv) callCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[key]
}

func newMessage(content string) Message {
	return Message{
		ID:        900,
		GuildID:   testGuild,
		ChannelID: testChannel,
		Author:    Author{ID: testUser, DisplayName: "alice"},
		Content:   content,
	}
}
