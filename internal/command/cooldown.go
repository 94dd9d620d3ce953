package command

import (
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// CooldownMode selects how invocations of a command share a cooldown.
type CooldownMode int

const (
	CooldownNone     CooldownMode = iota // no cooldown
	CooldownPerGuild                     // one timer per guild and command
	CooldownPerUser                      // one timer per guild, command and user
)

// ParseCooldownMode parses "guild" or "user"; anything else is CooldownNone.
func ParseCooldownMode(s string) CooldownMode {
	switch strings.ToLower(s) {
	case "guild":
		return CooldownPerGuild
	case "user":
		return CooldownPerUser
	default:
		return CooldownNone
	}
}

// String returns a human-readable representation of the mode.
func (m CooldownMode) String() string {
	switch m {
	case CooldownPerGuild:
		return "guild"
	case CooldownPerUser:
		return "user"
	default:
		return "none"
	}
}

// CooldownConfig is the cooldown part of a command configuration.
type CooldownConfig struct {
	Mode         CooldownMode
	Duration     time.Duration
	IgnoredRoles []snowflake.ID // holders of these roles bypass the cooldown
}

type cooldownKey struct {
	command string
	userID  snowflake.ID // zero for per-guild timers
}

// cooldownHolder keeps the cooldown timers of one guild.
type cooldownHolder struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time
}

// CooldownTracker rate-limits command invocations per guild.
type CooldownTracker struct {
	mu      sync.RWMutex
	holders map[snowflake.ID]*cooldownHolder
	now     func() time.Time
}

// CooldownOption configures a CooldownTracker.
type CooldownOption func(*CooldownTracker)

// WithCooldownClock sets the time source.
func WithCooldownClock(now func() time.Time) CooldownOption {
	return func(t *CooldownTracker) {
		t.now = now
	}
}

// NewCooldownTracker creates a new CooldownTracker.
func NewCooldownTracker(opts ...CooldownOption) *CooldownTracker {
	t := &CooldownTracker{
		holders: make(map[snowflake.ID]*cooldownHolder),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Perform records an invocation of commandKey by invoker and returns how long
// the invoker still has to wait. Zero means the invocation is allowed; a
// denied invocation does not restart the timer.
func (t *CooldownTracker) Perform(
	guildID snowflake.ID,
	commandKey string,
	invoker Author,
	cfg CooldownConfig,
) time.Duration {
	if cfg.Mode == CooldownNone || cfg.Duration <= 0 {
		return 0
	}
	if len(cfg.IgnoredRoles) > 0 && invoker.HasAnyRole(cfg.IgnoredRoles) {
		return 0
	}

	key := cooldownKey{command: commandKey}
	if cfg.Mode == CooldownPerUser {
		key.userID = invoker.ID
	}

	holder := t.holder(guildID)
	now := t.now()

	holder.mu.Lock()
	defer holder.mu.Unlock()

	if last, ok := holder.last[key]; ok {
		if remaining := last.Add(cfg.Duration).Sub(now); remaining > 0 {
			return remaining
		}
	}
	holder.last[key] = now
	return 0
}

// Clear drops all cooldown state of a guild.
func (t *CooldownTracker) Clear(guildID snowflake.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.holders, guildID)
}

func (t *CooldownTracker) holder(guildID snowflake.ID) *cooldownHolder {
	t.mu.RLock()
	holder, ok := t.holders[guildID]
	t.mu.RUnlock()
	if ok {
		return holder
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if holder, ok = t.holders[guildID]; !ok {
		holder = &cooldownHolder{last: make(map[cooldownKey]time.Time)}
		t.holders[guildID] = holder
	}
	return holder
}
