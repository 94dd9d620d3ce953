package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/storage"
)

func newTestConfigStore(t *testing.T) (*commandConfigStore, *storage.Client) {
	t.Helper()

	client, err := storage.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return &commandConfigStore{client: client}, client
}

func TestCommandConfigStore_Defaults(t *testing.T) {
	store, _ := newTestConfigStore(t)
	ctx := context.Background()

	settings, err := store.GuildSettings(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Prefix != "" || settings.Locale != "" {
		t.Errorf("expected empty settings, got %+v", settings)
	}

	cfg, err := store.CommandConfig(ctx, 1, "play")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Disabled || cfg.Cooldown.Mode != command.CooldownNone {
		t.Errorf("expected the zero config, got %+v", cfg)
	}
}

func TestCommandConfigStore_Stored(t *testing.T) {
	store, client := newTestConfigStore(t)
	ctx := context.Background()

	err := client.SaveGuildSettings(ctx, storage.GuildSettings{GuildID: 1, Prefix: "?", CommandLocale: "ru"})
	if err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	err = client.SaveCommandConfig(ctx, storage.CommandConfig{
		GuildID:              1,
		CommandKey:           "play",
		AllowedChannels:      []snowflake.ID{2},
		CooldownMode:         storage.CooldownModeUser,
		CooldownSeconds:      30,
		CooldownIgnoredRoles: []snowflake.ID{9},
		DeleteSource:         true,
	})
	if err != nil {
		t.Fatalf("failed to save command config: %v", err)
	}

	settings, err := store.GuildSettings(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Prefix != "?" || settings.Locale != "ru" {
		t.Errorf("expected prefix ? and locale ru, got %+v", settings)
	}

	cfg, err := store.CommandConfig(ctx, 1, "play")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cooldown.Mode != command.CooldownPerUser {
		t.Errorf("expected per-user cooldown, got %v", cfg.Cooldown.Mode)
	}
	if cfg.Cooldown.Duration != 30*time.Second {
		t.Errorf("expected 30s cooldown, got %v", cfg.Cooldown.Duration)
	}
	if len(cfg.Cooldown.IgnoredRoles) != 1 || cfg.Cooldown.IgnoredRoles[0] != 9 {
		t.Errorf("expected ignored role 9, got %v", cfg.Cooldown.IgnoredRoles)
	}
	if len(cfg.AllowedChannels) != 1 || !cfg.DeleteSource {
		t.Errorf("unexpected restrictions %+v", cfg)
	}
}
