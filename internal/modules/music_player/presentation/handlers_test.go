package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

func requireValidation(t *testing.T, err error, contains string) {
	t.Helper()

	var validationErr *command.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !strings.Contains(validationErr.Error(), contains) {
		t.Errorf("expected message to contain %q, got %q", contains, validationErr.Error())
	}
}

func TestCommands_Records(t *testing.T) {
	env := newHandlerEnv(t)

	want := []string{
		"play", "queue", "skip", "stop", "pause",
		"resume", "shuffle", "remove", "repeat", "volume",
	}
	if len(env.commands) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(env.commands))
	}
	for i, key := range want {
		cmd, ok := env.commands[key]
		if !ok {
			t.Fatalf("expected command %q", key)
		}
		if cmd.Priority != basePriority+i {
			t.Errorf("expected %s priority %d, got %d", key, basePriority+i, cmd.Priority)
		}
		if len(cmd.Aliases[command.DefaultLocale]) == 0 {
			t.Errorf("expected default aliases for %s", key)
		}
		if cmd.Available == nil {
			t.Errorf("expected an availability predicate for %s", key)
		}
	}
}

func TestCommands_RegisterInHolder(t *testing.T) {
	env := newHandlerEnv(t)
	holder := command.NewHolder()
	for _, cmd := range env.commands {
		if err := holder.Register(cmd); err != nil {
			t.Fatalf("unexpected register error: %v", err)
		}
	}

	cmd, ok := holder.Lookup("q", command.DefaultLocale)
	if !ok || cmd.Key != "queue" {
		t.Fatalf("expected q to resolve to queue, got %v", cmd)
	}
	cmd, ok = holder.Lookup("громкость", "ru")
	if !ok || cmd.Key != "volume" {
		t.Fatalf("expected the ru alias to resolve to volume, got %v", cmd)
	}
}

func TestHandlers_Available(t *testing.T) {
	env := newHandlerEnv(t)
	cmd := env.commands["play"]
	ctx := context.Background()

	msg := command.Message{GuildID: testGuild, Author: command.Author{ID: testUser}}
	if !cmd.Available(ctx, command.NewInvocation(env.platform, cmd, msg, "")) {
		t.Error("expected commands to be available without music roles")
	}

	env.configs.cfg.AllowedRoles = []snowflake.ID{testRole}
	if cmd.Available(ctx, command.NewInvocation(env.platform, cmd, msg, "")) {
		t.Error("expected commands to be unavailable without a music role")
	}

	msg.Author.RoleIDs = []snowflake.ID{testRole}
	if !cmd.Available(ctx, command.NewInvocation(env.platform, cmd, msg, "")) {
		t.Error("expected a member with a music role to have access")
	}

	msg.Author = command.Author{ID: testUser, Privileged: true}
	if !cmd.Available(ctx, command.NewInvocation(env.platform, cmd, msg, "")) {
		t.Error("expected a privileged member to have access")
	}
}

func TestHandlers_PlayStartsAndQueues(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1", "2")

	instance, ok := env.registry.Get(context.Background(), testGuild)
	if !ok {
		t.Fatal("expected an instance after play")
	}
	if current := instance.Current(); current == nil || current.Track().Title != "Track 1" {
		t.Fatalf("expected Track 1 to be playing, got %v", current)
	}
	if queued := instance.Queue(); len(queued) != 1 || queued[0].Track().Title != "Track 2" {
		t.Errorf("expected Track 2 to be queued, got %d requests", len(queued))
	}
	if channel, _ := env.engine.ConnectedChannel(testGuild); channel != testVoice {
		t.Errorf("expected connection to %d, got %d", testVoice, channel)
	}
}

func TestHandlers_PlayValidation(t *testing.T) {
	env := newHandlerEnv(t)

	requireValidation(t, env.run(t, "play", ""), "Specify")
	requireValidation(t, env.run(t, "play", "nothing here"), "No results found for **nothing here**")

	env.voice.channels = map[snowflake.ID]snowflake.ID{}
	env.resolver.result = &ports.LoadResult{
		Type:   ports.LoadTypeSearch,
		Tracks: []*domain.Track{mockTrack("1")},
	}
	requireValidation(t, env.run(t, "play", "track 1"), "You must be in a voice channel.")
}

func TestHandlers_PlayPlaylistReply(t *testing.T) {
	env := newHandlerEnv(t)
	env.resolver.result = &ports.LoadResult{
		Type:         ports.LoadTypePlaylist,
		Tracks:       []*domain.Track{mockTrack("1"), mockTrack("2"), mockTrack("3")},
		PlaylistName: "Mix",
	}

	if err := env.run(t, "play", "https://example.com/playlist"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply := env.platform.lastReply(t)
	if reply.Description != "Loaded **Mix** with 3 tracks." {
		t.Errorf("unexpected reply %q", reply.Description)
	}
}

func TestHandlers_RequireSameChannel(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1")

	env.voice.channels[testUser] = snowflake.ID(99)
	requireValidation(t, env.run(t, "skip", ""), "same voice channel")
}

func TestHandlers_NotPlaying(t *testing.T) {
	env := newHandlerEnv(t)

	for _, key := range []string{"queue", "skip", "stop", "pause", "resume", "shuffle", "repeat"} {
		t.Run(key, func(t *testing.T) {
			requireValidation(t, env.run(t, key, ""), "Nothing is currently playing.")
		})
	}
}

func TestHandlers_Queue(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1", "2", "3")

	if err := env.run(t, "queue", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply := env.platform.lastReply(t)
	if !strings.Contains(reply.Description, "**Track 1**") {
		t.Errorf("expected the current track in %q", reply.Description)
	}
	if !strings.Contains(reply.Description, "1\\. **Track 2**") ||
		!strings.Contains(reply.Description, "2\\. **Track 3**") {
		t.Errorf("expected numbered queue entries in %q", reply.Description)
	}
	if reply.Footer != "Page 1/1 | 2 tracks | 06:00" {
		t.Errorf("unexpected footer %q", reply.Footer)
	}

	for _, page := range []string{"0", "-1", "abc"} {
		requireValidation(t, env.run(t, "queue", page), "Select a page")
	}
}

func TestHandlers_Skip(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1", "2")

	if err := env.run(t, "skip", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply := env.platform.lastReply(t); reply.Description != "Skipped **Track 1**." {
		t.Errorf("unexpected reply %q", reply.Description)
	}

	instance, _ := env.registry.Get(context.Background(), testGuild)
	if current := instance.Current(); current == nil || current.Track().Title != "Track 2" {
		t.Errorf("expected Track 2 to be playing after skip, got %v", current)
	}
}

func TestHandlers_Stop(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1")

	if err := env.run(t, "stop", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := env.registry.Get(context.Background(), testGuild); ok {
		t.Error("expected the instance to be removed")
	}
}

func TestHandlers_PauseResume(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1")

	if err := env.run(t, "pause", ""); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	requireValidation(t, env.run(t, "pause", ""), "Playback is already paused.")

	if err := env.run(t, "resume", ""); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	requireValidation(t, env.run(t, "resume", ""), "Playback is not paused.")

	if len(env.platform.reactions) != 2 || env.platform.reactions[0] != command.EmojiSuccess {
		t.Errorf("expected two success reactions, got %v", env.platform.reactions)
	}
}

func TestHandlers_ShuffleNeedsTwoTracks(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1", "2")

	requireValidation(t, env.run(t, "shuffle", ""), "not enough tracks")

	env.play(t, "3")
	if err := env.run(t, "shuffle", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandlers_Remove(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1", "2", "3")

	requireValidation(t, env.run(t, "remove", "x"), "Specify the position")
	requireValidation(t, env.run(t, "remove", "5"), "no track at position 5")

	if err := env.run(t, "remove", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply := env.platform.lastReply(t); reply.Description != "Removed **Track 3**." {
		t.Errorf("unexpected reply %q", reply.Description)
	}
}

func TestHandlers_Repeat(t *testing.T) {
	env := newHandlerEnv(t)
	env.play(t, "1")

	if err := env.run(t, "repeat", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply := env.platform.lastReply(t); !strings.Contains(reply.Description, "current track") {
		t.Errorf("expected cycling to repeat the current track, got %q", reply.Description)
	}

	if err := env.run(t, "repeat", "Queue"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply := env.platform.lastReply(t); !strings.Contains(reply.Description, "the queue") {
		t.Errorf("expected the queue to repeat, got %q", reply.Description)
	}

	requireValidation(t, env.run(t, "repeat", "sometimes"), "Unknown repeat mode")
}

func TestHandlers_Volume(t *testing.T) {
	env := newHandlerEnv(t)

	if err := env.run(t, "volume", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply := env.platform.lastReply(t); reply.Description != "Volume is **100%**." {
		t.Errorf("unexpected reply %q", reply.Description)
	}

	if err := env.run(t, "volume", "40%"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.configs.cfg.Volume != 40 {
		t.Errorf("expected stored volume 40, got %d", env.configs.cfg.Volume)
	}

	for _, arg := range []string{"loud", "151", "-1"} {
		requireValidation(t, env.run(t, "volume", arg), "Volume must be a number from 0 to 150.")
	}
}

func TestCommandError(t *testing.T) {
	unexpected := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want command.FailureKind
	}{
		{"not playing", usecases.ErrNotPlaying, command.FailureValidation},
		{"wrapped validation", fmt.Errorf("op: %w", usecases.ErrInvalidVolume), command.FailureValidation},
		{"no voice channel", usecases.ErrNoVoiceChannel, command.FailureDomain},
		{"connection", ports.ErrConnection, command.FailureDomain},
		{"load failed", fmt.Errorf("%w: timeout", usecases.ErrLoadFailed), command.FailureDomain},
		{"unexpected", unexpected, command.FailureUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := commandError(tt.err)

			var validationErr *command.ValidationError
			var domainErr *command.DomainError
			kind := command.FailureUnexpected
			switch {
			case errors.As(got, &validationErr):
				kind = command.FailureValidation
			case errors.As(got, &domainErr):
				kind = command.FailureDomain
			}
			if kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, kind)
			}
		})
	}
}

func TestSentence(t *testing.T) {
	got := sentence(fmt.Errorf("%w: dial tcp", ports.ErrConnection))
	if got != "No access to voice channel." {
		t.Errorf("expected %q, got %q", "No access to voice channel.", got)
	}
}
