package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

func TestConvertEndReason(t *testing.T) {
	tests := []struct {
		reason   lavalink.TrackEndReason
		expected domain.EndReason
	}{
		{lavalink.TrackEndReasonFinished, domain.EndFinished},
		{lavalink.TrackEndReasonLoadFailed, domain.EndLoadFailed},
		{lavalink.TrackEndReasonStopped, domain.EndStopped},
		{lavalink.TrackEndReasonReplaced, domain.EndReplaced},
		{lavalink.TrackEndReasonCleanup, domain.EndCleanup},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := convertEndReason(tt.reason); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func newOwnershipAdapter() *LavalinkAdapter {
	return &LavalinkAdapter{
		bindings: make(map[snowflake.ID]trackBinding),
		owners:   make(map[snowflake.ID]*lavalinkPlayer),
	}
}

func TestLavalinkAdapter_TokenFor(t *testing.T) {
	adapter := newOwnershipAdapter()
	player := &lavalinkPlayer{adapter: adapter, guildID: 1}
	adapter.adopt(player)

	token := domain.PlaybackToken{GuildID: 1, Generation: 3}
	if !adapter.bind(player, "enc-a", token) {
		t.Fatal("expected the owning handle to bind")
	}

	if got := adapter.tokenFor(1, lavalink.Track{Encoded: "enc-a"}); got != token {
		t.Errorf("expected %+v, got %+v", token, got)
	}
	if got := adapter.tokenFor(1, lavalink.Track{Encoded: "enc-b"}); !got.IsZero() {
		t.Errorf("expected zero token for another track, got %+v", got)
	}
	if got := adapter.tokenFor(2, lavalink.Track{Encoded: "enc-a"}); !got.IsZero() {
		t.Errorf("expected zero token for another guild, got %+v", got)
	}

	if !adapter.disown(player) {
		t.Fatal("expected the owning handle to disown")
	}
	if got := adapter.tokenFor(1, lavalink.Track{Encoded: "enc-a"}); !got.IsZero() {
		t.Errorf("expected zero token after disown, got %+v", got)
	}
}

func TestLavalinkAdapter_OldHandleCannotTouchSuccessor(t *testing.T) {
	adapter := newOwnershipAdapter()
	old := &lavalinkPlayer{adapter: adapter, guildID: 1}
	adapter.adopt(old)
	fresh := &lavalinkPlayer{adapter: adapter, guildID: 1}
	adapter.adopt(fresh)

	token := domain.PlaybackToken{GuildID: 1, Generation: 8}
	if !adapter.bind(fresh, "enc-new", token) {
		t.Fatal("expected the new handle to bind")
	}
	if adapter.bind(old, "enc-old", domain.PlaybackToken{GuildID: 1, Generation: 7}) {
		t.Error("expected the old handle not to bind")
	}

	// Release of the old handle must leave the successor's player alone.
	if err := old.Release(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adapter.owns(fresh) {
		t.Error("expected the new handle to keep ownership")
	}
	if got := adapter.tokenFor(1, lavalink.Track{Encoded: "enc-new"}); got != token {
		t.Errorf("expected binding %+v to survive, got %+v", token, got)
	}

	if err := old.Play(context.Background(), &domain.Track{Encoded: "enc-old"}, token); !errors.Is(err, errHandleReleased) {
		t.Errorf("expected %v, got %v", errHandleReleased, err)
	}
	if err := old.SetVolume(context.Background(), 50); !errors.Is(err, errHandleReleased) {
		t.Errorf("expected %v, got %v", errHandleReleased, err)
	}
}

func TestConvertLoadResult(t *testing.T) {
	uri := "https://example.com/track"
	track := lavalink.Track{
		Encoded: "enc",
		Info: lavalink.TrackInfo{
			Identifier: "id",
			Title:      "title",
			Author:     "author",
			Length:     180000,
			URI:        &uri,
			SourceName: "youtube",
		},
	}

	t.Run("single track", func(t *testing.T) {
		result := convertLoadResult(&lavalink.LoadResult{Data: track})
		if result.Type != ports.LoadTypeTrack || len(result.Tracks) != 1 {
			t.Fatalf("expected one track result, got %+v", result)
		}
		got := result.Tracks[0]
		if got.Duration != 3*time.Minute {
			t.Errorf("expected 3m, got %v", got.Duration)
		}
		if got.URI != uri || got.ArtworkURL != "" {
			t.Errorf("expected uri %q and no artwork, got %q/%q", uri, got.URI, got.ArtworkURL)
		}
	})

	t.Run("playlist", func(t *testing.T) {
		result := convertLoadResult(&lavalink.LoadResult{Data: lavalink.Playlist{
			Info:   lavalink.PlaylistInfo{Name: "mix"},
			Tracks: []lavalink.Track{track, track},
		}})
		if result.Type != ports.LoadTypePlaylist {
			t.Fatalf("expected playlist, got %v", result.Type)
		}
		if result.PlaylistName != "mix" || len(result.Tracks) != 2 {
			t.Errorf("expected playlist mix with 2 tracks, got %q with %d", result.PlaylistName, len(result.Tracks))
		}
	})

	t.Run("search", func(t *testing.T) {
		result := convertLoadResult(&lavalink.LoadResult{Data: lavalink.Search{track}})
		if result.Type != ports.LoadTypeSearch || len(result.Tracks) != 1 {
			t.Errorf("expected one search result, got %+v", result)
		}
	})

	t.Run("empty", func(t *testing.T) {
		result := convertLoadResult(&lavalink.LoadResult{Data: lavalink.Empty{}})
		if result.Type != ports.LoadTypeEmpty || len(result.Tracks) != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})
}
