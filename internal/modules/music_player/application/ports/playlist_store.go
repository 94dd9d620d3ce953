package ports

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// ErrPlaylistConflict is returned when a snapshot is saved over a newer version.
var ErrPlaylistConflict = errors.New("playlist was modified concurrently")

// PlaylistItem is one persisted entry of a playlist.
type PlaylistItem struct {
	ID          uint // zero for items not yet stored
	Track       domain.Track
	RequesterID snowflake.ID
}

// PlaylistSnapshot is the persisted playlist of a guild at a given version.
type PlaylistSnapshot struct {
	Ref     domain.PlaylistRef
	GuildID snowflake.ID
	Items   []PlaylistItem
}

// PlaylistStore persists playlist snapshots.
type PlaylistStore interface {
	// LoadOrCreate returns the playlist referenced by ref, creating one for the
	// guild when ref is zero or no longer exists.
	LoadOrCreate(ctx context.Context, guildID snowflake.ID, ref domain.PlaylistRef) (*PlaylistSnapshot, error)

	// Save writes items in order and bumps the version. Returns ErrPlaylistConflict
	// when the stored version differs from snapshot.Ref.Version.
	Save(ctx context.Context, snapshot *PlaylistSnapshot) (domain.PlaylistRef, error)

	// DeleteItems removes stored items.
	DeleteItems(ctx context.Context, items []PlaylistItem) error
}
