package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
	"github.com/sglre6355/jukebox/internal/storage"
)

// Ensure the storage adapters implement port interfaces.
var (
	_ ports.GuildConfigStore = (*MusicConfigStore)(nil)
	_ ports.PlaylistStore    = (*PlaylistStore)(nil)
)

// MusicConfigStore serves guild audio configuration from the database.
type MusicConfigStore struct {
	client        *storage.Client
	defaultVolume int
}

// NewMusicConfigStore creates a new MusicConfigStore. defaultVolume applies
// to guilds that never saved one.
func NewMusicConfigStore(client *storage.Client, defaultVolume int) *MusicConfigStore {
	return &MusicConfigStore{client: client, defaultVolume: defaultVolume}
}

// GuildAudioConfig returns the guild's audio configuration, or defaults
// when none is stored. Defaults are returned alongside any error.
func (s *MusicConfigStore) GuildAudioConfig(
	ctx context.Context,
	guildID snowflake.ID,
) (ports.GuildAudioConfig, error) {
	defaults := ports.GuildAudioConfig{
		UserJoinEnabled: true,
		Volume:          s.defaultVolume,
	}

	cfg, found, err := s.client.MusicConfig(ctx, guildID)
	if err != nil {
		return defaults, err
	}
	if !found {
		return defaults, nil
	}

	result := ports.GuildAudioConfig{
		AllowedRoles:    cfg.AllowedRoles,
		ChannelID:       cfg.ChannelID,
		UserJoinEnabled: !cfg.UserJoinDisabled,
		Volume:          s.defaultVolume,
	}
	if cfg.Volume != nil {
		result.Volume = *cfg.Volume
	}
	return result, nil
}

// SaveVolume persists the player volume of a guild.
func (s *MusicConfigStore) SaveVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	return s.client.SaveMusicVolume(ctx, guildID, volume)
}

// PlaylistStore persists playlist snapshots in the database.
type PlaylistStore struct {
	client *storage.Client
}

// NewPlaylistStore creates a new PlaylistStore.
func NewPlaylistStore(client *storage.Client) *PlaylistStore {
	return &PlaylistStore{client: client}
}

// LoadOrCreate returns the referenced playlist or a new one for the guild.
func (s *PlaylistStore) LoadOrCreate(
	ctx context.Context,
	guildID snowflake.ID,
	ref domain.PlaylistRef,
) (*ports.PlaylistSnapshot, error) {
	playlist, err := s.client.LoadOrCreatePlaylist(ctx, guildID, ref.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &ports.PlaylistSnapshot{
		Ref: domain.PlaylistRef{
			ID:      playlist.ID,
			UUID:    playlist.UUID,
			Version: playlist.Version,
		},
		GuildID: playlist.GuildID,
		Items:   make([]ports.PlaylistItem, len(playlist.Items)),
	}
	for i, item := range playlist.Items {
		snapshot.Items[i] = fromStoredItem(item)
	}
	return snapshot, nil
}

// Save writes the snapshot's items in order and returns the new reference.
func (s *PlaylistStore) Save(
	ctx context.Context,
	snapshot *ports.PlaylistSnapshot,
) (domain.PlaylistRef, error) {
	items := make([]storage.PlaylistItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		items[i] = toStoredItem(item)
	}

	version, err := s.client.SavePlaylist(ctx, snapshot.Ref.ID, snapshot.Ref.Version, items)
	if errors.Is(err, storage.ErrVersionConflict) {
		return domain.PlaylistRef{}, ports.ErrPlaylistConflict
	}
	if err != nil {
		return domain.PlaylistRef{}, err
	}

	ref := snapshot.Ref
	ref.Version = version
	return ref, nil
}

// DeleteItems removes stored items.
func (s *PlaylistStore) DeleteItems(ctx context.Context, items []ports.PlaylistItem) error {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if item.ID != 0 {
			ids = append(ids, item.ID)
		}
	}
	return s.client.DeletePlaylistItems(ctx, ids)
}

func toStoredItem(item ports.PlaylistItem) storage.PlaylistItem {
	track := item.Track
	return storage.PlaylistItem{
		ID:          item.ID,
		Encoded:     track.Encoded,
		Identifier:  track.Identifier,
		Title:       track.Title,
		Author:      track.Author,
		LengthMs:    track.Duration.Milliseconds(),
		URI:         track.URI,
		ArtworkURL:  track.ArtworkURL,
		SourceName:  track.SourceName,
		IsStream:    track.IsStream,
		RequesterID: item.RequesterID,
	}
}

func fromStoredItem(item storage.PlaylistItem) ports.PlaylistItem {
	return ports.PlaylistItem{
		ID: item.ID,
		Track: domain.Track{
			Encoded:    item.Encoded,
			Identifier: item.Identifier,
			Title:      item.Title,
			Author:     item.Author,
			Duration:   time.Duration(item.LengthMs) * time.Millisecond,
			URI:        item.URI,
			ArtworkURL: item.ArtworkURL,
			SourceName: item.SourceName,
			IsStream:   item.IsStream,
		},
		RequesterID: item.RequesterID,
	}
}
