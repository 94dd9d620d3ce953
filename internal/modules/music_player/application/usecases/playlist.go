package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// PlaylistSyncService mirrors instance playlists into the playlist store.
// Failures are logged and never surface to the command that caused them.
type PlaylistSyncService struct {
	store ports.PlaylistStore
}

// NewPlaylistSyncService creates a new PlaylistSyncService.
func NewPlaylistSyncService(store ports.PlaylistStore) *PlaylistSyncService {
	return &PlaylistSyncService{store: store}
}

// Append stores requests at the tail of the instance's playlist.
func (s *PlaylistSyncService) Append(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	requests []*domain.TrackRequest,
) {
	if len(requests) == 0 {
		return
	}

	err := s.withRetry(ctx, instance, func(snapshot *ports.PlaylistSnapshot) ([]ports.PlaylistItem, error) {
		for _, req := range requests {
			snapshot.Items = append(snapshot.Items, toPlaylistItem(req))
		}
		return nil, nil
	})
	if err != nil {
		slog.Warn(
			"failed to store requests to playlist",
			"guild", instance.GuildID(),
			"count", len(requests),
			"error", err,
		)
	}
}

// Rewrite replaces the stored item order with the instance's current
// playlist. Stored items matching a request are reused; the rest are deleted.
func (s *PlaylistSyncService) Rewrite(ctx context.Context, instance *domain.PlaybackInstance) {
	err := s.withRetry(ctx, instance, func(snapshot *ports.PlaylistSnapshot) ([]ports.PlaylistItem, error) {
		stored := snapshot.Items
		used := make([]bool, len(stored))

		items := make([]ports.PlaylistItem, 0, len(stored))
		for _, req := range instance.Playlist() {
			item := toPlaylistItem(req)
			for i := range stored {
				if !used[i] && stored[i].Track.SameAs(req.Track()) {
					used[i] = true
					item.ID = stored[i].ID
					break
				}
			}
			items = append(items, item)
		}

		var removed []ports.PlaylistItem
		for i, item := range stored {
			if !used[i] {
				removed = append(removed, item)
			}
		}

		snapshot.Items = items
		return removed, nil
	})
	if err != nil {
		slog.Warn(
			"failed to refresh stored playlist",
			"guild", instance.GuildID(),
			"error", err,
		)
	}
}

// withRetry loads the snapshot, applies mutate, saves, and deletes the items
// mutate returned. A version conflict is retried once from a fresh load.
func (s *PlaylistSyncService) withRetry(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	mutate func(*ports.PlaylistSnapshot) ([]ports.PlaylistItem, error),
) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.sync(ctx, instance, mutate)
		if !errors.Is(err, ports.ErrPlaylistConflict) {
			return err
		}
		slog.Debug("playlist version conflict, retrying", "guild", instance.GuildID())
	}
	return err
}

func (s *PlaylistSyncService) sync(
	ctx context.Context,
	instance *domain.PlaybackInstance,
	mutate func(*ports.PlaylistSnapshot) ([]ports.PlaylistItem, error),
) error {
	snapshot, err := s.store.LoadOrCreate(ctx, instance.GuildID(), instance.PlaylistRef())
	if err != nil {
		return err
	}

	removed, err := mutate(snapshot)
	if err != nil {
		return err
	}

	ref, err := s.store.Save(ctx, snapshot)
	if err != nil {
		return err
	}
	instance.SetPlaylistRef(ref)

	if len(removed) > 0 {
		return s.store.DeleteItems(ctx, removed)
	}
	return nil
}

func toPlaylistItem(req *domain.TrackRequest) ports.PlaylistItem {
	return ports.PlaylistItem{
		Track:       *req.Track(),
		RequesterID: req.RequesterID(),
	}
}
