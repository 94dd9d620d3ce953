package usecases

import (
	"context"
	"fmt"

	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// LoadTracksInput contains the input for the LoadTracks use case.
type LoadTracksInput struct {
	Query string
}

// LoadTracksOutput contains the result of the LoadTracks use case.
type LoadTracksOutput struct {
	Tracks       []*domain.Track
	IsPlaylist   bool
	PlaylistName string
}

// TrackLoaderService handles track loading operations.
type TrackLoaderService struct {
	trackResolver ports.TrackResolver
}

// NewTrackLoaderService creates a new TrackLoaderService.
func NewTrackLoaderService(trackResolver ports.TrackResolver) *TrackLoaderService {
	return &TrackLoaderService{
		trackResolver: trackResolver,
	}
}

// LoadTracks resolves a query into playable tracks. URLs of playlists yield
// every track; searches yield the best match only.
func (s *TrackLoaderService) LoadTracks(
	ctx context.Context,
	input LoadTracksInput,
) (*LoadTracksOutput, error) {
	query := domain.NewSearchQuery(input.Query)
	if !query.IsValid() {
		return nil, ErrNoResults
	}

	result, err := s.trackResolver.LoadTracks(ctx, query.LavalinkQuery())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	tracks := make([]*domain.Track, 0, len(result.Tracks))
	for _, track := range result.Tracks {
		if track != nil && track.IsValid() {
			tracks = append(tracks, track)
		}
	}

	if result.Type == ports.LoadTypeEmpty || result.Type == ports.LoadTypeError ||
		len(tracks) == 0 {
		return nil, ErrNoResults
	}

	switch result.Type {
	case ports.LoadTypePlaylist:
		return &LoadTracksOutput{
			Tracks:       tracks,
			IsPlaylist:   true,
			PlaylistName: result.PlaylistName,
		}, nil
	default:
		return &LoadTracksOutput{Tracks: tracks[:1]}, nil
	}
}
