package usecases

import (
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// Track is an alias for domain.Track.
type Track = domain.Track

// TrackRequest is an alias for domain.TrackRequest.
type TrackRequest = domain.TrackRequest

// Member is an alias for domain.Member.
type Member = domain.Member

// RepeatMode is an alias for domain.RepeatMode.
type RepeatMode = domain.RepeatMode
