package ports

import (
	"context"

	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// EngineEventKind identifies a lifecycle callback from the audio engine.
type EngineEventKind int

const (
	EngineTrackStart EngineEventKind = iota
	EngineTrackEnd
	EngineTrackPause
	EngineTrackResume
	EngineTrackException
)

// String returns a human-readable representation of the event kind.
func (k EngineEventKind) String() string {
	switch k {
	case EngineTrackStart:
		return "track_start"
	case EngineTrackEnd:
		return "track_end"
	case EngineTrackPause:
		return "track_pause"
	case EngineTrackResume:
		return "track_resume"
	case EngineTrackException:
		return "track_exception"
	default:
		return "unknown"
	}
}

// EngineEvent is a lifecycle callback tagged with the token its track was submitted with.
type EngineEvent struct {
	Kind      EngineEventKind
	Token     domain.PlaybackToken
	EndReason domain.EndReason // set for EngineTrackEnd
	Err       error            // set for EngineTrackException
}

// EngineEventPublisher accepts engine callbacks for asynchronous routing.
type EngineEventPublisher interface {
	Publish(event EngineEvent) error
}

// EngineEventHandler consumes routed engine callbacks.
type EngineEventHandler interface {
	Handle(ctx context.Context, event EngineEvent)
}
