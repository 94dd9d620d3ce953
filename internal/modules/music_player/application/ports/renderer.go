package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// NotificationKind identifies what happened to a guild's playback.
type NotificationKind int

const (
	NotifyTracksAdded NotificationKind = iota
	NotifyTrackStarted
	NotifyTrackEnded
	NotifyTrackPaused
	NotifyTrackResumed
	NotifyTrackException
	NotifyQueueEnded
	NotifyIdle
	NotifyStopped
)

// String returns a human-readable representation of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case NotifyTracksAdded:
		return "tracks_added"
	case NotifyTrackStarted:
		return "track_started"
	case NotifyTrackEnded:
		return "track_ended"
	case NotifyTrackPaused:
		return "track_paused"
	case NotifyTrackResumed:
		return "track_resumed"
	case NotifyTrackException:
		return "track_exception"
	case NotifyQueueEnded:
		return "queue_ended"
	case NotifyIdle:
		return "idle"
	case NotifyStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Notification describes a playback event for the rendering collaborator.
type Notification struct {
	Kind      NotificationKind
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Request   *domain.TrackRequest   // the request the event concerns, if any
	Requests  []*domain.TrackRequest // set for NotifyTracksAdded
	Detail    string
}

// Renderer is a side-effecting sink for playback notifications.
type Renderer interface {
	Notify(ctx context.Context, n Notification)
}
