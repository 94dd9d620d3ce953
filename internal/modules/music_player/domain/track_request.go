package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrInvalidTrack is returned when a request is built around an unplayable track.
	ErrInvalidTrack = errors.New("track is missing encoded data or title")

	// ErrInvalidRequester is returned when a request has no requesting member.
	ErrInvalidRequester = errors.New("track request has no requester")
)

// Member identifies a guild member for display and attribution only.
type Member struct {
	ID          snowflake.ID
	DisplayName string
}

// TrackRequest is a member's accepted request to play a track in a guild.
// Everything except the end slot is fixed at construction.
type TrackRequest struct {
	track       *Track
	member      Member
	requesterID snowflake.ID
	guildID     snowflake.ID
	channelID   snowflake.ID // text channel the request came from
	requestedAt time.Time

	mu        sync.Mutex
	endReason EndReason
	endMember *Member
}

// NewTrackRequest validates the inputs and builds an immutable TrackRequest.
func NewTrackRequest(
	track *Track,
	member Member,
	guildID, channelID snowflake.ID,
) (*TrackRequest, error) {
	if track == nil || !track.IsValid() {
		return nil, ErrInvalidTrack
	}
	if member.ID == 0 {
		return nil, ErrInvalidRequester
	}

	return &TrackRequest{
		track:       track,
		member:      member,
		requesterID: member.ID,
		guildID:     guildID,
		channelID:   channelID,
		requestedAt: time.Now().UTC(),
	}, nil
}

// Track returns the requested track.
func (r *TrackRequest) Track() *Track {
	return r.track
}

// Member returns the requesting member.
func (r *TrackRequest) Member() Member {
	return r.member
}

// RequesterID returns the requesting member's ID.
func (r *TrackRequest) RequesterID() snowflake.ID {
	return r.requesterID
}

// GuildID returns the guild the request belongs to.
func (r *TrackRequest) GuildID() snowflake.ID {
	return r.guildID
}

// ChannelID returns the text channel notifications for this request go to.
func (r *TrackRequest) ChannelID() snowflake.ID {
	return r.channelID
}

// RequestedAt returns when the request was accepted.
func (r *TrackRequest) RequestedAt() time.Time {
	return r.requestedAt
}

// EndReason returns the reason playback ended, if it has.
func (r *TrackRequest) EndReason() (EndReason, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endReason, r.endReason != ""
}

// EndMember returns a copy of the member who ended playback explicitly, or nil.
func (r *TrackRequest) EndMember() *Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endMember == nil {
		return nil
	}
	m := *r.endMember
	return &m
}

// SetEndReason records why playback ended. Only the first call has an effect;
// it returns false when a reason was already recorded.
func (r *TrackRequest) SetEndReason(reason EndReason, by *Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endReason != "" || reason == "" {
		return false
	}
	r.endReason = reason
	if by != nil {
		m := *by
		r.endMember = &m
	}
	return true
}

// Replay returns a copy of the request with an empty end slot.
func (r *TrackRequest) Replay() *TrackRequest {
	return &TrackRequest{
		track:       r.track,
		member:      r.member,
		requesterID: r.requesterID,
		guildID:     r.guildID,
		channelID:   r.channelID,
		requestedAt: r.requestedAt,
	}
}
