package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// voiceSession collects the two halves of a Discord voice handshake for one
// guild. Lavalink rejects a partial voice state, so both VoiceStateUpdate and
// VoiceServerUpdate must arrive before either is forwarded.
type voiceSession struct {
	mu sync.Mutex

	hasState  bool
	channelID *snowflake.ID
	sessionID string

	hasServer bool
	token     string
	endpoint  string

	// ready is closed once a complete handshake has been forwarded.
	ready chan struct{}
}

func newVoiceSession() *voiceSession {
	return &voiceSession{ready: make(chan struct{})}
}

type voiceHandshake struct {
	channelID *snowflake.ID
	sessionID string
	token     string
	endpoint  string
}

// setState records the state half and returns the complete handshake if the
// server half is already present.
func (v *voiceSession) setState(channelID *snowflake.ID, sessionID string) (voiceHandshake, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.hasState = true
	v.channelID = channelID
	v.sessionID = sessionID
	return v.takeLocked()
}

// setServer records the server half and returns the complete handshake if the
// state half is already present.
func (v *voiceSession) setServer(token, endpoint string) (voiceHandshake, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.hasServer = true
	v.token = token
	v.endpoint = endpoint
	return v.takeLocked()
}

func (v *voiceSession) takeLocked() (voiceHandshake, bool) {
	if !v.hasState || !v.hasServer {
		return voiceHandshake{}, false
	}

	h := voiceHandshake{
		channelID: v.channelID,
		sessionID: v.sessionID,
		token:     v.token,
		endpoint:  v.endpoint,
	}
	v.hasState, v.hasServer = false, false

	select {
	case <-v.ready:
	default:
		close(v.ready)
	}
	return h, true
}
