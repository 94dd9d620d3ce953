package domain

// RepeatMode governs what happens when the current track finishes naturally.
type RepeatMode int

const (
	RepeatNone    RepeatMode = iota // Default: advance through the queue once
	RepeatCurrent                   // Replay the current request indefinitely
	RepeatQueue                     // Re-append finished requests to the tail
)

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatCurrent:
		return "current"
	case RepeatQueue:
		return "queue"
	default:
		return "none"
	}
}

// Emoji returns the panel icon for the repeat mode.
func (m RepeatMode) Emoji() string {
	switch m {
	case RepeatCurrent:
		return "🔂"
	case RepeatQueue:
		return "🔁"
	default:
		return "➡️"
	}
}

// Next cycles through repeat modes: None -> Current -> Queue -> None.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatCurrent
	case RepeatCurrent:
		return RepeatQueue
	default:
		return RepeatNone
	}
}

// ParseRepeatMode converts a string to a RepeatMode.
// The second return value is false when the input is not recognized.
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch s {
	case "none", "off":
		return RepeatNone, true
	case "current", "track", "one":
		return RepeatCurrent, true
	case "queue", "all":
		return RepeatQueue, true
	default:
		return RepeatNone, false
	}
}
