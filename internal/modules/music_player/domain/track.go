package domain

import (
	"strconv"
	"time"
)

// Placeholders the engine reports when container metadata is missing.
const (
	unknownTitle  = "Unknown title"
	unknownArtist = "Unknown artist"
)

// Track is the engine's opaque playable reference plus the metadata it reported.
type Track struct {
	Encoded    string // Lavalink encoded track data
	Identifier string // Source identifier, e.g. a YouTube video ID
	Title      string
	Author     string
	Duration   time.Duration
	URI        string
	ArtworkURL string
	SourceName string // e.g., "youtube", "spotify", "soundcloud"
	IsStream   bool
}

// Source returns the parsed TrackSource for this track.
func (t *Track) Source() TrackSource {
	return ParseTrackSource(t.SourceName)
}

// IsValid returns true if the track has the minimum required fields.
func (t *Track) IsValid() bool {
	return t.Encoded != "" && t.Title != ""
}

// DisplayTitle returns the title, or a placeholder when the engine had none.
func (t *Track) DisplayTitle() string {
	if t.Title == "" || t.Title == unknownTitle {
		return unknownTitle
	}
	return t.Title
}

// DisplayAuthor returns the author, or a placeholder when the engine had none.
func (t *Track) DisplayAuthor() string {
	if t.Author == "" || t.Author == unknownArtist {
		return unknownArtist
	}
	return t.Author
}

// SameAs reports whether both tracks describe the same source item.
func (t *Track) SameAs(other *Track) bool {
	if other == nil {
		return false
	}
	return t.Title == other.Title &&
		t.Author == other.Author &&
		t.Duration == other.Duration &&
		t.Identifier == other.Identifier &&
		t.URI == other.URI
}

// FormattedDuration returns the duration as a human-readable string (mm:ss or hh:mm:ss).
func (t *Track) FormattedDuration() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as mm:ss, or hh:mm:ss when it exceeds an hour.
func FormatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return formatTime(hours, minutes, seconds)
	}
	return formatTimeShort(minutes, seconds)
}

func formatTime(hours, minutes, seconds int) string {
	return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
}

func formatTimeShort(minutes, seconds int) string {
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
