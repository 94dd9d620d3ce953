package usecases

import "errors"

// Domain errors for the music player module.
var (
	// ErrNotPlaying is returned when no track is currently playing.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrNotInSameChannel is returned when the user is not in the bot's voice channel.
	ErrNotInSameChannel = errors.New("you must be in the same voice channel as the bot")

	// ErrNoVoiceChannel is returned when neither the user nor the guild config
	// names a voice channel to join.
	ErrNoVoiceChannel = errors.New("no voice channel to join")

	// ErrAlreadyPaused is returned when trying to pause while already paused.
	ErrAlreadyPaused = errors.New("playback is already paused")

	// ErrNotPaused is returned when trying to resume while not paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrNoResults is returned when a search yields no results.
	ErrNoResults = errors.New("no results found")

	// ErrQueueEmpty is returned when the queue is empty.
	ErrQueueEmpty = errors.New("the queue is empty")

	// ErrInvalidPosition is returned when an invalid queue position is specified.
	ErrInvalidPosition = errors.New("invalid queue position")

	// ErrInvalidVolume is returned when a volume outside MinVolume..MaxVolume is requested.
	ErrInvalidVolume = errors.New("invalid volume")

	// ErrLoadFailed is returned when loading tracks fails.
	ErrLoadFailed = errors.New("failed to load track")
)
