package domain

// EndReason represents why playback of a TrackRequest ended.
type EndReason string

const (
	// EndFinished means the track played to completion.
	EndFinished EndReason = "finished"
	// EndSkipped means a member skipped the track.
	EndSkipped EndReason = "skipped"
	// EndStopped means playback was stopped by a member or the engine.
	EndStopped EndReason = "stopped"
	// EndLoadFailed means the engine could not load or decode the track.
	EndLoadFailed EndReason = "load_failed"
	// EndShutdown means the process is terminating.
	EndShutdown EndReason = "shutdown"
	// EndReplaced means another track superseded this one in place.
	EndReplaced EndReason = "replaced"
	// EndCleanup means the engine released the player on its own.
	EndCleanup EndReason = "cleanup"
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
func (r EndReason) ShouldAdvanceQueue() bool {
	return r == EndFinished || r == EndLoadFailed
}

// IsExplicit returns true for reasons caused by a member action rather than the engine.
func (r EndReason) IsExplicit() bool {
	return r == EndSkipped || r == EndStopped
}
