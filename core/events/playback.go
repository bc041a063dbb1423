package events

const (
	// KindPlaybackStarted identifies the start of assistant audio playback.
	KindPlaybackStarted Kind = "playback.started"
	// KindPlaybackFinished identifies playback draining naturally.
	KindPlaybackFinished Kind = "playback.finished"
	// KindPlaybackInterrupted identifies playback cut short by the model.
	KindPlaybackInterrupted Kind = "playback.interrupted"
)

// PlaybackStarted marks the first scheduled chunk of an assistant reply.
type PlaybackStarted struct{ Base }

// NewPlaybackStarted creates a playback started event.
func NewPlaybackStarted() PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted)}
}

// PlaybackFinished marks that all scheduled audio has been played.
type PlaybackFinished struct{ Base }

// NewPlaybackFinished creates a playback finished event.
func NewPlaybackFinished() PlaybackFinished {
	return PlaybackFinished{Base: NewBase(KindPlaybackFinished)}
}

// PlaybackInterrupted marks that pending audio was discarded because the
// model reported an interruption.
type PlaybackInterrupted struct{ Base }

// NewPlaybackInterrupted creates a playback interrupted event.
func NewPlaybackInterrupted() PlaybackInterrupted {
	return PlaybackInterrupted{Base: NewBase(KindPlaybackInterrupted)}
}
