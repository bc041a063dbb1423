package session

import "github.com/alembiq/bunsen-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// panicSafeEmitter keeps a panicking consumer callback from killing the
// session's pump and device goroutines.
func panicSafeEmitter(emit eventEmitter) eventEmitter {
	return func(event events.Event) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("Event callback panicked", "kind", event.Kind(), "panic", recovered)
			}
		}()

		emit(event)
	}
}

// callbackOptions collect the consumer callbacks registered through
// controller options. The catch-all onEvent fires for every event before
// the focused callbacks.
type callbackOptions struct {
	onEvent func(events.Event)

	onStateChanged               func(previous, current string)
	onError                      func(message string)
	onUserTranscriptUpdated      func(messageID, text string)
	onAssistantTranscriptUpdated func(messageID, text string)
	onTurnCompleted              func()
	onSpeakingStateChanged       func(isSpeaking bool)
	onVisualizationChanged       func(mode string)
}

func newCallbackEventEmitter(opts callbackOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(typedEvent.Previous, typedEvent.Current)
			}
		case events.SessionError:
			if opts.onError != nil {
				opts.onError(typedEvent.Error)
			}
		case events.UserTranscriptUpdated:
			if opts.onUserTranscriptUpdated != nil {
				opts.onUserTranscriptUpdated(typedEvent.MessageID, typedEvent.Text)
			}
		case events.AssistantTranscriptUpdated:
			if opts.onAssistantTranscriptUpdated != nil {
				opts.onAssistantTranscriptUpdated(typedEvent.MessageID, typedEvent.Text)
			}
		case events.TranscriptTurnCompleted:
			if opts.onTurnCompleted != nil {
				opts.onTurnCompleted()
			}
		case events.PlaybackStarted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(true)
			}
		case events.PlaybackFinished:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.PlaybackInterrupted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.VisualizationUpdated:
			if opts.onVisualizationChanged != nil {
				opts.onVisualizationChanged(typedEvent.Mode)
			}
		}
	}
}
