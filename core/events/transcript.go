package events

const (
	// KindUserTranscriptUpdated identifies cumulative user transcript updates.
	KindUserTranscriptUpdated Kind = "transcript.user_updated"
	// KindAssistantTranscriptUpdated identifies cumulative assistant transcript updates.
	KindAssistantTranscriptUpdated Kind = "transcript.assistant_updated"
	// KindTranscriptTurnCompleted identifies finalization of the current turn's messages.
	KindTranscriptTurnCompleted Kind = "transcript.turn_completed"
)

// UserTranscriptUpdated carries the cumulative transcript of the user's
// in-progress utterance. Text replaces any previously reported text for
// the same message.
type UserTranscriptUpdated struct {
	Base
	MessageID string
	Text      string
}

// NewUserTranscriptUpdated creates a user transcript update event.
func NewUserTranscriptUpdated(messageID string, text string) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), MessageID: messageID, Text: text}
}

// AssistantTranscriptUpdated carries the cumulative transcript of the
// assistant's in-progress reply. Text replaces any previously reported
// text for the same message.
type AssistantTranscriptUpdated struct {
	Base
	MessageID string
	Text      string
}

// NewAssistantTranscriptUpdated creates an assistant transcript update event.
func NewAssistantTranscriptUpdated(messageID string, text string) AssistantTranscriptUpdated {
	return AssistantTranscriptUpdated{Base: NewBase(KindAssistantTranscriptUpdated), MessageID: messageID, Text: text}
}

// TranscriptTurnCompleted marks that the current turn's user and
// assistant messages have been finalized.
type TranscriptTurnCompleted struct{ Base }

// NewTranscriptTurnCompleted creates a turn completed event.
func NewTranscriptTurnCompleted() TranscriptTurnCompleted {
	return TranscriptTurnCompleted{Base: NewBase(KindTranscriptTurnCompleted)}
}
