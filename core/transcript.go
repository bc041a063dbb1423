package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies which side of the conversation produced a message.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Message is one transcript record. Text carries the cumulative
// transcription for the speaker's current turn and is replaced wholesale on
// every delta; once IsComplete is set the text never changes again.
type Message struct {
	ID         string
	Speaker    Speaker
	Text       string
	CreatedAt  time.Time
	IsComplete bool
}

// transcript reconciles streamed transcription deltas into ordered message
// records. Two cumulative buffers run at any time, one per speaker, each
// bound to a message created lazily on the turn's first delta. Records are
// never removed; ordering is creation order and user/model messages may
// interleave.
type transcript struct {
	mu sync.RWMutex

	messages []Message

	// userIndex/modelIndex point at the in-progress message for each
	// speaker, -1 when the current turn has not produced one yet.
	userIndex  int
	userText   string
	modelIndex int
	modelText  string

	now func() time.Time
}

func newTranscript() *transcript {
	return &transcript{
		userIndex:  -1,
		modelIndex: -1,
		now:        time.Now,
	}
}

// appendDelta folds a transcription delta into the speaker's running buffer
// and returns a copy of the updated message record.
func (t *transcript) appendDelta(speaker Speaker, delta string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	index, text := &t.userIndex, &t.userText
	if speaker == SpeakerModel {
		index, text = &t.modelIndex, &t.modelText
	}

	*text += delta
	if *index < 0 {
		*index = len(t.messages)
		t.messages = append(t.messages, Message{
			ID:        uuid.NewString(),
			Speaker:   speaker,
			Text:      *text,
			CreatedAt: t.now(),
		})
	} else {
		t.messages[*index].Text = *text
	}

	return t.messages[*index]
}

// completeTurn finalizes both in-progress messages and clears the per-turn
// buffers so the next delta starts a fresh message.
func (t *transcript) completeTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.userIndex >= 0 {
		t.messages[t.userIndex].IsComplete = true
	}
	if t.modelIndex >= 0 {
		t.messages[t.modelIndex].IsComplete = true
	}

	t.clearTurnLocked()
}

// clearTurn drops the per-turn buffers without finalizing the records. Used
// on teardown so a later session starts a fresh turn; whatever text already
// streamed stays visible as-is.
func (t *transcript) clearTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearTurnLocked()
}

func (t *transcript) clearTurnLocked() {
	t.userIndex = -1
	t.userText = ""
	t.modelIndex = -1
	t.modelText = ""
}

// Snapshot returns a point-in-time copy of every message in creation order.
func (t *transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	messages := make([]Message, len(t.messages))
	copy(messages, t.messages)
	return messages
}
