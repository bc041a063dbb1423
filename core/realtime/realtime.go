// Package realtime defines the protocol-neutral types exchanged with a
// live bidirectional model session.
package realtime

import "github.com/invopop/jsonschema"

// Blob is a base64-encoded media payload tagged with its MIME type.
type Blob struct {
	MIMEType string
	Data     string
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse answers a FunctionCall. Response carries an
// arbitrary JSON-serializable payload.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Tool declares a function the model may call during the session.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// SessionConfig configures a live session.
type SessionConfig struct {
	Model             string
	SystemInstruction string
	Voice             string
	Tools             []Tool
}

// ServerMessage is a single decoded message from a live session.
//
// Its fields are not mutually exclusive: one message can carry audio,
// transcriptions, tool calls and turn metadata at the same time, so
// consumers must check every field rather than switch on one.
type ServerMessage struct {
	// SetupComplete reports that the server acknowledged session setup.
	SetupComplete bool
	// Audio holds the inline audio parts of the model turn, in stream
	// order.
	Audio []Blob
	// InputTranscription is a transcription fragment of the user's
	// speech.
	InputTranscription string
	// OutputTranscription is a transcription fragment of the model's
	// speech.
	OutputTranscription string
	// ToolCalls lists function invocations requested by the model.
	ToolCalls []FunctionCall
	// TurnComplete reports that the model finished its turn.
	TurnComplete bool
	// Interrupted reports that the model's turn was cut short by new
	// user activity.
	Interrupted bool
	// GoAway warns that the server will close the connection soon.
	GoAway bool
}

// Callbacks receive session notifications. The session invokes them
// sequentially from its read loop, so handlers observe messages in
// arrival order; a slow handler delays subsequent messages.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(message ServerMessage)
	OnError   func(err error)
	OnClose   func(reason string)
}
