package events

const (
	// KindToolCallReceived identifies tool calls requested by the model.
	KindToolCallReceived Kind = "tool_call.received"
	// KindToolCallCompleted identifies successful tool call completion.
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed identifies tool call failure.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallReceived marks a tool call requested by the model.
type ToolCallReceived struct {
	Base
	ID        string
	Name      string
	Arguments string
}

// NewToolCallReceived creates a tool call received event.
func NewToolCallReceived(id, name, arguments string) ToolCallReceived {
	return ToolCallReceived{Base: NewBase(KindToolCallReceived), ID: id, Name: name, Arguments: arguments}
}

// ToolCallCompleted marks successful tool execution.
type ToolCallCompleted struct {
	Base
	ID       string
	Name     string
	Response string
}

// NewToolCallCompleted creates a tool call completed event.
func NewToolCallCompleted(id, name, response string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), ID: id, Name: name, Response: response}
}

// ToolCallFailed marks failed tool execution. A response is still sent
// to the model for the call.
type ToolCallFailed struct {
	Base
	ID    string
	Name  string
	Error string
}

// NewToolCallFailed creates a tool call failed event.
func NewToolCallFailed(id, name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), ID: id, Name: name, Error: err}
}
