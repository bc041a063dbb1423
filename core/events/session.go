package events

const (
	// KindSessionStateChanged identifies connection state transitions.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionError identifies errors surfaced by the session.
	KindSessionError Kind = "session.error"
)

// SessionStateChanged marks a connection state transition. Previous and
// Current are the String renderings of the states.
type SessionStateChanged struct {
	Base
	Previous string
	Current  string
}

// NewSessionStateChanged creates a session state transition event.
func NewSessionStateChanged(previous, current string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), Previous: previous, Current: current}
}

// SessionError carries an error surfaced by the session. Stage names the
// operation that failed, e.g. "connect" or "receive".
type SessionError struct {
	Base
	Stage string
	Error string
}

// NewSessionError creates a session error event.
func NewSessionError(stage, err string) SessionError {
	return SessionError{Base: NewBase(KindSessionError), Stage: stage, Error: err}
}
