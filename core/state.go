package session

// ConnectionState tracks where the controller is in the session lifecycle.
//
// Transitions: Disconnected → Connecting → Connected → {Disconnected, Error}.
// Error resolves back to Disconnected only through an explicit Disconnect.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
