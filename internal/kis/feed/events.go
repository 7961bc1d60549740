package feed

import "errors"

// ErrNotConnected is returned when a send is attempted while the socket is
// not in the Connected state.
var ErrNotConnected = errors.New("websocket not connected")

// ConnState is the supervisor's connection state. Transitions are serialized
// under the supervisor mutex so duplicate sockets cannot appear.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventKind labels a connection lifecycle event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMaxReconnectExceeded
)

// Event is one connection lifecycle notification. MaxReconnectExceeded fires
// exactly once per failure episode; only an external Connect call resumes
// retries after it.
type Event struct {
	Kind     EventKind
	Attempts int
	Err      error
}
