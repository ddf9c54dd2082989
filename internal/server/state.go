package server

// State tracks where a Server is in its lifecycle. Transitions only
// move forward; a closed server is never restarted.
type State int

const (
	// StateCreated means New returned but no transport is attached.
	StateCreated State = iota
	// StateConnected means a transport is attached but the message
	// loop has not consumed anything yet.
	StateConnected
	// StateRunning means the message loop is consuming frames.
	StateRunning
	// StateShuttingDown means Shutdown has begun tearing pieces down.
	StateShuttingDown
	// StateClosed means every resource has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
