// ABOUTME: Connection status states exposed by the presence agent.
// ABOUTME: Tri-state plus a terminal misconfigured state for repeated 403s.

package client

// Status is the client-side connection state.
type Status int

const (
	// StatusDisconnected means no stream is open; the client is either
	// idle (missing settings) or backing off before a retry.
	StatusDisconnected Status = iota
	// StatusConnecting means a registration attempt has been sent.
	StatusConnecting
	// StatusConnected means the open acknowledgement was received.
	StatusConnected
	// StatusMisconfigured is terminal: the server rejected the
	// registration as a permanent client error (bad secret, bad agent
	// id). Automatic retry stops; the operator must fix the settings.
	StatusMisconfigured
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}
