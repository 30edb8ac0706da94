// Package realtime keeps a resilient real-time channel to the notification
// gateway: it dials, catches up on missed notifications, routes inbound
// frames and reconnects with capped exponential backoff.
package realtime

// ConnectionStatus is the state of the real-time channel. Exactly one is held at a time.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
	StatusSyncing      ConnectionStatus = "syncing"
)

// Online reports whether the transport is up.
func (s ConnectionStatus) Online() bool {
	return s == StatusConnected || s == StatusSyncing
}

// Stats is a snapshot of the manager's connection state.
type Stats struct {
	Status      ConnectionStatus `json:"status"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"maxAttempts"`
	Connected   bool             `json:"connected"`
	Epoch       uint64           `json:"epoch"`
}
