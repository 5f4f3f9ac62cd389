package ws

import "time"

// ConnInfo describes one websocket session for logging and metrics.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	RequestID   string
	ConnectedAt time.Time
}
