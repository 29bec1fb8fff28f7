// Package server defines shared broadcast types and utility helpers that
// are reused across client and hub logic.
package server

import "strings"

// BroadcastMessage encapsulates a payload being broadcast by the hub. A nil
// Sender targets every connection; otherwise the originating client is
// excluded from delivery.
type BroadcastMessage struct {
	Sender  *Client
	Payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
