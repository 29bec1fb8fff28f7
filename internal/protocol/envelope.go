// Package protocol defines the JSON wire format exchanged between Campfire
// clients and the server: the event envelope, the event names, and the
// payload types carried by each event.
package protocol

import "encoding/json"

// Event names pushed by the server.
const (
	EventServerInfo     = "serverInfo"
	EventRegisterAck    = "register-ack"
	EventMessageHistory = "message_history"
	EventInfo           = "info"
	EventUserList       = "userList"
	EventChat           = "chat"
	EventTyping         = "typing"
	EventNewFile        = "newFile"
	EventVideo          = "video"
	EventVideoSent      = "video-sent"
	EventVideoAck       = "video-ack"
)

// Event names sent by clients. Chat is bidirectional and shares its name.
const (
	EventRegister = "register"
	EventFile     = "file"
)

// Envelope wraps every frame on the wire. Data holds the event-specific
// payload and is left raw until the event name selects a concrete type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a marshaled envelope for the given event and payload.
// A nil payload produces an envelope with no data field.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// RegisterRequest is the payload of a client register event.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Ack reports the outcome of an operation that acknowledges back to the
// sender (registration and video sends). Message is set only on failure.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ChatRequest is the payload of a client chat event.
type ChatRequest struct {
	Message string `json:"message"`
}

// FileInfo is the upload metadata a client relays in a file event after a
// successful POST to the upload endpoint. It mirrors the upload response.
type FileInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// VideoRequest is the payload of a client video event.
type VideoRequest struct {
	Filename string `json:"filename"`
	FileSize int64  `json:"fileSize"`
}

// ServerInfo lists the server's reachable interface addresses, pushed to
// every connection immediately after accept.
type ServerInfo struct {
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}
