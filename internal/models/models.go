package models

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotConnected = errors.New("not connected")
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Message represents a single chat message in a room transcript.
// The backend assigns IDs when it accepts a message; an ID of zero
// means the message has not been persisted yet.
type Message struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	UserName  string `json:"userName"`
	Room      string `json:"room,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // Unix timestamp (seconds)
}

// Envelope is the wire frame for every event on the streaming connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type EventName string

const (
	// client -> server
	EventJoin          EventName = "join"
	EventLeave         EventName = "leave"
	EventSendMessage   EventName = "send_message"
	EventUserConnected EventName = "user_connected"

	// server -> client
	EventReceiveMessage EventName = "receive_message"
	EventUserStatus     EventName = "user_status"

	// transport lifecycle, dispatched locally
	EventConnect         EventName = "connect"
	EventDisconnect      EventName = "disconnect"
	EventReconnect       EventName = "reconnect"
	EventReconnectFailed EventName = "reconnect_failed"
)

// JoinPayload registers the connection as a member of a room.
type JoinPayload struct {
	UserName string `json:"userName"`
	Room     string `json:"room"`
}

// LeavePayload deregisters room membership.
type LeavePayload struct {
	UserName string `json:"userName"`
	Room     string `json:"room"`
}

// SendPayload submits a chat message to the active room.
type SendPayload struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
	Room     string `json:"room"`
}

// ReceivePayload is the broadcast of an accepted message to all room
// members, including the sender.
type ReceivePayload struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	UserName string `json:"userName"`
}

// StatusPayload is a presence change for a single user.
type StatusPayload struct {
	UserName string `json:"userName"`
	Status   Status `json:"status"`
}

// ConnectedPayload announces the user's presence to the backend.
type ConnectedPayload struct {
	UserName string `json:"userName"`
}
