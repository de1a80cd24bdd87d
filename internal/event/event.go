// Package event defines the wire contract between the relay and its clients.
// Every frame on the socket is an Envelope whose Type selects one of the
// payload structs below.
package event

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON structure exchanged over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event types (client to server).
const (
	TypeJoin        = "join"
	TypeChatMessage = "chat-message"
	TypeChatCommand = "chat-command"
	TypeGetUserList = "get-user-list"
	TypeTypingStart = "typing-start"
	TypeTypingStop  = "typing-stop"
)

// Outbound event types (server to client).
const (
	TypeUsernameAssigned = "username-assigned"
	TypeUserJoined       = "user-joined"
	TypeUserList         = "user-list"
	TypeNewMessage       = "new-message"
	TypeCommandResponse  = "command-response"
	TypeSystemMessage    = "system-message"
	TypeUserTyping       = "user-typing"
	TypeUserLeft         = "user-left"
	TypeKicked           = "kicked"
	TypeMuted            = "muted"
	TypeUnmuted          = "unmuted"
)

// JoinPayload is sent by the client to announce itself.
type JoinPayload struct {
	Username string `json:"username"`
	Client   string `json:"client"`
}

// ChatPayload carries a broadcast chat message body.
type ChatPayload struct {
	Content string `json:"content"`
}

// CommandPayload carries a slash command. Timestamp is the client's clock in
// Unix milliseconds and is only used by /ping latency; zero means absent.
type CommandPayload struct {
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// UsernameAssigned tells the caller which username it ended up with.
// Changed is true when the assigned name differs from the requested one,
// either because of filtering or a uniqueness suffix.
type UsernameAssigned struct {
	Username string `json:"username"`
	Changed  bool   `json:"changed"`
}

// UserInfo is one entry of a user-list payload.
type UserInfo struct {
	Username string `json:"username"`
	Client   string `json:"client"`
}

// Presence announces a user joining or leaving; used by both user-joined
// and user-left.
type Presence struct {
	Username  string `json:"username"`
	Client    string `json:"client"`
	Timestamp string `json:"timestamp"`
}

// NewMessage is a broadcast chat message.
type NewMessage struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Client    string `json:"client"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// CommandResponse is a private reply to the issuer of a command.
type CommandResponse struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

// SystemMessage is a server-generated broadcast line. Announcement marks
// lines issued via /announce so clients can render them distinctly.
type SystemMessage struct {
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
	Announcement bool   `json:"announcement,omitempty"`
}

// Typing reports a typing-indicator state change.
type Typing struct {
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

// Kicked is pushed to a user about to be disconnected by an admin.
type Kicked struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

// Muted is pushed to a muted user, either when the mute is applied (By and
// DurationMinutes set) or when a muted user tries to speak (RemainingSeconds
// set).
type Muted struct {
	By               string `json:"by,omitempty"`
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

// Unmuted is pushed to a user whose mute was lifted. Auto is true when the
// mute expired on its own rather than being lifted by an admin.
type Unmuted struct {
	Auto bool `json:"auto,omitempty"`
}

// Timestamp formats t the way the wire expects; clients treat timestamps as
// opaque ISO 8601 strings.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
