package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/win99lol/chat-relay/internal/command"
	"github.com/win99lol/chat-relay/internal/event"
	"github.com/win99lol/chat-relay/internal/moderation"
	"github.com/win99lol/chat-relay/internal/presence"
	"github.com/win99lol/chat-relay/internal/profanity"
)

// maxMessageLength bounds a single chat message body.
const maxMessageLength = 2000

// Handler accepts WebSocket connections and runs each client's read loop,
// feeding inbound events into the registry, the moderation store, and the
// command dispatcher.
type Handler struct {
	hub      *Hub
	registry *presence.Registry
	mutes    *moderation.Store
	commands *command.Dispatcher
	filter   *profanity.Filter
	origins  []string
}

// NewHandler creates a Handler. origins are the host patterns accepted
// during the WebSocket handshake; empty allows same-origin only.
func NewHandler(hub *Hub, registry *presence.Registry, mutes *moderation.Store,
	commands *command.Dispatcher, filter *profanity.Filter, origins []string) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		mutes:    mutes,
		commands: commands,
		filter:   filter,
		origins:  origins,
	}
}

// ServeHTTP upgrades the request to a WebSocket and services it until the
// connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := newClient(conn)
	log.Printf("ws: connection %s opened", client.id)

	connCtx := h.hub.Add(client)
	h.readLoop(r.Context(), connCtx, client)
	h.teardown(client)
}

// readLoop consumes inbound envelopes until the connection closes or the
// hub cancels connCtx. Malformed frames are skipped; events that require a
// joined user are dropped silently when the sender never joined.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		h.hub.Touch(client.id)

		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case event.TypeJoin:
			h.handleJoin(client, env.Payload)
		case event.TypeChatMessage:
			h.handleChat(client, env.Payload)
		case event.TypeChatCommand:
			h.handleCommand(client, env.Payload)
		case event.TypeGetUserList:
			h.hub.Send(client.id, event.TypeUserList, h.registry.List())
		case event.TypeTypingStart:
			h.handleTyping(client, true)
		case event.TypeTypingStop:
			h.handleTyping(client, false)
		}
	}
}

// handleJoin registers the connection and emits the join event set: the
// assigned username to the caller, user-joined to everyone else, and the
// current user list to the caller.
func (h *Handler) handleJoin(client *Client, payload json.RawMessage) {
	var p event.JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	u, changed := h.registry.Join(client.id, p.Username, p.Client)

	h.hub.Send(client.id, event.TypeUsernameAssigned, event.UsernameAssigned{
		Username: u.Username,
		Changed:  changed,
	})
	h.hub.BroadcastExcept(client.id, event.TypeUserJoined, event.Presence{
		Username:  u.Username,
		Client:    u.Client,
		Timestamp: event.Timestamp(u.JoinedAt),
	})
	h.hub.Send(client.id, event.TypeUserList, h.registry.List())

	log.Printf("ws: %s joined from %s", u.Username, u.Client)
}

// handleChat runs the message pipeline: unjoined senders are ignored, muted
// senders get a private reminder with the remaining time, everything else is
// filtered and broadcast.
func (h *Handler) handleChat(client *Client, payload json.RawMessage) {
	u, ok := h.registry.Get(client.id)
	if !ok {
		return
	}

	if remaining, muted := h.mutes.Remaining(client.id); muted {
		h.hub.Send(client.id, event.TypeMuted, event.Muted{
			RemainingSeconds: int64(remaining.Seconds()),
		})
		return
	}

	var p event.ChatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	content := strings.TrimSpace(p.Content)
	if content == "" || len(content) > maxMessageLength {
		return
	}

	h.hub.Broadcast(event.TypeNewMessage, event.NewMessage{
		ID:        uuid.NewString(),
		Username:  u.Username,
		Client:    u.Client,
		Content:   h.filter.Clean(content),
		Timestamp: event.Timestamp(time.Now()),
	})
}

// handleCommand forwards a chat-command event to the dispatcher.
func (h *Handler) handleCommand(client *Client, payload json.RawMessage) {
	var p event.CommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	h.commands.Dispatch(client.id, p.Command, p.Args, p.Timestamp)
}

// handleTyping relays a typing-indicator change to everyone else.
func (h *Handler) handleTyping(client *Client, typing bool) {
	u, ok := h.registry.Get(client.id)
	if !ok {
		return
	}
	h.hub.BroadcastExcept(client.id, event.TypeUserTyping, event.Typing{
		Username: u.Username,
		Typing:   typing,
	})
}

// teardown runs once per connection: it drops the client from the hub, then
// synchronously clears the registry record and any mute before announcing
// the departure. A user that never joined leaves without a user-left event.
func (h *Handler) teardown(client *Client) {
	h.hub.Remove(client)

	u, ok := h.registry.Remove(client.id)
	h.mutes.Clear(client.id)
	if !ok {
		log.Printf("ws: connection %s closed", client.id)
		return
	}

	h.hub.Broadcast(event.TypeUserLeft, event.Presence{
		Username:  u.Username,
		Client:    u.Client,
		Timestamp: event.Timestamp(time.Now()),
	})
	log.Printf("ws: %s disconnected", u.Username)
}
