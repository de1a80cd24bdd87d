package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/win99lol/chat-relay/internal/event"
	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of messages that can be queued per client.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second

	// idleCheckInterval is how often the idle reaper runs.
	idleCheckInterval = 30 * time.Second
)

// clientEntry holds per-connection bookkeeping alongside the cancel function
// for the write pump.
type clientEntry struct {
	client      *Client
	cancel      context.CancelFunc
	connectedAt time.Time
	lastActive  time.Time
}

// Stats holds point-in-time connection statistics.
type Stats struct {
	Active          int
	MaxConns        int
	Rejected        int64
	DroppedMessages int64
	IdleReaped      int64
}

// Hub tracks every active connection of the single global chat room and is
// the only component that writes to sockets. It provides fan-out to all or
// one connection, per-client buffered send channels, connection limits,
// optional idle reaping, and graceful shutdown.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*clientEntry
	closed   bool
	maxConns int
	idleTTL  time.Duration
	stopIdle context.CancelFunc

	// Atomic counters for stats.
	rejected        atomic.Int64
	droppedMessages atomic.Int64
	idleReaped      atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxConns sets the maximum number of concurrent connections. When the
// limit is reached, new connections are rejected. 0 means unlimited (default).
func WithMaxConns(n int) Option {
	return func(h *Hub) {
		h.maxConns = n
	}
}

// WithIdleTimeout sets how long a connection can sit idle before it is
// closed. 0 disables idle reaping (default); client liveness is otherwise
// left to transport heartbeats.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.idleTTL = d
	}
}

// NewHub creates a Hub with optional configuration.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*clientEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.idleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		h.stopIdle = cancel
		go h.idleReapLoop(ctx)
	}
	return h
}

// Add registers a client and starts its write pump. The returned context is
// cancelled when the client is removed or the hub shuts down; callers should
// select on ctx.Done() in their read loop. Returns a cancelled context if
// the hub is closed or at capacity.
func (h *Hub) Add(c *Client) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return cancelledContext()
	}

	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		h.rejected.Add(1)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		return cancelledContext()
	}

	now := time.Now()
	c.send = make(chan []byte, sendBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	h.clients[c.id] = &clientEntry{
		client:      c,
		cancel:      cancel,
		connectedAt: now,
		lastActive:  now,
	}

	go h.writePump(ctx, c)

	return ctx
}

// Remove stops a client's write pump and drops it from the hub.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	entry, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	// The send channel is left open; a broadcast racing with removal may
	// still hold a reference, and the write pump exits via entry.cancel.
	if ok {
		entry.cancel()
	}
}

// Send delivers an event to a single connection. Unknown IDs are ignored;
// the target may legitimately have vanished between resolution and delivery.
func (h *Hub) Send(id, typ string, payload any) {
	data, ok := envelope(typ, payload)
	if !ok {
		return
	}
	h.mu.Lock()
	entry := h.clients[id]
	h.mu.Unlock()
	if entry == nil {
		return
	}
	h.enqueue(entry.client, data)
}

// Broadcast delivers an event to every connection.
func (h *Hub) Broadcast(typ string, payload any) {
	h.BroadcastExcept("", typ, payload)
}

// BroadcastExcept delivers an event to every connection except exceptID.
func (h *Hub) BroadcastExcept(exceptID, typ string, payload any) {
	data, ok := envelope(typ, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	// Copy the targets so the lock is not held while sending.
	targets := make([]*Client, 0, len(h.clients))
	for id, entry := range h.clients {
		if id == exceptID {
			continue
		}
		targets = append(targets, entry.client)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.enqueue(c, data)
	}
}

// Disconnect closes the connection for id after the given grace delay, so
// events queued before the call can still reach the client. It is a no-op
// if the connection is already gone when the delay elapses.
func (h *Hub) Disconnect(id, reason string, after time.Duration) {
	closeConn := func() {
		h.mu.Lock()
		entry := h.clients[id]
		h.mu.Unlock()
		if entry == nil {
			log.Printf("ws: disconnect target %s already gone", id)
			return
		}
		// Closing the socket makes the client's read loop exit, which
		// runs the normal teardown path.
		entry.client.conn.Close(websocket.StatusPolicyViolation, reason)
	}
	if after <= 0 {
		closeConn()
		return
	}
	time.AfterFunc(after, closeConn)
}

// Touch updates the last-active timestamp for a connection so idle reaping
// does not close busy connections.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	if entry, ok := h.clients[id]; ok {
		entry.lastActive = time.Now()
	}
	h.mu.Unlock()
}

// Count returns the number of active connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stats returns point-in-time connection statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	active := len(h.clients)
	maxConns := h.maxConns
	h.mu.Unlock()
	return Stats{
		Active:          active,
		MaxConns:        maxConns,
		Rejected:        h.rejected.Load(),
		DroppedMessages: h.droppedMessages.Load(),
		IdleReaped:      h.idleReaped.Load(),
	}
}

// Shutdown gracefully closes all connections.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	entries := make([]*clientEntry, 0, len(h.clients))
	for _, entry := range h.clients {
		entries = append(entries, entry)
	}
	h.clients = make(map[string]*clientEntry)
	h.mu.Unlock()

	if h.stopIdle != nil {
		h.stopIdle()
	}

	for _, entry := range entries {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// enqueue places data on the client's send channel without blocking.
func (h *Hub) enqueue(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.droppedMessages.Add(1)
		log.Printf("ws: send buffer full for connection %s, dropping message", c.id)
	}
}

// envelope marshals an outbound event frame.
func envelope(typ string, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal %s payload: %v", typ, err)
		return nil, false
	}
	data, err := json.Marshal(event.Envelope{Type: typ, Payload: body})
	if err != nil {
		log.Printf("ws: failed to marshal %s envelope: %v", typ, err)
		return nil, false
	}
	return data, true
}

// idleReapLoop periodically closes idle connections.
func (h *Hub) idleReapLoop(ctx context.Context) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reapIdle()
		}
	}
}

// reapIdle closes connections that have been idle longer than idleTTL.
func (h *Hub) reapIdle() {
	h.mu.Lock()
	now := time.Now()
	var stale []*clientEntry
	for id, entry := range h.clients {
		if now.Sub(entry.lastActive) > h.idleTTL {
			stale = append(stale, entry)
			delete(h.clients, id)
		}
	}
	h.mu.Unlock()

	for _, entry := range stale {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		h.idleReaped.Add(1)
		log.Printf("ws: reaped idle connection %s", entry.client.id)
	}
}

// writePump drains the client's send channel, writing each frame to the
// socket. It exits when ctx is cancelled or the channel is closed.
func (h *Hub) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Printf("ws: write to connection %s failed: %v", c.id, err)
				return
			}
		}
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
