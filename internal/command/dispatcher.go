// Package command routes slash commands to their handlers. The dispatcher
// itself is state-free; handlers read and write the presence registry and
// the moderation store, and emit outbound events through a Sender.
package command

import (
	"strings"
	"time"

	"github.com/win99lol/chat-relay/internal/event"
	"github.com/win99lol/chat-relay/internal/moderation"
	"github.com/win99lol/chat-relay/internal/presence"
)

// Sender delivers outbound events. The ws gateway implements it.
type Sender interface {
	// Send delivers an event to a single connection.
	Send(id, typ string, payload any)
	// Broadcast delivers an event to every connection.
	Broadcast(typ string, payload any)
	// Disconnect closes a connection after the given grace delay, so
	// events queued beforehand can still be delivered.
	Disconnect(id, reason string, after time.Duration)
}

type handlerFunc func(d *Dispatcher, caller presence.User, args []string, clientTS int64)

// commandNames declares every supported command. init verifies the handler
// table covers all of them, so a missing handler fails at startup rather
// than at first use.
var commandNames = []string{
	"ping", "time", "uptime", "8ball", "roll", "flip", "me",
	"admin", "kick", "mute", "unmute", "announce",
}

var handlers = map[string]handlerFunc{
	"ping":     (*Dispatcher).ping,
	"time":     (*Dispatcher).serverTime,
	"uptime":   (*Dispatcher).uptime,
	"8ball":    (*Dispatcher).eightBall,
	"roll":     (*Dispatcher).roll,
	"flip":     (*Dispatcher).flip,
	"me":       (*Dispatcher).me,
	"admin":    (*Dispatcher).admin,
	"kick":     (*Dispatcher).kick,
	"mute":     (*Dispatcher).mute,
	"unmute":   (*Dispatcher).unmute,
	"announce": (*Dispatcher).announce,
}

func init() {
	for _, name := range commandNames {
		if handlers[name] == nil {
			panic("command: no handler registered for " + name)
		}
	}
}

// Dispatcher holds the shared state handed to every command handler.
type Dispatcher struct {
	registry *presence.Registry
	mutes    *moderation.Store
	out      Sender
	secret   string
	started  time.Time
}

// New creates a Dispatcher. secret gates the /admin command; an empty
// secret disables admin grants entirely. started is the process start time
// reported by /uptime.
func New(registry *presence.Registry, mutes *moderation.Store, out Sender, secret string, started time.Time) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		mutes:    mutes,
		out:      out,
		secret:   secret,
		started:  started,
	}
}

// Dispatch routes one command event. Events from connections that never
// joined are dropped silently. clientTS is the client's clock in Unix
// milliseconds, zero when absent.
func (d *Dispatcher) Dispatch(callerID, name string, args []string, clientTS int64) {
	caller, ok := d.registry.Get(callerID)
	if !ok {
		return
	}

	cmd := strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "/!"))
	h, ok := handlers[cmd]
	if !ok {
		d.reply(callerID, cmd, "Unknown command: /"+cmd)
		return
	}
	h(d, caller, args, clientTS)
}

// reply sends a private command-response to one connection.
func (d *Dispatcher) reply(id, cmd, text string) {
	d.out.Send(id, event.TypeCommandResponse, event.CommandResponse{
		Command:  cmd,
		Response: text,
	})
}

// system broadcasts a system-message line to everyone.
func (d *Dispatcher) system(text string) {
	d.out.Broadcast(event.TypeSystemMessage, event.SystemMessage{
		Content:   text,
		Timestamp: event.Timestamp(time.Now()),
	})
}

// requireAdmin re-checks privilege against the registry (the caller
// snapshot may predate a grant or a disconnect) and sends the denial reply
// when it is missing.
func (d *Dispatcher) requireAdmin(caller presence.User, cmd string) bool {
	if d.registry.IsAdmin(caller.ID) {
		return true
	}
	d.reply(caller.ID, cmd, "You do not have permission to use this command.")
	return false
}
