package command

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/win99lol/chat-relay/internal/dice"
	"github.com/win99lol/chat-relay/internal/event"
	"github.com/win99lol/chat-relay/internal/presence"
)

// kickGrace is how long the kicked event has to reach the target before the
// connection is torn down.
const kickGrace = time.Second

const defaultMuteMinutes = 5

func (d *Dispatcher) ping(caller presence.User, _ []string, clientTS int64) {
	latency := int64(0)
	if clientTS > 0 {
		latency = time.Now().UnixMilli() - clientTS
	}
	d.reply(caller.ID, "ping", fmt.Sprintf("Pong! Latency: %dms", latency))
}

func (d *Dispatcher) serverTime(caller presence.User, _ []string, _ int64) {
	d.reply(caller.ID, "time", "Server time: "+time.Now().Format("3:04:05 PM"))
}

func (d *Dispatcher) uptime(caller presence.User, _ []string, _ int64) {
	up := time.Since(d.started)
	h := int(up.Hours())
	m := int(up.Minutes()) % 60
	s := int(up.Seconds()) % 60
	d.reply(caller.ID, "uptime", fmt.Sprintf("Server uptime: %dh%dm%ds", h, m, s))
}

func (d *Dispatcher) eightBall(caller presence.User, args []string, _ int64) {
	if len(args) == 0 {
		d.reply(caller.ID, "8ball", "Usage: /8ball <question>")
		return
	}
	question := strings.Join(args, " ")
	answer := dice.Pick(eightBallAnswers)
	d.system(fmt.Sprintf("%s asked the Magic 8-Ball: %q. The answer: %s", caller.Username, question, answer))
}

func (d *Dispatcher) roll(caller presence.User, args []string, _ int64) {
	notation := "1d6"
	if len(args) > 0 {
		notation = args[0]
	}
	res, err := dice.Roll(notation)
	if err != nil {
		d.reply(caller.ID, "roll", err.Error())
		return
	}
	if res.Count > 1 {
		parts := make([]string, len(res.Rolls))
		for i, v := range res.Rolls {
			parts[i] = strconv.Itoa(v)
		}
		d.system(fmt.Sprintf("%s rolled %s: %s = %d", caller.Username, res.Notation, strings.Join(parts, " + "), res.Total))
		return
	}
	d.system(fmt.Sprintf("%s rolled %s: %d", caller.Username, res.Notation, res.Total))
}

func (d *Dispatcher) flip(caller presence.User, _ []string, _ int64) {
	d.system(fmt.Sprintf("%s flipped a coin: %s!", caller.Username, dice.Flip()))
}

func (d *Dispatcher) me(caller presence.User, args []string, _ int64) {
	if len(args) == 0 {
		return
	}
	d.system(fmt.Sprintf("* %s %s", caller.Username, strings.Join(args, " ")))
}

func (d *Dispatcher) admin(caller presence.User, args []string, _ int64) {
	supplied := strings.Join(args, " ")
	if d.secret == "" || supplied != d.secret {
		d.reply(caller.ID, "admin", "Invalid admin password.")
		return
	}
	if !d.registry.GrantAdmin(caller.ID) {
		// Caller disconnected between dispatch and grant.
		return
	}
	d.reply(caller.ID, "admin", "Admin privileges granted.")
}

func (d *Dispatcher) kick(caller presence.User, args []string, _ int64) {
	if !d.requireAdmin(caller, "kick") {
		return
	}
	if len(args) == 0 {
		d.reply(caller.ID, "kick", "Usage: /kick <username> [reason]")
		return
	}
	target, ok := d.registry.Resolve(args[0])
	if !ok {
		d.reply(caller.ID, "kick", "User not found: "+args[0])
		return
	}

	reason := "No reason given"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	d.out.Send(target.ID, event.TypeKicked, event.Kicked{Reason: reason, By: caller.Username})
	d.system(fmt.Sprintf("%s was kicked by %s (%s)", target.Username, caller.Username, reason))
	d.out.Disconnect(target.ID, "kicked: "+reason, kickGrace)
}

func (d *Dispatcher) mute(caller presence.User, args []string, _ int64) {
	if !d.requireAdmin(caller, "mute") {
		return
	}
	if len(args) == 0 {
		d.reply(caller.ID, "mute", "Usage: /mute <username> [minutes]")
		return
	}
	target, ok := d.registry.Resolve(args[0])
	if !ok {
		d.reply(caller.ID, "mute", "User not found: "+args[0])
		return
	}

	minutes := defaultMuteMinutes
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			minutes = n
		}
	}

	d.mutes.Mute(target.ID, time.Duration(minutes)*time.Minute)
	d.out.Send(target.ID, event.TypeMuted, event.Muted{By: caller.Username, DurationMinutes: minutes})
	d.system(fmt.Sprintf("%s was muted by %s for %d minutes", target.Username, caller.Username, minutes))
}

func (d *Dispatcher) unmute(caller presence.User, args []string, _ int64) {
	if !d.requireAdmin(caller, "unmute") {
		return
	}
	if len(args) == 0 {
		d.reply(caller.ID, "unmute", "Usage: /unmute <username>")
		return
	}
	target, ok := d.registry.Resolve(args[0])
	if !ok {
		d.reply(caller.ID, "unmute", "User not found: "+args[0])
		return
	}

	if !d.mutes.Unmute(target.ID) {
		d.system(fmt.Sprintf("%s tried to unmute %s, but they were not muted", caller.Username, target.Username))
		return
	}
	d.out.Send(target.ID, event.TypeUnmuted, event.Unmuted{})
	d.system(fmt.Sprintf("%s was unmuted by %s", target.Username, caller.Username))
}

func (d *Dispatcher) announce(caller presence.User, args []string, _ int64) {
	if !d.requireAdmin(caller, "announce") {
		return
	}
	if len(args) == 0 {
		d.reply(caller.ID, "announce", "Usage: /announce <message>")
		return
	}
	d.out.Broadcast(event.TypeSystemMessage, event.SystemMessage{
		Content:      "Server announcement: " + strings.Join(args, " "),
		Timestamp:    event.Timestamp(time.Now()),
		Announcement: true,
	})
	log.Printf("command: announcement by %s", caller.Username)
}
