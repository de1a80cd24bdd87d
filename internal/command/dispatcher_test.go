package command

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/win99lol/chat-relay/internal/event"
	"github.com/win99lol/chat-relay/internal/moderation"
	"github.com/win99lol/chat-relay/internal/presence"
)

// sentEvent records one call into the fake Sender.
type sentEvent struct {
	target  string // empty for broadcasts
	typ     string
	payload any
}

type fakeSender struct {
	events      []sentEvent
	disconnects []string
}

func (f *fakeSender) Send(id, typ string, payload any) {
	f.events = append(f.events, sentEvent{target: id, typ: typ, payload: payload})
}

func (f *fakeSender) Broadcast(typ string, payload any) {
	f.events = append(f.events, sentEvent{typ: typ, payload: payload})
}

func (f *fakeSender) Disconnect(id, reason string, after time.Duration) {
	f.disconnects = append(f.disconnects, id)
}

func (f *fakeSender) last(t *testing.T) sentEvent {
	t.Helper()
	require.NotEmpty(t, f.events)
	return f.events[len(f.events)-1]
}

func (f *fakeSender) lastResponse(t *testing.T) event.CommandResponse {
	t.Helper()
	e := f.last(t)
	require.Equal(t, event.TypeCommandResponse, e.typ)
	resp, ok := e.payload.(event.CommandResponse)
	require.True(t, ok)
	return resp
}

type fixture struct {
	registry *presence.Registry
	mutes    *moderation.Store
	out      *fakeSender
	d        *Dispatcher
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{
		registry: presence.NewRegistry(nil),
		out:      &fakeSender{},
	}
	f.mutes = moderation.NewStore(nil)
	f.d = New(f.registry, f.mutes, f.out, secret, time.Now())
	return f
}

func (f *fixture) join(t *testing.T, id, name string) presence.User {
	t.Helper()
	u, _ := f.registry.Join(id, name, "winchat")
	return u
}

func (f *fixture) admin(t *testing.T, id string) {
	t.Helper()
	require.True(t, f.registry.GrantAdmin(id))
}

func TestEveryDeclaredCommandHasAHandler(t *testing.T) {
	for _, name := range commandNames {
		assert.NotNil(t, handlers[name], "command %q has no handler", name)
	}
	assert.Len(t, handlers, len(commandNames), "handler table and declared command list diverged")
}

func TestDispatchIgnoresUnjoinedCallers(t *testing.T) {
	f := newFixture(t, "")
	f.d.Dispatch("ghost", "ping", nil, 0)
	assert.Empty(t, f.out.events)
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "dance", nil, 0)
	resp := f.out.lastResponse(t)
	assert.Equal(t, "Unknown command: /dance", resp.Response)
}

func TestDispatchNormalizesCommandName(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "/FLIP", nil, 0)
	e := f.out.last(t)
	assert.Equal(t, event.TypeSystemMessage, e.typ)
}

func TestPingLatency(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "ping", nil, 0)
	assert.Equal(t, "Pong! Latency: 0ms", f.out.lastResponse(t).Response)

	f.d.Dispatch("a", "ping", nil, time.Now().Add(-150*time.Millisecond).UnixMilli())
	resp := f.out.lastResponse(t)
	assert.Regexp(t, `^Pong! Latency: \d+ms$`, resp.Response)
	assert.NotEqual(t, "Pong! Latency: 0ms", resp.Response)
}

func TestUptimeFormat(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "uptime", nil, 0)
	assert.Regexp(t, `^Server uptime: \d+h\d+m\d+s$`, f.out.lastResponse(t).Response)
}

func TestEightBall(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "8ball", nil, 0)
	assert.Equal(t, "Usage: /8ball <question>", f.out.lastResponse(t).Response)

	f.d.Dispatch("a", "8ball", []string{"will", "it", "work?"}, 0)
	e := f.out.last(t)
	require.Equal(t, event.TypeSystemMessage, e.typ)
	msg := e.payload.(event.SystemMessage)
	assert.Contains(t, msg.Content, "Alice")
	assert.Contains(t, msg.Content, "will it work?")

	answered := false
	for _, a := range eightBallAnswers {
		if strings.Contains(msg.Content, a) {
			answered = true
		}
	}
	assert.True(t, answered, "broadcast %q does not contain a stock answer", msg.Content)
}

func TestEightBallAnswerSetIsLargeEnough(t *testing.T) {
	assert.GreaterOrEqual(t, len(eightBallAnswers), 18)
}

func TestRollDefaultsToOneDSix(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "roll", nil, 0)
	e := f.out.last(t)
	require.Equal(t, event.TypeSystemMessage, e.typ)
	msg := e.payload.(event.SystemMessage)
	assert.Regexp(t, `^Alice rolled 1d6: [1-6]$`, msg.Content)
}

func TestRollListsIndividualResultsForMultipleDice(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "roll", []string{"2d20"}, 0)
	msg := f.out.last(t).payload.(event.SystemMessage)
	assert.Regexp(t, `^Alice rolled 2d20: \d+ \+ \d+ = \d+$`, msg.Content)
}

func TestRollRepliesErrorPrivately(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "roll", []string{"0d6"}, 0)
	resp := f.out.lastResponse(t)
	assert.Contains(t, resp.Response, "count")
}

func TestMeBroadcastsActionLine(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "me", []string{"waves", "hello"}, 0)
	msg := f.out.last(t).payload.(event.SystemMessage)
	assert.Equal(t, "* Alice waves hello", msg.Content)

	// Empty args is a no-op.
	before := len(f.out.events)
	f.d.Dispatch("a", "me", nil, 0)
	assert.Len(t, f.out.events, before)
}

func TestAdminGrant(t *testing.T) {
	f := newFixture(t, "open sesame")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "admin", []string{"wrong"}, 0)
	assert.Equal(t, "Invalid admin password.", f.out.lastResponse(t).Response)
	assert.False(t, f.registry.IsAdmin("a"))

	f.d.Dispatch("a", "admin", []string{"open", "sesame"}, 0)
	assert.Equal(t, "Admin privileges granted.", f.out.lastResponse(t).Response)
	assert.True(t, f.registry.IsAdmin("a"))
}

func TestAdminDisabledWithEmptySecret(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "admin", []string{""}, 0)
	assert.Equal(t, "Invalid admin password.", f.out.lastResponse(t).Response)
	assert.False(t, f.registry.IsAdmin("a"))
}

func TestKickRequiresAdmin(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")

	f.d.Dispatch("a", "kick", []string{"Bob"}, 0)
	resp := f.out.lastResponse(t)
	assert.Contains(t, resp.Response, "permission")
	assert.Empty(t, f.out.disconnects)
	_, stillThere := f.registry.Get("b")
	assert.True(t, stillThere)
}

func TestKick(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")

	f.d.Dispatch("a", "kick", []string{"bob", "being", "rude"}, 0)

	require.Len(t, f.out.events, 2)
	kicked := f.out.events[0]
	assert.Equal(t, "b", kicked.target)
	assert.Equal(t, event.TypeKicked, kicked.typ)
	assert.Equal(t, event.Kicked{Reason: "being rude", By: "Alice"}, kicked.payload)

	sys := f.out.events[1].payload.(event.SystemMessage)
	assert.Contains(t, sys.Content, "Bob was kicked by Alice")
	assert.Contains(t, sys.Content, "being rude")

	assert.Equal(t, []string{"b"}, f.out.disconnects)
}

func TestKickDefaultReason(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")

	f.d.Dispatch("a", "kick", []string{"Bob"}, 0)
	kicked := f.out.events[0].payload.(event.Kicked)
	assert.Equal(t, "No reason given", kicked.Reason)
}

func TestKickUnknownTarget(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.admin(t, "a")

	f.d.Dispatch("a", "kick", []string{"Bob"}, 0)
	assert.Equal(t, "User not found: Bob", f.out.lastResponse(t).Response)
	assert.Empty(t, f.out.disconnects)
}

func TestMute(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")

	f.d.Dispatch("a", "mute", []string{"Bob", "2"}, 0)

	remaining, muted := f.mutes.Remaining("b")
	require.True(t, muted)
	assert.LessOrEqual(t, remaining, 2*time.Minute)

	private := f.out.events[0]
	assert.Equal(t, "b", private.target)
	assert.Equal(t, event.TypeMuted, private.typ)
	assert.Equal(t, event.Muted{By: "Alice", DurationMinutes: 2}, private.payload)

	sys := f.out.events[1].payload.(event.SystemMessage)
	assert.Contains(t, sys.Content, "Bob was muted by Alice for 2 minutes")
}

func TestMuteDefaultDuration(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")

	f.d.Dispatch("a", "mute", []string{"Bob"}, 0)
	remaining, muted := f.mutes.Remaining("b")
	require.True(t, muted)
	assert.Greater(t, remaining, 4*time.Minute)
	assert.LessOrEqual(t, remaining, 5*time.Minute)
}

func TestUnmute(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")
	f.mutes.Mute("b", time.Minute)

	f.d.Dispatch("a", "unmute", []string{"Bob"}, 0)

	_, muted := f.mutes.Remaining("b")
	assert.False(t, muted)

	private := f.out.events[0]
	assert.Equal(t, "b", private.target)
	assert.Equal(t, event.TypeUnmuted, private.typ)

	sys := f.out.events[1].payload.(event.SystemMessage)
	assert.Contains(t, sys.Content, "Bob was unmuted by Alice")
}

func TestUnmuteNotMutedBroadcastDiffers(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.join(t, "b", "Bob")
	f.admin(t, "a")

	f.d.Dispatch("a", "unmute", []string{"Bob"}, 0)

	e := f.out.last(t)
	require.Equal(t, event.TypeSystemMessage, e.typ)
	assert.Contains(t, e.payload.(event.SystemMessage).Content, "were not muted")
}

func TestAnnounce(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")
	f.admin(t, "a")

	f.d.Dispatch("a", "announce", nil, 0)
	assert.Equal(t, "Usage: /announce <message>", f.out.lastResponse(t).Response)

	f.d.Dispatch("a", "announce", []string{"maintenance", "at", "noon"}, 0)
	e := f.out.last(t)
	require.Equal(t, event.TypeSystemMessage, e.typ)
	msg := e.payload.(event.SystemMessage)
	assert.True(t, msg.Announcement)
	assert.Equal(t, "Server announcement: maintenance at noon", msg.Content)
}

func TestAdminCommandsDenyByDefault(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.join(t, "a", "Alice")

	for _, cmd := range []string{"kick", "mute", "unmute", "announce"} {
		f.d.Dispatch("a", cmd, []string{"Bob"}, 0)
		resp := f.out.lastResponse(t)
		assert.Contains(t, resp.Response, "permission", "command %s", cmd)
	}
}

func TestTimeReply(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "a", "Alice")

	f.d.Dispatch("a", "time", nil, 0)
	assert.True(t, strings.HasPrefix(f.out.lastResponse(t).Response, "Server time: "),
		fmt.Sprintf("got %q", f.out.lastResponse(t).Response))
}
