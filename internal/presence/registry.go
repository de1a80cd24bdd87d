// Package presence is the authoritative record of who is connected.
// All lookups are keyed by the opaque per-connection ID assigned by the
// transport layer; records never outlive their connection.
package presence

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/win99lol/chat-relay/internal/event"
)

// User is the registry record for one live connection.
type User struct {
	ID       string
	Username string
	Client   string
	JoinedAt time.Time
	Admin    bool
}

// CleanFunc sanitizes a user-supplied display string before it is stored.
type CleanFunc func(string) string

// Registry tracks connected users and enforces username uniqueness.
// Username allocation and record insertion happen under one lock so two
// concurrent joins can never claim the same final name.
type Registry struct {
	mu    sync.Mutex
	users map[string]*User
	clean CleanFunc
	rng   *rand.Rand
}

// NewRegistry creates an empty registry. clean is applied to every requested
// username before allocation; nil disables filtering.
func NewRegistry(clean CleanFunc) *Registry {
	if clean == nil {
		clean = func(s string) string { return s }
	}
	return &Registry{
		users: make(map[string]*User),
		clean: clean,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Join registers a connection under a unique username derived from the
// requested one and returns the stored record. The second return reports
// whether the assigned name differs from the requested one. Joining an
// already-registered ID replaces the old record.
func (r *Registry) Join(id, requested, client string) (User, bool) {
	if client == "" {
		client = "unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.TrimSpace(r.clean(requested))
	if name == "" {
		name = "User" + strconv.Itoa(r.rng.Intn(1000))
	}

	taken := make(map[string]struct{}, len(r.users))
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		taken[strings.ToLower(u.Username)] = struct{}{}
	}

	final := allocate(name, taken)
	u := &User{
		ID:       id,
		Username: final,
		Client:   client,
		JoinedAt: time.Now(),
	}
	r.users[id] = u
	return *u, final != requested
}

// Get returns the record for a connection ID.
func (r *Registry) Get(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// List returns a point-in-time snapshot of all connected users. Order is
// unspecified.
func (r *Registry) List() []event.UserInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.MapToSlice(r.users, func(_ string, u *User) event.UserInfo {
		return event.UserInfo{Username: u.Username, Client: u.Client}
	})
}

// Remove deletes the record for a connection ID and returns it. Removing an
// unknown ID is a no-op, which makes duplicate disconnect events harmless.
func (r *Registry) Remove(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, false
	}
	delete(r.users, id)
	return *u, true
}

// GrantAdmin flags the record for id as an admin. It reports whether the ID
// was registered. Admin status dies with the connection.
func (r *Registry) GrantAdmin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	u.Admin = true
	return true
}

// IsAdmin reports whether the connection currently holds admin privilege.
func (r *Registry) IsAdmin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return ok && u.Admin
}

// Resolve finds a connected user by username, case-insensitively. Usernames
// are unique at any instant, so at most one record can match.
func (r *Registry) Resolve(username string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return *u, true
		}
	}
	return User{}, false
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// allocate returns requested if it does not collide with a taken name, or
// the first requested+N (N starting at 2) that is free. taken is keyed by
// lower-cased username.
func allocate(requested string, taken map[string]struct{}) string {
	if _, ok := taken[strings.ToLower(requested)]; !ok {
		return requested
	}
	for n := 2; ; n++ {
		candidate := requested + strconv.Itoa(n)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}
