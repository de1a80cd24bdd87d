// Package moderation tracks time-bounded mutes. Each mute carries its own
// one-shot timer so expiry is enforced actively rather than checked lazily;
// the unmute notification for a given mute fires exactly once.
package moderation

import (
	"sync"
	"time"
)

type muteEntry struct {
	expiresAt time.Time
	gen       uint64
	timer     *time.Timer
}

// Store maps connection IDs to mute expiries.
type Store struct {
	mu       sync.Mutex
	mutes    map[string]*muteEntry
	gen      uint64
	onExpire func(id string)
}

// NewStore creates a Store. onExpire is invoked (outside the store's lock)
// when a mute runs out on its own; it is not called for explicit unmutes or
// disconnect cleanup. nil is allowed.
func NewStore(onExpire func(id string)) *Store {
	return &Store{
		mutes:    make(map[string]*muteEntry),
		onExpire: onExpire,
	}
}

// Mute silences id for d and returns the expiry instant. Re-muting an
// already muted ID replaces the expiry; the superseded timer becomes a
// no-op. A non-positive duration yields a mute that expires immediately.
func (s *Store) Mute(id string, d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.mutes[id]
	if e == nil {
		e = &muteEntry{}
		s.mutes[id] = e
	} else if e.timer != nil {
		e.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e.gen = gen
	e.expiresAt = time.Now().Add(d)
	e.timer = time.AfterFunc(d, func() { s.expire(id, gen) })
	return e.expiresAt
}

// expire removes the entry if it still belongs to the timer's generation.
// A stale timer (entry re-muted, unmuted, or cleared since it was armed)
// does nothing.
func (s *Store) expire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.mutes[id]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.mutes, id)
	cb := s.onExpire
	s.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

// Unmute lifts the mute for id and reports whether one was present, so
// callers can word their replies accordingly.
func (s *Store) Unmute(id string) bool {
	return s.remove(id)
}

// Clear drops any mute for id without notification. Called on disconnect.
func (s *Store) Clear(id string) {
	s.remove(id)
}

func (s *Store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.mutes[id]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.mutes, id)
	return true
}

// Remaining returns how long the mute for id has left to run. ok is false
// when the ID is not muted.
func (s *Store) Remaining(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.mutes[id]
	if !ok {
		return 0, false
	}
	d := time.Until(e.expiresAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Count returns the number of active mutes.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mutes)
}
