// Package store holds the shared in-memory state: the keyspace with
// optional per-key expiration, and the topic map used for pub/sub. A
// single mutex guards all of it, per spec.md §5 — every operation here
// is a short, non-suspending critical section.
package store

import (
	"sync"
	"time"

	"github.com/LucienY01/mini-redis/internal/pubsub"
)

// entry is one keyed value, optionally carrying an expiration.
type entry struct {
	data      []byte
	expiresAt *time.Time
}

// Shared is the reference-counted state described in spec.md §3: the
// keyspace, its expiration index, the topic map, and the shutdown
// flag. It is held by the listener, every handler, and the sweeper.
type Shared struct {
	mu sync.Mutex

	entries map[string]entry
	exp     *expIndex
	topics  map[string]*pubsub.Topic

	shutdown bool
	wake     chan struct{} // capacity 1, non-blocking send; wakes the sweeper
}

// New constructs an empty Shared store.
func New() *Shared {
	return &Shared{
		entries: make(map[string]entry),
		exp:     newExpIndex(),
		topics:  make(map[string]*pubsub.Topic),
		wake:    make(chan struct{}, 1),
	}
}

// WakeChan is the channel the sweeper selects on alongside its
// deadline timer.
func (s *Shared) WakeChan() <-chan struct{} { return s.wake }

func (s *Shared) notifySweeper() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Get performs a snapshot read under the lock. Expired-but-not-yet-
// swept entries are treated as absent here too, so a GET never returns
// a logically expired value even if the sweeper hasn't caught up yet.
func (s *Shared) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expiresAt != nil && !e.expiresAt.After(time.Now()) {
		return nil, false
	}
	return e.data, true
}

// Set inserts or overwrites key per spec.md §4.3's SET apply contract:
// any previous expiry is removed from the index, the new one (if any)
// is inserted, and the sweeper is notified if it becomes the new
// earliest deadline.
func (s *Shared) Set(key string, value []byte, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok && old.expiresAt != nil {
		s.exp.remove(key)
	}

	s.entries[key] = entry{data: value, expiresAt: expiresAt}

	if expiresAt != nil {
		earliest, hasEarliest := s.exp.earliest()
		becomesEarliest := !hasEarliest || expiresAt.Before(earliest.deadline)
		s.exp.insert(*expiresAt, key)
		if becomesEarliest {
			s.notifySweeper()
		}
	}
}

// topicLocked returns the named topic, creating it if absent. Caller
// must hold s.mu.
func (s *Shared) topicLocked(channel string) *pubsub.Topic {
	t, ok := s.topics[channel]
	if !ok {
		t = pubsub.NewTopic()
		s.topics[channel] = t
	}
	return t
}

// Publish looks up channel's topic and broadcasts message, per
// spec.md §4.3: a channel with no prior subscribe activity and no
// topic entry returns 0 without creating one.
func (s *Shared) Publish(channel string, message []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[channel]
	if !ok {
		return 0
	}
	return t.Publish(message)
}

// Subscribe takes a fresh subscription on channel, creating the topic
// lazily if this is the first subscriber ever.
func (s *Shared) Subscribe(channel string) *pubsub.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topicLocked(channel).Subscribe()
}

// IsShutdown reports whether the shared state has been torn down.
func (s *Shared) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Shutdown sets the shutdown flag and wakes the sweeper so it exits
// promptly, per spec.md §3's ownership rules.
func (s *Shared) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.notifySweeper()
}

// SweepOnce performs one cycle of spec.md §4.5: drain every entry
// whose deadline has passed, and report when the next one is due. ok
// is false if the store has been shut down, in which case the caller
// (the sweeper) must exit. due is false if nothing remains scheduled,
// in which case the sweeper should block purely on WakeChan.
func (s *Shared) SweepOnce(now time.Time) (next time.Time, due bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return time.Time{}, false, false
	}

	for {
		e, has := s.exp.earliest()
		if !has {
			return time.Time{}, false, true
		}
		if e.deadline.After(now) {
			return e.deadline, true, true
		}
		s.exp.popEarliest()
		delete(s.entries, e.key)
	}
}

// Len reports the number of live (not-yet-swept) keys. Used by tests
// and the optional debug surface; not a wire command.
func (s *Shared) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
