// Package pubsub implements the topic broadcast primitive used for
// PUBLISH/SUBSCRIBE: a single-producer, multi-consumer ring buffer
// with a fixed capacity that never blocks the publisher. A subscriber
// that falls too far behind observes a "lagged" gap and resumes from
// the oldest message still retained, rather than blocking or losing
// the connection.
//
// No example in the retrieved pack implements this exact semantics
// (see SPEC_FULL.md §10); the non-blocking-send idiom is grounded on
// SagerNet/smux's bucketNotify pattern and the general "select with a
// default case to avoid blocking a hot publisher" idiom used across
// the pack, adapted here to drop the OLDEST retained message instead
// of the newest one, so new messages are never rejected and a lagging
// subscriber skips ahead to the oldest message the ring still holds.
package pubsub

import "sync"

// ringCapacity is the fixed number of messages retained per topic, per
// spec.md §3 invariant 6.
const ringCapacity = 1024

// Topic is a named broadcast channel. It is created lazily on first
// subscribe and persists for the life of the server (spec.md §3).
type Topic struct {
	mu   sync.Mutex
	ring [ringCapacity][]byte
	next uint64 // sequence number of the next message to be written
	subs map[*Subscription]chan struct{}
}

// NewTopic constructs an empty topic.
func NewTopic() *Topic {
	return &Topic{subs: make(map[*Subscription]chan struct{})}
}

// Subscription is one consumer's view of a Topic: a read cursor into
// the ring plus a wakeup channel signalled on every publish.
type Subscription struct {
	topic  *Topic
	cursor uint64 // sequence number of the next message this subscriber hasn't seen
	notify chan struct{}
}

// Subscribe takes a fresh receiver that yields messages published
// after this call, per spec.md §4.3's SUBSCRIBE apply contract.
func (t *Topic) Subscribe() *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &Subscription{
		topic:  t,
		cursor: t.next,
		notify: make(chan struct{}, 1),
	}
	t.subs[sub] = sub.notify
	return sub
}

// Unsubscribe drops sub from the topic. It is safe to call more than
// once.
func (t *Topic) Unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, sub)
}

// Publish appends message to the ring, overwriting the oldest retained
// message if the ring is full, and wakes every current subscriber. It
// returns the number of subscribers the message was queued to, which
// for this fixed-ring design is simply the live subscriber count: the
// message is always retained (subject to the ring eventually wrapping
// over it), so "queued" and "subscribed" coincide.
func (t *Topic) Publish(message []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next%ringCapacity] = message
	t.next++

	n := 0
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
			// already has a pending wakeup; the subscriber will notice
			// the new message once it drains the ring up to t.next.
		}
		n++
	}
	return n
}

// oldestSeq reports the sequence number of the oldest message still
// retained in the ring.
func (t *Topic) oldestSeq() uint64 {
	if t.next <= ringCapacity {
		return 0
	}
	return t.next - ringCapacity
}

// ErrLagged is returned by Next when the subscriber fell behind and
// messages were overwritten; the subscription's cursor is advanced to
// the oldest retained message so the caller can simply retry Next.
var ErrLagged = lagError{}

type lagError struct{}

func (lagError) Error() string { return "pubsub: subscriber lagged, skipped messages" }

// Next returns the subscriber's next pending message without blocking.
// It returns (nil, nil, false) immediately if nothing is pending, and
// (nil, ErrLagged, true) after a lag; callers select on WaitChannel()
// alongside other sources and call Next again when it fires.
func (s *Subscription) Next() (message []byte, err error, ok bool) {
	t := s.topic
	t.mu.Lock()
	defer t.mu.Unlock()

	oldest := t.oldestSeq()
	if s.cursor < oldest {
		s.cursor = oldest
		return nil, ErrLagged, true
	}
	if s.cursor >= t.next {
		return nil, nil, false
	}
	msg := t.ring[s.cursor%ringCapacity]
	s.cursor++
	return msg, nil, true
}

// WaitChannel returns the channel that fires whenever a new message
// may be available for this subscription. It is meant to be used as
// one arm of the subscription loop's multi-way select (spec.md §4.4).
func (s *Subscription) WaitChannel() <-chan struct{} {
	return s.notify
}

// Close unsubscribes s from its topic. Safe to call more than once.
func (s *Subscription) Close() {
	s.topic.Unsubscribe(s)
}
