package server

import "sync"

// lifecycle implements spec.md §4.7's two-channel shutdown design: a
// broadcast "shutdown started" signal plus a completion barrier that
// the owner can wait on to know every handler has exited. The
// broadcast half is an idempotent close(), grounded on
// SagerNet/smux's Session.Close dieOnce pattern; the completion half
// substitutes a sync.WaitGroup for the original's MPSC-sender-drop
// idiom, which is the idiomatic Go rendering of "last holder done".
type lifecycle struct {
	once sync.Once
	die  chan struct{}
	wg   sync.WaitGroup
}

func newLifecycle() *lifecycle {
	return &lifecycle{die: make(chan struct{})}
}

// Done returns the channel that closes exactly once, the moment
// shutdown begins.
func (l *lifecycle) Done() <-chan struct{} { return l.die }

// Shutdown signals every handler to exit. Safe to call more than
// once; only the first call has any effect.
func (l *lifecycle) Shutdown() {
	l.once.Do(func() { close(l.die) })
}

// track registers one in-flight handler and returns the function it
// must defer-call on exit.
func (l *lifecycle) track() func() {
	l.wg.Add(1)
	return l.wg.Done
}

// Wait blocks until every tracked handler has called its release
// function.
func (l *lifecycle) Wait() { l.wg.Wait() }
