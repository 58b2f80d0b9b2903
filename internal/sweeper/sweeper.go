// Package sweeper runs the background expiration task described in
// spec.md §4.5: repeatedly drain due entries from the store, then
// sleep until the next deadline or until the store notifies of an
// earlier one.
package sweeper

import (
	"time"

	"github.com/LucienY01/mini-redis/internal/store"
)

// Run drives one store's expiration sweep until the store shuts down.
// It is meant to be launched as its own goroutine and returns once
// s.SweepOnce reports shutdown.
func Run(s *store.Shared) {
	for {
		next, due, ok := s.SweepOnce(time.Now())
		if !ok {
			return
		}
		if !due {
			<-s.WakeChan()
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-s.WakeChan():
			if !timer.Stop() {
				<-timer.C
			}
		}
	}
}
