package server

import (
	"github.com/LucienY01/mini-redis/internal/command"
	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
	"github.com/LucienY01/mini-redis/internal/pubsub"
)

// activeSub pairs a subscription with the forwarding goroutine that
// relays its wakeups into the loop's single shared waker channel, and
// the stop signal that ends that goroutine on unsubscribe.
type activeSub struct {
	sub  *pubsub.Subscription
	stop chan struct{}
}

// runSubscriptionLoop implements spec.md §4.4: once a connection
// issues SUBSCRIBE, it leaves the ordinary command loop and enters a
// three-way select between (1) any subscribed topic having a new
// message, (2) the connection sending another frame (a further
// SUBSCRIBE/UNSUBSCRIBE, or anything else which gets the Unknown
// treatment), and (3) server shutdown.
//
// Per SPEC_FULL.md §9.2, this loop does not exit when the last
// channel is unsubscribed; only connection close or shutdown end it.
func (s *Server) runSubscriptionLoop(c *conn.Connection, initial *command.Subscribe) {
	subs := make(map[string]*activeSub)
	waker := make(chan struct{}, 1)
	defer func() {
		for _, as := range subs {
			close(as.stop)
			as.sub.Close()
		}
	}()

	for _, ch := range initial.Channels {
		if err := s.subscribeOne(c, subs, waker, ch); err != nil {
			s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
			return
		}
	}

	frames := make(chan frameOrErr, 1)
	go readLoop(c, frames)

	for {
		select {
		case <-s.life.Done():
			return

		case fe := <-frames:
			if fe.err != nil {
				if !isCleanClose(fe.err) {
					s.logf("connection error: %v: %+v", c.RemoteAddr(), fe.err)
				}
				return
			}
			if !s.handleSubscribeModeFrame(c, subs, waker, fe.f) {
				return
			}
			go readLoop(c, frames)

		case <-waker:
			if err := drainDue(c, subs); err != nil {
				s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
				return
			}
		}
	}
}

type frameOrErr struct {
	f   frame.Frame
	err error
}

func readLoop(c *conn.Connection, out chan<- frameOrErr) {
	f, err := c.ReadFrame()
	out <- frameOrErr{f: f, err: err}
}

// forwardWakeups relays as's subscription wakeups into waker until
// as.stop closes, letting the subscription loop select on one channel
// regardless of how many topics the connection has joined.
func forwardWakeups(as *activeSub, waker chan<- struct{}) {
	for {
		select {
		case <-as.sub.WaitChannel():
			select {
			case waker <- struct{}{}:
			default:
			}
		case <-as.stop:
			return
		}
	}
}

// drainDue flushes every pending message across all subscriptions,
// writing a ["message", channel, payload] frame for each.
func drainDue(c *conn.Connection, subs map[string]*activeSub) error {
	for channel, as := range subs {
		for {
			msg, err, ok := as.sub.Next()
			if !ok {
				break
			}
			if err != nil {
				// Lagged: cursor has been fast-forwarded by Next; keep
				// draining from the new position.
				continue
			}
			reply := frame.NewArray(
				frame.NewBulk([]byte("message")),
				frame.NewBulk([]byte(channel)),
				frame.NewBulk(msg),
			)
			if err := c.WriteFrame(reply); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) subscribeOne(c *conn.Connection, subs map[string]*activeSub, waker chan struct{}, channel string) error {
	if _, already := subs[channel]; already {
		return nil
	}
	as := &activeSub{sub: s.store.Subscribe(channel), stop: make(chan struct{})}
	subs[channel] = as
	go forwardWakeups(as, waker)

	reply := frame.NewArray(
		frame.NewBulk([]byte("subscribe")),
		frame.NewBulk([]byte(channel)),
		frame.NewInteger(int64(len(subs))),
	)
	return c.WriteFrame(reply)
}

func (s *Server) unsubscribeOne(c *conn.Connection, subs map[string]*activeSub, channel string) error {
	if as, ok := subs[channel]; ok {
		close(as.stop)
		as.sub.Close()
		delete(subs, channel)
	}

	reply := frame.NewArray(
		frame.NewBulk([]byte("unsubscribe")),
		frame.NewBulk([]byte(channel)),
		frame.NewInteger(int64(len(subs))),
	)
	return c.WriteFrame(reply)
}

// handleSubscribeModeFrame applies the one frame received while inside
// the subscription loop: only SUBSCRIBE and UNSUBSCRIBE are
// meaningful here (mirroring
// _examples/original_source/src/cmd/subscribe.rs's handle_command),
// everything else gets the Unknown error reply without ending the
// loop. It returns false if the connection should be torn down.
func (s *Server) handleSubscribeModeFrame(c *conn.Connection, subs map[string]*activeSub, waker chan struct{}, f frame.Frame) bool {
	cmd, err := command.FromFrame(f)
	if err != nil {
		s.logf("protocol error: %v: %v", c.RemoteAddr(), err)
		return false
	}

	switch v := cmd.(type) {
	case *command.Subscribe:
		for _, ch := range v.Channels {
			if err := s.subscribeOne(c, subs, waker, ch); err != nil {
				s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
				return false
			}
		}
	case *command.Unsubscribe:
		channels := v.Channels
		if len(channels) == 0 {
			for ch := range subs {
				channels = append(channels, ch)
			}
		}
		for _, ch := range channels {
			if err := s.unsubscribeOne(c, subs, ch); err != nil {
				s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
				return false
			}
		}
	default:
		reply := frame.NewError("ERR unknown command '" + cmd.Name() + "'")
		if err := c.WriteFrame(reply); err != nil {
			s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
			return false
		}
	}
	return true
}
