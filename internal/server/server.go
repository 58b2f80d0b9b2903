// Package server implements the listener, the per-connection handler,
// and the subscription loop described in spec.md §4.4, §4.6 and §4.7:
// accept connections behind a fixed-size permit semaphore, dispatch
// commands against the shared store, and multiplex topic messages,
// inbound frames and shutdown inside the three-way select SUBSCRIBE
// enters.
package server

import (
	"io"
	"log"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/command"
	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/sweeper"
	"github.com/LucienY01/mini-redis/internal/store"
)

// MaxConnections is the fixed accept-loop permit count from spec.md
// §4.6 and §6 ("Connection cap: 250 concurrent handlers").
const MaxConnections = 250

// Server owns the listener, the shared store, and the shutdown
// lifecycle for one running instance.
type Server struct {
	lis     net.Listener
	store   *store.Shared
	life    *lifecycle
	permits chan struct{}
	Quiet   bool // suppress per-connection open/close log lines
}

// New wraps lis with a fresh Shared store and starts the expiration
// sweeper.
func New(lis net.Listener) *Server {
	s := &Server{
		lis:     lis,
		store:   store.New(),
		life:    newLifecycle(),
		permits: make(chan struct{}, MaxConnections),
	}
	go sweeper.Run(s.store)
	return s
}

// Store exposes the shared keyspace, e.g. for an optional debug
// endpoint reporting store.Shared.Len(), or for tests.
func (s *Server) Store() *store.Shared { return s.store }

// Serve runs the accept loop until Shutdown is called or the listener
// returns a permanent error. After Shutdown it blocks until every
// in-flight handler has exited; on a listener error it returns at once
// without waiting for them.
func (s *Server) Serve() error {
	for {
		select {
		case s.permits <- struct{}{}:
		case <-s.life.Done():
			s.life.Wait()
			return nil
		}

		nc, err := s.lis.Accept()
		if err != nil {
			<-s.permits
			select {
			case <-s.life.Done():
				s.life.Wait()
				return nil
			default:
			}
			return errors.Wrap(err, "accept")
		}

		release := s.life.track()
		go func() {
			defer func() { <-s.permits }()
			defer release()
			s.handleConnection(nc)
		}()
	}
}

// Shutdown signals the accept loop and every handler to stop. It does
// not itself wait for them to finish; callers that need that should
// call Serve and let it return, or call Wait directly.
func (s *Server) Shutdown() {
	s.life.Shutdown()
	s.store.Shutdown()
	s.lis.Close()
}

// Wait blocks until every handler launched by Serve has exited.
func (s *Server) Wait() { s.life.Wait() }

func (s *Server) logf(format string, args ...any) {
	if !s.Quiet {
		log.Printf(format, args...)
	}
}

// handleConnection is one TCP connection's entire lifetime: read a
// command, apply it, write the reply, repeat — entering the
// subscription loop in place of the read/apply/write cycle whenever a
// SUBSCRIBE is seen, per spec.md §4.3's table.
//
// The read is raced against shutdown exactly like the subscription
// loop's select does (spec.md §4.7: "each handler observes shutdown");
// an idle client sitting in ReadFrame must not keep Serve's
// life.Wait() blocked forever. ReadFrame itself runs in readLoop so
// the select has something to wait on besides the read; when
// s.life.Done() fires first, the deferred c.Close() below unblocks
// that goroutine's in-flight read so it can exit.
func (s *Server) handleConnection(nc net.Conn) {
	c := conn.New(nc)
	defer c.Close()

	start := time.Now()
	s.logf("connection opened: %v", c.RemoteAddr())
	defer func() {
		s.logf("connection closed: %v (%v)", c.RemoteAddr(), time.Since(start))
	}()

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

			cmd, err := command.FromFrame(fe.f)
			if err != nil {
				s.logf("protocol error: %v: %v", c.RemoteAddr(), err)
				return
			}

			if sub, ok := cmd.(*command.Subscribe); ok {
				s.runSubscriptionLoop(c, sub)
				return
			}

			if err := s.applyOne(cmd, c); err != nil {
				var unknown *command.ErrUnknownCommand
				if errors.As(err, &unknown) {
					s.logf("unknown command from %v: %v", c.RemoteAddr(), unknown.Name)
					go readLoop(c, frames)
					continue
				}
				s.logf("connection error: %v: %+v", c.RemoteAddr(), err)
				return
			}

			go readLoop(c, frames)
		}
	}
}

// applyOne dispatches every command except Subscribe, which
// handleConnection routes to runSubscriptionLoop, and Unsubscribe,
// which is only meaningful inside that loop.
func (s *Server) applyOne(cmd command.Command, c *conn.Connection) error {
	switch v := cmd.(type) {
	case *command.Get:
		return v.Apply(s.store, c)
	case *command.Set:
		return v.Apply(s.store, c)
	case *command.Publish:
		return v.Apply(s.store, c)
	case *command.Ping:
		return v.Apply(c)
	case *command.Unknown:
		return v.Apply(c)
	case *command.Unsubscribe:
		return command.ErrUnsupportedInContext
	default:
		return errors.Errorf("server: unhandled command type %T", cmd)
	}
}

func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF)
}
