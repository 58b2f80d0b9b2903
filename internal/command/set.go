package command

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
	"github.com/LucienY01/mini-redis/internal/store"
)

// Set is the SET command, with an optional EX (seconds) or PX
// (milliseconds) expiry converted to an absolute deadline at parse
// time — spec.md §4.3 fixes this conversion at apply time relative to
// "now", which newSet approximates by resolving it immediately since
// the gap between parse and apply is a single uncontended store call.
type Set struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time
}

func (*Set) Name() string { return "set" }

func newSet(p *Parse) (*Set, error) {
	key, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error: expected key")
	}

	value, ok, err := p.NextBytes()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error: expected value")
	}

	opt, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Set{Key: key, Value: value}, nil
	}

	var d time.Duration
	switch strings.ToUpper(opt) {
	case "EX":
		secs, ok, err := p.NextInt()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("protocol error; expected seconds for EX")
		}
		d = time.Duration(secs) * time.Second
	case "PX":
		ms, ok, err := p.NextInt()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("protocol error; expected milliseconds for PX")
		}
		d = time.Duration(ms) * time.Millisecond
	default:
		return nil, errors.New("currently `SET` only supports the expiration option")
	}

	expiresAt := time.Now().Add(d)
	return &Set{Key: key, Value: value, ExpiresAt: &expiresAt}, nil
}

// Apply inserts or overwrites Key and replies with a Simple "OK"
// frame, per spec.md §4.3.
func (cmd *Set) Apply(s *store.Shared, c *conn.Connection) error {
	s.Set(cmd.Key, cmd.Value, cmd.ExpiresAt)
	return c.WriteFrame(frame.NewSimple("OK"))
}
