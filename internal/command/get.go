package command

import (
	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
	"github.com/LucienY01/mini-redis/internal/store"
)

// Get is the GET command: a single key lookup.
type Get struct {
	Key string
}

func (*Get) Name() string { return "get" }

func newGet(p *Parse) (*Get, error) {
	key, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error: expected key")
	}
	return &Get{Key: key}, nil
}

// Apply writes the value as a Bulk frame, or Null if the key is
// absent or expired, per spec.md §4.3.
func (g *Get) Apply(s *store.Shared, c *conn.Connection) error {
	v, ok := s.Get(g.Key)
	if !ok {
		return c.WriteFrame(frame.NewNull())
	}
	return c.WriteFrame(frame.NewBulk(v))
}
