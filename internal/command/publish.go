package command

import (
	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
	"github.com/LucienY01/mini-redis/internal/store"
)

// Publish is the PUBLISH command.
type Publish struct {
	Channel string
	Message []byte
}

func (*Publish) Name() string { return "publish" }

func newPublish(p *Parse) (*Publish, error) {
	channel, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error: expected channel name")
	}

	message, ok, err := p.NextBytes()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error: expected message")
	}

	return &Publish{Channel: channel, Message: message}, nil
}

// Apply broadcasts Message to Channel and replies with the subscriber
// count as an Integer frame, per spec.md §4.3.
func (cmd *Publish) Apply(s *store.Shared, c *conn.Connection) error {
	n := s.Publish(cmd.Channel, cmd.Message)
	return c.WriteFrame(frame.NewInteger(int64(n)))
}
