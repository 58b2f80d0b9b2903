package command

import (
	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
)

// Ping is the PING command, with an optional echoed payload.
type Ping struct {
	Msg    []byte
	HasMsg bool
}

func (*Ping) Name() string { return "ping" }

func newPing(p *Parse) (*Ping, error) {
	msg, ok, err := p.NextBytes()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Ping{}, nil
	}
	return &Ping{Msg: msg, HasMsg: true}, nil
}

// Apply replies with the echoed Bulk payload if one was given,
// otherwise a Simple "PONG" frame, per spec.md §4.3.
func (cmd *Ping) Apply(c *conn.Connection) error {
	if cmd.HasMsg {
		return c.WriteFrame(frame.NewBulk(cmd.Msg))
	}
	return c.WriteFrame(frame.NewSimple("PONG"))
}
