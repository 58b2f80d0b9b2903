package command

import (
	"fmt"

	"github.com/LucienY01/mini-redis/internal/conn"
	"github.com/LucienY01/mini-redis/internal/frame"
)

// Unknown wraps any command name that didn't match one of the six
// known verbs. It is not itself an error condition for FromFrame —
// the connection simply replies with an Error frame and continues,
// per spec.md §4.3's table.
type Unknown struct {
	name string
}

func (u *Unknown) Name() string { return u.name }

// Apply writes the "ERR unknown command" reply and returns an
// *ErrUnknownCommand so the caller can log it distinctly from a
// transport failure without treating it as fatal to the connection.
func (u *Unknown) Apply(c *conn.Connection) error {
	reply := frame.NewError(fmt.Sprintf("ERR unknown command '%s'", u.name))
	if err := c.WriteFrame(reply); err != nil {
		return err
	}
	return &ErrUnknownCommand{Name: u.name}
}
