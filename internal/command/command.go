// Package command implements the command model described in
// spec.md §4.3: parsing an Array frame into one of the six known
// commands (or Unknown), and applying Get/Set/Publish/Ping/Unknown
// against the shared store and a connection. SUBSCRIBE/UNSUBSCRIBE
// parse here but apply from internal/server's subscription loop,
// which owns the multi-source select spec.md §4.4 describes.
package command

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/frame"
)

// Command is any parsed command value: Get, Set, Publish, Subscribe,
// Unsubscribe, Ping, or Unknown.
type Command interface {
	// Name reports the command's name, used in log lines and in
	// Unknown's error reply: the lowercase verb for the six known
	// commands, and the name exactly as received for Unknown.
	Name() string
}

// FromFrame parses f — which must be an Array of Simple/Bulk strings —
// into its Command, dispatching on the first element exactly as
// _examples/original_source/src/cmd.rs's Command::from_frame does.
func FromFrame(f frame.Frame) (Command, error) {
	p, err := NewParse(f)
	if err != nil {
		return nil, err
	}

	name, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error; expected command name")
	}

	switch strings.ToLower(name) {
	case "get":
		return newGet(p)
	case "set":
		return newSet(p)
	case "publish":
		return newPublish(p)
	case "subscribe":
		return newSubscribe(p)
	case "unsubscribe":
		return newUnsubscribe(p)
	case "ping":
		return newPing(p)
	default:
		return &Unknown{name: name}, nil
	}
}
