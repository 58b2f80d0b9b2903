package command

import "github.com/pkg/errors"

// Subscribe names the channels to join. It parses here but applies
// from internal/server's subscription loop, since entering subscribe
// mode needs the shutdown signal as well as the connection and the
// store — spec.md §4.4's three-source multiplex — and a bare
// Apply(store, conn) signature has no room for it.
//
// Open question (spec.md §9, resolved in SPEC_FULL.md §9.2): the
// subscription loop does NOT exit when a connection's subscribed-
// channel count drops to zero after UNSUBSCRIBE. It keeps running
// until the client closes the connection or the server shuts down.
type Subscribe struct {
	Channels []string
}

func (*Subscribe) Name() string { return "subscribe" }

func newSubscribe(p *Parse) (*Subscribe, error) {
	var channels []string

	first, ok, err := p.NextString()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("protocol error; expected at least one channel")
	}
	channels = append(channels, first)

	for {
		ch, ok, err := p.NextString()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		channels = append(channels, ch)
	}

	return &Subscribe{Channels: channels}, nil
}

// Unsubscribe names the channels to leave. An empty Channels slice
// means "leave every channel currently subscribed", resolved by the
// subscription loop since only it knows the current subscription set.
type Unsubscribe struct {
	Channels []string
}

func (*Unsubscribe) Name() string { return "unsubscribe" }

func newUnsubscribe(p *Parse) (*Unsubscribe, error) {
	var channels []string
	for {
		ch, ok, err := p.NextString()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		channels = append(channels, ch)
	}
	return &Unsubscribe{Channels: channels}, nil
}
