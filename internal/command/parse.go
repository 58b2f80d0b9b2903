package command

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/frame"
)

// Parse walks the elements of an Array frame one at a time, the same
// role _examples/original_source/src/cmd.rs's Parse struct plays:
// every command's from-frame constructor pulls its arguments off of
// one of these instead of pattern-matching the array directly.
type Parse struct {
	frames []frame.Frame
	pos    int
}

// NewParse requires f to be an Array frame, per spec.md §4.1 — every
// command arrives as an array of bulk/simple strings.
func NewParse(f frame.Frame) (*Parse, error) {
	if f.Kind != frame.Array {
		return nil, errors.Errorf("protocol error; expected array, got %v", f.Kind)
	}
	return &Parse{frames: f.Array}, nil
}

func (p *Parse) next() (frame.Frame, bool) {
	if p.pos >= len(p.frames) {
		return frame.Frame{}, false
	}
	f := p.frames[p.pos]
	p.pos++
	return f, true
}

// NextString returns the next argument as a string, accepting either a
// Simple or a Bulk frame. ok is false once the argument list is
// exhausted.
func (p *Parse) NextString() (s string, ok bool, err error) {
	f, has := p.next()
	if !has {
		return "", false, nil
	}
	switch f.Kind {
	case frame.Simple:
		return f.Str, true, nil
	case frame.Bulk:
		if f.IsNull {
			return "", false, errors.New("protocol error; expected simple or bulk string, got null")
		}
		return string(f.Bulk), true, nil
	default:
		return "", false, errors.Errorf("protocol error; expected simple or bulk string, got %v", f.Kind)
	}
}

// NextBytes is NextString without the UTF-8 round trip, used for
// values that are opaque payloads rather than argument tokens.
func (p *Parse) NextBytes() (b []byte, ok bool, err error) {
	f, has := p.next()
	if !has {
		return nil, false, nil
	}
	switch f.Kind {
	case frame.Simple:
		return []byte(f.Str), true, nil
	case frame.Bulk:
		if f.IsNull {
			return nil, false, errors.New("protocol error; expected simple or bulk string, got null")
		}
		return f.Bulk, true, nil
	default:
		return nil, false, errors.Errorf("protocol error; expected simple or bulk string, got %v", f.Kind)
	}
}

// NextInt accepts an Integer frame directly, or a Simple/Bulk frame
// holding a decimal string, mirroring cmd.rs's next_int.
func (p *Parse) NextInt() (n int64, ok bool, err error) {
	f, has := p.next()
	if !has {
		return 0, false, nil
	}
	switch f.Kind {
	case frame.Integer:
		return f.Int, true, nil
	case frame.Simple:
		v, err := strconv.ParseInt(f.Str, 10, 64)
		if err != nil {
			return 0, false, errors.Wrap(err, "protocol error; invalid number")
		}
		return v, true, nil
	case frame.Bulk:
		v, err := strconv.ParseInt(string(f.Bulk), 10, 64)
		if err != nil {
			return 0, false, errors.New("protocol error; invalid number")
		}
		return v, true, nil
	default:
		return 0, false, errors.Errorf("protocol error; expected int frame but got %v", f.Kind)
	}
}
