// Package frame implements the wire codec for the RESP-compatible
// length-prefixed protocol spoken by this server: Simple, Error,
// Integer, Bulk, Null and Array frames.
package frame

import (
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind tags the shape of a Frame.
type Kind byte

const (
	Simple  Kind = '+'
	Error   Kind = '-'
	Integer Kind = ':'
	Bulk    Kind = '$' // Null is represented as Bulk with IsNull set
	Array   Kind = '*'
)

// String renders a Kind as its wire tag character, for error messages.
func (k Kind) String() string { return string(byte(k)) }

// Frame is a tagged union over the six wire shapes.
type Frame struct {
	Kind    Kind
	Str     string  // Simple, Error
	Int     int64   // Integer
	Bulk    []byte  // Bulk (nil for Null)
	IsNull  bool    // valid only when Kind == Bulk
	Array   []Frame // Array
}

// NewSimple builds a Simple frame.
func NewSimple(s string) Frame { return Frame{Kind: Simple, Str: s} }

// NewError builds an Error frame.
func NewError(s string) Frame { return Frame{Kind: Error, Str: s} }

// NewInteger builds an Integer frame.
func NewInteger(n int64) Frame { return Frame{Kind: Integer, Int: n} }

// NewBulk builds a Bulk frame carrying raw bytes.
func NewBulk(b []byte) Frame { return Frame{Kind: Bulk, Bulk: b} }

// NewNull builds the Null bulk-string frame.
func NewNull() Frame { return Frame{Kind: Bulk, IsNull: true} }

// NewArray builds an Array frame.
func NewArray(items ...Frame) Frame { return Frame{Kind: Array, Array: items} }

// ErrIncomplete signals that buf does not yet contain a full frame;
// the caller should read more bytes and retry Parse from the start of
// the same buffer.
var ErrIncomplete = errors.New("frame: incomplete")

// ProtocolError signals that buf contains bytes that can never form a
// valid frame. The connection that produced them is doomed.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error; " + e.Reason }

func protoErr(reason string) error { return &ProtocolError{Reason: reason} }

// Parse decodes exactly one frame starting at buf[0]. It returns the
// number of bytes consumed and the decoded frame. If buf does not yet
// hold a complete frame it returns ErrIncomplete; if the bytes can
// never be valid it returns a *ProtocolError.
func Parse(buf []byte) (consumed int, f Frame, err error) {
	if len(buf) == 0 {
		return 0, Frame{}, ErrIncomplete
	}

	switch buf[0] {
	case '+':
		adv, line, ok := getLine(buf[1:])
		if !ok {
			return 0, Frame{}, ErrIncomplete
		}
		if !utf8.Valid(line) {
			return 0, Frame{}, protoErr("invalid utf-8 in simple frame")
		}
		return 1 + adv, NewSimple(string(line)), nil

	case '-':
		adv, line, ok := getLine(buf[1:])
		if !ok {
			return 0, Frame{}, ErrIncomplete
		}
		if !utf8.Valid(line) {
			return 0, Frame{}, protoErr("invalid utf-8 in error frame")
		}
		return 1 + adv, NewError(string(line)), nil

	case ':':
		adv, n, ok, err := getDecimal(buf[1:])
		if err != nil {
			return 0, Frame{}, err
		}
		if !ok {
			return 0, Frame{}, ErrIncomplete
		}
		return 1 + adv, NewInteger(n), nil

	case '$':
		adv, n, ok, err := getDecimal(buf[1:])
		if err != nil {
			return 0, Frame{}, err
		}
		if !ok {
			return 0, Frame{}, ErrIncomplete
		}
		if n == -1 {
			return 1 + adv, NewNull(), nil
		}
		if n < 0 {
			return 0, Frame{}, protoErr("invalid bulk length")
		}

		rest := buf[1+adv:]
		need := int(n) + 2
		if len(rest) < need {
			return 0, Frame{}, ErrIncomplete
		}
		if rest[n] != '\r' || rest[n+1] != '\n' {
			return 0, Frame{}, protoErr("bulk frame missing terminator")
		}
		data := make([]byte, n)
		copy(data, rest[:n])
		return 1 + adv + need, NewBulk(data), nil

	case '*':
		adv, n, ok, err := getDecimal(buf[1:])
		if err != nil {
			return 0, Frame{}, err
		}
		if !ok {
			return 0, Frame{}, ErrIncomplete
		}
		if n < 0 {
			return 0, Frame{}, protoErr("invalid array length")
		}

		total := 1 + adv
		rest := buf[total:]
		// Bound the capacity hint by what's actually buffered so a
		// claimed element count far larger than any data received so
		// far (e.g. "*999999999999\r\n" with nothing behind it) can't
		// force a huge allocation before a single element is parsed;
		// each element needs at least one buffered byte.
		hint := n
		if int64(len(rest)) < hint {
			hint = int64(len(rest))
		}
		items := make([]Frame, 0, hint)
		for i := int64(0); i < n; i++ {
			itemAdv, item, err := Parse(rest)
			if err != nil {
				return 0, Frame{}, err
			}
			total += itemAdv
			rest = rest[itemAdv:]
			items = append(items, item)
		}
		return total, Frame{Kind: Array, Array: items}, nil

	default:
		return 0, Frame{}, protoErr("invalid frame prefix '" + string(buf[0]) + "'")
	}
}

// Encode serializes f back to its wire representation.
func Encode(f Frame) []byte {
	if f.Kind == Array {
		buf := make([]byte, 0, 32)
		buf = append(buf, '*')
		buf = append(buf, []byte(strconv.FormatInt(int64(len(f.Array)), 10))...)
		buf = append(buf, '\r', '\n')
		for _, item := range f.Array {
			buf = append(buf, encodeValue(item)...)
		}
		return buf
	}
	return encodeValue(f)
}

func encodeValue(f Frame) []byte {
	switch f.Kind {
	case Simple:
		return concat('+', []byte(f.Str), crlf)
	case Error:
		return concat('-', []byte(f.Str), crlf)
	case Integer:
		return concat(':', []byte(strconv.FormatInt(f.Int, 10)), crlf)
	case Bulk:
		if f.IsNull {
			return []byte("$-1\r\n")
		}
		head := concat('$', []byte(strconv.Itoa(len(f.Bulk))), crlf)
		out := make([]byte, 0, len(head)+len(f.Bulk)+2)
		out = append(out, head...)
		out = append(out, f.Bulk...)
		out = append(out, crlf...)
		return out
	case Array:
		return Encode(f)
	default:
		panic("frame: unreachable kind")
	}
}

var crlf = []byte("\r\n")

func concat(tag byte, body, term []byte) []byte {
	out := make([]byte, 0, 1+len(body)+len(term))
	out = append(out, tag)
	out = append(out, body...)
	out = append(out, term...)
	return out
}

// getLine finds a CRLF-terminated line in buf, returning the number of
// bytes to advance (including the terminator) and the line itself
// (excluding the terminator). ok is false if no CRLF is present yet.
func getLine(buf []byte) (advance int, line []byte, ok bool) {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i + 2, buf[:i], true
		}
	}
	return 0, nil, false
}

// getDecimal parses a signed decimal line. ok is false when the line
// isn't complete yet; err is non-nil when the line is complete but not
// a valid decimal.
func getDecimal(buf []byte) (advance int, n int64, ok bool, err error) {
	adv, line, found := getLine(buf)
	if !found {
		return 0, 0, false, nil
	}
	v, perr := strconv.ParseInt(string(line), 10, 64)
	if perr != nil {
		return 0, 0, false, protoErr("invalid decimal")
	}
	return adv, v, true, nil
}
