// Package conn wraps a net.Conn with a growable read buffer so that
// frame.Parse can be retried against partially received bytes, and
// writes a Frame to the wire as one flushed unit.
package conn

import (
	"bufio"
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/LucienY01/mini-redis/internal/frame"
)

const initialBufSize = 4 * 1024

// Connection is a single TCP socket framed with the codec in package
// frame. It owns its own read buffer; callers never see partial
// frames.
type Connection struct {
	nc  net.Conn
	w   *bufio.Writer
	buf []byte // unconsumed bytes read from nc but not yet parsed
}

// New wraps nc.
func New(nc net.Conn) *Connection {
	return &Connection{
		nc:  nc,
		w:   bufio.NewWriter(nc),
		buf: make([]byte, 0, initialBufSize),
	}
}

// RemoteAddr reports the peer address, for logging.
func (c *Connection) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the underlying socket.
func (c *Connection) Close() error { return c.nc.Close() }

// ReadFrame reads the next frame. It returns (Frame{}, io.EOF) iff the
// peer closed cleanly with no unconsumed bytes buffered; it returns a
// non-EOF error if the peer closed with a truncated frame still
// buffered, or if the buffered bytes can never form a valid frame.
func (c *Connection) ReadFrame() (frame.Frame, error) {
	readBuf := make([]byte, initialBufSize)
	for {
		if len(c.buf) > 0 {
			consumed, f, err := frame.Parse(c.buf)
			if err == nil {
				c.buf = c.buf[consumed:]
				return f, nil
			}
			if !errors.Is(err, frame.ErrIncomplete) {
				return frame.Frame{}, errors.Wrap(err, "ReadFrame")
			}
		}

		n, err := c.nc.Read(readBuf)
		if n > 0 {
			// A reader is allowed to return n>0 together with a non-nil
			// err (commonly io.EOF) in the same call; the bytes are
			// still valid and may complete the frame, so retry Parse
			// against them before acting on err at all.
			c.buf = append(c.buf, readBuf[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF {
				if len(c.buf) == 0 {
					return frame.Frame{}, io.EOF
				}
				return frame.Frame{}, errors.New("connection reset by peer")
			}
			return frame.Frame{}, errors.Wrap(err, "ReadFrame")
		}
	}
}

// WriteFrame serializes f and flushes it as a single logical write so
// each logical reply hits the wire as a unit. Connection does no
// locking of its own: writes from several goroutines at once are not
// serialized.
func (c *Connection) WriteFrame(f frame.Frame) error {
	if _, err := c.w.Write(frame.Encode(f)); err != nil {
		return errors.Wrap(err, "WriteFrame")
	}
	if err := c.w.Flush(); err != nil {
		return errors.Wrap(err, "WriteFrame")
	}
	return nil
}
