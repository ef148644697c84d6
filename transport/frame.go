package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/xerrors"
)

// MaxFrameSize bounds the payload of a single frame.
const MaxFrameSize = 1 << 20

const headerSize = 4

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes data prefixed with its big-endian uint32 length.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	bw := bufio.NewWriter(w)

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	_, err := bw.Write(header[:])
	if err != nil {
		return err
	}

	_, err = bw.Write(data)
	if err != nil {
		return err
	}

	return bw.Flush()
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte

	_, err := io.ReadFull(r, header[:])
	if err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, xerrors.Errorf("frame of %d bytes: %w", n, ErrFrameTooLarge)
	}

	buf := make([]byte, n)

	_, err = io.ReadFull(r, buf)
	if err != nil {
		return nil, xerrors.Errorf("failed to read frame body: %w", err)
	}

	return buf, nil
}

// NewConn wraps a stream connection into a framed Conn.
func NewConn(conn net.Conn) Conn {
	return &framedConn{conn: conn}
}

// framedConn implements transport.Conn on top of any net.Conn.
type framedConn struct {
	conn net.Conn
}

// Send implements transport.Conn
func (c *framedConn) Send(pkt Packet, timeout time.Duration) error {
	c.conn.SetWriteDeadline(deadline(timeout))

	err := WriteFrame(c.conn, pkt.Data)
	if err != nil {
		if isTimeout(err) {
			return TimeoutErr(timeout)
		}
		return err
	}

	return nil
}

// Recv implements transport.Conn
func (c *framedConn) Recv(timeout time.Duration) (Packet, error) {
	c.conn.SetReadDeadline(deadline(timeout))

	data, err := ReadFrame(c.conn)
	if err != nil {
		if isTimeout(err) {
			return Packet{}, TimeoutErr(timeout)
		}
		return Packet{}, err
	}

	return Packet{Source: c.RemoteAddr(), Data: data}, nil
}

// RemoteAddr implements transport.Conn
func (c *framedConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close implements transport.Conn
func (c *framedConn) Close() error {
	return c.conn.Close()
}

func deadline(timeout time.Duration) time.Time {
	if timeout == 0 {
		return time.Time{}
	}

	return time.Now().Add(timeout)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return os.IsTimeout(err)
}
