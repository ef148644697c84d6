package transport

import (
	"errors"
	"fmt"
	"time"
)

// Factory defines the general function to create a transport.
type Factory func() Transport

// Transport defines the primitives to open a listening socket and to reach a
// remote one. Every exchange uses its own short-lived connection: one request
// frame and at most one response frame.
type Transport interface {
	// CreateSocket returns a socket listening on address. Use port 0 to let
	// the system pick a free one.
	CreateSocket(address string) (ClosableSocket, error)

	// Dial opens a connection to address. A zero timeout blocks until the
	// remote side accepts or refuses.
	Dial(address string, timeout time.Duration) (Conn, error)
}

// Socket describes the primitives of a listening socket.
type Socket interface {
	// Accept blocks until a connection arrives. It returns ErrClosed once the
	// socket is closed.
	Accept() (Conn, error)

	// GetAddress returns the address assigned to the socket.
	GetAddress() string
}

// ClosableSocket is a Socket that can be closed.
type ClosableSocket interface {
	Socket

	// Close stops listening. Pending Accept calls return ErrClosed.
	Close() error
}

// Conn is a connection carrying framed packets.
type Conn interface {
	// Send writes one frame. A zero timeout means no deadline.
	Send(pkt Packet, timeout time.Duration) error

	// Recv blocks until one frame is read or the timeout is reached, in
	// which case it returns a TimeoutErr. A zero timeout means no deadline.
	Recv(timeout time.Duration) (Packet, error)

	// RemoteAddr returns the address of the other end.
	RemoteAddr() string

	Close() error
}

// Packet is one frame received or sent on a connection.
type Packet struct {
	// Source is the remote address of the connection the packet came from.
	// It is empty on outbound packets.
	Source string
	Data   []byte
}

// Copy returns a copy of the packet.
func (p Packet) Copy() Packet {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)

	return Packet{Source: p.Source, Data: data}
}

// ErrClosed is returned by a socket that has been closed.
var ErrClosed = errors.New("socket closed")

// TimeoutErr is returned when a deadline is reached.
type TimeoutErr time.Duration

// Error implements error.
func (err TimeoutErr) Error() string {
	return fmt.Sprintf("timeout reached after %d", err)
}

// Is implements errors.Is. Any TimeoutErr matches.
func (TimeoutErr) Is(err error) bool {
	_, ok := err.(TimeoutErr)
	return ok
}
