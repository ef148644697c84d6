package tcp

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.dedis.ch/hopdht/transport"
	"golang.org/x/xerrors"
)

// NewTCP returns a new tcp transport implementation.
func NewTCP() transport.Transport {
	return &TCP{}
}

// TCP implements a transport layer using TCP. Every exchange uses its own
// connection.
//
// - implements transport.Transport
type TCP struct {
}

// CreateSocket implements transport.Transport
func (t *TCP) CreateSocket(address string) (transport.ClosableSocket, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen on %s: %v", address, err)
	}

	return &Socket{ln: ln}, nil
}

// Dial implements transport.Transport
func (t *TCP) Dial(address string, timeout time.Duration) (transport.Conn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, transport.TimeoutErr(timeout)
		}
		return nil, xerrors.Errorf("failed to dial %s: %v", address, err)
	}

	return transport.NewConn(conn), nil
}

// Socket implements a listening socket using TCP.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	ln net.Listener

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// Accept implements transport.Socket
func (s *Socket) Accept() (transport.Conn, error) {
	conn, err := s.ln.Accept()
	if err != nil {
		if s.isClosed() || errors.Is(err, net.ErrClosed) {
			return nil, transport.ErrClosed
		}
		return nil, err
	}

	return transport.NewConn(conn), nil
}

// GetAddress implements transport.Socket. It returns the address assigned. Can
// be useful in the case one provided a :0 address, which makes the system use a
// random free port.
func (s *Socket) GetAddress() string {
	return s.ln.Addr().String()
}

// Close implements transport.ClosableSocket. Closing twice is a no-op.
func (s *Socket) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		err = s.ln.Close()
	})

	return err
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
