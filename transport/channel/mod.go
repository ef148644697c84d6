package channel

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.dedis.ch/hopdht/transport"
	"golang.org/x/xerrors"
)

const backlog = 64

// NewTransport returns an in-memory transport. Connections are net.Pipe
// pairs, which makes tests independent of the host network.
func NewTransport() transport.Transport {
	return &Transport{
		sockets:  make(map[string]*Socket),
		nextPort: 1,
	}
}

// Transport implements an in-memory transport.
//
// - implements transport.Transport
type Transport struct {
	sync.Mutex
	sockets  map[string]*Socket
	nextPort int
}

// CreateSocket implements transport.Transport. A ":0" port is replaced by a
// unique port.
func (t *Transport) CreateSocket(address string) (transport.ClosableSocket, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, xerrors.Errorf("invalid address %s: %v", address, err)
	}

	t.Lock()
	defer t.Unlock()

	if port == "0" {
		port = fmt.Sprintf("%d", t.nextPort)
		t.nextPort++
	}

	addr := net.JoinHostPort(host, port)

	_, found := t.sockets[addr]
	if found {
		return nil, xerrors.Errorf("address already in use: %s", addr)
	}

	s := &Socket{
		transp:  t,
		address: addr,
		conns:   make(chan net.Conn, backlog),
		done:    make(chan struct{}),
	}
	t.sockets[addr] = s

	return s, nil
}

// Dial implements transport.Transport
func (t *Transport) Dial(address string, timeout time.Duration) (transport.Conn, error) {
	t.Lock()
	s, found := t.sockets[address]
	t.Unlock()

	if !found {
		return nil, xerrors.Errorf("failed to dial %s: connection refused", address)
	}

	client, server := net.Pipe()

	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}

	select {
	case s.conns <- server:
	case <-s.done:
		client.Close()
		server.Close()
		return nil, xerrors.Errorf("failed to dial %s: connection refused", address)
	case <-timer:
		client.Close()
		server.Close()
		return nil, transport.TimeoutErr(timeout)
	}

	// the socket may have been closed while the pipe was queued
	select {
	case <-s.done:
		client.Close()
		s.drain()
		return nil, xerrors.Errorf("failed to dial %s: connection refused", address)
	default:
	}

	return transport.NewConn(client), nil
}

func (t *Transport) remove(address string) {
	t.Lock()
	defer t.Unlock()

	delete(t.sockets, address)
}

// Socket implements an in-memory listening socket.
//
// - implements transport.ClosableSocket
type Socket struct {
	transp  *Transport
	address string
	conns   chan net.Conn
	done    chan struct{}
	once    sync.Once
}

// Accept implements transport.Socket
func (s *Socket) Accept() (transport.Conn, error) {
	select {
	case <-s.done:
		return nil, transport.ErrClosed
	default:
	}

	select {
	case conn := <-s.conns:
		return transport.NewConn(conn), nil
	case <-s.done:
		return nil, transport.ErrClosed
	}
}

// GetAddress implements transport.Socket
func (s *Socket) GetAddress() string {
	return s.address
}

// Close implements transport.ClosableSocket
func (s *Socket) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.transp.remove(s.address)
		s.drain()
	})

	return nil
}

// drain closes the pipes queued and never accepted.
func (s *Socket) drain() {
	for {
		select {
		case conn := <-s.conns:
			conn.Close()
		default:
			return
		}
	}
}
