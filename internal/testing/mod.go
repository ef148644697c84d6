// Package testing provides helpers to spin up nodes in tests.
package testing

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/hopdht/internal/vclock"
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/registry"
	"go.dedis.ch/hopdht/registry/standard"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

// TestNode is a started peer along with the socket it listens on.
type TestNode struct {
	peer.Peer
	config configTemplate
	socket transport.ClosableSocket
}

// GetRegistry returns the message registry of the node.
func (t TestNode) GetRegistry() registry.Registry {
	return t.config.registry
}

type configTemplate struct {
	id             *int64
	bootstrap      string
	requestTimeout time.Duration
	maxHops        uint
	registry       registry.Registry
	tracer         vclock.Tracer
	autoStart      bool
}

func newConfigTemplate() configTemplate {
	return configTemplate{
		requestTimeout: time.Second * 3,
		maxHops:        peer.DefaultMaxHops,
		registry:       standard.NewRegistry(),
		tracer:         vclock.NewNoop(),
		autoStart:      true,
	}
}

// Option is the type of option when creating a test node.
type Option func(*configTemplate)

// WithID sets the node identifier. By default the identifier is the port of
// the listening socket.
func WithID(id int64) Option {
	return func(ct *configTemplate) {
		ct.id = &id
	}
}

// WithBootstrap sets the address of the node to join on start.
func WithBootstrap(addr string) Option {
	return func(ct *configTemplate) {
		ct.bootstrap = addr
	}
}

// WithRequestTimeout sets the deadline of outbound calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(ct *configTemplate) {
		ct.requestTimeout = d
	}
}

// WithMaxHops sets the forward budget.
func WithMaxHops(hops uint) Option {
	return func(ct *configTemplate) {
		ct.maxHops = hops
	}
}

// WithMessageRegistry sets a specific message registry.
func WithMessageRegistry(r registry.Registry) Option {
	return func(ct *configTemplate) {
		ct.registry = r
	}
}

// WithTracer sets the vector clock tracer.
func WithTracer(tracer vclock.Tracer) Option {
	return func(ct *configTemplate) {
		ct.tracer = tracer
	}
}

// WithAutostart sets whether the node is started on creation.
func WithAutostart(autostart bool) Option {
	return func(ct *configTemplate) {
		ct.autoStart = autostart
	}
}

// NewTestNode returns a new test node listening on addr. The node is stopped
// when the test ends.
func NewTestNode(t testing.TB, f peer.Factory, trans transport.Transport,
	addr string, opts ...Option) TestNode {

	template := newConfigTemplate()
	for _, opt := range opts {
		opt(&template)
	}

	socket, err := trans.CreateSocket(addr)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(socket.GetAddress())
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	id := int64(port)
	if template.id != nil {
		id = *template.id
	}

	config := peer.Configuration{
		Identity:        types.NodeIdentity{ID: id, Host: host, Port: port},
		Socket:          socket,
		Transport:       trans,
		MessageRegistry: template.registry,
		BootstrapAddr:   template.bootstrap,
		RequestTimeout:  template.requestTimeout,
		MaxHops:         template.maxHops,
		Tracer:          template.tracer,
	}

	node := f(config)

	if template.autoStart {
		require.NoError(t, node.Start())
	}

	t.Cleanup(func() {
		node.Stop()
		socket.Close()
	})

	return TestNode{
		Peer:   node,
		config: template,
		socket: socket,
	}
}

// GetSocket returns the listening socket of the node.
func (t TestNode) GetSocket() transport.ClosableSocket {
	return t.socket
}

// WaitUntil polls cond until it holds or d elapses.
func WaitUntil(t testing.TB, d time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}

	return cond()
}
