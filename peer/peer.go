package peer

import (
	"time"

	"go.dedis.ch/hopdht/internal/vclock"
	"go.dedis.ch/hopdht/registry"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

// Peer defines the interface of a DHT node.
type Peer interface {
	Service
	DHT
}

// Factory is the type of function we are using to create new instances of
// peers.
type Factory func(Configuration) Peer

// Configuration if the struct that will contain the configuration argument
// when creating a peer. This struct will evolve.
type Configuration struct {
	// Identity is the identity advertised to other nodes. Identity.ID is the
	// routing coordinate of the node.
	Identity types.NodeIdentity

	// Socket is the listening socket. The peer takes ownership of it and
	// closes it on Stop.
	Socket transport.ClosableSocket

	// Transport is used to reach other nodes.
	Transport transport.Transport

	MessageRegistry registry.Registry

	// BootstrapAddr is the host:port of a node to JOIN on Start. Empty
	// means the node starts alone.
	BootstrapAddr string

	// RequestTimeout bounds every outbound call and the read of inbound
	// requests. 0 means no deadline.
	RequestTimeout time.Duration

	// MaxHops is the number of times a STORE or RETRIEVE may be forwarded.
	MaxHops uint

	// Tracer records routing events with vector clocks. Use vclock.NewNoop
	// to disable it.
	Tracer vclock.Tracer
}

// Service defines the functions for the basic operations of a peer.
type Service interface {
	// Start starts the node. It should, among other things, start listening
	// on its address using the socket and join the bootstrap node if any.
	//
	// - Start must not block
	Start() error

	// Stop stops the node. This function must block until all goroutines are
	// done.
	Stop() error
}
