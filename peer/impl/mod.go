package impl

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/hopdht/internal/vclock"
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
	"golang.org/x/xerrors"
)

// NewPeer creates a new peer
func NewPeer(conf peer.Configuration) peer.Peer {
	if conf.MaxHops == 0 {
		conf.MaxHops = peer.DefaultMaxHops
	}
	if conf.Tracer == nil {
		conf.Tracer = vclock.NewNoop()
	}

	n := &node{
		conf:  conf,
		peers: NewPeerTable(conf.Identity.ID),
		store: NewSafeValueMap(),
		done:  make(chan struct{}),
	}

	conf.MessageRegistry.RegisterMessageCallback(&types.JoinRequest{}, n.JoinRequestExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.StoreRequest{}, n.StoreRequestExec)
	conf.MessageRegistry.RegisterMessageCallback(&types.RetrieveRequest{}, n.RetrieveRequestExec)

	return n
}

// node implements a single-hop lookup DHT node
//
// - implements peer.Peer
type node struct {
	peer.Peer

	conf  peer.Configuration
	peers *PeerTable
	store *SafeValueMap

	sync.Mutex
	running bool
	stopped bool
	done    chan struct{}
	workers sync.WaitGroup
}

// Start implements peer.Service
func (n *node) Start() error {
	n.Lock()
	defer n.Unlock()

	if n.running {
		return xerrors.New("peer already started")
	}
	if n.stopped {
		return xerrors.New("peer stopped, its socket is closed")
	}
	n.running = true

	log.Info().Msgf("[peer.Peer.Start] node %d listening on %s", n.conf.Identity.ID, n.GetAddr())

	go n.acceptLoop()

	if n.conf.BootstrapAddr != "" {
		n.workers.Add(1)
		go func() {
			defer n.workers.Done()

			err := n.Join(n.conf.BootstrapAddr)
			if err != nil {
				log.Error().Msgf("<[peer.Peer.Start] Join error>: <%s>", err.Error())
			}
		}()
	}

	return nil
}

// Stop implements peer.Service. It closes the listening socket and waits for
// the accept loop, the in-flight handlers and the bootstrap join. A stopped
// node cannot be started again.
func (n *node) Stop() error {
	n.Lock()
	if !n.running {
		n.Unlock()
		return nil
	}
	n.running = false
	n.stopped = true
	n.Unlock()

	err := n.conf.Socket.Close()
	<-n.done
	n.workers.Wait()

	n.conf.Tracer.Flush()

	if err != nil {
		return xerrors.Errorf("failed to close socket: %v", err)
	}

	return nil
}

// acceptLoop runs one handler per inbound connection until the socket is
// closed.
func (n *node) acceptLoop() {
	defer close(n.done)

	for {
		conn, err := n.conf.Socket.Accept()
		if errors.Is(err, transport.ErrClosed) {
			return
		}
		if err != nil {
			log.Error().Msgf("<[peer.Peer.acceptLoop] Accept error>: <%s>", err.Error())
			continue
		}

		n.workers.Add(1)
		go func() {
			defer n.workers.Done()
			n.handleConn(conn)
		}()
	}
}

// handleConn reads one request, dispatches it and writes the reply if the
// request kind has one. Any failure only aborts this connection.
func (n *node) handleConn(conn transport.Conn) {
	defer conn.Close()

	pkt, err := conn.Recv(n.conf.RequestTimeout)
	if err != nil {
		log.Warn().Msgf("<[peer.Peer.handleConn] Recv from %s error>: <%s>", conn.RemoteAddr(), err.Error())
		return
	}

	reply, err := n.conf.MessageRegistry.ProcessPacket(pkt)
	if err != nil {
		log.Warn().Msgf("<[peer.Peer.handleConn] ProcessPacket error>: <%s>", err.Error())
		return
	}

	if reply == nil {
		return
	}

	buf, err := n.conf.MessageRegistry.MarshalReply(reply)
	if err != nil {
		log.Error().Msgf("<[peer.Peer.handleConn] MarshalReply error>: <%s>", err.Error())
		return
	}

	err = conn.Send(transport.Packet{Data: buf}, n.conf.RequestTimeout)
	if err != nil {
		log.Warn().Msgf("<[peer.Peer.handleConn] Send to %s error>: <%s>", conn.RemoteAddr(), err.Error())
	}
}

// call sends msg to address on a fresh connection. If reply is not nil it
// blocks for the response and decodes it into reply. Every step is bounded by
// the configured request timeout.
func (n *node) call(address string, msg types.Message, reply interface{}) error {
	buf, err := n.conf.MessageRegistry.MarshalMessage(msg)
	if err != nil {
		return err
	}

	conn, err := n.conf.Transport.Dial(address, n.conf.RequestTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.Send(transport.Packet{Data: buf}, n.conf.RequestTimeout)
	if err != nil {
		return xerrors.Errorf("failed to send %s: %w", msg.Name(), err)
	}

	if reply == nil {
		return nil
	}

	pkt, err := conn.Recv(n.conf.RequestTimeout)
	if err != nil {
		return xerrors.Errorf("failed to receive reply to %s: %w", msg.Name(), err)
	}

	return n.conf.MessageRegistry.UnmarshalReply(pkt.Data, reply)
}

// GetIdentity implements peer.DHT
func (n *node) GetIdentity() types.NodeIdentity {
	return n.conf.Identity
}

// GetPeers implements peer.DHT
func (n *node) GetPeers() []types.NodeIdentity {
	return n.peers.All()
}

// AddPeer implements peer.DHT
func (n *node) AddPeer(peers ...types.NodeIdentity) {
	for _, p := range peers {
		if n.peers.Add(p) {
			log.Info().Msgf("[peer.Peer.AddPeer] node %d added peer %d (%s)", n.conf.Identity.ID, p.ID, p.Addr())
		}
	}
}

// GetLocalData implements peer.DHT
func (n *node) GetLocalData() map[int64]json.RawMessage {
	return n.store.All()
}

// GetAddr implements peer.DHT
func (n *node) GetAddr() string {
	return n.conf.Socket.GetAddress()
}
