package peer

import (
	"encoding/json"

	"go.dedis.ch/hopdht/types"
)

// DHT defines the single-hop key/value operations of a node.
type DHT interface {
	// Join sends a JOIN to the node at address and adds every peer it
	// answers with, the bootstrap node included.
	Join(address string) error

	// Store runs the STORE protocol: the value is kept locally if this node
	// is at least as close to key as its nearest peer, otherwise it is
	// forwarded to that peer without waiting for a reply.
	Store(key int64, value json.RawMessage) error

	// Retrieve runs the RETRIEVE protocol. A local value always wins; an
	// authoritative miss yields the NOT FOUND result; otherwise the request
	// is forwarded and its reply is returned as is.
	Retrieve(key int64) (types.RetrieveReply, error)

	// GetIdentity returns the identity of this node.
	GetIdentity() types.NodeIdentity

	// GetPeers returns the peer table in insertion order.
	GetPeers() []types.NodeIdentity

	// AddPeer inserts peers into the peer table. Unknown ids are appended,
	// the node's own id and known ids are ignored.
	AddPeer(peers ...types.NodeIdentity)

	// GetLocalData returns a copy of the local store.
	GetLocalData() map[int64]json.RawMessage

	// GetAddr returns the address of the listening socket.
	GetAddr() string
}

// DefaultMaxHops is the forward budget used when none is configured.
const DefaultMaxHops = 16
