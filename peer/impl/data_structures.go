package impl

import (
	"encoding/json"
	"sync"

	"go.dedis.ch/hopdht/types"
)

// Distance returns |a - b|. The difference is computed on uint64 so that it
// cannot overflow for any pair of int64.
func Distance(a, b int64) uint64 {
	if a > b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

/* ========== PeerTable ========== */

// PeerTable is the thread-safe set of known peers, unique by id and kept in
// insertion order. It never contains the owner and never shrinks.
type PeerTable struct {
	sync.RWMutex
	self  int64
	peers []types.NodeIdentity
	ids   map[int64]struct{}
}

// NewPeerTable returns an empty table owned by the node with id self.
func NewPeerTable(self int64) *PeerTable {
	return &PeerTable{
		self: self,
		ids:  make(map[int64]struct{}),
	}
}

// Add inserts peer unless it is the owner or its id is already known.
// Returns true if the peer was inserted.
func (t *PeerTable) Add(peer types.NodeIdentity) bool {
	if peer.ID == t.self {
		return false
	}

	t.Lock()
	defer t.Unlock()

	_, found := t.ids[peer.ID]
	if found {
		return false
	}

	t.ids[peer.ID] = struct{}{}
	t.peers = append(t.peers, peer)

	return true
}

// Nearest returns the peer with the smallest distance to key. Among equally
// distant peers the first inserted wins. Returns false if the table is
// empty.
func (t *PeerTable) Nearest(key int64) (types.NodeIdentity, bool) {
	t.RLock()
	defer t.RUnlock()

	if len(t.peers) == 0 {
		return types.NodeIdentity{}, false
	}

	best := t.peers[0]
	bestDist := Distance(best.ID, key)

	for _, p := range t.peers[1:] {
		d := Distance(p.ID, key)
		if d < bestDist {
			best, bestDist = p, d
		}
	}

	return best, true
}

// All returns a copy of the peers in insertion order.
func (t *PeerTable) All() []types.NodeIdentity {
	t.RLock()
	defer t.RUnlock()

	res := make([]types.NodeIdentity, len(t.peers))
	copy(res, t.peers)

	return res
}

// Len returns the number of peers.
func (t *PeerTable) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.peers)
}

/* ========== SafeValueMap ========== */

// SafeValueMap is the thread-safe local store mapping keys to opaque JSON
// values.
type SafeValueMap struct {
	sync.RWMutex
	values map[int64]json.RawMessage
}

// NewSafeValueMap returns an empty store.
func NewSafeValueMap() *SafeValueMap {
	return &SafeValueMap{values: make(map[int64]json.RawMessage)}
}

// Put sets the value of key, replacing any previous one. An empty value is
// kept as null.
func (m *SafeValueMap) Put(key int64, val json.RawMessage) {
	if len(val) == 0 {
		val = json.RawMessage("null")
	}

	cp := make(json.RawMessage, len(val))
	copy(cp, val)

	m.Lock()
	defer m.Unlock()

	m.values[key] = cp
}

// Get returns the value of key.
func (m *SafeValueMap) Get(key int64) (json.RawMessage, bool) {
	m.RLock()
	defer m.RUnlock()

	val, ok := m.values[key]
	return val, ok
}

// Contains tells if key is stored.
func (m *SafeValueMap) Contains(key int64) bool {
	m.RLock()
	defer m.RUnlock()

	_, ok := m.values[key]
	return ok
}

// All returns a copy of the store.
func (m *SafeValueMap) All() map[int64]json.RawMessage {
	m.RLock()
	defer m.RUnlock()

	res := make(map[int64]json.RawMessage, len(m.values))
	for k, v := range m.values {
		res[k] = v
	}

	return res
}
