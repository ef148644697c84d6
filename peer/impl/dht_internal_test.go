package impl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/registry/standard"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

func newTestNode(id int64) *node {
	conf := peer.Configuration{
		Identity:        identity(id),
		MessageRegistry: standard.NewRegistry(),
	}

	return NewPeer(conf).(*node)
}

func TestRoute_NoPeers(t *testing.T) {
	n := newTestNode(5000)

	for _, key := range []int64{-1 << 63, 0, 5000, 1<<63 - 1} {
		_, authoritative := n.route(key)
		require.True(t, authoritative)
	}
}

func TestRoute(t *testing.T) {
	n := newTestNode(5000)
	n.AddPeer(identity(6000))

	// my_dist=900, peer_dist=100
	p, authoritative := n.route(5900)
	require.False(t, authoritative)
	require.Equal(t, int64(6000), p.ID)

	// tie at 5500
	_, authoritative = n.route(5500)
	require.True(t, authoritative)

	_, authoritative = n.route(5499)
	require.True(t, authoritative)

	p, authoritative = n.route(5501)
	require.False(t, authoritative)
	require.Equal(t, int64(6000), p.ID)
}

func TestJoinRequestExec(t *testing.T) {
	n := newTestNode(6000)
	n.AddPeer(identity(7000))

	reply, err := n.JoinRequestExec(&types.JoinRequest{Node: identity(5000)}, transportPacket())
	require.NoError(t, err)

	peers := reply.(types.PeersReply)
	require.Equal(t, "PEERS", peers.Type)
	require.Equal(t, []types.NodeIdentity{identity(7000), identity(5000), identity(6000)}, peers.Peers)

	// joining with our own identity does not add it
	_, err = n.JoinRequestExec(&types.JoinRequest{Node: identity(6000)}, transportPacket())
	require.NoError(t, err)
	require.Len(t, n.GetPeers(), 2)

	_, err = n.JoinRequestExec(&types.StoreRequest{}, transportPacket())
	require.Error(t, err)
}

func TestRetrieveRequestExec_Local(t *testing.T) {
	n := newTestNode(5000)

	n.store.Put(42, []byte(`"x"`))

	reply, err := n.RetrieveRequestExec(&types.RetrieveRequest{Key: 42}, transportPacket())
	require.NoError(t, err)
	require.Equal(t, `"x"`, string(reply.(types.RetrieveReply).Result))

	reply, err = n.RetrieveRequestExec(&types.RetrieveRequest{Key: 43}, transportPacket())
	require.NoError(t, err)
	require.True(t, reply.(types.RetrieveReply).IsNotFound())
}

func transportPacket() transport.Packet {
	return transport.Packet{Source: "test"}
}
