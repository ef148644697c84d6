package integration

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	z "go.dedis.ch/hopdht/internal/testing"
	"go.dedis.ch/hopdht/internal/vclock"
	"go.dedis.ch/hopdht/peer/impl"
	"go.dedis.ch/hopdht/transport"
)

// Nodes join a chain of bootstrap nodes, then everybody joins the last node to
// get a full view. Keys are stored through every node and every node must be
// able to read every key back.
func Test_Integration_TCP_Network(t *testing.T) {
	for name, fac := range map[string]transport.Factory{"tcp": tcpFac, "channel": channelFac} {
		t.Run(name, func(t *testing.T) {
			testNetwork(t, fac(), 8)
		})
	}
}

func testNetwork(t *testing.T, transp transport.Transport, numNodes int) {
	rng := rand.New(rand.NewSource(1))

	nodes := make([]z.TestNode, numNodes)

	for i := range nodes {
		opts := []z.Option{}
		if i > 0 {
			opts = append(opts, z.WithBootstrap(nodes[i-1].GetAddr()))
		}

		nodes[i] = z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", opts...)

		ok := z.WaitUntil(t, time.Second*2, func() bool {
			return len(nodes[i].GetPeers()) >= i
		})
		require.True(t, ok, "node %d did not join", i)
	}

	// the last node joined a node knowing everybody before it
	require.Len(t, nodes[numNodes-1].GetPeers(), numNodes-1)

	for _, node := range nodes[:numNodes-1] {
		require.NoError(t, node.Join(nodes[numNodes-1].GetAddr()))
		require.Len(t, node.GetPeers(), numNodes-1)
	}

	values := make(map[int64]string)
	for len(values) < 50 {
		key := rng.Int63n(70000)
		if hasTie(nodes, key) {
			continue
		}
		values[key] = fmt.Sprintf("value %d", len(values))
	}

	wait := sync.WaitGroup{}
	wait.Add(len(values))

	i := 0
	for key, val := range values {
		go func(node z.TestNode, key int64, val string) {
			defer wait.Done()

			buf, _ := json.Marshal(val)
			err := node.Store(key, buf)
			if err != nil {
				t.Errorf("store %d: %v", key, err)
			}
		}(nodes[i%numNodes], key, val)
		i++
	}

	wait.Wait()

	ok := z.WaitUntil(t, time.Second*5, func() bool {
		total := 0
		for _, node := range nodes {
			total += len(node.GetLocalData())
		}
		return total >= len(values)
	})
	require.True(t, ok)

	for key, val := range values {
		for _, node := range nodes {
			reply, err := node.Retrieve(key)
			require.NoError(t, err)
			require.Equal(t, val, reply.String(), "key %d from node %d", key, node.GetIdentity().ID)
		}
	}
}

// hasTie tells if two nodes are at the same, minimal, distance of key. The
// owner of such a key depends on the node the request enters from.
func hasTie(nodes []z.TestNode, key int64) bool {
	best := uint64(math.MaxUint64)
	count := 0

	for _, node := range nodes {
		d := impl.Distance(node.GetIdentity().ID, key)
		switch {
		case d < best:
			best, count = d, 1
		case d == best:
			count++
		}
	}

	return count > 1
}

// A stopped peer makes forwards fail, but the forwarding node keeps serving.
func Test_Integration_Peer_Down(t *testing.T) {
	transp := tcpFac()

	nodeA := z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", z.WithID(5000),
		z.WithRequestTimeout(time.Millisecond*500))
	nodeB := z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", z.WithID(6000),
		z.WithBootstrap(nodeA.GetAddr()))

	ok := z.WaitUntil(t, time.Second, func() bool {
		return len(nodeA.GetPeers()) == 1
	})
	require.True(t, ok)

	require.NoError(t, nodeB.Stop())

	reply, err := nodeA.Retrieve(5900)
	require.Error(t, err)
	require.NotEmpty(t, reply.Error)

	require.NoError(t, nodeA.Store(5001, json.RawMessage(`"up"`)))
	reply, err = nodeA.Retrieve(5001)
	require.NoError(t, err)
	require.Equal(t, "up", reply.String())
}

// Vector clocks are written to one GoVector log per node.
func Test_Integration_Vector_Clock_Trace(t *testing.T) {
	transp := channelFac()
	dir := t.TempDir()

	prefixA := filepath.Join(dir, "nodeA")
	prefixB := filepath.Join(dir, "nodeB")

	nodeA := z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", z.WithID(5000),
		z.WithTracer(vclock.NewTracer("nodeA", prefixA)))
	nodeB := z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", z.WithID(6000),
		z.WithTracer(vclock.NewTracer("nodeB", prefixB)))

	require.NoError(t, nodeA.Join(nodeB.GetAddr()))
	require.NoError(t, nodeA.Store(5900, json.RawMessage(`1`)))

	reply, err := nodeA.Retrieve(5900)
	require.NoError(t, err)
	require.True(t, reply.Found())

	require.NoError(t, nodeA.Stop())
	require.NoError(t, nodeB.Stop())

	for _, prefix := range []string{prefixA, prefixB} {
		info, err := os.Stat(prefix + "-Log.txt")
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}
