package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	z "go.dedis.ch/hopdht/internal/testing"
	"go.dedis.ch/hopdht/peer/impl"
	"go.dedis.ch/hopdht/transport/channel"
	"go.dedis.ch/hopdht/types"
)

func newServer(t *testing.T) (*httptest.Server, z.TestNode, z.TestNode) {
	transp := channel.NewTransport()

	nodeA := z.NewTestNode(t, impl.NewPeer, transp, "127.0.0.1:0", z.WithID(5000))
	nodeB := z.NewTestNode(t, impl.NewPeer, transp, "127.0.0.1:0", z.WithID(6000))
	nodeA.AddPeer(nodeB.GetIdentity())

	logger := zerolog.Nop()
	srv := httptest.NewServer(NewDHT(nodeA, &logger).Mux())
	t.Cleanup(srv.Close)

	return srv, nodeA, nodeB
}

func TestDHT_Peers(t *testing.T) {
	srv, _, nodeB := newServer(t)

	resp, err := http.Get(srv.URL + "/peers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var peers []types.NodeIdentity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&peers))
	require.Equal(t, []types.NodeIdentity{nodeB.GetIdentity()}, peers)
}

func TestDHT_StoreGet(t *testing.T) {
	srv, _, nodeB := newServer(t)

	// 5900 is closer to 6000, the value lands on B
	resp, err := http.Post(srv.URL+"/store", "application/json",
		strings.NewReader(`{"key":5900,"value":{"a":[1,2]}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.True(t, z.WaitUntil(t, time.Second*2, func() bool {
		_, ok := nodeB.GetLocalData()[5900]
		return ok
	}))

	resp, err = http.Get(srv.URL + "/get?key=5900")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply types.RetrieveReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.JSONEq(t, `{"a":[1,2]}`, string(reply.Result))
}

func TestDHT_GetNotFound(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/get?key=5001")
	require.NoError(t, err)
	defer resp.Body.Close()

	var reply types.RetrieveReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.True(t, reply.IsNotFound())
}

func TestDHT_MyData(t *testing.T) {
	srv, nodeA, _ := newServer(t)

	require.NoError(t, nodeA.Store(5050, json.RawMessage(`"hello"`)))

	resp, err := http.Get(srv.URL + "/mydata")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"5050":"hello"}`, string(body))
}

func TestDHT_BadRequests(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/get?key=abc")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/store", "application/json", strings.NewReader(`{"key":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/store", "application/json", strings.NewReader(`nope`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/peers", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
