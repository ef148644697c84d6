package standard

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/hopdht/registry"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

func TestRegistry_MarshalMessage(t *testing.T) {
	r := NewRegistry()

	buf, err := r.MarshalMessage(types.StoreRequest{Key: 5050, Value: json.RawMessage(`"hello"`)})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"STORE","key":5050,"value":"hello"}`, string(buf))

	buf, err = r.MarshalMessage(types.JoinRequest{Node: types.NodeIdentity{ID: 1, Host: "h", Port: 2}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"JOIN","node":{"id":1,"host":"h","port":2}}`, string(buf))
}

func TestRegistry_ProcessPacket(t *testing.T) {
	r := NewRegistry()

	var got *types.RetrieveRequest
	r.RegisterMessageCallback(&types.RetrieveRequest{}, func(msg types.Message, pkt transport.Packet) (interface{}, error) {
		got = msg.(*types.RetrieveRequest)
		return types.NotFoundReply(), nil
	})

	reply, err := r.ProcessPacket(transport.Packet{Data: []byte(`{"type":"RETRIEVE","key":7,"hops":2}`)})
	require.NoError(t, err)
	require.Equal(t, int64(7), got.Key)
	require.Equal(t, uint(2), got.Hops)
	require.True(t, reply.(types.RetrieveReply).IsNotFound())

	_, err = r.ProcessPacket(transport.Packet{Data: []byte(`{"type":"STORE","key":7}`)})
	require.True(t, errors.Is(err, registry.ErrUnknownType))

	_, err = r.ProcessPacket(transport.Packet{Data: []byte(`{`)})
	require.Error(t, err)

	require.Equal(t, map[string]uint{"RETRIEVE": 1}, r.Processed())
}

func TestRegistry_RejectsIncompleteRequests(t *testing.T) {
	r := NewRegistry()

	calls := 0
	exec := func(msg types.Message, pkt transport.Packet) (interface{}, error) {
		calls++
		return nil, nil
	}

	r.RegisterMessageCallback(&types.JoinRequest{}, exec)
	r.RegisterMessageCallback(&types.StoreRequest{}, exec)
	r.RegisterMessageCallback(&types.RetrieveRequest{}, exec)

	bad := []string{
		`{"type":"JOIN"}`,
		`{"type":"JOIN","node":{"id":7,"host":"","port":7}}`,
		`{"type":"JOIN","node":{"id":7,"host":"127.0.0.1","port":0}}`,
		`{"type":"JOIN","node":{"id":7,"host":"127.0.0.1","port":70000}}`,
		`{"type":"STORE","value":1}`,
		`{"type":"STORE","key":null,"value":1}`,
		`{"type":"RETRIEVE"}`,
	}

	for _, data := range bad {
		_, err := r.ProcessPacket(transport.Packet{Data: []byte(data)})
		require.True(t, errors.Is(err, types.ErrInvalidMessage), data)
	}

	require.Equal(t, 0, calls)
	require.Empty(t, r.Processed())
}

func TestRegistry_StoreWithoutValue(t *testing.T) {
	r := NewRegistry()

	var got *types.StoreRequest
	r.RegisterMessageCallback(&types.StoreRequest{}, func(msg types.Message, pkt transport.Packet) (interface{}, error) {
		got = msg.(*types.StoreRequest)
		return nil, nil
	})

	_, err := r.ProcessPacket(transport.Packet{Data: []byte(`{"type":"STORE","key":0}`)})
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Key)
	require.Equal(t, "null", string(got.Value))
}

func TestRegistry_Reply(t *testing.T) {
	for _, codec := range []registry.Codec{JSONCodec{}, ProtobufCodec{}} {
		r := NewRegistryWithCodec(codec)

		buf, err := r.MarshalReply(types.PeersReply{
			Type:  "PEERS",
			Peers: []types.NodeIdentity{{ID: 6000, Host: "127.0.0.1", Port: 6000}},
		})
		require.NoError(t, err, codec.Name())

		var peers types.PeersReply
		require.NoError(t, r.UnmarshalReply(buf, &peers), codec.Name())
		require.Equal(t, "PEERS", peers.Type)
		require.Equal(t, int64(6000), peers.Peers[0].ID)
	}
}

func TestProtobufCodec(t *testing.T) {
	codec := ProtobufCodec{}

	data, err := codec.Encode(json.RawMessage(`{"type":"STORE","key":5050,"value":{"a":[1,"b",null,true]}}`))
	require.NoError(t, err)

	obj, err := codec.Decode(data)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"STORE","key":5050,"value":{"a":[1,"b",null,true]}}`, string(obj))

	_, err = codec.Encode(json.RawMessage(`[1]`))
	require.Error(t, err)

	_, err = codec.Decode([]byte{0xff, 0xff})
	require.Error(t, err)
}

func TestNewCodec(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)
	require.Equal(t, "json", codec.Name())

	codec, err = NewCodec("protobuf")
	require.NoError(t, err)
	require.Equal(t, "protobuf", codec.Name())

	_, err = NewCodec("xml")
	require.Error(t, err)
}
