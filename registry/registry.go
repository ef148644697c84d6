package registry

import (
	"encoding/json"
	"errors"

	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

// ErrUnknownType is returned when a packet carries a type tag no callback is
// registered for.
var ErrUnknownType = errors.New("unknown message type")

// Validator is implemented by messages that check their content once
// decoded. A message failing Validate is not dispatched.
type Validator interface {
	Validate() error
}

// Exec is the type of function called when a message is received. The
// returned reply, if not nil, is sent back on the connection the message came
// from.
type Exec func(msg types.Message, pkt transport.Packet) (interface{}, error)

// Registry defines the functions to register message callbacks and to
// marshal/unmarshal messages to/from wire bytes.
type Registry interface {
	// RegisterMessageCallback registers exec for messages whose type tag
	// is m.Name().
	RegisterMessageCallback(m types.Message, exec Exec)

	// ProcessPacket decodes the packet, dispatches it on its type tag and
	// returns the reply of the callback. It fails with ErrUnknownType when
	// no callback matches the tag.
	ProcessPacket(pkt transport.Packet) (interface{}, error)

	// MarshalMessage encodes a message with its type tag.
	MarshalMessage(m types.Message) ([]byte, error)

	// MarshalReply encodes an untagged reply.
	MarshalReply(v interface{}) ([]byte, error)

	// UnmarshalReply decodes a reply produced by MarshalReply.
	UnmarshalReply(data []byte, v interface{}) error

	// Processed returns, per type tag, how many messages were dispatched.
	Processed() map[string]uint
}

// Codec converts between the canonical JSON form of a message and the bytes
// put in a frame.
type Codec interface {
	Encode(obj json.RawMessage) ([]byte, error)
	Decode(data []byte) (json.RawMessage, error)
	Name() string
}
