package standard

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/hopdht/registry"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
	"golang.org/x/xerrors"
)

// NewRegistry returns a new initialized registry using the JSON codec.
func NewRegistry() registry.Registry {
	return NewRegistryWithCodec(JSONCodec{})
}

// NewRegistryWithCodec returns a new initialized registry using the given
// codec.
func NewRegistryWithCodec(codec registry.Codec) registry.Registry {
	return &Registry{
		codec:     codec,
		callbacks: make(map[string]entry),
		processed: make(map[string]uint),
	}
}

type entry struct {
	msg  types.Message
	exec registry.Exec
}

// Registry implements a standard registry. Messages are JSON objects whose
// "type" field selects the callback.
//
// - implements registry.Registry
type Registry struct {
	sync.Mutex

	codec     registry.Codec
	callbacks map[string]entry
	processed map[string]uint
}

// RegisterMessageCallback implements registry.Registry
func (r *Registry) RegisterMessageCallback(m types.Message, exec registry.Exec) {
	r.Lock()
	defer r.Unlock()

	r.callbacks[m.Name()] = entry{msg: m, exec: exec}
}

// ProcessPacket implements registry.Registry
func (r *Registry) ProcessPacket(pkt transport.Packet) (interface{}, error) {
	obj, err := r.codec.Decode(pkt.Data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode packet: %v", err)
	}

	var tag struct {
		Type string `json:"type"`
	}

	err = json.Unmarshal(obj, &tag)
	if err != nil {
		return nil, xerrors.Errorf("failed to read type tag: %v", err)
	}

	r.Lock()
	e, found := r.callbacks[tag.Type]
	r.Unlock()

	if !found {
		return nil, xerrors.Errorf("%q: %w", tag.Type, registry.ErrUnknownType)
	}

	msg := e.msg.NewEmpty()

	err = json.Unmarshal(obj, msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal %s: %w", tag.Type, err)
	}

	v, ok := msg.(registry.Validator)
	if ok {
		err = v.Validate()
		if err != nil {
			return nil, xerrors.Errorf("rejected %s: %w", tag.Type, err)
		}
	}

	log.Debug().Msgf("[registry.Registry.ProcessPacket] from %s: %s", pkt.Source, msg)

	r.Lock()
	r.processed[tag.Type]++
	r.Unlock()

	return e.exec(msg, pkt)
}

// MarshalMessage implements registry.Registry. The "type" field is added to
// the JSON object of the message.
func (r *Registry) MarshalMessage(m types.Message) ([]byte, error) {
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal %s: %v", m.Name(), err)
	}

	fields := make(map[string]json.RawMessage)

	err = json.Unmarshal(buf, &fields)
	if err != nil {
		return nil, xerrors.Errorf("%s is not a json object: %v", m.Name(), err)
	}

	tag, err := json.Marshal(m.Name())
	if err != nil {
		return nil, err
	}

	fields["type"] = tag

	buf, err = json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	return r.codec.Encode(buf)
}

// MarshalReply implements registry.Registry
func (r *Registry) MarshalReply(v interface{}) ([]byte, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal reply: %v", err)
	}

	return r.codec.Encode(buf)
}

// UnmarshalReply implements registry.Registry
func (r *Registry) UnmarshalReply(data []byte, v interface{}) error {
	obj, err := r.codec.Decode(data)
	if err != nil {
		return xerrors.Errorf("failed to decode reply: %v", err)
	}

	err = json.Unmarshal(obj, v)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal reply: %v", err)
	}

	return nil
}

// Processed implements registry.Registry
func (r *Registry) Processed() map[string]uint {
	r.Lock()
	defer r.Unlock()

	res := make(map[string]uint, len(r.processed))
	for name, count := range r.processed {
		res[name] = count
	}

	return res
}
