package standard

import (
	"encoding/json"

	"go.dedis.ch/hopdht/registry"
	"golang.org/x/xerrors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewCodec returns the codec with the given name: "json" or "protobuf".
func NewCodec(name string) (registry.Codec, error) {
	switch name {
	case "", JSONCodec{}.Name():
		return JSONCodec{}, nil
	case ProtobufCodec{}.Name():
		return ProtobufCodec{}, nil
	default:
		return nil, xerrors.Errorf("unknown codec: %q", name)
	}
}

// ---------------- JSON codec ----------------

// JSONCodec puts the JSON object as is in the frame.
//
// - implements registry.Codec
type JSONCodec struct{}

// Encode implements registry.Codec
func (JSONCodec) Encode(obj json.RawMessage) ([]byte, error) {
	return obj, nil
}

// Decode implements registry.Codec
func (JSONCodec) Decode(data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, xerrors.New("invalid json payload")
	}

	return json.RawMessage(data), nil
}

// Name implements registry.Codec
func (JSONCodec) Name() string {
	return "json"
}

// ---------------- Protobuf codec ----------------

// ProtobufCodec carries the JSON object as a google.protobuf.Struct.
//
// - implements registry.Codec
type ProtobufCodec struct{}

// Encode implements registry.Codec
func (ProtobufCodec) Encode(obj json.RawMessage) ([]byte, error) {
	var st structpb.Struct

	err := protojson.Unmarshal(obj, &st)
	if err != nil {
		return nil, xerrors.Errorf("failed to convert to struct: %v", err)
	}

	return proto.Marshal(&st)
}

// Decode implements registry.Codec
func (ProtobufCodec) Decode(data []byte) (json.RawMessage, error) {
	var st structpb.Struct

	err := proto.Unmarshal(data, &st)
	if err != nil {
		return nil, xerrors.Errorf("protobuf unmarshal: %v", err)
	}

	obj, err := protojson.Marshal(&st)
	if err != nil {
		return nil, xerrors.Errorf("failed to convert from struct: %v", err)
	}

	return obj, nil
}

// Name implements registry.Codec
func (ProtobufCodec) Name() string {
	return "protobuf"
}
