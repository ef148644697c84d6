package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NotFound is the result a node answers when it is authoritative for a key
// it does not hold.
const NotFound = "NOT FOUND"

// ErrInvalidMessage is returned when a request misses a field or carries a
// value that cannot be acted upon.
var ErrInvalidMessage = errors.New("invalid message")

// nullValue is the value of a STORE that carries none.
var nullValue = json.RawMessage("null")

// NodeIdentity identifies a node. ID is the only routing coordinate, Host
// and Port tell how to reach it.
type NodeIdentity struct {
	ID   int64  `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the dialable host:port of the node.
func (n NodeIdentity) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// JoinRequest asks the receiver to add Node to its peer table. The receiver
// replies with a PeersReply.
//
// - implements types.Message
type JoinRequest struct {
	RequestID string       `json:"id,omitempty"`
	Node      NodeIdentity `json:"node"`
	Trace     []byte       `json:"trace,omitempty"`
}

// StoreRequest asks the receiver to keep or forward a key/value pair. There
// is no reply.
//
// - implements types.Message
type StoreRequest struct {
	RequestID string          `json:"id,omitempty"`
	Key       int64           `json:"key"`
	Value     json.RawMessage `json:"value"`
	// Hops counts how many times the request has been forwarded.
	Hops  uint   `json:"hops,omitempty"`
	Trace []byte `json:"trace,omitempty"`
}

// RetrieveRequest asks the receiver for the value of Key. The receiver
// replies with a RetrieveReply.
//
// - implements types.Message
type RetrieveRequest struct {
	RequestID string `json:"id,omitempty"`
	Key       int64  `json:"key"`
	Hops      uint   `json:"hops,omitempty"`
	Trace     []byte `json:"trace,omitempty"`
}

// PeersReply answers a JoinRequest with the known peers plus the replying
// node itself.
type PeersReply struct {
	Type  string         `json:"type"`
	Peers []NodeIdentity `json:"peers"`
}

// RetrieveReply answers a RetrieveRequest. Result holds either the value or
// the JSON string "NOT FOUND". Error is set when the lookup could not
// complete, in which case Result is null.
type RetrieveReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}
