package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/xerrors"
)

// -----------------------------------------------------------------------------
// JoinRequest

// NewEmpty implements types.Message.
func (j JoinRequest) NewEmpty() Message {
	return &JoinRequest{}
}

// Name implements types.Message.
func (j JoinRequest) Name() string {
	return "JOIN"
}

// String implements types.Message.
func (j JoinRequest) String() string {
	return fmt.Sprintf("join{%d %s}", j.Node.ID, j.Node.Addr())
}

// HTML implements types.Message.
func (j JoinRequest) HTML() string {
	return j.String()
}

// Validate rejects a JOIN whose node cannot be dialed.
func (j JoinRequest) Validate() error {
	if j.Node.Host == "" {
		return xerrors.Errorf("join without node host: %w", ErrInvalidMessage)
	}

	if j.Node.Port <= 0 || j.Node.Port > 65535 {
		return xerrors.Errorf("join with node port %d: %w", j.Node.Port, ErrInvalidMessage)
	}

	return nil
}

// -----------------------------------------------------------------------------
// StoreRequest

// NewEmpty implements types.Message.
func (s StoreRequest) NewEmpty() Message {
	return &StoreRequest{}
}

// Name implements types.Message.
func (s StoreRequest) Name() string {
	return "STORE"
}

// String implements types.Message.
func (s StoreRequest) String() string {
	return fmt.Sprintf("store{%d %s hops=%d}", s.Key, s.Value, s.Hops)
}

// HTML implements types.Message.
func (s StoreRequest) HTML() string {
	return s.String()
}

// Validate rejects a STORE whose value is not JSON.
func (s StoreRequest) Validate() error {
	if !json.Valid(s.Value) {
		return xerrors.Errorf("store %d with invalid value: %w", s.Key, ErrInvalidMessage)
	}

	return nil
}

// UnmarshalJSON implements json.Unmarshaler. The key is required, a missing
// value is stored as null.
func (s *StoreRequest) UnmarshalJSON(data []byte) error {
	type plain StoreRequest

	aux := struct {
		*plain
		Key *int64 `json:"key"`
	}{plain: (*plain)(s)}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return err
	}

	if aux.Key == nil {
		return xerrors.Errorf("store without key: %w", ErrInvalidMessage)
	}

	s.Key = *aux.Key

	if len(bytes.TrimSpace(s.Value)) == 0 {
		s.Value = append(json.RawMessage(nil), nullValue...)
	}

	return nil
}

// -----------------------------------------------------------------------------
// RetrieveRequest

// NewEmpty implements types.Message.
func (r RetrieveRequest) NewEmpty() Message {
	return &RetrieveRequest{}
}

// Name implements types.Message.
func (r RetrieveRequest) Name() string {
	return "RETRIEVE"
}

// String implements types.Message.
func (r RetrieveRequest) String() string {
	return fmt.Sprintf("retrieve{%d hops=%d}", r.Key, r.Hops)
}

// HTML implements types.Message.
func (r RetrieveRequest) HTML() string {
	return r.String()
}

// UnmarshalJSON implements json.Unmarshaler. The key is required.
func (r *RetrieveRequest) UnmarshalJSON(data []byte) error {
	type plain RetrieveRequest

	aux := struct {
		*plain
		Key *int64 `json:"key"`
	}{plain: (*plain)(r)}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return err
	}

	if aux.Key == nil {
		return xerrors.Errorf("retrieve without key: %w", ErrInvalidMessage)
	}

	r.Key = *aux.Key

	return nil
}

// -----------------------------------------------------------------------------
// RetrieveReply

var notFoundJSON = []byte(`"` + NotFound + `"`)

// NotFoundReply returns the reply of an authoritative node missing the key.
func NotFoundReply() RetrieveReply {
	return RetrieveReply{Result: append(json.RawMessage(nil), notFoundJSON...)}
}

// IsNotFound tells if the result is the "NOT FOUND" marker.
func (r RetrieveReply) IsNotFound() bool {
	return bytes.Equal(bytes.TrimSpace(r.Result), notFoundJSON)
}

// Found tells if the reply carries a value.
func (r RetrieveReply) Found() bool {
	if r.Error != "" || r.IsNotFound() {
		return false
	}

	res := bytes.TrimSpace(r.Result)
	return len(res) != 0 && !bytes.Equal(res, []byte("null"))
}

// String returns the human readable form of the result.
func (r RetrieveReply) String() string {
	if r.Error != "" {
		return fmt.Sprintf("ERR %s", r.Error)
	}
	if r.IsNotFound() {
		return NotFound
	}

	var s string
	if json.Unmarshal(r.Result, &s) == nil {
		return s
	}

	return string(r.Result)
}
