package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotMuxed reports a frame that carries no conn_id. Bridges that
// multiplex operator connections stamp one on every frame; older
// single-connection bridges send bare messages, which callers route on a
// fixed fallback id instead.
var ErrNotMuxed = errors.New("frame carries no conn_id")

// MuxEnvelope carries one operator connection's frame across the agent
// websocket. The bridge stamps conn_id inbound and routes replies by it.
type MuxEnvelope struct {
	ConnID string          `json:"conn_id"`
	Data   json.RawMessage `json:"data"`
}

// WrapMuxEnvelope frames data for the operator connection connID.
func WrapMuxEnvelope(connID string, data []byte) ([]byte, error) {
	env := MuxEnvelope{ConnID: strings.TrimSpace(connID), Data: data}
	if env.ConnID == "" {
		return nil, ErrNotMuxed
	}
	return json.Marshal(env)
}

// UnwrapMuxEnvelope splits a frame into its connection id and inner message.
// A frame that parses but names no connection returns ErrNotMuxed; anything
// that does not parse returns the json error.
func UnwrapMuxEnvelope(raw []byte) (string, []byte, error) {
	var env MuxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	id := strings.TrimSpace(env.ConnID)
	if id == "" {
		return "", nil, ErrNotMuxed
	}
	return id, env.Data, nil
}
