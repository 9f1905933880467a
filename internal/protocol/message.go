package protocol

import "encoding/json"

// Message types on the bridge wire. Requests come from operator clients,
// responses answer them by ID, and events are pushed by the agent without a
// matching request (monitor notifications).
const (
	TypeRequest  = "req"
	TypeResponse = "res"
	TypeEvent    = "event"
)

type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply builds the response to req carrying payload.
func Reply(req Message, payload any) Message {
	return Message{
		ID:      req.ID,
		Type:    TypeResponse,
		Op:      req.Op,
		Payload: MustRaw(payload),
	}
}

// ErrorReply builds the error response to req.
func ErrorReply(req Message, code, message string) Message {
	return Message{
		ID:   req.ID,
		Type: TypeResponse,
		Op:   req.Op,
		Error: &ErrPayload{
			Code:    code,
			Message: message,
		},
	}
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
