package turn

import (
	"context"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/protocol"

	"github.com/google/uuid"
)

// notifyEventOp is the event op the chat bridge turns into user messages.
const notifyEventOp = "notify.event"

type notifyEventPayload struct {
	SessionID   string            `json:"session_id"`
	SessionName string            `json:"session_name"`
	NotifyType  string            `json:"notify_type"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Notifier delivers monitor notifications through the bridge agent as
// pushed protocol events. Delivery fails while the agent is offline; the
// engine logs and drops, the journal still records the attempt.
type Notifier struct {
	agent *Agent
}

func NewNotifier(agent *Agent) *Notifier {
	return &Notifier{agent: agent}
}

func (n *Notifier) Notify(ctx context.Context, sessionID string, msg notify.Notification) error {
	payload := notifyEventPayload{
		SessionID:   sessionID,
		SessionName: msg.SessionName,
		NotifyType:  string(msg.Type),
		Title:       msg.Title,
		Message:     msg.Message,
		Metadata:    msg.Metadata,
	}
	return n.agent.Publish(ctx, protocol.Message{
		ID:      uuid.NewString(),
		Type:    protocol.TypeEvent,
		Op:      notifyEventOp,
		Payload: protocol.MustRaw(payload),
	})
}
