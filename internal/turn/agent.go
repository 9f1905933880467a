package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"paneherd/cli/internal/protocol"
)

// legacyConnID tags frames that arrive without a mux envelope, so replies
// can still be routed on single-connection bridges.
const legacyConnID = "legacy_single"

type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// OpHandler answers one remote-control request. bridge.Handler is the real
// implementation.
type OpHandler interface {
	Handle(ctx context.Context, msg protocol.Message) protocol.Message
}

// Registrar obtains the websocket endpoint for this agent.
type Registrar interface {
	Register(ctx context.Context, agentName string) (RegisterResponse, error)
}

// Agent is one bridge connection: it serves remote-control requests through
// the handler and pushes monitor notifications as events. Run establishes
// the connection; Publish works only while a connection is live.
type Agent struct {
	registrar Registrar
	dialer    Dialer
	handler   OpHandler
	agentName string
	logger    *slog.Logger

	mu     sync.Mutex
	client *WSClient
}

func NewAgent(registrar Registrar, dialer Dialer, handler OpHandler, agentName string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Agent{
		registrar: registrar,
		dialer:    dialer,
		handler:   handler,
		agentName: agentName,
		logger:    logger,
	}
}

// Run registers with the bridge, dials the agent websocket and serves it
// until the context ends or the connection drops.
func (a *Agent) Run(ctx context.Context) error {
	resp, err := a.registrar.Register(ctx, a.agentName)
	if err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	a.logger.Info("bridge registration complete",
		"agent_id", resp.AgentID, "visit_url", resp.VisitURL)

	sock, err := a.dialer.Dial(ctx, resp.AgentWSURL)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	client := NewWSClient(sock)
	a.setClient(client)
	defer func() {
		a.setClient(nil)
		_ = client.Close()
	}()

	client.OnText(func(in string) {
		a.dispatch(ctx, client, in)
	})
	return client.Run(ctx)
}

// Publish pushes a message to the bridge. Callers get an error while the
// agent is between connections; notification delivery treats that as a
// transient failure.
func (a *Agent) Publish(ctx context.Context, msg protocol.Message) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return errors.New("bridge connection is down")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.Send(ctx, string(raw))
}

func (a *Agent) setClient(c *WSClient) {
	a.mu.Lock()
	a.client = c
	a.mu.Unlock()
}

// dispatch answers one inbound frame. Frames may arrive wrapped in a mux
// envelope; the reply is wrapped the same way so the bridge can route it
// back to the originating operator connection.
func (a *Agent) dispatch(ctx context.Context, client *WSClient, in string) {
	connID, innerRaw, unwrapErr := protocol.UnwrapMuxEnvelope([]byte(in))
	switch {
	case errors.Is(unwrapErr, protocol.ErrNotMuxed):
		// Bare frame from a single-connection bridge.
		connID, innerRaw = legacyConnID, []byte(in)
	case unwrapErr != nil:
		a.logger.Warn("recv invalid bridge payload", "err", unwrapErr)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(innerRaw, &msg); err != nil {
		a.logger.Warn("recv invalid bridge payload", "err", err)
		return
	}
	if msg.Type != protocol.TypeRequest {
		a.logger.Debug("ignoring non-request frame", "type", msg.Type, "op", msg.Op)
		return
	}

	out := a.handler.Handle(ctx, msg)
	if out.Error != nil {
		a.logger.Warn("bridge op failed",
			"op", out.Op, "id", out.ID, "code", out.Error.Code, "msg", out.Error.Message)
	}
	respRaw, err := json.Marshal(out)
	if err != nil {
		a.logger.Error("marshal bridge response failed", "op", out.Op, "id", out.ID, "err", err)
		return
	}

	sendRaw := respRaw
	if wrapped, wrapErr := protocol.WrapMuxEnvelope(connID, respRaw); wrapErr == nil {
		sendRaw = wrapped
	}
	if err := client.Send(ctx, string(sendRaw)); err != nil {
		a.logger.Error("send bridge response failed", "op", out.Op, "id", out.ID, "err", err)
	}
}
