package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"paneherd/cli/internal/protocol"
	"paneherd/cli/internal/registry"
)

// MonitorService is the slice of the monitor engine the bridge drives.
type MonitorService interface {
	StartMonitoring(sessionID string)
	StopMonitoring(sessionID string)
	StopAll()
	ActiveSessions() []string
}

// SessionDirectory reads registered sessions. Get reports a missing session
// as (nil, nil).
type SessionDirectory interface {
	Get(ctx context.Context, id string) (*registry.Session, error)
	List(ctx context.Context) ([]registry.Session, error)
}

// PaneService captures pane content for remote inspection and types
// operator-supplied text into panes.
type PaneService interface {
	PaneExists(ctx context.Context, target string) (bool, error)
	CapturePlain(ctx context.Context, target string) (string, error)
	SendCooked(ctx context.Context, target, text string) error
}

type Handler struct {
	monitor  MonitorService
	sessions SessionDirectory
	panes    PaneService
}

func NewHandler(m MonitorService, s SessionDirectory, p PaneService) *Handler {
	return &Handler{monitor: m, sessions: s, panes: p}
}

func (h *Handler) Handle(ctx context.Context, msg protocol.Message) protocol.Message {
	switch msg.Op {
	case "monitor.start":
		id, errResp := h.sessionIDFrom(msg)
		if errResp != nil {
			return *errResp
		}
		sess, err := h.sessions.Get(ctx, id)
		if err != nil {
			return protocol.ErrorReply(msg, "REGISTRY_ERROR", err.Error())
		}
		if sess == nil {
			return protocol.ErrorReply(msg, "SESSION_NOT_FOUND", "session not registered")
		}
		h.monitor.StartMonitoring(id)
		return protocol.Reply(msg, map[string]any{})
	case "monitor.stop":
		id, errResp := h.sessionIDFrom(msg)
		if errResp != nil {
			return *errResp
		}
		h.monitor.StopMonitoring(id)
		return protocol.Reply(msg, map[string]any{})
	case "monitor.stop_all":
		h.monitor.StopAll()
		return protocol.Reply(msg, map[string]any{})
	case "monitor.sessions":
		return protocol.Reply(msg, map[string]any{"session_ids": h.monitor.ActiveSessions()})
	case "sessions.list":
		sessions, err := h.sessions.List(ctx)
		if err != nil {
			return protocol.ErrorReply(msg, "REGISTRY_ERROR", err.Error())
		}
		watched := make(map[string]bool)
		for _, id := range h.monitor.ActiveSessions() {
			watched[id] = true
		}
		out := make([]sessionInfo, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, sessionInfoFrom(s, watched[s.ID]))
		}
		return protocol.Reply(msg, map[string]any{"sessions": out})
	case "pane.capture":
		var payload struct {
			Target string `json:"target"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return protocol.ErrorReply(msg, "BAD_PAYLOAD", err.Error())
		}
		if strings.TrimSpace(payload.Target) == "" {
			return protocol.ErrorReply(msg, "BAD_PAYLOAD", "missing target")
		}
		exists, err := h.panes.PaneExists(ctx, payload.Target)
		if err != nil {
			return protocol.ErrorReply(msg, "TMUX_ERROR", err.Error())
		}
		if !exists {
			return protocol.ErrorReply(msg, "TMUX_PANE_NOT_FOUND", "pane target not found")
		}
		text, err := h.panes.CapturePlain(ctx, payload.Target)
		if err != nil {
			return protocol.ErrorReply(msg, "TMUX_ERROR", err.Error())
		}
		return protocol.Reply(msg, map[string]any{"text": text})
	case "pane.send":
		var payload struct {
			Target string `json:"target"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return protocol.ErrorReply(msg, "BAD_PAYLOAD", err.Error())
		}
		if strings.TrimSpace(payload.Target) == "" {
			return protocol.ErrorReply(msg, "BAD_PAYLOAD", "missing target")
		}
		if payload.Text == "" {
			return protocol.ErrorReply(msg, "BAD_PAYLOAD", "missing text")
		}
		exists, err := h.panes.PaneExists(ctx, payload.Target)
		if err != nil {
			return protocol.ErrorReply(msg, "TMUX_ERROR", err.Error())
		}
		if !exists {
			return protocol.ErrorReply(msg, "TMUX_PANE_NOT_FOUND", "pane target not found")
		}
		if err := h.panes.SendCooked(ctx, payload.Target, payload.Text); err != nil {
			return protocol.ErrorReply(msg, "TMUX_ERROR", err.Error())
		}
		return protocol.Reply(msg, map[string]any{})
	default:
		return protocol.ErrorReply(msg, "UNKNOWN_OP", "unsupported op")
	}
}

func (h *Handler) sessionIDFrom(msg protocol.Message) (string, *protocol.Message) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		resp := protocol.ErrorReply(msg, "BAD_PAYLOAD", err.Error())
		return "", &resp
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		resp := protocol.ErrorReply(msg, "BAD_PAYLOAD", "missing session_id")
		return "", &resp
	}
	return payload.SessionID, nil
}

type sessionInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PaneTarget   string `json:"pane_target"`
	Status       string `json:"status"`
	Watched      bool   `json:"watched"`
	QuotaTime    string `json:"quota_time,omitempty"`
	QuotaCommand string `json:"quota_command,omitempty"`
}

func sessionInfoFrom(s registry.Session, watched bool) sessionInfo {
	info := sessionInfo{
		ID:         s.ID,
		Name:       s.Name,
		PaneTarget: s.PaneTarget,
		Status:     string(s.Status),
		Watched:    watched,
	}
	if s.Quota != nil {
		info.QuotaTime = s.Quota.TimeOfDay
		info.QuotaCommand = s.Quota.Command
	}
	return info
}
