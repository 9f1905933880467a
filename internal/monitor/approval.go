package monitor

import (
	"context"
	"fmt"
	"strings"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/patterns"
	"paneherd/cli/internal/registry"
)

// handleApproval announces an interactive approval dialog once per distinct
// question. Detection runs on the fresh output slice; a colored re-capture
// then vets interactivity so pasted dialog text cannot trigger it.
func (e *Engine) handleApproval(ctx context.Context, sess *registry.Session, st *sessionState, slice string) error {
	if !patterns.ApprovalDialogPresent(slice) {
		return nil
	}
	colored, err := e.pane.CaptureColored(ctx, sess.PaneTarget)
	if err != nil {
		return fmt.Errorf("capture colored pane: %w", err)
	}
	if !patterns.InteractiveApproval(colored) {
		e.logger.Info("approval dialog looks pasted, ignoring", "session_id", sess.ID)
		return nil
	}

	info := patterns.ExtractApprovalInfo(colored)
	if info.Question == st.lastApprovalQuestion {
		return nil
	}
	st.lastApprovalQuestion = info.Question

	e.logger.Info("approval dialog detected",
		"session_id", sess.ID, "tool", info.Tool, "action", info.Action)
	e.emit(e.newEvent(EventApprovalNeeded, sess.ID, map[string]string{
		"message":  info.Question,
		"question": info.Question,
		"tool":     info.Tool,
		"action":   info.Action,
	}))

	message := info.Question
	if body := formatOptions(info.Options); body != "" {
		message += "\n\n" + body
	}
	e.safeNotify(ctx, sess, notify.Notification{
		Type:    notify.TypeApproval,
		Title:   "Approval needed: " + info.Action,
		Message: message,
		Metadata: map[string]string{
			"tool":   info.Tool,
			"action": info.Action,
		},
	})

	return e.setStatus(ctx, sess.ID, registry.StatusWaitingApproval)
}

// formatOptions renders numbered dialog options for chat display.
func formatOptions(opts []patterns.ApprovalOption) string {
	var b strings.Builder
	for i, o := range opts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "**%d.** %s", o.Number, o.Text)
		if o.Shortcut != "" {
			fmt.Fprintf(&b, " *(%s)*", o.Shortcut)
		}
	}
	return b.String()
}
