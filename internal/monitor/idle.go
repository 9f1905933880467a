package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/patterns"
	"paneherd/cli/internal/registry"
)

// handleIdle announces task completion once the pane has been quiet past
// the idle threshold while showing an input prompt. Suppressed during a
// limit episode and rate-limited per session.
func (e *Engine) handleIdle(ctx context.Context, sess *registry.Session, st *sessionState, now time.Time) {
	if st.awaitingContinuation || st.lastOutputChangeTime.IsZero() {
		return
	}
	idle := now.Sub(st.lastOutputChangeTime)
	if idle <= idleThreshold {
		return
	}
	if !patterns.WaitingForInput(st.lastOutput) || !patterns.NotProcessing(st.lastOutput) {
		return
	}
	if !st.lastTaskCompletionNotification.IsZero() && now.Sub(st.lastTaskCompletionNotification) <= idleCooldown {
		return
	}

	st.lastTaskCompletionNotification = now
	seconds := int(idle / time.Second)
	e.logger.Info("session idle, task presumed complete",
		"session_id", sess.ID, "idle_seconds", seconds)
	e.emit(e.newEvent(EventTaskCompleted, sess.ID, map[string]string{
		"message":             "session idle, awaiting input",
		"idleDurationSeconds": strconv.Itoa(seconds),
	}))
	e.safeNotify(ctx, sess, notify.Notification{
		Type:    notify.TypeTaskCompleted,
		Title:   "Task completed",
		Message: fmt.Sprintf("Session idle for %ds and waiting for input.", seconds),
		Metadata: map[string]string{
			"idleDurationSeconds": strconv.Itoa(seconds),
		},
	})
}
