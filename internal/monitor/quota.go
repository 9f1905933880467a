package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/patterns"
	"paneherd/cli/internal/registry"
)

// handleQuota runs the two-phase daily quota schedule. The command is typed
// without submitting well ahead of its window, then a bare Enter fires it
// at the scheduled instant. When a session starts behind schedule both
// phases may run in the same cycle.
func (e *Engine) handleQuota(ctx context.Context, sess *registry.Session, st *sessionState, now time.Time) error {
	q := sess.Quota
	if q == nil {
		return nil
	}

	if !st.quotaCommandSent && strings.TrimSpace(q.Command) != "" && now.Sub(sess.Created) >= quotaStageDelay {
		if err := e.pane.SendRaw(ctx, sess.PaneTarget, q.Command); err != nil {
			return fmt.Errorf("stage quota command: %w", err)
		}
		st.quotaCommandSent = true
		e.logger.Info("quota command staged",
			"session_id", sess.ID, "next_execution", q.NextExecution)
	}

	if st.quotaCommandSent && !q.NextExecution.IsZero() && !now.Before(q.NextExecution) {
		if err := e.pane.SendRaw(ctx, sess.PaneTarget, "Enter"); err != nil {
			return fmt.Errorf("fire quota command: %w", err)
		}

		next := *q
		if hour, minute, ok := patterns.ParseClockTime(q.TimeOfDay); ok {
			next.NextExecution = nextDaily(now, hour, minute)
		} else {
			// Unparseable time of day. Push the deadline a day out so the
			// schedule cannot refire every cycle.
			e.logger.Warn("quota time of day did not parse, advancing a day",
				"session_id", sess.ID, "time_of_day", q.TimeOfDay)
			next.NextExecution = q.NextExecution.Add(24 * time.Hour)
		}
		next.Command = patterns.RewriteDatedCommand(q.Command, next.NextExecution.Format("2006-01-02"))
		if err := e.registry.Update(ctx, sess.ID, registry.SessionUpdate{Quota: &next}); err != nil {
			return fmt.Errorf("update quota schedule: %w", err)
		}
		st.quotaCommandSent = false

		e.logger.Info("quota command fired",
			"session_id", sess.ID, "next_execution", next.NextExecution)
		e.safeNotify(ctx, sess, notify.Notification{
			Type:  notify.TypeContinued,
			Title: "Quota command executed",
			Message: fmt.Sprintf("Scheduled command ran. Next run %s.",
				next.NextExecution.Format("2006-01-02 15:04")),
			Metadata: map[string]string{
				"nextExecution": next.NextExecution.Format(time.RFC3339),
			},
		})
	}
	return nil
}
