package monitor

import (
	"context"
	"fmt"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/patterns"
	"paneherd/cli/internal/registry"
)

// tailWindow is how many trailing lines decide whether a limit notice is
// still live on screen or merely scrolled history.
const tailWindow = 15

// growthFloor separates "pane barely moved" from "substantial new output"
// when judging an immediate continue attempt.
const growthFloor = 50

// handleLimit runs the limit recovery machine against a fresh output slice.
// It reports whether a limit notice claimed this slice; when it did,
// approval arbitration is skipped for the cycle.
func (e *Engine) handleLimit(ctx context.Context, sess *registry.Session, st *sessionState, slice string, now time.Time) (bool, error) {
	if !patterns.LimitPresent(slice) || !patterns.ActiveTerminalState(slice) {
		return false, nil
	}
	// One continuation pending at a time.
	if st.awaitingContinuation {
		return true, nil
	}
	if !st.lastContinuationTime.IsZero() && now.Sub(st.lastContinuationTime) <= continuationCooldown {
		e.logger.Debug("limit notice within continuation cooldown, ignoring",
			"session_id", sess.ID)
		return true, nil
	}

	st.limitDetectedAt = now
	st.awaitingContinuation = true
	e.logger.Info("usage limit detected", "session_id", sess.ID)
	e.emit(e.newEvent(EventLimitDetected, sess.ID, map[string]string{
		"message": "usage limit detected",
	}))

	text := slice
	if !st.immediateContinueAttempted {
		st.immediateContinueAttempted = true
		resolved, after, err := e.attemptImmediateContinue(ctx, sess)
		if err != nil {
			return true, err
		}
		if resolved {
			return true, e.resolveEpisode(ctx, sess, st, now)
		}
		text = after
	}
	return true, e.scheduleRecovery(ctx, sess, st, text, now)
}

// attemptImmediateContinue sends the continue sequence once and judges the
// outcome from how the pane changed. A resolved episode means the session
// is running again; otherwise the richer after-capture feeds reset-time
// extraction.
func (e *Engine) attemptImmediateContinue(ctx context.Context, sess *registry.Session) (bool, string, error) {
	before, err := e.pane.CapturePlain(ctx, sess.PaneTarget)
	if err != nil {
		return false, "", fmt.Errorf("capture before continue: %w", err)
	}
	if err := e.pane.SendContinueSequence(ctx, sess.PaneTarget); err != nil {
		return false, "", fmt.Errorf("send continue sequence: %w", err)
	}
	e.sleep(ctx, e.settleDelay)
	after, err := e.pane.CapturePlain(ctx, sess.PaneTarget)
	if err != nil {
		return false, "", fmt.Errorf("capture after continue: %w", err)
	}

	if !patterns.LimitPresent(after) {
		return true, "", nil
	}
	if len(newSlice(before, after)) < growthFloor {
		// Pane barely moved; the limit notice still owns the screen.
		return false, after, nil
	}
	// Substantial new output. The limit text may be scrolled history; only
	// a live notice near the bottom keeps the episode open.
	tail := lastLines(after, tailWindow)
	if patterns.LimitPresent(tail) && patterns.ActiveTerminalState(tail) {
		return false, after, nil
	}
	return true, "", nil
}

// resolveEpisode closes a limit episode after a successful continue. No
// notification fires; the session simply resumes.
func (e *Engine) resolveEpisode(ctx context.Context, sess *registry.Session, st *sessionState, now time.Time) error {
	st.lastContinuationTime = now
	st.awaitingContinuation = false
	st.immediateContinueAttempted = false
	e.logger.Info("limit resolved by immediate continue", "session_id", sess.ID)
	return e.setStatus(ctx, sess.ID, registry.StatusActive)
}

// scheduleRecovery extracts a reset time from text and arms the scheduled
// continuation when the deadline is plausible. Exactly one limit
// notification fires per episode, with or without a parsed deadline.
func (e *Engine) scheduleRecovery(ctx context.Context, sess *registry.Session, st *sessionState, text string, now time.Time) error {
	if !st.scheduledResetTime.IsZero() {
		return nil
	}

	raw, found := patterns.ExtractResetTime(text)
	if found {
		if hour, minute, ok := patterns.ParseClockTime(raw); ok {
			at := nextOccurrence(now, hour, minute)
			if validResetDeadline(now, at) {
				st.scheduledResetTime = at
				e.logger.Info("continuation scheduled",
					"session_id", sess.ID, "reset_at", formatClock(hour, minute))
			} else {
				e.logger.Warn("reset time outside sanity window, polling instead",
					"session_id", sess.ID, "raw", raw)
			}
		} else {
			e.logger.Warn("reset time did not parse, polling instead",
				"session_id", sess.ID, "raw", raw)
		}
	}

	n := notify.Notification{
		Type:     notify.TypeLimit,
		Title:    "Usage limit reached",
		Metadata: map[string]string{},
	}
	if found {
		n.Message = "Usage limit reached. Resets at " + raw + "."
		n.Metadata["resetTime"] = raw
	} else {
		n.Message = "Usage limit reached. Monitoring for availability."
	}
	e.safeNotify(ctx, sess, n)

	return e.setStatus(ctx, sess.ID, registry.StatusWaiting)
}

// performContinuation fires a scheduled continuation whose deadline has
// arrived. The caller already cleared the deadline.
func (e *Engine) performContinuation(ctx context.Context, sess *registry.Session, st *sessionState, now time.Time) error {
	if err := e.pane.SendContinueSequence(ctx, sess.PaneTarget); err != nil {
		return fmt.Errorf("send continue sequence: %w", err)
	}
	st.lastContinuationTime = now
	st.awaitingContinuation = false
	st.immediateContinueAttempted = false
	if err := e.setStatus(ctx, sess.ID, registry.StatusActive); err != nil {
		return err
	}
	e.logger.Info("scheduled continuation sent", "session_id", sess.ID)
	e.safeNotify(ctx, sess, notify.Notification{
		Type:    notify.TypeContinued,
		Title:   "Session resumed",
		Message: "Usage limit window passed, continue sent.",
	})
	return nil
}
