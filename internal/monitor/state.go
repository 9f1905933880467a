package monitor

import "time"

// sessionState is the per-session scratchpad the poll loop carries between
// cycles. It lives only inside the engine; nothing here is persisted.
type sessionState struct {
	// Output tracking. lastOutput is the previous plain capture,
	// lastOutputChangeTime the instant it last differed.
	lastOutput           string
	lastOutputChangeTime time.Time

	// Limit recovery machine.
	limitDetectedAt            time.Time
	awaitingContinuation       bool
	immediateContinueAttempted bool
	lastContinuationTime       time.Time
	scheduledResetTime         time.Time

	// Quota schedule bookkeeping.
	quotaCommandSent bool

	// Anti-spam anchors.
	lastTaskCompletionNotification time.Time
	lastApprovalQuestion           string

	// Consecutive cycle failures. Reset on any clean cycle.
	retryCount int
}
