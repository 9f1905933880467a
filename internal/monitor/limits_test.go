package monitor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/registry"
)

func TestLimitRecovery_SchedulesThenContinuesAtReset(t *testing.T) {
	const capture = "5-hour limit reached. Your limit resets at 3:45pm\n> "
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	clk := setClock(e, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	ch := e.Subscribe("t")
	st := &sessionState{}
	ctx := context.Background()

	stop, err := e.runCycle(ctx, "s1", st)
	if err != nil || stop {
		t.Fatalf("cycle: stop=%v err=%v", stop, err)
	}

	evts := drainEvents(ch)
	if len(evts) != 1 || evts[0].Type != EventLimitDetected {
		t.Fatalf("events = %+v, want one limit_detected", evts)
	}
	if got := pane.sentCalls(); len(got) != 1 || got[0] != "continue" {
		t.Fatalf("sent = %v, want one continue sequence", got)
	}
	calls := nf.sentNotifications()
	if len(calls) != 1 || calls[0].n.Type != notify.TypeLimit {
		t.Fatalf("notifications = %+v, want one limit", calls)
	}
	if got := calls[0].n.Metadata["resetTime"]; got != "3:45pm" {
		t.Fatalf("resetTime metadata = %q, want 3:45pm", got)
	}
	if calls[0].n.SessionName != "sess-s1" {
		t.Fatalf("session name = %q, want sess-s1", calls[0].n.SessionName)
	}
	if reg.statusOf("s1") != registry.StatusWaiting {
		t.Fatalf("status = %q, want waiting", reg.statusOf("s1"))
	}
	want := time.Date(2026, 3, 14, 15, 45, 0, 0, time.UTC)
	if !st.scheduledResetTime.Equal(want) {
		t.Fatalf("scheduled reset = %v, want %v", st.scheduledResetTime, want)
	}
	if !st.awaitingContinuation || !st.immediateContinueAttempted {
		t.Fatalf("latches = awaiting:%v attempted:%v, want both true",
			st.awaitingContinuation, st.immediateContinueAttempted)
	}

	// Unchanged pane on the next tick adds nothing.
	stop, err = e.runCycle(ctx, "s1", st)
	if err != nil || stop {
		t.Fatalf("idle cycle: stop=%v err=%v", stop, err)
	}
	if calls := nf.sentNotifications(); len(calls) != 1 {
		t.Fatalf("limit notification repeated: %+v", calls)
	}

	// At the deadline the scheduled continuation fires.
	*clk = want
	stop, err = e.runCycle(ctx, "s1", st)
	if err != nil || stop {
		t.Fatalf("continuation cycle: stop=%v err=%v", stop, err)
	}
	if got := pane.sentCalls(); len(got) != 2 || got[1] != "continue" {
		t.Fatalf("sent = %v, want a second continue sequence", got)
	}
	calls = nf.sentNotifications()
	if len(calls) != 2 || calls[1].n.Type != notify.TypeContinued {
		t.Fatalf("notifications = %+v, want limit then continued", calls)
	}
	if reg.statusOf("s1") != registry.StatusActive {
		t.Fatalf("status = %q, want active after continuation", reg.statusOf("s1"))
	}
	if st.awaitingContinuation || st.immediateContinueAttempted || !st.scheduledResetTime.IsZero() {
		t.Fatalf("latches not cleared: %+v", st)
	}
	if !st.lastContinuationTime.Equal(want) {
		t.Fatalf("lastContinuationTime = %v, want %v", st.lastContinuationTime, want)
	}
}

func TestLimitRecovery_ResolvedWhenLimitScrollsAway(t *testing.T) {
	const initial = "Session limit reached ∙ resets 8pm\n> "
	var b strings.Builder
	b.WriteString("Session limit reached ∙ resets 8pm\n")
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "compiled package %02d\n", i)
	}
	b.WriteString("> ")
	after := b.String()

	pane := &fakePane{exists: true, plain: []string{initial, initial, after}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	setClock(e, now)
	st := &sessionState{}

	stop, err := e.runCycle(context.Background(), "s1", st)
	if err != nil || stop {
		t.Fatalf("cycle: stop=%v err=%v", stop, err)
	}

	if calls := nf.sentNotifications(); len(calls) != 0 {
		t.Fatalf("resolved episode must not notify, got %+v", calls)
	}
	if got := pane.sentCalls(); len(got) != 1 || got[0] != "continue" {
		t.Fatalf("sent = %v, want one continue sequence", got)
	}
	if reg.statusOf("s1") != registry.StatusActive {
		t.Fatalf("status = %q, want active", reg.statusOf("s1"))
	}
	if st.awaitingContinuation || st.immediateContinueAttempted {
		t.Fatal("latches must clear on resolution")
	}
	if !st.lastContinuationTime.Equal(now) {
		t.Fatalf("lastContinuationTime = %v, want %v", st.lastContinuationTime, now)
	}
	if !st.scheduledResetTime.IsZero() {
		t.Fatalf("no schedule expected, got %v", st.scheduledResetTime)
	}
}

func TestLimitRecovery_ListRowWithoutPromptIgnored(t *testing.T) {
	const capture = "2 sessions\nproj-a   5-hour limit reached ∙ resets 1am\nproj-b   building\n"
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	ch := e.Subscribe("t")
	st := &sessionState{}

	stop, err := e.runCycle(context.Background(), "s1", st)
	if err != nil || stop {
		t.Fatalf("cycle: stop=%v err=%v", stop, err)
	}

	if got := pane.sentCalls(); len(got) != 0 {
		t.Fatalf("no keystrokes expected, got %v", got)
	}
	if evts := drainEvents(ch); len(evts) != 0 {
		t.Fatalf("no events expected, got %+v", evts)
	}
	if calls := nf.sentNotifications(); len(calls) != 0 {
		t.Fatalf("no notifications expected, got %+v", calls)
	}
	if st.awaitingContinuation {
		t.Fatal("limit machine must not enter without an active terminal")
	}
}

func TestLimitRecovery_AwaitingGateBlocksReentry(t *testing.T) {
	const capture = "usage limit reached\n> "
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	ch := e.Subscribe("t")
	st := &sessionState{awaitingContinuation: true, limitDetectedAt: time.Date(2026, 3, 14, 11, 58, 0, 0, time.UTC)}

	stop, err := e.runCycle(context.Background(), "s1", st)
	if err != nil || stop {
		t.Fatalf("cycle: stop=%v err=%v", stop, err)
	}
	if got := pane.sentCalls(); len(got) != 0 {
		t.Fatalf("pending episode must not act again, sent %v", got)
	}
	if evts := drainEvents(ch); len(evts) != 0 {
		t.Fatalf("no events expected, got %+v", evts)
	}
	if calls := nf.sentNotifications(); len(calls) != 0 {
		t.Fatalf("no notifications expected, got %+v", calls)
	}
}

func TestLimitRecovery_CooldownBoundary(t *testing.T) {
	const capture = "usage limit reached. resets at 1pm\n> "
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Exactly five minutes since the last continuation: still cooling down.
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", now.Add(-time.Hour)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, now)
	st := &sessionState{lastContinuationTime: now.Add(-5 * time.Minute)}
	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := pane.sentCalls(); len(got) != 0 {
		t.Fatalf("cooldown must suppress the episode, sent %v", got)
	}
	if st.awaitingContinuation {
		t.Fatal("cooldown must not enter the episode")
	}

	// One second past the cooldown: a new episode starts.
	pane = &fakePane{exists: true, plain: []string{capture}}
	reg = newFakeRegistry(testSession("s1", now.Add(-time.Hour)))
	nf = &fakeNotifier{}
	e = newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, now)
	st = &sessionState{lastContinuationTime: now.Add(-5*time.Minute - time.Second)}
	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := pane.sentCalls(); len(got) != 1 || got[0] != "continue" {
		t.Fatalf("expected a fresh episode past cooldown, sent %v", got)
	}
	if calls := nf.sentNotifications(); len(calls) != 1 || calls[0].n.Type != notify.TypeLimit {
		t.Fatalf("notifications = %+v, want one limit", calls)
	}
}

func TestLimitRecovery_ResetFiveHoursOutIsNotScheduled(t *testing.T) {
	const capture = "Usage limit reached. resets at 5pm\n> "
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	st := &sessionState{}

	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if !st.scheduledResetTime.IsZero() {
		t.Fatalf("deadline exactly 5h out must not schedule, got %v", st.scheduledResetTime)
	}
	calls := nf.sentNotifications()
	if len(calls) != 1 || calls[0].n.Type != notify.TypeLimit {
		t.Fatalf("notifications = %+v, want one limit", calls)
	}
	if got := calls[0].n.Metadata["resetTime"]; got != "5pm" {
		t.Fatalf("resetTime metadata = %q, want raw string even without schedule", got)
	}
	if reg.statusOf("s1") != registry.StatusWaiting {
		t.Fatalf("status = %q, want waiting", reg.statusOf("s1"))
	}
}

func TestLimitRecovery_UnparseableResetUsesSentinel(t *testing.T) {
	const capture = "usage limit reached, try again soon\n> "
	pane := &fakePane{exists: true, plain: []string{capture}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	st := &sessionState{}

	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	calls := nf.sentNotifications()
	if len(calls) != 1 {
		t.Fatalf("notifications = %+v, want exactly one", calls)
	}
	if !strings.Contains(calls[0].n.Message, "Monitoring for availability") {
		t.Fatalf("message = %q, want the monitoring sentinel", calls[0].n.Message)
	}
	if _, ok := calls[0].n.Metadata["resetTime"]; ok {
		t.Fatal("no resetTime metadata expected without a parsed time")
	}
	if !st.scheduledResetTime.IsZero() {
		t.Fatalf("no schedule expected, got %v", st.scheduledResetTime)
	}
}

func TestLimitRecovery_SendFailureDoesNotRefireSchedule(t *testing.T) {
	pane := &fakePane{exists: true, plain: []string{""}}
	reg := newFakeRegistry(testSession("s1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	now := time.Date(2026, 3, 14, 15, 45, 0, 0, time.UTC)
	setClock(e, now)

	pane.sendErr = fmt.Errorf("pane rejected keys")
	st := &sessionState{
		awaitingContinuation:       true,
		immediateContinueAttempted: true,
		scheduledResetTime:         now.Add(-time.Second),
	}

	if _, err := e.runCycle(context.Background(), "s1", st); err == nil {
		t.Fatal("expected send failure to surface as a cycle error")
	}
	if !st.scheduledResetTime.IsZero() {
		t.Fatal("deadline must clear before the attempt so it cannot refire")
	}
	if calls := nf.sentNotifications(); len(calls) != 0 {
		t.Fatalf("failed continuation must not notify, got %+v", calls)
	}
}
