package monitor

import (
	"context"
	"testing"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/registry"
)

func quotaSession(id string, created time.Time, q registry.QuotaSchedule) *registry.Session {
	s := testSession(id, created)
	s.Quota = &q
	return s
}

func TestQuota_StagesThenFiresAndRolls(t *testing.T) {
	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	next := time.Date(2026, 3, 15, 5, 0, 0, 0, time.UTC)
	sess := quotaSession("s1", created, registry.QuotaSchedule{
		TimeOfDay:     "05:00",
		Command:       "run the daily kickoff 2026-03-15",
		NextExecution: next,
	})
	pane := &fakePane{exists: true}
	reg := newFakeRegistry(sess)
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	clk := setClock(e, created.Add(5*time.Second))
	st := &sessionState{}
	ctx := context.Background()

	// Stage: the command is typed at five seconds of session age, without
	// a submit.
	if _, err := e.runCycle(ctx, "s1", st); err != nil {
		t.Fatalf("stage cycle: %v", err)
	}
	if got := pane.sentCalls(); len(got) != 1 || got[0] != "raw:run the daily kickoff 2026-03-15" {
		t.Fatalf("sent = %v, want the staged command only", got)
	}
	if !st.quotaCommandSent {
		t.Fatal("stage latch must be set")
	}

	// Fire: at the scheduled instant a bare Enter submits it and the
	// schedule rolls a day forward with a refreshed date.
	*clk = next
	if _, err := e.runCycle(ctx, "s1", st); err != nil {
		t.Fatalf("fire cycle: %v", err)
	}
	got := pane.sentCalls()
	if len(got) != 2 || got[1] != "raw:Enter" {
		t.Fatalf("sent = %v, want Enter after the staged command", got)
	}
	if st.quotaCommandSent {
		t.Fatal("stage latch must clear after firing")
	}

	reg.mu.Lock()
	stored := reg.sessions["s1"].Quota
	reg.mu.Unlock()
	wantNext := time.Date(2026, 3, 16, 5, 0, 0, 0, time.UTC)
	if !stored.NextExecution.Equal(wantNext) {
		t.Fatalf("next execution = %v, want %v", stored.NextExecution, wantNext)
	}
	if stored.Command != "run the daily kickoff 2026-03-16" {
		t.Fatalf("command = %q, want the refreshed date", stored.Command)
	}
	calls := nf.sentNotifications()
	if len(calls) != 1 || calls[0].n.Type != notify.TypeContinued {
		t.Fatalf("notifications = %+v, want one continued", calls)
	}

	// The next cycle stages the refreshed command for tomorrow's window.
	*clk = next.Add(2 * time.Second)
	if _, err := e.runCycle(ctx, "s1", st); err != nil {
		t.Fatalf("restage cycle: %v", err)
	}
	got = pane.sentCalls()
	if len(got) != 3 || got[2] != "raw:run the daily kickoff 2026-03-16" {
		t.Fatalf("sent = %v, want the refreshed command staged", got)
	}
}

func TestQuota_StageWaitsForSessionAge(t *testing.T) {
	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sess := quotaSession("s1", created, registry.QuotaSchedule{
		TimeOfDay:     "05:00",
		Command:       "run the daily kickoff 2026-03-15",
		NextExecution: time.Date(2026, 3, 15, 5, 0, 0, 0, time.UTC),
	})
	pane := &fakePane{exists: true}
	reg := newFakeRegistry(sess)
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, created.Add(4*time.Second))
	st := &sessionState{}

	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := pane.sentCalls(); len(got) != 0 {
		t.Fatalf("young session must not stage yet, sent %v", got)
	}
	if st.quotaCommandSent {
		t.Fatal("stage latch must stay clear")
	}
}

func TestQuota_BehindScheduleStagesAndFiresInOneCycle(t *testing.T) {
	now := time.Date(2026, 3, 15, 7, 30, 0, 0, time.UTC)
	sess := quotaSession("s1", now.Add(-10*time.Second), registry.QuotaSchedule{
		TimeOfDay:     "05:00",
		Command:       "run the daily kickoff 2026-03-15",
		NextExecution: time.Date(2026, 3, 15, 5, 0, 0, 0, time.UTC),
	})
	pane := &fakePane{exists: true}
	reg := newFakeRegistry(sess)
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, now)
	st := &sessionState{}

	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	got := pane.sentCalls()
	if len(got) != 2 || got[0] != "raw:run the daily kickoff 2026-03-15" || got[1] != "raw:Enter" {
		t.Fatalf("sent = %v, want stage then fire in one cycle", got)
	}
	reg.mu.Lock()
	stored := reg.sessions["s1"].Quota
	reg.mu.Unlock()
	wantNext := time.Date(2026, 3, 16, 5, 0, 0, 0, time.UTC)
	if !stored.NextExecution.Equal(wantNext) {
		t.Fatalf("next execution = %v, want %v", stored.NextExecution, wantNext)
	}
}

func TestQuota_UnparseableTimeOfDayStillAdvances(t *testing.T) {
	now := time.Date(2026, 3, 15, 5, 0, 0, 0, time.UTC)
	sess := quotaSession("s1", now.Add(-time.Hour), registry.QuotaSchedule{
		TimeOfDay:     "whenever",
		Command:       "run the daily kickoff 2026-03-15",
		NextExecution: now,
	})
	pane := &fakePane{exists: true}
	reg := newFakeRegistry(sess)
	nf := &fakeNotifier{}
	e := newTestEngine(t, pane, reg, nf, Options{})
	setClock(e, now)
	st := &sessionState{quotaCommandSent: true}

	if _, err := e.runCycle(context.Background(), "s1", st); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	reg.mu.Lock()
	stored := reg.sessions["s1"].Quota
	reg.mu.Unlock()
	if !stored.NextExecution.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("next execution = %v, want a day later", stored.NextExecution)
	}
}
