// Package monitor drives the per-session polling engine. Each monitored
// session gets a dedicated worker that captures its tmux pane on a fixed
// interval, recognizes usage-limit notices, approval dialogs, idle
// completion and quota windows, and reacts with keystrokes, registry
// status updates and notifications.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/registry"
)

const (
	defaultPollInterval = 2 * time.Second
	minPollInterval     = 250 * time.Millisecond
	defaultMaxRetries   = 3
	defaultSettleDelay  = 3 * time.Second

	// quotaStageDelay keeps the stage phase from typing into a pane that
	// is still booting its program.
	quotaStageDelay = 5 * time.Second

	idleThreshold        = 10 * time.Second
	idleCooldown         = 5 * time.Minute
	continuationCooldown = 5 * time.Minute
)

// PaneAdapter is the tmux surface the engine drives.
type PaneAdapter interface {
	PaneExists(ctx context.Context, target string) (bool, error)
	CapturePlain(ctx context.Context, target string) (string, error)
	CaptureColored(ctx context.Context, target string) (string, error)
	SendCooked(ctx context.Context, target, text string) error
	SendRaw(ctx context.Context, target, keys string) error
	SendContinueSequence(ctx context.Context, target string) error
}

// SessionRegistry is the persistence surface the engine reads and writes.
// Get reports a missing session as (nil, nil); Update merges the non-nil
// fields atomically.
type SessionRegistry interface {
	Get(ctx context.Context, id string) (*registry.Session, error)
	Update(ctx context.Context, id string, upd registry.SessionUpdate) error
}

// Deps are the collaborators every engine needs.
type Deps struct {
	Pane     PaneAdapter
	Registry SessionRegistry
	Notifier notify.Notifier
}

// Options tune engine behavior. Zero values fall back to defaults.
type Options struct {
	// PollInterval is the cycle period per session. Values below 250ms
	// are raised to 250ms.
	PollInterval time.Duration
	// MaxRetries is the consecutive-failure budget before a session's
	// monitoring stops with an error event.
	MaxRetries int
	// AutoRestart is recorded for the supervisor; the engine itself does
	// not consult it.
	AutoRestart bool
	// SettleDelay is the wait between sending the continue sequence and
	// re-capturing the pane to judge the result.
	SettleDelay time.Duration
	// OnSessionEnded runs when a monitored pane disappears, before the
	// worker exits. The supervisor decides the final session status.
	OnSessionEnded func(ctx context.Context, sess *registry.Session)

	Logger *slog.Logger
}

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine supervises one polling worker per monitored session.
type Engine struct {
	pane     PaneAdapter
	registry SessionRegistry
	notifier notify.Notifier
	logger   *slog.Logger
	onEnded  func(ctx context.Context, sess *registry.Session)

	pollInterval time.Duration
	maxRetries   int
	autoRestart  bool
	settleDelay  time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool

	subMu       sync.RWMutex
	subscribers map[string]chan Event

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New validates deps and builds an engine. No workers run until
// StartMonitoring is called.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Pane == nil {
		return nil, errors.New("monitor: pane adapter is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("monitor: session registry is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("monitor: notifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}
	retries := opts.MaxRetries
	if retries < 1 {
		retries = defaultMaxRetries
	}
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		pane:         deps.Pane,
		registry:     deps.Registry,
		notifier:     deps.Notifier,
		logger:       logger,
		onEnded:      opts.OnSessionEnded,
		pollInterval: interval,
		maxRetries:   retries,
		autoRestart:  opts.AutoRestart,
		settleDelay:  settle,
		rootCtx:      ctx,
		rootCancel:   cancel,
		handles:      make(map[string]*handle),
		subscribers:  make(map[string]chan Event),
		now:          time.Now,
		sleep:        sleepContext,
	}, nil
}

// StartMonitoring spawns a polling worker for sessionID. Starting an
// already-monitored session is a no-op.
func (e *Engine) StartMonitoring(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if _, ok := e.handles[sessionID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(e.rootCtx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	e.handles[sessionID] = h
	go e.run(ctx, sessionID, h)
	e.logger.Info("monitoring started", "session_id", sessionID)
}

// StopMonitoring cancels sessionID's worker and waits for it to exit. A
// cycle already in flight finishes first.
func (e *Engine) StopMonitoring(sessionID string) {
	e.mu.Lock()
	h, ok := e.handles[sessionID]
	if ok {
		delete(e.handles, sessionID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
	e.logger.Info("monitoring stopped", "session_id", sessionID)
}

// StopAll stops every worker and waits for them to exit.
func (e *Engine) StopAll() {
	e.mu.Lock()
	stopped := e.handles
	e.handles = make(map[string]*handle)
	e.mu.Unlock()
	for _, h := range stopped {
		h.cancel()
	}
	for _, h := range stopped {
		<-h.done
	}
	if len(stopped) > 0 {
		e.logger.Info("monitoring stopped for all sessions", "count", len(stopped))
	}
}

// ActiveSessions lists the session IDs with a running worker, sorted.
func (e *Engine) ActiveSessions() []string {
	e.mu.Lock()
	ids := make([]string, 0, len(e.handles))
	for id := range e.handles {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close stops all workers and tears down the event stream. The engine is
// unusable afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.StopAll()
	e.rootCancel()

	e.subMu.Lock()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
	e.subMu.Unlock()
}

func (e *Engine) run(ctx context.Context, sessionID string, h *handle) {
	defer close(h.done)
	st := &sessionState{}

	if e.cycle(ctx, sessionID, st) {
		e.release(sessionID, h)
		return
	}
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.cycle(ctx, sessionID, st) {
				e.release(sessionID, h)
				return
			}
		}
	}
}

// release removes the worker's own handle after a self-stop. StopMonitoring
// may have raced and removed it already.
func (e *Engine) release(sessionID string, h *handle) {
	e.mu.Lock()
	if cur, ok := e.handles[sessionID]; ok && cur == h {
		delete(e.handles, sessionID)
	}
	e.mu.Unlock()
	h.cancel()
}

// cycle runs one poll cycle and reports whether the worker should stop.
func (e *Engine) cycle(ctx context.Context, sessionID string, st *sessionState) bool {
	stop, err := e.runCycle(ctx, sessionID, st)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the cycle; not a monitoring failure.
			return true
		}
		return e.recordFailure(sessionID, st, err)
	}
	st.retryCount = 0
	return stop
}

// runCycle is one capture-analyze-act pass for a session.
func (e *Engine) runCycle(ctx context.Context, sessionID string, st *sessionState) (bool, error) {
	now := e.now()

	sess, err := e.registry.Get(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		e.logger.Info("session removed from registry, stopping monitor", "session_id", sessionID)
		return true, nil
	}

	exists, err := e.pane.PaneExists(ctx, sess.PaneTarget)
	if err != nil {
		return false, fmt.Errorf("check pane: %w", err)
	}
	if !exists {
		e.logger.Info("pane gone, stopping monitor", "session_id", sess.ID, "pane_target", sess.PaneTarget)
		if e.onEnded != nil {
			e.onEnded(ctx, sess)
		}
		return true, nil
	}

	// A due scheduled continuation preempts everything else this cycle.
	// The deadline clears before the attempt so a send failure cannot
	// refire it.
	if !st.scheduledResetTime.IsZero() && !now.Before(st.scheduledResetTime) {
		st.scheduledResetTime = time.Time{}
		if err := e.performContinuation(ctx, sess, st, now); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := e.handleQuota(ctx, sess, st, now); err != nil {
		return false, err
	}

	output, err := e.pane.CapturePlain(ctx, sess.PaneTarget)
	if err != nil {
		return false, fmt.Errorf("capture pane: %w", err)
	}

	if output != st.lastOutput {
		slice := newSlice(st.lastOutput, output)
		st.lastOutput = output
		st.lastOutputChangeTime = now

		limitSeen, err := e.handleLimit(ctx, sess, st, slice, now)
		if err != nil {
			return false, err
		}
		// A genuine limit notice disables dialog interactivity, so limit
		// handling outranks approval arbitration.
		if !limitSeen {
			if err := e.handleApproval(ctx, sess, st, slice); err != nil {
				return false, err
			}
		}
	}

	e.handleIdle(ctx, sess, st, now)
	return false, nil
}

func (e *Engine) recordFailure(sessionID string, st *sessionState, err error) bool {
	st.retryCount++
	if st.retryCount >= e.maxRetries {
		e.logger.Error("monitoring failed, giving up",
			"session_id", sessionID, "retries", st.retryCount, "err", err)
		e.emit(e.newEvent(EventError, sessionID, map[string]string{"message": err.Error()}))
		return true
	}
	e.logger.Warn("monitoring cycle failed, will retry",
		"session_id", sessionID, "retries", st.retryCount, "err", err)
	return false
}

// safeNotify delivers a notification, logging and swallowing any failure.
// Monitoring never halts because a notification could not be sent.
func (e *Engine) safeNotify(ctx context.Context, sess *registry.Session, n notify.Notification) {
	if n.SessionName == "" {
		n.SessionName = sess.Name
	}
	if err := e.notifier.Notify(ctx, sess.ID, n); err != nil {
		e.logger.Warn("notification delivery failed",
			"session_id", sess.ID, "notify_type", string(n.Type), "err", err)
	}
}

func (e *Engine) setStatus(ctx context.Context, sessionID string, status registry.Status) error {
	if err := e.registry.Update(ctx, sessionID, registry.SessionUpdate{Status: &status}); err != nil {
		return fmt.Errorf("set session status %s: %w", status, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
