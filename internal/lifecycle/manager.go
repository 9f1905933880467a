// Package lifecycle runs the daemon's long-lived jobs and tears them down
// in registration order on exit.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"
)

// shutdownGrace bounds each shutdown job so one stuck closer cannot hang
// the exit path.
const shutdownGrace = 5 * time.Second

type job struct {
	name string
	run  func(context.Context) error
}

// Manager collects run jobs (live until their context ends) and shutdown
// jobs (executed once the run jobs have drained).
type Manager struct {
	logger *slog.Logger

	mu           sync.Mutex
	runJobs      []job
	shutdownJobs []job
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{logger: logger}
}

// AddRun registers a long-running job. A run job returning a non-nil,
// non-canceled error takes the whole daemon down.
func (m *Manager) AddRun(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.runJobs = append(m.runJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

// AddShutdown registers a teardown step. Shutdown jobs run in registration
// order, each under its own grace deadline, after every run job exits.
func (m *Manager) AddShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.shutdownJobs = append(m.shutdownJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

// StartAndWait launches every run job and blocks until the context ends, a
// signal arrives, or a job fails. It then cancels the remaining jobs, waits
// for them, and runs the shutdown jobs.
func (m *Manager) StartAndWait(parent context.Context, sig ...os.Signal) error {
	ctx := parent
	stopSignal := func() {}
	if len(sig) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(parent, sig...)
		stopSignal = stop
	}
	defer stopSignal()

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	m.mu.Lock()
	runJobs := make([]job, len(m.runJobs))
	copy(runJobs, m.runJobs)
	shutdownJobs := make([]job, len(m.shutdownJobs))
	copy(shutdownJobs, m.shutdownJobs)
	m.mu.Unlock()

	errCh := make(chan error, len(runJobs))
	var wg sync.WaitGroup
	for _, j := range runJobs {
		j := j
		wg.Add(1)
		m.logger.Debug("run job starting", "job", j.name)
		go func() {
			defer wg.Done()
			if err := j.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("run job failed", "job", j.name, "err", err)
				errCh <- err
				cancelRuns()
			}
		}()
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		cancelRuns()
	case err := <-errCh:
		runErr = err
		cancelRuns()
	case <-doneCh:
	}
	<-doneCh

	var shutdownErr error
	for _, j := range shutdownJobs {
		jobCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := j.run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("shutdown job failed", "job", j.name, "err", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
		cancel()
	}
	return errors.Join(runErr, shutdownErr)
}
