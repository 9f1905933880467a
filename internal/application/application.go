// Package application boots the paneherd daemon: configuration, database,
// monitoring engine, notification sinks and the optional bridge client,
// composed under one lifecycle manager.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"paneherd/cli/internal/bridge"
	"paneherd/cli/internal/bridgeauth"
	"paneherd/cli/internal/db"
	"paneherd/cli/internal/eventlog"
	"paneherd/cli/internal/global"
	"paneherd/cli/internal/lifecycle"
	"paneherd/cli/internal/logging"
	"paneherd/cli/internal/monitor"
	"paneherd/cli/internal/notify"
	"paneherd/cli/internal/registry"
	"paneherd/cli/internal/tmux"
	"paneherd/cli/internal/turn"

	"gorm.io/gorm"
)

const (
	dbFileName        = "paneherd.db"
	bridgeSecretFile  = "bridge-secret.key"
	eventSubscriberID = "event-journal"

	bridgeRetryMin = 2 * time.Second
	bridgeRetryMax = time.Minute
	// bridgeStableAfter resets the reconnect backoff once a connection
	// has held this long.
	bridgeStableAfter = time.Minute
)

type Application struct {
	dbPath     string
	runFn      func(context.Context) error
	shutdownFn func(context.Context) error
}

// StartApplication wires the daemon and returns it ready to Run. Nothing
// monitors or connects until Run is called.
func StartApplication(_ context.Context, opts StartOptions) (*Application, error) {
	if opts.Hooks.Run != nil || opts.Hooks.Shutdown != nil {
		return &Application{
			runFn:      opts.Hooks.Run,
			shutdownFn: opts.Hooks.Shutdown,
		}, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	configDir := strings.TrimSpace(opts.ConfigDir)
	if configDir == "" {
		return nil, errors.New("config dir is required")
	}
	fileCfg, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := resolveDBPath(opts, fileCfg, configDir)
	gdb, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app, err := buildRuntime(opts, fileCfg, configDir, dbPath, gdb, logger)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return app, nil
}

func buildRuntime(opts StartOptions, fileCfg global.GlobalConfig, configDir, dbPath string, gdb *gorm.DB, logger *slog.Logger) (*Application, error) {
	sessions, err := registry.NewStore(gdb)
	if err != nil {
		return nil, err
	}
	events, err := eventlog.NewStore(gdb)
	if err != nil {
		return nil, err
	}

	execer := opts.TmuxExec
	if execer == nil {
		execer = &tmux.RealExec{}
	}
	panes := tmux.NewAdapterWithSocket(execer, strings.TrimSpace(opts.TmuxSocket))

	var sinks notify.Multi
	if fileCfg.Notify.Enabled {
		sinks = append(sinks, notify.NewCommandNotifier(fileCfg.Notify.Command))
	}
	journal := &notify.Journal{Log: events, Next: sinks, Logger: logger}

	pollInterval := time.Duration(fileCfg.Monitor.PollIntervalMS) * time.Millisecond
	if opts.PollIntervalMS > 0 {
		pollInterval = time.Duration(opts.PollIntervalMS) * time.Millisecond
	}
	engine, err := monitor.New(monitor.Deps{
		Pane:     panes,
		Registry: sessions,
		Notifier: journal,
	}, monitor.Options{
		PollInterval: pollInterval,
		MaxRetries:   fileCfg.Monitor.MaxRetries,
		AutoRestart:  fileCfg.Monitor.AutoRestart,
		SettleDelay:  time.Duration(fileCfg.Monitor.SettleDelayMS) * time.Millisecond,
		OnSessionEnded: func(cbCtx context.Context, sess *registry.Session) {
			ended := registry.StatusEnded
			if err := sessions.Update(cbCtx, sess.ID, registry.SessionUpdate{Status: &ended}); err != nil {
				logger.Warn("mark session ended failed", "session_id", sess.ID, "err", err)
			}
		},
		Logger: logger.With("component", "monitor"),
	})
	if err != nil {
		return nil, err
	}

	mgr := lifecycle.NewManager(logger)
	// Subscribed before any worker starts; events raised during boot sit
	// in the channel buffer until the drain job runs.
	eventCh := engine.Subscribe(eventSubscriberID)
	mgr.AddRun(eventSubscriberID, func(runCtx context.Context) error {
		defer engine.Unsubscribe(eventSubscriberID)
		return drainEngineEvents(runCtx, eventCh, events, logger)
	})

	bridgeEnabled := fileCfg.Bridge.Enabled || opts.BridgeEnabled
	if bridgeEnabled {
		baseURL := fileCfg.Bridge.BaseURL
		if u := strings.TrimSpace(opts.BridgeBaseURL); u != "" {
			baseURL = u
		}
		if baseURL == "" {
			logger.Warn("bridge enabled without a base url, bridge client disabled")
		} else {
			auth, err := bridgeauth.NewStore(gdb, filepath.Join(configDir, bridgeSecretFile))
			if err != nil {
				return nil, fmt.Errorf("bridge auth store: %w", err)
			}
			creds, err := auth.Load()
			if err != nil {
				return nil, fmt.Errorf("load bridge credentials: %w", err)
			}
			agentName := fileCfg.Bridge.Agent
			if agentName == "" {
				agentName = creds.AgentName
			}
			if agentName == "" {
				agentName = "paneherd"
			}
			agent := turn.NewAgent(
				turn.NewRegisterClient(baseURL, creds.Token),
				turn.RealDialer{},
				bridge.NewHandler(engine, sessions, panes),
				agentName,
				logger.With("component", "bridge"),
			)
			// Wired before Run starts any worker, so no monitor goroutine
			// observes the partial sink list.
			sinks = append(sinks, turn.NewNotifier(agent))
			journal.Next = sinks
			mgr.AddRun("bridge-agent", func(runCtx context.Context) error {
				return runBridgeAgent(runCtx, agent, logger)
			})
		}
	}

	mgr.AddShutdown("stop-monitor", func(context.Context) error {
		engine.Close()
		return nil
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		return db.Close(gdb)
	})

	app := &Application{dbPath: dbPath}
	app.runFn = func(runCtx context.Context) error {
		autostart(runCtx, engine, sessions, logger)
		return mgr.StartAndWait(runCtx)
	}
	app.shutdownFn = func(context.Context) error {
		engine.Close()
		return db.Close(gdb)
	}
	return app, nil
}

// autostart resumes monitoring for every session that has not ended, so a
// daemon restart picks up where the registry left off.
func autostart(ctx context.Context, engine *monitor.Engine, sessions *registry.Store, logger *slog.Logger) {
	list, err := sessions.List(ctx)
	if err != nil {
		logger.Error("session autostart list failed", "err", err)
		return
	}
	started := 0
	for _, sess := range list {
		if sess.Status == registry.StatusEnded {
			continue
		}
		engine.StartMonitoring(sess.ID)
		started++
	}
	if started > 0 {
		logger.Info("session monitoring resumed", "count", started)
	}
}

func drainEngineEvents(ctx context.Context, ch <-chan monitor.Event, events *eventlog.Store, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if err := events.Append(ctx, evt.SessionID, string(evt.Type), eventMessage(evt)); err != nil {
				logger.Warn("event journal append failed",
					"session_id", evt.SessionID, "event_type", string(evt.Type), "err", err)
			}
		}
	}
}

// runBridgeAgent keeps one bridge connection alive under capped exponential
// backoff. A connection that held for a while resets the backoff.
func runBridgeAgent(ctx context.Context, agent *turn.Agent, logger *slog.Logger) error {
	backoff := bridgeRetryMin
	for {
		started := time.Now()
		err := agent.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) >= bridgeStableAfter {
			backoff = bridgeRetryMin
		}
		if err != nil {
			logger.Warn("bridge connection failed", "err", err, "retry_in", backoff.String())
		} else {
			logger.Info("bridge connection closed, reconnecting", "retry_in", backoff.String())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > bridgeRetryMax {
			backoff = bridgeRetryMax
		}
	}
}

func resolveDBPath(opts StartOptions, fileCfg global.GlobalConfig, configDir string) string {
	if p := strings.TrimSpace(opts.DBPath); p != "" {
		return p
	}
	if fileCfg.DBPath != "" {
		return fileCfg.DBPath
	}
	return filepath.Join(configDir, dbFileName)
}

// eventMessage flattens an event's data map for the journal row.
func eventMessage(evt monitor.Event) string {
	if len(evt.Data) == 0 {
		return ""
	}
	raw, err := json.Marshal(evt.Data)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (a *Application) DBPath() string {
	if a == nil {
		return ""
	}
	return a.dbPath
}

func (a *Application) Run(ctx context.Context) error {
	if a == nil || a.runFn == nil {
		return nil
	}
	return a.runFn(ctx)
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil || a.shutdownFn == nil {
		return nil
	}
	return a.shutdownFn(ctx)
}
