package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"paneherd/cli/internal/application"
	"paneherd/cli/internal/command"
	"paneherd/cli/internal/config"
	"paneherd/cli/internal/db"
	"paneherd/cli/internal/global"
	"paneherd/cli/internal/logging"
	"paneherd/cli/internal/patterns"
	"paneherd/cli/internal/registry"

	"gorm.io/gorm"
)

var version = "dev"
var buildTime = "unknown"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:   config.LoadConfig,
		RunServe:     runServe,
		RunMigrateUp: runMigrateUp,
		RunSessionsAdd: func(ctx context.Context, cfg config.Config, req command.SessionAddRequest) error {
			return runSessionsAdd(ctx, cfg, req, os.Stdout)
		},
		RunSessionsList: func(ctx context.Context, cfg config.Config) error {
			return runSessionsList(ctx, cfg, os.Stdout)
		},
		RunSessionsRemove: runSessionsRemove,
		RunWatch:          runWatch,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "paneherd"}).
			Error("paneherd failed", "err", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "standalone"
	}
	if mode != "standalone" && mode != "bridge" {
		return fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: os.Stderr, Component: "paneherd"})

	bridgeOn := cfg.BridgeEnabled || mode == "bridge"
	bridgeURL := ""
	if bridgeOn {
		bridgeURL = cfg.BridgeBaseURL
	}
	app, err := application.StartApplication(ctx, application.StartOptions{
		ConfigDir:      configDir,
		DBPath:         cfg.DBPath,
		TmuxSocket:     cfg.TmuxSocket,
		PollIntervalMS: cfg.PollIntervalMS,
		BridgeEnabled:  bridgeOn,
		BridgeBaseURL:  bridgeURL,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	logger.Info("daemon starting",
		"version", version, "built", buildTime, "mode", mode, "db_path", app.DBPath())
	return app.Run(ctx)
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	gdb, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	return db.Close(gdb)
}

func runSessionsAdd(ctx context.Context, cfg config.Config, req command.SessionAddRequest, out io.Writer) error {
	quota, err := buildQuota(req.QuotaTime, req.QuotaCommand)
	if err != nil {
		return err
	}
	gdb, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	store, err := registry.NewStore(gdb)
	if err != nil {
		return err
	}
	created, err := store.Create(ctx, registry.Session{
		Name:       strings.TrimSpace(req.Name),
		PaneTarget: strings.TrimSpace(req.PaneTarget),
		Quota:      quota,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "session_id=%s\n", created.ID)
	return nil
}

func runSessionsList(ctx context.Context, cfg config.Config, out io.Writer) error {
	gdb, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	store, err := registry.NewStore(gdb)
	if err != nil {
		return err
	}
	sessions, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		line := fmt.Sprintf("id=%s status=%s pane=%s", s.ID, s.Status, s.PaneTarget)
		if s.Name != "" {
			line += fmt.Sprintf(" name=%q", s.Name)
		}
		if s.Quota != nil {
			line += fmt.Sprintf(" quota_time=%s quota_next=%s",
				s.Quota.TimeOfDay, s.Quota.NextExecution.Format(time.RFC3339))
		}
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}

func runSessionsRemove(ctx context.Context, cfg config.Config, id string) error {
	gdb, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	store, err := registry.NewStore(gdb)
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

func runWatch(ctx context.Context, cfg config.Config, id string) error {
	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	return application.WatchSession(ctx, application.StartOptions{
		ConfigDir: configDir,
		DBPath:    cfg.DBPath,
	}, id, os.Stdout)
}

// buildQuota validates the quota flags. Both must be set together; the
// first execution lands at the next wall-clock occurrence of the time.
func buildQuota(timeOfDay, quotaCmd string) (*registry.QuotaSchedule, error) {
	timeOfDay = strings.TrimSpace(timeOfDay)
	quotaCmd = strings.TrimSpace(quotaCmd)
	if timeOfDay == "" && quotaCmd == "" {
		return nil, nil
	}
	if timeOfDay == "" || quotaCmd == "" {
		return nil, errors.New("quota-time and quota-command must be set together")
	}
	hour, minute, ok := patterns.ParseClockTime(timeOfDay)
	if !ok {
		return nil, fmt.Errorf("quota-time %q did not parse", timeOfDay)
	}
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return &registry.QuotaSchedule{TimeOfDay: timeOfDay, Command: quotaCmd, NextExecution: next}, nil
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return db.Open(dbPath)
}

func resolveDBPath(cfg config.Config) (string, error) {
	if p := strings.TrimSpace(cfg.DBPath); p != "" {
		return p, nil
	}
	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return "", err
	}
	fileCfg, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return "", err
	}
	if fileCfg.DBPath != "" {
		return fileCfg.DBPath, nil
	}
	return filepath.Join(configDir, "paneherd.db"), nil
}
