package application

import (
	"context"
	"log/slog"

	"paneherd/cli/internal/tmux"
)

// StartOptions configures the daemon. Zero values defer to the global
// config file under ConfigDir and to its defaults.
type StartOptions struct {
	// ConfigDir holds config.toml, the sqlite database and the bridge
	// secret key. Required.
	ConfigDir string

	// DBPath overrides the config file's db_path when set.
	DBPath string
	// TmuxSocket selects an alternate tmux server (tmux -L). Empty uses
	// the default server.
	TmuxSocket string
	// PollIntervalMS overrides the config file when > 0.
	PollIntervalMS int
	// BridgeEnabled turns the bridge client on even when the config file
	// leaves it off. BridgeBaseURL then overrides the registration URL.
	BridgeEnabled bool
	BridgeBaseURL string

	Logger *slog.Logger

	// TmuxExec replaces the tmux binary. Tests drive the daemon against
	// a scripted pane this way.
	TmuxExec tmux.Exec

	// Hooks replace the bootstrapped runtime entirely.
	Hooks Hooks
}

// Hooks substitute the daemon's run and shutdown behavior so Application
// plumbing can be exercised without tmux, sqlite or a bridge.
type Hooks struct {
	Run      func(context.Context) error
	Shutdown func(context.Context) error
}
