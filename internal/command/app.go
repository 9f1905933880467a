package command

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"paneherd/cli/internal/config"
)

// SessionAddRequest carries the fields of a `sessions add` invocation.
type SessionAddRequest struct {
	Name         string
	PaneTarget   string
	QuotaTime    string
	QuotaCommand string
}

// Deps are the runner functions the CLI dispatches into. main wires the
// real implementations; tests substitute counters.
type Deps struct {
	LoadConfig        func() config.Config
	RunServe          func(context.Context, config.Config) error
	RunMigrateUp      func(context.Context, config.Config) error
	RunSessionsAdd    func(context.Context, config.Config, SessionAddRequest) error
	RunSessionsList   func(context.Context, config.Config) error
	RunSessionsRemove func(context.Context, config.Config, string) error
	RunWatch          func(context.Context, config.Config, string) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "paneherd",
		Usage: "supervise AI coding sessions in tmux panes",
		Action: func(ctx *cli.Context) error {
			cfg := loadConfig(deps)
			return runServe(ctx.Context, deps, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the monitoring daemon",
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					return runServe(ctx.Context, deps, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runMigrateUp(ctx.Context, deps, cfg)
						},
					},
				},
			},
			{
				Name:  "sessions",
				Usage: "manage registered sessions",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "register a session for monitoring",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "human label for the session"},
							&cli.StringFlag{Name: "pane", Usage: "tmux pane target (session:window.pane)", Required: true},
							&cli.StringFlag{Name: "quota-time", Usage: "daily quota command time, e.g. 05:00"},
							&cli.StringFlag{Name: "quota-command", Usage: "command to run at the quota time"},
						},
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							req := SessionAddRequest{
								Name:         ctx.String("name"),
								PaneTarget:   ctx.String("pane"),
								QuotaTime:    ctx.String("quota-time"),
								QuotaCommand: ctx.String("quota-command"),
							}
							return runSessionsAdd(ctx.Context, deps, cfg, req)
						},
					},
					{
						Name:  "list",
						Usage: "list registered sessions",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runSessionsList(ctx.Context, deps, cfg)
						},
					},
					{
						Name:      "rm",
						Usage:     "remove a registered session",
						ArgsUsage: "<session-id>",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							id := strings.TrimSpace(ctx.Args().First())
							if id == "" {
								return errors.New("session id is required")
							}
							return runSessionsRemove(ctx.Context, deps, cfg, id)
						},
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "monitor one session and stream its events as JSON lines",
				ArgsUsage: "<session-id>",
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					id := strings.TrimSpace(ctx.Args().First())
					if id == "" {
						return errors.New("session id is required")
					}
					return runWatch(ctx.Context, deps, cfg, id)
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runServe(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}

func runMigrateUp(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunMigrateUp == nil {
		return errors.New("migrate up runner is not configured")
	}
	return deps.RunMigrateUp(ctx, cfg)
}

func runSessionsAdd(ctx context.Context, deps Deps, cfg config.Config, req SessionAddRequest) error {
	if deps.RunSessionsAdd == nil {
		return errors.New("sessions add runner is not configured")
	}
	return deps.RunSessionsAdd(ctx, cfg, req)
}

func runSessionsList(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunSessionsList == nil {
		return errors.New("sessions list runner is not configured")
	}
	return deps.RunSessionsList(ctx, cfg)
}

func runSessionsRemove(ctx context.Context, deps Deps, cfg config.Config, id string) error {
	if deps.RunSessionsRemove == nil {
		return errors.New("sessions rm runner is not configured")
	}
	return deps.RunSessionsRemove(ctx, cfg, id)
}

func runWatch(ctx context.Context, deps Deps, cfg config.Config, id string) error {
	if deps.RunWatch == nil {
		return errors.New("watch runner is not configured")
	}
	return deps.RunWatch(ctx, cfg, id)
}
