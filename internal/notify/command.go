package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const defaultCommandTimeout = 45 * time.Second

// CommandRunner executes a command with extra environment variables.
type CommandRunner func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

// CommandNotifier runs a user-configured shell command per notification,
// passing the payload through PANEHERD_* environment variables.
type CommandNotifier struct {
	Command string
	Timeout time.Duration
	Run     CommandRunner
}

func NewCommandNotifier(command string) *CommandNotifier {
	return &CommandNotifier{Command: command, Timeout: defaultCommandTimeout}
}

func (c *CommandNotifier) Notify(ctx context.Context, sessionID string, n Notification) error {
	command := strings.TrimSpace(c.Command)
	if command == "" {
		return errors.New("notify command is not configured")
	}
	shell, shellArg, err := resolveShell()
	if err != nil {
		return err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := []string{
		"PANEHERD_SESSION_ID=" + strings.TrimSpace(sessionID),
		"PANEHERD_SESSION_NAME=" + n.SessionName,
		"PANEHERD_NOTIFY_TYPE=" + string(n.Type),
		"PANEHERD_NOTIFY_TITLE=" + n.Title,
		"PANEHERD_NOTIFY_MESSAGE=" + n.Message,
	}
	if len(n.Metadata) > 0 {
		if meta, err := json.Marshal(n.Metadata); err == nil {
			env = append(env, "PANEHERD_NOTIFY_METADATA="+string(meta))
		}
	}

	run := c.Run
	if run == nil {
		run = runWithEnv
	}
	_, err = run(ctx, env, shell, shellArg, command)
	return err
}

func runWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

func resolveShell() (string, string, error) {
	switch runtime.GOOS {
	case "windows":
		return "cmd", "/C", nil
	case "darwin", "linux", "freebsd", "openbsd", "netbsd":
		return "sh", "-c", nil
	default:
		return "", "", errors.New("unsupported shell")
	}
}
