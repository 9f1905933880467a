package tmux

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultExistsTimeout = 5 * time.Second
	defaultKeyPause      = 200 * time.Millisecond
)

// Adapter drives a tmux server through its CLI. Pane targets use the
// canonical "session:window.pane" form.
type Adapter struct {
	exec          Exec
	tmuxSocket    string
	existsTimeout time.Duration
	keyPause      time.Duration
	sleep         func(context.Context, time.Duration)
}

func NewAdapter(e Exec) *Adapter {
	return &Adapter{
		exec:          e,
		existsTimeout: defaultExistsTimeout,
		keyPause:      defaultKeyPause,
		sleep:         sleepContext,
	}
}

func NewAdapterWithSocket(e Exec, socket string) *Adapter {
	a := NewAdapter(e)
	a.tmuxSocket = socket
	return a
}

func (a *Adapter) SocketName() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.tmuxSocket)
}

// ListPanes returns every pane target known to the server.
func (a *Adapter) ListPanes(ctx context.Context) ([]string, error) {
	out, err := a.exec.Output(ctx, "tmux", a.withSocket("list-panes", "-a", "-F", "#{session_name}:#{window_index}.#{pane_index}")...)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// PaneExists probes for the target pane under a hard timeout. A probe that
// times out reports the pane as gone rather than returning an error.
func (a *Adapter) PaneExists(ctx context.Context, target string) (bool, error) {
	needle := strings.TrimSpace(target)
	if needle == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.existsTimeout)
	defer cancel()
	panes, err := a.ListPanes(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	for _, pane := range panes {
		if strings.TrimSpace(pane) == needle {
			return true, nil
		}
	}
	return false, nil
}

// CapturePlain returns the visible pane content with escape sequences
// already resolved by tmux.
func (a *Adapter) CapturePlain(ctx context.Context, target string) (string, error) {
	out, err := a.exec.Output(ctx, "tmux", a.withSocket("capture-pane", "-p", "-t", target)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CaptureColored returns the visible pane content including escape
// sequences, which is what the interactivity check needs.
func (a *Adapter) CaptureColored(ctx context.Context, target string) (string, error) {
	out, err := a.exec.Output(ctx, "tmux", a.withSocket("capture-pane", "-p", "-e", "-t", target)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SendCooked types text literally and submits it with Enter.
func (a *Adapter) SendCooked(ctx context.Context, target, text string) error {
	if err := a.exec.Run(ctx, "tmux", a.withSocket("send-keys", "-l", "-t", target, text)...); err != nil {
		return err
	}
	return a.exec.Run(ctx, "tmux", a.withSocket("send-keys", "-t", target, "Enter")...)
}

// SendRaw sends a single key token without literal mode, so tmux key names
// like Enter and C-u keep their meaning.
func (a *Adapter) SendRaw(ctx context.Context, target, keys string) error {
	return a.exec.Run(ctx, "tmux", a.withSocket("send-keys", "-t", target, keys)...)
}

// SendContinueSequence clears the input line, types "continue" and submits
// it. The pauses give the pane time to render between keystrokes.
func (a *Adapter) SendContinueSequence(ctx context.Context, target string) error {
	if err := a.SendRaw(ctx, target, "C-u"); err != nil {
		return err
	}
	a.sleep(ctx, a.keyPause)
	if err := a.exec.Run(ctx, "tmux", a.withSocket("send-keys", "-l", "-t", target, "continue")...); err != nil {
		return err
	}
	a.sleep(ctx, a.keyPause)
	return a.SendRaw(ctx, target, "Enter")
}

func (a *Adapter) withSocket(args ...string) []string {
	if a.tmuxSocket == "" {
		return args
	}
	return append([]string{"-L", a.tmuxSocket}, args...)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
