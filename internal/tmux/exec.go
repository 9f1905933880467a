package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Exec is the seam between the adapter and the tmux binary. Tests swap in
// scripted implementations; RealExec shells out.
type Exec interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Run(ctx context.Context, name string, args ...string) error
}

type RealExec struct{}

func (r *RealExec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return out, decorate(err, out)
}

func (r *RealExec) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return decorate(err, out)
}

// decorate folds tmux's stderr text into the exec error, which otherwise
// reads only "exit status 1".
func decorate(err error, out []byte) error {
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
