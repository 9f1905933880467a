// Package notify delivers typed session notifications to user-facing sinks.
package notify

import (
	"context"
	"errors"
)

type Type string

const (
	TypeLimit         Type = "limit"
	TypeContinued     Type = "continued"
	TypeApproval      Type = "approval"
	TypeTaskCompleted Type = "task_completed"
	TypeError         Type = "error"
)

type Notification struct {
	Type        Type
	SessionName string
	Title       string
	Message     string
	Metadata    map[string]string
}

// Notifier owns its own retry and transport policy. The monitoring engine
// treats delivery as fire-and-forget, so implementations must return
// promptly.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n Notification) error
}

// Multi fans a notification out to every sink and joins the failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, sessionID string, n Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, sessionID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
