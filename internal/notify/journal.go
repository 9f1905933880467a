package notify

import (
	"context"
	"log/slog"
)

// NotificationLog records delivered notifications for later inspection.
type NotificationLog interface {
	AppendNotification(ctx context.Context, sessionID string, n Notification) error
}

// Journal writes each notification to the log before handing it to the
// wrapped sink. Journal failures never block delivery.
type Journal struct {
	Log    NotificationLog
	Next   Notifier
	Logger *slog.Logger
}

func (j *Journal) Notify(ctx context.Context, sessionID string, n Notification) error {
	if j.Log != nil {
		if err := j.Log.AppendNotification(ctx, sessionID, n); err != nil && j.Logger != nil {
			j.Logger.Warn("notification journal append failed", "session_id", sessionID, "err", err)
		}
	}
	if j.Next == nil {
		return nil
	}
	return j.Next.Notify(ctx, sessionID, n)
}
