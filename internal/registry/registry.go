// Package registry persists monitored sessions and their quota schedules.
package registry

import (
	"time"
)

type Status string

const (
	StatusActive          Status = "active"
	StatusWaiting         Status = "waiting"
	StatusWaitingApproval Status = "waiting_approval"
	StatusEnded           Status = "ended"
)

// QuotaSchedule describes the recurring daily command for a session.
type QuotaSchedule struct {
	TimeOfDay     string
	Command       string
	NextExecution time.Time
}

type Session struct {
	ID         string
	Name       string
	PaneTarget string
	Status     Status
	Quota      *QuotaSchedule
	Created    time.Time
}

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	Name       *string
	PaneTarget *string
	Status     *Status
	Quota      *QuotaSchedule
}
