// Package migration runs one-shot data migrations after the schema sync.
package migration

import (
	"fmt"

	"gorm.io/gorm"
)

type step struct {
	name string
	run  func(*Migration) error
}

var steps []step

func register(name string, run func(*Migration) error) {
	steps = append(steps, step{name: name, run: run})
}

// Init registers the data migrations in order. Safe to call more than once.
func Init() {
	steps = nil
	register("backfill_session_status", backfillSessionStatus)
}

// Migration is the context handed to each step.
type Migration struct {
	DB   *gorm.DB
	logs []string
}

func (m *Migration) Log(v ...any) {
	m.logs = append(m.logs, fmt.Sprint(v...))
}

// RunAll executes the registered steps in registration order. Schema changes
// belong in SyncSchema; steps here rewrite data only.
func RunAll(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	m := &Migration{DB: db}
	for _, s := range steps {
		m.logs = nil
		if err := s.run(m); err != nil {
			return fmt.Errorf("migration %s failed: %w", s.name, err)
		}
	}
	return nil
}

// Rows created before status tracking carry an empty status; treat them as
// live sessions.
func backfillSessionStatus(m *Migration) error {
	return m.DB.Exec(`UPDATE sessions SET status = 'active' WHERE status = ''`).Error
}
