package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesCoreTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "paneherd.db")
	gdb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer Close(gdb)
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db failed: %v", err)
	}

	mustHave := []string{
		"sessions",
		"monitor_events",
		"notification_log",
		"config",
	}
	for _, name := range mustHave {
		var got string
		if err := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&got); err != nil {
			t.Fatalf("missing table %s: %v", name, err)
		}
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "paneherd.db")
	gdb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	_ = Close(gdb)

	gdb, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer Close(gdb)
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db failed: %v", err)
	}

	var n int
	if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&n); err != nil {
		t.Fatalf("count sessions table failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected sessions table after second open, got count %d", n)
	}
}

func TestOpen_SetsJournalModeAndBusyTimeout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "paneherd.db")
	gdb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer Close(gdb)
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db failed: %v", err)
	}

	var mode sql.NullString
	if err := sqlDB.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatalf("read pragma journal mode failed: %v", err)
	}
	if !mode.Valid || mode.String == "" {
		t.Fatal("pragma journal mode should not be empty")
	}

	var timeout int
	if err := sqlDB.QueryRow(`PRAGMA busy_timeout;`).Scan(&timeout); err != nil {
		t.Fatalf("query busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestMigrateUp_BackfillsEmptySessionStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "paneherd.db")
	gdb, err := openSQLite(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer Close(gdb)
	if err := SyncSchema(gdb); err != nil {
		t.Fatalf("sync schema failed: %v", err)
	}
	if err := gdb.Exec(`INSERT INTO sessions (session_id, name, pane_target, status) VALUES ('s1', 'legacy', 'main:0.0', '')`).Error; err != nil {
		t.Fatalf("seed legacy row failed: %v", err)
	}

	if err := MigrateUp(gdb); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	var status string
	if err := gdb.Raw(`SELECT status FROM sessions WHERE session_id = 's1'`).Scan(&status).Error; err != nil {
		t.Fatalf("read status failed: %v", err)
	}
	if status != "active" {
		t.Fatalf("expected backfilled status active, got %q", status)
	}
}
