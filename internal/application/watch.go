package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"paneherd/cli/internal/db"
	"paneherd/cli/internal/eventlog"
	"paneherd/cli/internal/global"
	"paneherd/cli/internal/registry"
)

const (
	watchPollInterval = time.Second
	watchHistoryLimit = 20
	watchBatchLimit   = 200
)

// watchLine is one JSON line of watch output. Data carries the event's
// structured fields when the journal row holds a JSON object; otherwise the
// raw message is passed through.
type watchLine struct {
	SessionID string            `json:"session_id"`
	EventType string            `json:"event_type"`
	At        time.Time         `json:"at"`
	Data      map[string]string `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// WatchSession prints a session's recent journal entries to out and then
// tails the journal as JSON lines until the context ends. It reads the
// daemon's database; the daemon keeps writing while a watch runs.
func WatchSession(ctx context.Context, opts StartOptions, sessionID string, out io.Writer) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	configDir := strings.TrimSpace(opts.ConfigDir)
	if configDir == "" {
		return errors.New("config dir is required")
	}
	fileCfg, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Open(resolveDBPath(opts, fileCfg, configDir))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close(gdb) }()

	sessions, err := registry.NewStore(gdb)
	if err != nil {
		return err
	}
	sess, err := sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	events, err := eventlog.NewStore(gdb)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	lastID, err := printHistory(ctx, enc, events, sessionID)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		batch, err := events.EntriesSince(ctx, sessionID, lastID, watchBatchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, entry := range batch {
			lastID = entry.ID
			if err := enc.Encode(lineFromEntry(entry)); err != nil {
				return err
			}
		}
	}
}

// printHistory emits the most recent entries oldest-first and returns the
// tail cursor.
func printHistory(ctx context.Context, enc *json.Encoder, events *eventlog.Store, sessionID string) (int64, error) {
	recent, err := events.Recent(ctx, sessionID, watchHistoryLimit)
	if err != nil {
		return 0, err
	}
	var lastID int64
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]
		if entry.ID > lastID {
			lastID = entry.ID
		}
		if err := enc.Encode(lineFromEntry(entry)); err != nil {
			return 0, err
		}
	}
	return lastID, nil
}

func lineFromEntry(entry eventlog.Entry) watchLine {
	line := watchLine{
		SessionID: entry.SessionID,
		EventType: entry.EventType,
		At:        entry.At,
	}
	data := map[string]string{}
	if entry.Message != "" && json.Unmarshal([]byte(entry.Message), &data) == nil {
		line.Data = data
	} else {
		line.Message = entry.Message
	}
	return line
}
