// Package eventlog keeps a queryable journal of monitor events and
// delivered notifications.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	dbmodel "paneherd/cli/internal/db"
	"paneherd/cli/internal/notify"

	"gorm.io/gorm"
)

type Entry struct {
	ID        int64
	SessionID string
	EventType string
	Message   string
	At        time.Time
}

type NotificationEntry struct {
	SessionID string
	Type      string
	Title     string
	Message   string
	Metadata  map[string]string
	At        time.Time
}

type Store struct {
	db *gorm.DB
}

// NewStore uses the shared global DB. Caller must not close the db.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, sessionID, eventType, message string) error {
	if s == nil || s.db == nil {
		return errors.New("event log is not initialized")
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(eventType) == "" {
		return errors.New("session id and event type are required")
	}
	row := dbmodel.MonitorEvent{
		SessionID: strings.TrimSpace(sessionID),
		EventType: strings.TrimSpace(eventType),
		Message:   message,
		CreatedAt: time.Now().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("event log is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if target := strings.TrimSpace(sessionID); target != "" {
		q = q.Where("session_id = ?", target)
	}
	rows := make([]dbmodel.MonitorEvent, 0, limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return entries, nil
}

// EntriesSince returns the entries for sessionID with a row id greater than
// afterID, oldest first. Tailing callers hand back the last ID they saw.
func (s *Store) EntriesSince(ctx context.Context, sessionID string, afterID int64, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("event log is not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC").Limit(limit)
	if target := strings.TrimSpace(sessionID); target != "" {
		q = q.Where("session_id = ?", target)
	}
	rows := make([]dbmodel.MonitorEvent, 0, limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return entries, nil
}

func entryFromRow(row dbmodel.MonitorEvent) Entry {
	return Entry{
		ID:        row.ID,
		SessionID: row.SessionID,
		EventType: row.EventType,
		Message:   row.Message,
		At:        time.Unix(row.CreatedAt, 0).UTC(),
	}
}

// AppendNotification satisfies notify.NotificationLog.
func (s *Store) AppendNotification(ctx context.Context, sessionID string, n notify.Notification) error {
	if s == nil || s.db == nil {
		return errors.New("event log is not initialized")
	}
	metaJSON := ""
	if len(n.Metadata) > 0 {
		raw, err := json.Marshal(n.Metadata)
		if err != nil {
			return err
		}
		metaJSON = string(raw)
	}
	row := dbmodel.NotificationRecord{
		SessionID:    strings.TrimSpace(sessionID),
		NotifyType:   string(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		MetadataJSON: metaJSON,
		CreatedAt:    time.Now().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) RecentNotifications(ctx context.Context, sessionID string, limit int) ([]NotificationEntry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("event log is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if target := strings.TrimSpace(sessionID); target != "" {
		q = q.Where("session_id = ?", target)
	}
	rows := make([]dbmodel.NotificationRecord, 0, limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]NotificationEntry, 0, len(rows))
	for _, row := range rows {
		entry := NotificationEntry{
			SessionID: row.SessionID,
			Type:      row.NotifyType,
			Title:     row.Title,
			Message:   row.Message,
			At:        time.Unix(row.CreatedAt, 0).UTC(),
		}
		if row.MetadataJSON != "" {
			meta := map[string]string{}
			if err := json.Unmarshal([]byte(row.MetadataJSON), &meta); err == nil {
				entry.Metadata = meta
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("event log is not initialized")
	}
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&dbmodel.MonitorEvent{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&dbmodel.NotificationRecord{}).Error
}
