package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	dbmodel "paneherd/cli/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("session not found")

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

func (s *Store) Create(ctx context.Context, sess Session) (Session, error) {
	if s == nil || s.db == nil {
		return Session{}, errors.New("session store is not initialized")
	}
	sess.ID = strings.TrimSpace(sess.ID)
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if strings.TrimSpace(sess.PaneTarget) == "" {
		return Session{}, errors.New("pane target is required")
	}
	if sess.Status == "" {
		sess.Status = StatusActive
	}
	if sess.Created.IsZero() {
		sess.Created = time.Now().UTC()
	}
	row := toRow(sess)
	row.UpdatedAt = time.Now().UTC().Unix()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Session{}, err
	}
	return fromRow(row), nil
}

// Get returns nil without an error when the session does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("session store is not initialized")
	}
	var row dbmodel.Session
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := fromRow(row)
	return &sess, nil
}

func (s *Store) Update(ctx context.Context, id string, upd SessionUpdate) error {
	if s == nil || s.db == nil {
		return errors.New("session store is not initialized")
	}
	assignments := map[string]any{}
	if upd.Name != nil {
		assignments["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.PaneTarget != nil {
		assignments["pane_target"] = strings.TrimSpace(*upd.PaneTarget)
	}
	if upd.Status != nil {
		assignments["status"] = string(*upd.Status)
	}
	if upd.Quota != nil {
		assignments["quota_time"] = upd.Quota.TimeOfDay
		assignments["quota_command"] = upd.Quota.Command
		assignments["quota_next_at"] = quotaUnix(upd.Quota.NextExecution)
	}
	if len(assignments) == 0 {
		return nil
	}
	assignments["updated_at"] = time.Now().UTC().Unix()
	tx := s.db.WithContext(ctx).Model(&dbmodel.Session{}).Where("session_id = ?", strings.TrimSpace(id)).Updates(assignments)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Session, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("session store is not initialized")
	}
	rows := make([]dbmodel.Session, 0, 16)
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, fromRow(row))
	}
	return sessions, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("session store is not initialized")
	}
	tx := s.db.WithContext(ctx).Where("session_id = ?", strings.TrimSpace(id)).Delete(&dbmodel.Session{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toRow(sess Session) dbmodel.Session {
	row := dbmodel.Session{
		SessionID:  sess.ID,
		Name:       strings.TrimSpace(sess.Name),
		PaneTarget: strings.TrimSpace(sess.PaneTarget),
		Status:     string(sess.Status),
		CreatedAt:  sess.Created.UTC().Unix(),
	}
	if sess.Quota != nil {
		row.QuotaTime = sess.Quota.TimeOfDay
		row.QuotaCommand = sess.Quota.Command
		row.QuotaNextAt = quotaUnix(sess.Quota.NextExecution)
	}
	return row
}

func fromRow(row dbmodel.Session) Session {
	sess := Session{
		ID:         row.SessionID,
		Name:       row.Name,
		PaneTarget: row.PaneTarget,
		Status:     Status(row.Status),
		Created:    time.Unix(row.CreatedAt, 0).UTC(),
	}
	if row.QuotaTime != "" || row.QuotaCommand != "" || row.QuotaNextAt != 0 {
		sess.Quota = &QuotaSchedule{
			TimeOfDay: row.QuotaTime,
			Command:   row.QuotaCommand,
		}
		// A stored 0 means no deadline, which must round-trip back to the
		// zero time rather than the epoch.
		if row.QuotaNextAt != 0 {
			sess.Quota.NextExecution = time.Unix(row.QuotaNextAt, 0).UTC()
		}
	}
	return sess
}

func quotaUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}
