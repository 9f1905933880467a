package db

type Session struct {
	SessionID    string `gorm:"column:session_id;primaryKey"`
	Name         string `gorm:"column:name;not null;default:''"`
	PaneTarget   string `gorm:"column:pane_target;not null;default:''"`
	Status       string `gorm:"column:status;not null;default:'active'"`
	QuotaTime    string `gorm:"column:quota_time;not null;default:''"`
	QuotaCommand string `gorm:"column:quota_command;not null;default:''"`
	QuotaNextAt  int64  `gorm:"column:quota_next_at;not null;default:0"`
	CreatedAt    int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt    int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Session) TableName() string { return "sessions" }

type MonitorEvent struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string `gorm:"column:session_id;not null"`
	EventType string `gorm:"column:event_type;not null"`
	Message   string `gorm:"column:message;not null;default:''"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
}

func (MonitorEvent) TableName() string { return "monitor_events" }

type NotificationRecord struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID    string `gorm:"column:session_id;not null"`
	NotifyType   string `gorm:"column:notify_type;not null"`
	Title        string `gorm:"column:title;not null;default:''"`
	Message      string `gorm:"column:message;not null;default:''"`
	MetadataJSON string `gorm:"column:metadata_json;not null;default:''"`
	CreatedAt    int64  `gorm:"column:created_at;not null;default:0"`
}

func (NotificationRecord) TableName() string { return "notification_log" }

type Config struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Config) TableName() string { return "config" }
