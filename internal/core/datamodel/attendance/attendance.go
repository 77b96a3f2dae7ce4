package attendance

import (
	"time"

	"gorm.io/datatypes"
)

type Record struct {
	ID               int64          `gorm:"primaryKey"`
	UserID           int64          `gorm:"column:user_id;not null;index:idx_attendance_records_user_day"`
	EmployeeID       *int64         `gorm:"column:employee_id;index:idx_attendance_records_employee_day"`
	WorkDate         string         `gorm:"column:work_date;size:10;not null;index:idx_attendance_records_user_day;index:idx_attendance_records_employee_day"`
	ActiveKey        *string        `gorm:"column:active_key;size:64;uniqueIndex"`
	FirstCheckInTime *time.Time     `gorm:"column:first_check_in_time"`
	CheckInTime      *time.Time     `gorm:"column:check_in_time"`
	CheckInMethod    string         `gorm:"column:check_in_method;size:20"`
	CheckInMeta      datatypes.JSON `gorm:"column:check_in_meta"`
	CheckOutTime     *time.Time     `gorm:"column:check_out_time"`
	CheckOutMethod   string         `gorm:"column:check_out_method;size:20"`
	CheckOutMeta     datatypes.JSON `gorm:"column:check_out_meta"`
	TotalHours       float64        `gorm:"column:total_hours;not null;default:0"`
	Sessions         int            `gorm:"column:sessions;not null;default:0"`
	Status           string         `gorm:"column:status;size:20;not null;default:present"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	Version          int64          `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Record) TableName() string { return "attendance_records" }

// Event rows are append-only. Seq is the poll cursor for log followers.
type Event struct {
	Seq          int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	EventID      string         `gorm:"column:event_id;size:36;uniqueIndex;not null"`
	RecordID     int64          `gorm:"column:record_id;not null;index"`
	UserID       int64          `gorm:"column:user_id;not null;index"`
	EmployeeID   *int64         `gorm:"column:employee_id;index"`
	WorkDate     string         `gorm:"column:work_date;size:10;not null"`
	EventType    string         `gorm:"column:event_type;size:20;not null"`
	Action       string         `gorm:"column:action;size:20;not null"`
	Method       string         `gorm:"column:method;size:20;not null"`
	OccurredAt   time.Time      `gorm:"column:occurred_at;not null;index"`
	CheckInTime  *time.Time     `gorm:"column:check_in_time"`
	CheckOutTime *time.Time     `gorm:"column:check_out_time"`
	TotalHours   float64        `gorm:"column:total_hours;not null;default:0"`
	Meta         datatypes.JSON `gorm:"column:meta"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Event) TableName() string { return "attendance_events" }

type Device struct {
	DeviceID   string    `gorm:"column:device_id;primaryKey;size:128"`
	UserID     int64     `gorm:"column:user_id;not null"`
	EmployeeID *int64    `gorm:"column:employee_id"`
	Platform   string    `gorm:"column:platform;size:40"`
	Model      string    `gorm:"column:model;size:80"`
	AppVersion string    `gorm:"column:app_version;size:40"`
	LastAction string    `gorm:"column:last_action;size:20"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string { return "attendance_devices" }

// Cursor stores how far a named log follower has read.
type Cursor struct {
	Name      string    `gorm:"column:name;primaryKey;size:80"`
	LastSeq   int64     `gorm:"column:last_seq;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cursor) TableName() string { return "event_cursors" }
