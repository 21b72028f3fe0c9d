package models

import (
	"time"
)

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// LateCutoffHour is the local hour from which a check-in counts as late
const LateCutoffHour = 10

type AttendanceSource string

const (
	AttendanceSourceApp       AttendanceSource = "app"
	AttendanceSourceBiometric AttendanceSource = "biometric"
	AttendanceSourceAdmin     AttendanceSource = "admin"
)

// AttendanceRecord is one member's attendance for one calendar day
type AttendanceRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint   `gorm:"not null;uniqueIndex:idx_attendance_user_date,priority:1" json:"user_id"`
	Date   string `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_user_date,priority:2;index" json:"date"` // YYYY-MM-DD

	CheckInTime     *time.Time       `json:"check_in_time"`
	CheckOutTime    *time.Time       `json:"check_out_time"`
	DurationMinutes *int             `json:"duration_minutes"`
	Status          AttendanceStatus `gorm:"type:varchar(20)" json:"status"`

	Source   AttendanceSource `gorm:"type:varchar(20);default:'app'" json:"source"`
	DeviceID string           `gorm:"type:varchar(100)" json:"device_id,omitempty"`
	EventID  string           `gorm:"type:varchar(64)" json:"event_id,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// StatusForCheckIn derives present/late from the local check-in time
func StatusForCheckIn(local time.Time) AttendanceStatus {
	if local.Hour() >= LateCutoffHour {
		return AttendanceStatusLate
	}
	return AttendanceStatusPresent
}

// DateKey formats t as the attendance day key in loc
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Qualifies reports whether the record counts toward a streak
func (a AttendanceRecord) Qualifies() bool {
	return a.Status == AttendanceStatusPresent || a.Status == AttendanceStatusLate
}
