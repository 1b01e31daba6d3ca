package models

import "time"

const (
	AttendanceStatusUndecided = "undecided"
	AttendanceStatusGoing     = "going"
	AttendanceStatusPaid      = "paid"
)

// Attendance is a person's RSVP for an event, made on behalf of a profile.
// "paid" is terminal; the other statuses may be revised freely.
type Attendance struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventsID   uint      `gorm:"column:events_id;not null;index:ux_attendance_event_person_profile,unique,priority:1" json:"events_id"`
	PersonID   uint      `gorm:"not null;index:ux_attendance_event_person_profile,unique,priority:2" json:"person_id"`
	ProfileID  uint      `gorm:"not null;index:ux_attendance_event_person_profile,unique,priority:3" json:"profile_id"`
	Status     string    `gorm:"type:varchar(20);not null;default:'undecided'" json:"status"`
	PaymentsID *uint     `gorm:"column:payments_id;default:null;index" json:"payments_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Attendance) IsPaid() bool {
	return a.Status == AttendanceStatusPaid
}

// IsRSVPStatus reports whether status can be set by a free RSVP confirmation.
func IsRSVPStatus(status string) bool {
	switch status {
	case AttendanceStatusUndecided, AttendanceStatusGoing:
		return true
	default:
		return false
	}
}
