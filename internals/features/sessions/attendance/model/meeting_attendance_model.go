// file: internals/features/sessions/attendance/model/meeting_attendance_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	AttendanceStatusAttended AttendanceStatus = "attended"
	AttendanceStatusLate     AttendanceStatus = "late"
	AttendanceStatusLeft     AttendanceStatus = "left"
	AttendanceStatusAbsent   AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusAttended, AttendanceStatusLate, AttendanceStatusLeft, AttendanceStatusAbsent:
		return true
	}
	return false
}

type AttendanceRole string

const (
	AttendanceRoleTeacher AttendanceRole = "teacher"
	AttendanceRoleStudent AttendanceRole = "student"
)

const AutoCloseSessionEnded = "session_ended"

// Cycle is one contiguous join -> leave interval.
type Cycle struct {
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	AutoClosed      bool       `json:"auto_closed,omitempty"`
	AutoCloseReason string     `json:"auto_close_reason,omitempty"`
}

func (c Cycle) IsOpen() bool { return c.LeftAt == nil }

/* =========================================================
   MODEL: meeting_attendances
========================================================= */

type MeetingAttendanceModel struct {
	MeetingAttendanceID        uuid.UUID      `gorm:"type:uuid;primaryKey;column:meeting_attendance_id" json:"meeting_attendance_id"`
	MeetingAttendanceTenantID  uuid.UUID      `gorm:"type:uuid;not null;column:meeting_attendance_tenant_id" json:"meeting_attendance_tenant_id"`
	MeetingAttendanceSessionID uuid.UUID      `gorm:"type:uuid;not null;column:meeting_attendance_session_id;uniqueIndex:uq_meeting_attendance_session_user,priority:1" json:"meeting_attendance_session_id"`
	MeetingAttendanceSubtype   string         `gorm:"type:varchar(24);not null;column:meeting_attendance_subtype" json:"meeting_attendance_subtype"`
	MeetingAttendanceUserID    uuid.UUID      `gorm:"type:uuid;not null;column:meeting_attendance_user_id;uniqueIndex:uq_meeting_attendance_session_user,priority:2" json:"meeting_attendance_user_id"`
	MeetingAttendanceRole      AttendanceRole `gorm:"type:varchar(16);not null;column:meeting_attendance_role" json:"meeting_attendance_role"`

	MeetingAttendanceCycles datatypes.JSONType[[]Cycle] `gorm:"column:meeting_attendance_cycles" json:"meeting_attendance_cycles"`

	MeetingAttendanceJoinCount            int        `gorm:"not null;default:0;column:meeting_attendance_join_count" json:"meeting_attendance_join_count"`
	MeetingAttendanceLeaveCount           int        `gorm:"not null;default:0;column:meeting_attendance_leave_count" json:"meeting_attendance_leave_count"`
	MeetingAttendanceTotalDurationMinutes int        `gorm:"not null;default:0;column:meeting_attendance_total_duration_minutes" json:"meeting_attendance_total_duration_minutes"`
	MeetingAttendanceFirstJoinAt          *time.Time `gorm:"column:meeting_attendance_first_join_at" json:"meeting_attendance_first_join_at,omitempty"`
	MeetingAttendanceLastLeaveAt          *time.Time `gorm:"column:meeting_attendance_last_leave_at" json:"meeting_attendance_last_leave_at,omitempty"`

	// set by finalization
	MeetingAttendancePercentage             *float64          `gorm:"type:numeric(5,2);column:meeting_attendance_percentage" json:"meeting_attendance_percentage,omitempty"`
	MeetingAttendanceStatus                 *AttendanceStatus `gorm:"type:varchar(16);column:meeting_attendance_status;index:idx_meeting_attendance_status" json:"meeting_attendance_status,omitempty"`
	MeetingAttendanceIsCalculated           bool              `gorm:"not null;default:false;column:meeting_attendance_is_calculated" json:"meeting_attendance_is_calculated"`
	MeetingAttendanceCalculatedAt           *time.Time        `gorm:"column:meeting_attendance_calculated_at" json:"meeting_attendance_calculated_at,omitempty"`
	MeetingAttendanceSessionDurationMinutes *int              `gorm:"column:meeting_attendance_session_duration_minutes" json:"meeting_attendance_session_duration_minutes,omitempty"`

	// manual override
	MeetingAttendanceIsManuallyOverridden bool       `gorm:"not null;default:false;column:meeting_attendance_is_manually_overridden" json:"meeting_attendance_is_manually_overridden"`
	MeetingAttendanceOverriddenBy         *uuid.UUID `gorm:"type:uuid;column:meeting_attendance_overridden_by" json:"meeting_attendance_overridden_by,omitempty"`
	MeetingAttendanceOverriddenAt         *time.Time `gorm:"column:meeting_attendance_overridden_at" json:"meeting_attendance_overridden_at,omitempty"`
	MeetingAttendanceOverrideNote         *string    `gorm:"type:text;column:meeting_attendance_override_note" json:"meeting_attendance_override_note,omitempty"`

	MeetingAttendanceCreatedAt time.Time `gorm:"column:meeting_attendance_created_at;autoCreateTime" json:"meeting_attendance_created_at"`
	MeetingAttendanceUpdatedAt time.Time `gorm:"column:meeting_attendance_updated_at;autoUpdateTime" json:"meeting_attendance_updated_at"`
}

func (MeetingAttendanceModel) TableName() string { return "meeting_attendances" }

func (m *MeetingAttendanceModel) BeforeCreate(tx *gorm.DB) error {
	if m.MeetingAttendanceID == uuid.Nil {
		m.MeetingAttendanceID = uuid.New()
	}
	return nil
}

/* =========================================================
   Cycle arithmetic
========================================================= */

func (m *MeetingAttendanceModel) Cycles() []Cycle {
	return m.MeetingAttendanceCycles.Data()
}

func (m *MeetingAttendanceModel) SetCycles(cs []Cycle) {
	m.MeetingAttendanceCycles = datatypes.NewJSONType(cs)
}

// LastCycle returns the most recent cycle or nil when there is none.
func (m *MeetingAttendanceModel) LastCycle() *Cycle {
	cs := m.Cycles()
	if len(cs) == 0 {
		return nil
	}
	c := cs[len(cs)-1]
	return &c
}

func (m *MeetingAttendanceModel) HasOpenCycle() bool {
	last := m.LastCycle()
	return last != nil && last.IsOpen()
}

// ClosedMinutes sums the durations of closed cycles.
func (m *MeetingAttendanceModel) ClosedMinutes() int {
	total := 0
	for _, c := range m.Cycles() {
		if c.LeftAt != nil && c.DurationMinutes != nil {
			total += *c.DurationMinutes
		}
	}
	return total
}

// LiveMinutes is ClosedMinutes plus the running open cycle measured to now.
// It is never final until the record is calculated.
func (m *MeetingAttendanceModel) LiveMinutes(now time.Time, scheduledAt *time.Time) int {
	total := m.ClosedMinutes()
	if last := m.LastCycle(); last != nil && last.IsOpen() {
		total += CycleMinutes(last.JoinedAt, now, scheduledAt)
	}
	return total
}

// CycleMinutes is the floor of whole minutes between join and leave. Time
// spent before the scheduled start is preparation and does not count.
func CycleMinutes(joinedAt, leftAt time.Time, scheduledAt *time.Time) int {
	start := joinedAt
	if scheduledAt != nil && start.Before(*scheduledAt) {
		start = *scheduledAt
	}
	if !leftAt.After(start) {
		return 0
	}
	return int(leftAt.Sub(start) / time.Minute)
}
