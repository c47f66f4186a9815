// file: internals/features/sessions/attendance/dto/attendance_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	"akademiku_backend/internals/features/sessions/attendance/model"
)

// Manual join/leave (admin tooling, provider outages)
type PresenceEventRequest struct {
	UserID uuid.UUID  `json:"user_id" validate:"required"`
	At     *time.Time `json:"at,omitempty"`
}

type OverrideRequest struct {
	Status model.AttendanceStatus `json:"status" validate:"required,oneof=attended late left absent"`
	Note   *string                `json:"note,omitempty" validate:"omitempty,max=500"`
}

type AttendanceResponse struct {
	ID                     uuid.UUID               `json:"id"`
	SessionID              uuid.UUID               `json:"session_id"`
	UserID                 uuid.UUID               `json:"user_id"`
	Role                   model.AttendanceRole    `json:"role"`
	Cycles                 []model.Cycle           `json:"cycles"`
	JoinCount              int                     `json:"join_count"`
	LeaveCount             int                     `json:"leave_count"`
	TotalDurationMinutes   int                     `json:"total_duration_minutes"`
	CurrentDurationMinutes int                     `json:"current_duration_minutes"`
	FirstJoinAt            *time.Time              `json:"first_join_at,omitempty"`
	LastLeaveAt            *time.Time              `json:"last_leave_at,omitempty"`
	Percentage             *float64                `json:"percentage,omitempty"`
	Status                 *model.AttendanceStatus `json:"status,omitempty"`
	IsCalculated           bool                    `json:"is_calculated"`
	IsManuallyOverridden   bool                    `json:"is_manually_overridden"`
	OverrideNote           *string                 `json:"override_note,omitempty"`
}

// FromModel maps a record; current is the live duration for open records.
func FromModel(m *model.MeetingAttendanceModel, current int) AttendanceResponse {
	return AttendanceResponse{
		ID:                     m.MeetingAttendanceID,
		SessionID:              m.MeetingAttendanceSessionID,
		UserID:                 m.MeetingAttendanceUserID,
		Role:                   m.MeetingAttendanceRole,
		Cycles:                 m.Cycles(),
		JoinCount:              m.MeetingAttendanceJoinCount,
		LeaveCount:             m.MeetingAttendanceLeaveCount,
		TotalDurationMinutes:   m.MeetingAttendanceTotalDurationMinutes,
		CurrentDurationMinutes: current,
		FirstJoinAt:            m.MeetingAttendanceFirstJoinAt,
		LastLeaveAt:            m.MeetingAttendanceLastLeaveAt,
		Percentage:             m.MeetingAttendancePercentage,
		Status:                 m.MeetingAttendanceStatus,
		IsCalculated:           m.MeetingAttendanceIsCalculated,
		IsManuallyOverridden:   m.MeetingAttendanceIsManuallyOverridden,
		OverrideNote:           m.MeetingAttendanceOverrideNote,
	}
}
