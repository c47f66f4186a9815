// file: internals/features/sessions/session/dto/session_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/service"
)

// Cancel
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Response
type SessionResponse struct {
	ID                    uuid.UUID            `json:"id"`
	TenantID              uuid.UUID            `json:"tenant_id"`
	Subtype               model.SessionSubtype `json:"subtype"`
	Mode                  model.SessionMode    `json:"mode"`
	Code                  string               `json:"code"`
	Title                 *string              `json:"title,omitempty"`
	Status                model.SessionStatus  `json:"status"`
	IsTrial               bool                 `json:"is_trial"`
	ScheduledAt           *time.Time           `json:"scheduled_at,omitempty"`
	DurationMinutes       int                  `json:"duration_minutes"`
	StartedAt             *time.Time           `json:"started_at,omitempty"`
	EndedAt               *time.Time           `json:"ended_at,omitempty"`
	ActualDurationMinutes *int                 `json:"actual_duration_minutes,omitempty"`
	TeacherID             uuid.UUID            `json:"teacher_id"`
	StudentID             *uuid.UUID           `json:"student_id,omitempty"`
	CourseID              *uuid.UUID           `json:"course_id,omitempty"`
	MeetingRoomName       *string              `json:"meeting_room_name,omitempty"`
	MeetingJoinURL        *string              `json:"meeting_join_url,omitempty"`
	CancellationReason    *string              `json:"cancellation_reason,omitempty"`
	CancelledByType       *model.CancellerType `json:"cancelled_by_type,omitempty"`
	CancelledAt           *time.Time           `json:"cancelled_at,omitempty"`
	SubscriptionCounted   bool                 `json:"subscription_counted"`
}

func FromModel(m *model.LiveSessionModel) SessionResponse {
	return SessionResponse{
		ID:                    m.LiveSessionID,
		TenantID:              m.LiveSessionTenantID,
		Subtype:               m.LiveSessionSubtype,
		Mode:                  m.LiveSessionMode,
		Code:                  m.LiveSessionCode,
		Title:                 m.LiveSessionTitle,
		Status:                m.LiveSessionStatus,
		IsTrial:               m.LiveSessionIsTrial,
		ScheduledAt:           m.LiveSessionScheduledAt,
		DurationMinutes:       m.LiveSessionDurationMinutes,
		StartedAt:             m.LiveSessionStartedAt,
		EndedAt:               m.LiveSessionEndedAt,
		ActualDurationMinutes: m.LiveSessionActualDurationMinutes,
		TeacherID:             m.LiveSessionTeacherID,
		StudentID:             m.LiveSessionStudentID,
		CourseID:              m.LiveSessionCourseID,
		MeetingRoomName:       m.LiveSessionMeetingRoomName,
		MeetingJoinURL:        m.LiveSessionMeetingJoinURL,
		CancellationReason:    m.LiveSessionCancellationReason,
		CancelledByType:       m.LiveSessionCancelledByType,
		CancelledAt:           m.LiveSessionCancelledAt,
		SubscriptionCounted:   m.LiveSessionSubscriptionCounted,
	}
}

type TransitionResponse struct {
	Applied bool                `json:"applied"`
	From    model.SessionStatus `json:"from"`
	To      model.SessionStatus `json:"to"`
	Reason  string              `json:"reason,omitempty"`
	Session *SessionResponse    `json:"session,omitempty"`
}

func FromTransition(r service.TransitionResult) TransitionResponse {
	out := TransitionResponse{Applied: r.Applied, From: r.From, To: r.To, Reason: r.Reason}
	if r.Session != nil {
		s := FromModel(r.Session)
		out.Session = &s
	}
	return out
}
