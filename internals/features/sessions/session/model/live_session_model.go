// file: internals/features/sessions/session/model/live_session_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =========================================================
   ENUMS
========================================================= */

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusReady     SessionStatus = "ready"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusAbsent    SessionStatus = "absent"
)

func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusAbsent:
		return true
	}
	return false
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusReady, SessionStatusOngoing,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusAbsent:
		return true
	}
	return false
}

type SessionSubtype string

const (
	SessionSubtypeIndividual  SessionSubtype = "individual"
	SessionSubtypeGroup       SessionSubtype = "group"
	SessionSubtypeInteractive SessionSubtype = "interactive"
)

func (s SessionSubtype) Valid() bool {
	switch s {
	case SessionSubtypeIndividual, SessionSubtypeGroup, SessionSubtypeInteractive:
		return true
	}
	return false
}

// SessionMode picks the teacher rate for individual-lesson sessions.
type SessionMode string

const (
	SessionModeIndividual SessionMode = "individual"
	SessionModeGroup      SessionMode = "group"
)

type CancellerType string

const (
	CancellerTeacher CancellerType = "teacher"
	CancellerAdmin   CancellerType = "admin"
	CancellerSystem  CancellerType = "system"
)

/* =========================================================
   MODEL: live_sessions
========================================================= */

type LiveSessionModel struct {
	LiveSessionID       uuid.UUID      `gorm:"type:uuid;primaryKey;column:live_session_id" json:"live_session_id"`
	LiveSessionTenantID uuid.UUID      `gorm:"type:uuid;not null;column:live_session_tenant_id;index:idx_live_session_tenant" json:"live_session_tenant_id"`
	LiveSessionSubtype  SessionSubtype `gorm:"type:varchar(24);not null;column:live_session_subtype;index:idx_live_session_subtype" json:"live_session_subtype"`
	LiveSessionMode     SessionMode    `gorm:"type:varchar(24);not null;default:individual;column:live_session_mode" json:"live_session_mode"`

	LiveSessionCode    string  `gorm:"type:varchar(64);column:live_session_code" json:"live_session_code"`
	LiveSessionTitle   *string `gorm:"type:varchar(200);column:live_session_title" json:"live_session_title,omitempty"`
	LiveSessionIsTrial bool    `gorm:"not null;default:false;column:live_session_is_trial" json:"live_session_is_trial"`

	// Schedule
	LiveSessionScheduledAt           *time.Time `gorm:"column:live_session_scheduled_at;index:idx_live_session_sched" json:"live_session_scheduled_at,omitempty"`
	LiveSessionDurationMinutes       int        `gorm:"not null;default:0;column:live_session_duration_minutes" json:"live_session_duration_minutes"`
	LiveSessionStartedAt             *time.Time `gorm:"column:live_session_started_at" json:"live_session_started_at,omitempty"`
	LiveSessionEndedAt               *time.Time `gorm:"column:live_session_ended_at" json:"live_session_ended_at,omitempty"`
	LiveSessionActualDurationMinutes *int       `gorm:"column:live_session_actual_duration_minutes" json:"live_session_actual_duration_minutes,omitempty"`

	LiveSessionStatus SessionStatus `gorm:"type:varchar(24);not null;default:scheduled;column:live_session_status;index:idx_live_session_status" json:"live_session_status"`

	// Participants
	LiveSessionTeacherID uuid.UUID  `gorm:"type:uuid;not null;column:live_session_teacher_id;index:idx_live_session_teacher" json:"live_session_teacher_id"`
	LiveSessionStudentID *uuid.UUID `gorm:"type:uuid;column:live_session_student_id" json:"live_session_student_id,omitempty"`
	LiveSessionCourseID  *uuid.UUID `gorm:"type:uuid;column:live_session_course_id" json:"live_session_course_id,omitempty"`

	// Meeting handle
	LiveSessionMeetingRoomName        *string    `gorm:"type:varchar(160);column:live_session_meeting_room_name;index:idx_live_session_room" json:"live_session_meeting_room_name,omitempty"`
	LiveSessionMeetingJoinURL         *string    `gorm:"type:text;column:live_session_meeting_join_url" json:"live_session_meeting_join_url,omitempty"`
	LiveSessionPreparationCompletedAt *time.Time `gorm:"column:live_session_preparation_completed_at" json:"live_session_preparation_completed_at,omitempty"`

	// Cancellation
	LiveSessionCancellationReason *string        `gorm:"type:text;column:live_session_cancellation_reason" json:"live_session_cancellation_reason,omitempty"`
	LiveSessionCancelledBy        *uuid.UUID     `gorm:"type:uuid;column:live_session_cancelled_by" json:"live_session_cancelled_by,omitempty"`
	LiveSessionCancelledByType    *CancellerType `gorm:"type:varchar(16);column:live_session_cancelled_by_type" json:"live_session_cancelled_by_type,omitempty"`
	LiveSessionCancelledAt        *time.Time     `gorm:"column:live_session_cancelled_at" json:"live_session_cancelled_at,omitempty"`

	LiveSessionSubscriptionCounted bool `gorm:"not null;default:false;column:live_session_subscription_counted" json:"live_session_subscription_counted"`
	// set once every terminal listener has succeeded
	LiveSessionSettledAt *time.Time `gorm:"column:live_session_settled_at;index:idx_live_session_settled" json:"live_session_settled_at,omitempty"`

	LiveSessionCreatedAt time.Time      `gorm:"column:live_session_created_at;autoCreateTime" json:"live_session_created_at"`
	LiveSessionUpdatedAt time.Time      `gorm:"column:live_session_updated_at;autoUpdateTime" json:"live_session_updated_at"`
	LiveSessionDeletedAt gorm.DeletedAt `gorm:"column:live_session_deleted_at;index" json:"live_session_deleted_at,omitempty"`
}

func (LiveSessionModel) TableName() string { return "live_sessions" }

func (m *LiveSessionModel) BeforeCreate(tx *gorm.DB) error {
	if m.LiveSessionID == uuid.Nil {
		m.LiveSessionID = uuid.New()
	}
	if m.LiveSessionStatus == "" {
		m.LiveSessionStatus = SessionStatusScheduled
	}
	if m.LiveSessionMode == "" {
		m.LiveSessionMode = SessionModeIndividual
	}
	return nil
}

func (m *LiveSessionModel) IsIndividual() bool {
	return m.LiveSessionSubtype == SessionSubtypeIndividual
}

// PlannedEnd is scheduled start + planned duration; nil without a schedule.
func (m *LiveSessionModel) PlannedEnd() *time.Time {
	if m.LiveSessionScheduledAt == nil {
		return nil
	}
	t := m.LiveSessionScheduledAt.Add(time.Duration(m.LiveSessionDurationMinutes) * time.Minute)
	return &t
}

/* =========================================================
   MODEL: live_session_participants (roster)
========================================================= */

type ParticipantRole string

const (
	ParticipantRoleTeacher ParticipantRole = "teacher"
	ParticipantRoleStudent ParticipantRole = "student"
)

type LiveSessionParticipantModel struct {
	LiveSessionParticipantID        uuid.UUID       `gorm:"type:uuid;primaryKey;column:live_session_participant_id" json:"live_session_participant_id"`
	LiveSessionParticipantSessionID uuid.UUID       `gorm:"type:uuid;not null;column:live_session_participant_session_id;uniqueIndex:uq_live_session_participant,priority:1" json:"live_session_participant_session_id"`
	LiveSessionParticipantUserID    uuid.UUID       `gorm:"type:uuid;not null;column:live_session_participant_user_id;uniqueIndex:uq_live_session_participant,priority:2" json:"live_session_participant_user_id"`
	LiveSessionParticipantRole      ParticipantRole `gorm:"type:varchar(16);not null;default:student;column:live_session_participant_role" json:"live_session_participant_role"`

	LiveSessionParticipantCreatedAt time.Time `gorm:"column:live_session_participant_created_at;autoCreateTime" json:"live_session_participant_created_at"`
}

func (LiveSessionParticipantModel) TableName() string { return "live_session_participants" }

func (m *LiveSessionParticipantModel) BeforeCreate(tx *gorm.DB) error {
	if m.LiveSessionParticipantID == uuid.Nil {
		m.LiveSessionParticipantID = uuid.New()
	}
	return nil
}
