// file: internals/features/sessions/outbox/model/session_outbox_event_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventKind string

const (
	EventSessionReady      EventKind = "session.ready"
	EventSessionOngoing    EventKind = "session.ongoing"
	EventSessionCompleted  EventKind = "session.completed"
	EventSessionAbsent     EventKind = "session.absent"
	EventSessionCancelled  EventKind = "session.cancelled"
	EventAttendanceAbsent  EventKind = "attendance.absent"
	EventSubscriptionUsage EventKind = "subscription.usage"
	EventOperatorAlert     EventKind = "operator.alert"
)

type SessionOutboxEventModel struct {
	SessionOutboxEventID        uuid.UUID  `gorm:"type:uuid;primaryKey;column:session_outbox_event_id" json:"session_outbox_event_id"`
	SessionOutboxEventKind      EventKind  `gorm:"type:varchar(48);not null;column:session_outbox_event_kind;index:idx_session_outbox_kind" json:"session_outbox_event_kind"`
	SessionOutboxEventSessionID *uuid.UUID `gorm:"type:uuid;column:session_outbox_event_session_id;index:idx_session_outbox_session" json:"session_outbox_event_session_id,omitempty"`

	SessionOutboxEventRecipients datatypes.JSONType[[]uuid.UUID] `gorm:"column:session_outbox_event_recipients" json:"session_outbox_event_recipients"`
	SessionOutboxEventPayload    datatypes.JSONMap               `gorm:"column:session_outbox_event_payload" json:"session_outbox_event_payload"`

	SessionOutboxEventAttempts      int        `gorm:"not null;default:0;column:session_outbox_event_attempts" json:"session_outbox_event_attempts"`
	SessionOutboxEventNextAttemptAt time.Time  `gorm:"not null;column:session_outbox_event_next_attempt_at;index:idx_session_outbox_pending,priority:2" json:"session_outbox_event_next_attempt_at"`
	SessionOutboxEventDeliveredAt   *time.Time `gorm:"column:session_outbox_event_delivered_at;index:idx_session_outbox_pending,priority:1" json:"session_outbox_event_delivered_at,omitempty"`
	SessionOutboxEventDeadAt        *time.Time `gorm:"column:session_outbox_event_dead_at" json:"session_outbox_event_dead_at,omitempty"`
	SessionOutboxEventLastError     *string    `gorm:"type:text;column:session_outbox_event_last_error" json:"session_outbox_event_last_error,omitempty"`

	SessionOutboxEventCreatedAt time.Time `gorm:"column:session_outbox_event_created_at;autoCreateTime" json:"session_outbox_event_created_at"`
	SessionOutboxEventUpdatedAt time.Time `gorm:"column:session_outbox_event_updated_at;autoUpdateTime" json:"session_outbox_event_updated_at"`
}

func (SessionOutboxEventModel) TableName() string { return "session_outbox_events" }

func (m *SessionOutboxEventModel) BeforeCreate(tx *gorm.DB) error {
	if m.SessionOutboxEventID == uuid.Nil {
		m.SessionOutboxEventID = uuid.New()
	}
	return nil
}

func (m *SessionOutboxEventModel) Recipients() []uuid.UUID {
	return m.SessionOutboxEventRecipients.Data()
}
