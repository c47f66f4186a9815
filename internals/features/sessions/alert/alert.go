// file: internals/features/sessions/alert/alert.go
package alert

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	outboxModel "akademiku_backend/internals/features/sessions/outbox/model"
	outboxService "akademiku_backend/internals/features/sessions/outbox/service"
)

// Alert is an operator-facing signal about a data-integrity problem.
type Alert struct {
	Code      string
	Message   string
	SessionID *uuid.UUID
	Fields    map[string]any
}

type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// OutboxAlerter logs the alert and queues an operator.alert event. It writes
// on its own connection since the failing operation usually rolled back.
type OutboxAlerter struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewOutboxAlerter(db *gorm.DB) *OutboxAlerter {
	return &OutboxAlerter{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func (o *OutboxAlerter) Alert(ctx context.Context, a Alert) {
	sid := "-"
	if a.SessionID != nil {
		sid = a.SessionID.String()
	}
	log.Printf("[ALERT] code=%s session=%s %s %v", a.Code, sid, a.Message, a.Fields)

	if o.DB == nil {
		return
	}
	payload := map[string]any{
		"code":    a.Code,
		"message": a.Message,
	}
	for k, v := range a.Fields {
		payload[k] = v
	}
	if err := outboxService.Append(o.DB.WithContext(ctx), o.Now(), outboxService.Event{
		Kind:      outboxModel.EventOperatorAlert,
		SessionID: a.SessionID,
		Payload:   payload,
	}); err != nil {
		log.Printf("[ALERT] failed to queue operator alert %s: %v", a.Code, err)
	}
}

// LogAlerter only logs.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, a Alert) {
	log.Printf("[ALERT] code=%s %s %v", a.Code, a.Message, a.Fields)
}
