// file: internals/features/sessions/outbox/service/outbox_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"akademiku_backend/internals/features/sessions/outbox/model"
)

type Event struct {
	Kind       model.EventKind
	SessionID  *uuid.UUID
	Recipients []uuid.UUID
	Payload    map[string]any
}

// Append queues an event on the caller's transaction so it commits or rolls
// back together with the state change that produced it.
func Append(tx *gorm.DB, now time.Time, ev Event) error {
	if ev.Kind == "" {
		return errors.New("outbox: empty event kind")
	}
	recipients := ev.Recipients
	if recipients == nil {
		recipients = []uuid.UUID{}
	}
	payload := datatypes.JSONMap{}
	for k, v := range ev.Payload {
		payload[k] = v
	}
	row := model.SessionOutboxEventModel{
		SessionOutboxEventKind:          ev.Kind,
		SessionOutboxEventSessionID:     ev.SessionID,
		SessionOutboxEventRecipients:    datatypes.NewJSONType(recipients),
		SessionOutboxEventPayload:       payload,
		SessionOutboxEventNextAttemptAt: now,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("outbox append %s: %w", ev.Kind, err)
	}
	return nil
}

/* =========================================================
   Dispatcher
========================================================= */

type Notifier interface {
	Notify(ctx context.Context, ev *model.SessionOutboxEventModel) error
}

type Dispatcher struct {
	DB          *gorm.DB
	Notifier    Notifier
	Now         func() time.Time
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	// claimed rows are hidden from other dispatchers for this long
	Lease time.Duration
}

type DispatchResult struct {
	Delivered int
	Failed    int
	Dead      int
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchPending delivers one batch of due events.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult
	batch, err := d.claim(ctx)
	if err != nil {
		return res, err
	}

	for i := range batch {
		ev := &batch[i]
		nerr := d.Notifier.Notify(ctx, ev)
		now := d.now()
		if nerr == nil {
			if err := d.DB.WithContext(ctx).Model(&model.SessionOutboxEventModel{}).
				Where("session_outbox_event_id = ?", ev.SessionOutboxEventID).
				Updates(map[string]any{
					"session_outbox_event_delivered_at": now,
					"session_outbox_event_attempts":     ev.SessionOutboxEventAttempts + 1,
					"session_outbox_event_last_error":   nil,
				}).Error; err != nil {
				log.Printf("[OUTBOX] mark delivered id=%s: %v", ev.SessionOutboxEventID, err)
				continue
			}
			res.Delivered++
			continue
		}

		attempts := ev.SessionOutboxEventAttempts + 1
		msg := nerr.Error()
		updates := map[string]any{
			"session_outbox_event_attempts":   attempts,
			"session_outbox_event_last_error": msg,
		}
		if d.MaxAttempts > 0 && attempts >= d.MaxAttempts {
			updates["session_outbox_event_dead_at"] = now
			res.Dead++
			log.Printf("[OUTBOX] giving up id=%s kind=%s after %d attempts: %s",
				ev.SessionOutboxEventID, ev.SessionOutboxEventKind, attempts, msg)
		} else {
			updates["session_outbox_event_next_attempt_at"] = now.Add(d.backoff(attempts))
			res.Failed++
			log.Printf("[OUTBOX] delivery failed id=%s kind=%s attempt=%d: %s",
				ev.SessionOutboxEventID, ev.SessionOutboxEventKind, attempts, msg)
		}
		if err := d.DB.WithContext(ctx).Model(&model.SessionOutboxEventModel{}).
			Where("session_outbox_event_id = ?", ev.SessionOutboxEventID).
			Updates(updates).Error; err != nil {
			log.Printf("[OUTBOX] record failure id=%s: %v", ev.SessionOutboxEventID, err)
		}
	}
	return res, nil
}

// claim picks due rows and pushes their next attempt out by the lease so a
// parallel dispatcher does not pick them up while delivery is in flight.
func (d *Dispatcher) claim(ctx context.Context) ([]model.SessionOutboxEventModel, error) {
	limit := d.BatchSize
	if limit <= 0 {
		limit = 100
	}
	lease := d.Lease
	if lease <= 0 {
		lease = 2 * time.Minute
	}

	var rows []model.SessionOutboxEventModel
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := d.now()
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("session_outbox_event_delivered_at IS NULL AND session_outbox_event_dead_at IS NULL").
			Where("session_outbox_event_next_attempt_at <= ?", now).
			Order("session_outbox_event_created_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.SessionOutboxEventID)
		}
		return tx.Model(&model.SessionOutboxEventModel{}).
			Where("session_outbox_event_id IN ?", ids).
			Update("session_outbox_event_next_attempt_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, fmt.Errorf("outbox claim: %w", err)
	}
	return rows, nil
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	base := d.BaseBackoff
	if base <= 0 {
		base = 30 * time.Second
	}
	wait := base
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= time.Hour {
			return time.Hour
		}
	}
	return wait
}
