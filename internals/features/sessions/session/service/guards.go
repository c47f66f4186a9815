// file: internals/features/sessions/session/service/guards.go
package service

import (
	"context"
	"time"

	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/policy"
)

// readyHorizon bounds how far a scheduled time may be from now before the
// sweep refuses to touch it.
const readyHorizon = 24 * time.Hour

// ShouldBecomeReady: SCHEDULED, scheduled within now±24h and the preparation
// window has opened.
func (m *StateMachine) ShouldBecomeReady(ctx context.Context, s *model.LiveSessionModel, now time.Time) bool {
	if s.LiveSessionStatus != model.SessionStatusScheduled || s.LiveSessionScheduledAt == nil {
		return false
	}
	sched := *s.LiveSessionScheduledAt
	if sched.Before(now.Add(-readyHorizon)) || sched.After(now.Add(readyHorizon)) {
		return false
	}
	t := m.timing(m.DB.WithContext(ctx), s)
	return !now.Before(sched.Add(-time.Duration(t.PreparationMinutes) * time.Minute))
}

// ShouldStart: READY, inside the start window and somebody is connected.
// Covers joins that arrived before the early-join window opened.
func (m *StateMachine) ShouldStart(ctx context.Context, s *model.LiveSessionModel, now time.Time) (bool, error) {
	if s.LiveSessionStatus != model.SessionStatusReady || s.LiveSessionScheduledAt == nil || m.Presence == nil {
		return false, nil
	}
	db := m.DB.WithContext(ctx)
	if !withinStartWindow(s, m.timing(db, s), now) {
		return false, nil
	}
	return m.Presence.AnyoneConnected(db, s.LiveSessionID)
}

// ShouldBecomeAbsent: single-student subtype, READY or ONGOING, grace period
// over and no student has attended.
func (m *StateMachine) ShouldBecomeAbsent(ctx context.Context, s *model.LiveSessionModel, now time.Time) (bool, error) {
	pol, ok := policy.For(s.LiveSessionSubtype)
	if !ok || !pol.SingleStudent || s.LiveSessionScheduledAt == nil {
		return false, nil
	}
	if s.LiveSessionStatus != model.SessionStatusReady && s.LiveSessionStatus != model.SessionStatusOngoing {
		return false, nil
	}
	db := m.DB.WithContext(ctx)
	t := m.timing(db, s)
	if !now.After(s.LiveSessionScheduledAt.Add(time.Duration(t.GraceMinutes) * time.Minute)) {
		return false, nil
	}
	if m.Presence == nil {
		return false, nil
	}
	present, err := m.Presence.StudentPresent(db, s, now)
	if err != nil {
		return false, err
	}
	return !present, nil
}

// ShouldAutoComplete: READY or ONGOING and the planned end plus the ending
// buffer has passed.
func (m *StateMachine) ShouldAutoComplete(ctx context.Context, s *model.LiveSessionModel, now time.Time) bool {
	if s.LiveSessionStatus != model.SessionStatusReady && s.LiveSessionStatus != model.SessionStatusOngoing {
		return false
	}
	end := s.PlannedEnd()
	if end == nil {
		return false
	}
	t := m.timing(m.DB.WithContext(ctx), s)
	return !now.Before(end.Add(time.Duration(t.EndingBufferMinutes) * time.Minute))
}
