// file: internals/features/sessions/session/service/state_machine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/meeting"
	outboxModel "akademiku_backend/internals/features/sessions/outbox/model"
	outboxService "akademiku_backend/internals/features/sessions/outbox/service"
	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/policy"
)

// PresenceReader reads the attendance ledger. db may be a transaction.
type PresenceReader interface {
	StudentPresent(db *gorm.DB, s *model.LiveSessionModel, now time.Time) (bool, error)
	AnyoneConnected(db *gorm.DB, sessionID uuid.UUID) (bool, error)
}

// SessionListener runs after a terminal transition has committed.
type SessionListener func(ctx context.Context, s *model.LiveSessionModel) error

type StateMachine struct {
	DB       *gorm.DB
	Cfg      configs.EngineConfig
	Policy   *policy.Resolver
	Rooms    meeting.RoomProvider
	Presence PresenceReader
	Now      func() time.Time

	onCompleted []SessionListener
	onAbsent    []SessionListener
}

func NewStateMachine(db *gorm.DB, cfg configs.EngineConfig, resolver *policy.Resolver, rooms meeting.RoomProvider, presence PresenceReader) *StateMachine {
	if rooms == nil {
		rooms = meeting.NoopProvider{}
	}
	return &StateMachine{
		DB:       db,
		Cfg:      cfg,
		Policy:   resolver,
		Rooms:    rooms,
		Presence: presence,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnCompleted registers a consumer of the "session completed" signal.
func (m *StateMachine) OnCompleted(fn SessionListener) { m.onCompleted = append(m.onCompleted, fn) }

// OnAbsent registers a consumer of the "session absent" signal.
func (m *StateMachine) OnAbsent(fn SessionListener) { m.onAbsent = append(m.onAbsent, fn) }

func (m *StateMachine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *StateMachine) timing(db *gorm.DB, s *model.LiveSessionModel) configs.SessionTiming {
	if m.Policy != nil {
		return m.Policy.Timing(db, s)
	}
	return m.Cfg.Timing(string(s.LiveSessionSubtype))
}

/* =========================================================
   core: lock -> guard -> mutate -> outbox, in one transaction
========================================================= */

// mutateFn returns a non-empty reason to skip the write.
type mutateFn func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error)

func (m *StateMachine) apply(ctx context.Context, id uuid.UUID, to model.SessionStatus, fn mutateFn) (TransitionResult, error) {
	var res TransitionResult
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := &model.LiveSessionModel{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("live_session_id = ?", id).Take(s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		res = TransitionResult{From: s.LiveSessionStatus, To: to, Session: s}

		if !CanTransition(s.LiveSessionStatus, to) {
			res.Reason = ReasonInvalidTransition
			return nil
		}
		reason, err := fn(tx, s, m.now())
		if err != nil {
			return err
		}
		if reason != "" {
			res.Reason = reason
			return nil
		}
		if err := tx.Save(s).Error; err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		res.Applied = true
		res.To = s.LiveSessionStatus
		return nil
	})
	if err != nil {
		return TransitionResult{To: to}, err
	}
	if res.Applied {
		log.Printf("[SESSION-SM] session=%s %s -> %s", id, res.From, res.To)
	} else {
		log.Printf("[WARN] [SESSION-SM] session=%s %s -> %s not applied: %s", id, res.From, to, res.Reason)
	}
	return res, nil
}

func (m *StateMachine) recipients(tx *gorm.DB, s *model.LiveSessionModel) []uuid.UUID {
	out := []uuid.UUID{s.LiveSessionTeacherID}
	if s.LiveSessionStudentID != nil {
		out = append(out, *s.LiveSessionStudentID)
	}
	var roster []uuid.UUID
	if err := tx.Model(&model.LiveSessionParticipantModel{}).
		Where("live_session_participant_session_id = ?", s.LiveSessionID).
		Pluck("live_session_participant_user_id", &roster).Error; err != nil {
		log.Printf("[SESSION-SM] roster lookup session=%s: %v", s.LiveSessionID, err)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range out {
		seen[id] = true
	}
	for _, id := range roster {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (m *StateMachine) emit(tx *gorm.DB, s *model.LiveSessionModel, now time.Time, kind outboxModel.EventKind, extra map[string]any) error {
	id := s.LiveSessionID
	payload := map[string]any{
		"session_id": id.String(),
		"tenant_id":  s.LiveSessionTenantID.String(),
		"subtype":    string(s.LiveSessionSubtype),
		"status":     string(s.LiveSessionStatus),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return outboxService.Append(tx, now, outboxService.Event{
		Kind:       kind,
		SessionID:  &id,
		Recipients: m.recipients(tx, s),
		Payload:    payload,
	})
}

func (m *StateMachine) load(ctx context.Context, id uuid.UUID) (*model.LiveSessionModel, error) {
	var s model.LiveSessionModel
	if err := m.DB.WithContext(ctx).Where("live_session_id = ?", id).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

/* =========================================================
   toReady
========================================================= */

func (m *StateMachine) roomOptions(s *model.LiveSessionModel) meeting.RoomOptions {
	ttl := time.Duration(s.LiveSessionDurationMinutes+m.Cfg.MeetingRoomBufferMinutes) * time.Minute
	maxP := m.Cfg.MeetingMaxParticipants
	if s.IsIndividual() {
		maxP = 2
	}
	return meeting.RoomOptions{
		MaxParticipants: maxP,
		Recording:       m.Cfg.MeetingRecording,
		TTL:             ttl,
		SessionType:     string(s.LiveSessionSubtype),
	}
}

// ToReady moves SCHEDULED -> READY, creating the meeting room first when the
// session has none. Room failure is fatal only when MeetingRoomRequired is set.
func (m *StateMachine) ToReady(ctx context.Context, id uuid.UUID) (TransitionResult, error) {
	snap, err := m.load(ctx, id)
	if err != nil {
		return TransitionResult{To: model.SessionStatusReady}, err
	}
	if snap.LiveSessionStatus != model.SessionStatusScheduled {
		log.Printf("[WARN] [SESSION-SM] session=%s %s -> ready not applied: %s", id, snap.LiveSessionStatus, ReasonInvalidTransition)
		return TransitionResult{From: snap.LiveSessionStatus, To: model.SessionStatusReady, Reason: ReasonInvalidTransition, Session: snap}, nil
	}

	var room *meeting.Room
	if snap.LiveSessionMeetingRoomName == nil || strings.TrimSpace(*snap.LiveSessionMeetingRoomName) == "" {
		name := meeting.RoomName(snap.LiveSessionTenantID, string(snap.LiveSessionSubtype), snap.LiveSessionID)
		rctx, cancel := context.WithTimeout(ctx, m.roomBudget())
		r, err := m.Rooms.CreateRoom(rctx, name, m.roomOptions(snap))
		cancel()
		if err != nil {
			log.Printf("[MEETING] create room session=%s failed: %v", id, err)
			if m.Cfg.MeetingRoomRequired {
				return TransitionResult{From: snap.LiveSessionStatus, To: model.SessionStatusReady},
					fmt.Errorf("%w: %v", ErrMeetingRoomUnavailable, err)
			}
		} else {
			room = &r
		}
	}

	res, err := m.apply(ctx, id, model.SessionStatusReady, func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error) {
		if room != nil && s.LiveSessionMeetingRoomName == nil {
			name, url := room.Name, room.JoinURL
			s.LiveSessionMeetingRoomName = &name
			if url != "" {
				s.LiveSessionMeetingJoinURL = &url
			}
		}
		s.LiveSessionStatus = model.SessionStatusReady
		s.LiveSessionPreparationCompletedAt = &now
		return "", m.emit(tx, s, now, outboxModel.EventSessionReady, map[string]any{
			"join_url": deref(s.LiveSessionMeetingJoinURL),
		})
	})

	// Room names are deterministic, so a concurrent winner may have stored
	// the very room we just created. Only a room nobody stored is orphaned.
	if room != nil && m.storedRoom(ctx, id, res.Session) != room.Name {
		m.closeRoom(ctx, id, room.Name)
	}
	return res, err
}

// storedRoom reports the room name persisted on the session, reloading it
// when the transaction gave no snapshot back.
func (m *StateMachine) storedRoom(ctx context.Context, id uuid.UUID, s *model.LiveSessionModel) string {
	if s == nil {
		cur, err := m.load(context.WithoutCancel(ctx), id)
		if err != nil {
			log.Printf("[MEETING] reload session=%s after ready failed: %v", id, err)
			return ""
		}
		s = cur
	}
	return deref(s.LiveSessionMeetingRoomName)
}

/* =========================================================
   toOngoing
========================================================= */

// ToOngoing moves READY -> ONGOING when now is within
// [scheduled - earlyJoin, scheduled + maxFutureHours].
func (m *StateMachine) ToOngoing(ctx context.Context, id uuid.UUID) (TransitionResult, error) {
	return m.apply(ctx, id, model.SessionStatusOngoing, func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error) {
		if s.LiveSessionScheduledAt == nil {
			return "", fmt.Errorf("%w: session %s has no scheduled time", ErrMissingPrerequisite, s.LiveSessionID)
		}
		if !withinStartWindow(s, m.timing(tx, s), now) {
			return ReasonOutsideWindow, nil
		}
		s.LiveSessionStatus = model.SessionStatusOngoing
		s.LiveSessionStartedAt = &now
		s.LiveSessionEndedAt = nil
		return "", m.emit(tx, s, now, outboxModel.EventSessionOngoing, nil)
	})
}

func withinStartWindow(s *model.LiveSessionModel, t configs.SessionTiming, now time.Time) bool {
	sched := *s.LiveSessionScheduledAt
	earliest := sched.Add(-time.Duration(t.EarlyJoinMinutes) * time.Minute)
	latest := sched.Add(time.Duration(t.MaxFutureHours) * time.Hour)
	return !now.Before(earliest) && !now.After(latest)
}

// StartIfReady is the hook the attendance ledger calls on a join.
func (m *StateMachine) StartIfReady(ctx context.Context, sessionID uuid.UUID) error {
	_, err := m.ToOngoing(ctx, sessionID)
	return err
}

/* =========================================================
   toCompleted
========================================================= */

// ToCompleted ends a READY or ONGOING session. An individual session whose
// student never attended ends ABSENT instead, in the same transaction.
func (m *StateMachine) ToCompleted(ctx context.Context, id uuid.UUID) (TransitionResult, error) {
	res, err := m.apply(ctx, id, model.SessionStatusCompleted, func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error) {
		s.LiveSessionEndedAt = &now
		actual := 0
		if s.LiveSessionStartedAt != nil && now.After(*s.LiveSessionStartedAt) {
			actual = int(now.Sub(*s.LiveSessionStartedAt) / time.Minute)
		}
		s.LiveSessionActualDurationMinutes = &actual

		pol, _ := policy.For(s.LiveSessionSubtype)
		if pol.SingleStudent {
			present := true
			if m.Presence != nil {
				p, err := m.Presence.StudentPresent(tx, s, now)
				if err != nil {
					return "", fmt.Errorf("read student attendance: %w", err)
				}
				present = p
			}
			if !present {
				return "", m.markAbsent(tx, s, now, "no_student_attendance")
			}
			s.LiveSessionSubscriptionCounted = true
			s.LiveSessionStatus = model.SessionStatusCompleted
			if err := m.emit(tx, s, now, outboxModel.EventSessionCompleted, map[string]any{
				"actual_duration_minutes": actual,
			}); err != nil {
				return "", err
			}
			return "", m.emit(tx, s, now, outboxModel.EventSubscriptionUsage, usagePayload(s, "completed"))
		}

		s.LiveSessionStatus = model.SessionStatusCompleted
		return "", m.emit(tx, s, now, outboxModel.EventSessionCompleted, map[string]any{
			"actual_duration_minutes": actual,
		})
	})
	if err != nil || !res.Applied {
		return res, err
	}
	m.afterTerminal(ctx, res.Session)
	return res, nil
}

/* =========================================================
   toCancelled
========================================================= */

// ToCancelled cancels a SCHEDULED or READY session. actorID nil means the
// system cancelled it.
func (m *StateMachine) ToCancelled(ctx context.Context, id uuid.UUID, reason string, actorID *uuid.UUID) (TransitionResult, error) {
	res, err := m.apply(ctx, id, model.SessionStatusCancelled, func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error) {
		by := ClassifyCanceller(s, actorID)
		r := strings.TrimSpace(reason)
		s.LiveSessionStatus = model.SessionStatusCancelled
		s.LiveSessionCancellationReason = &r
		s.LiveSessionCancelledBy = actorID
		s.LiveSessionCancelledByType = &by
		s.LiveSessionCancelledAt = &now
		s.LiveSessionEndedAt = &now
		return "", m.emit(tx, s, now, outboxModel.EventSessionCancelled, map[string]any{
			"reason":          r,
			"cancelled_by":    string(by),
			"cancelled_by_id": uuidString(actorID),
		})
	})
	if err != nil || !res.Applied {
		return res, err
	}
	if name := res.Session.LiveSessionMeetingRoomName; name != nil {
		m.closeRoom(ctx, id, *name)
	}
	return res, nil
}

func ClassifyCanceller(s *model.LiveSessionModel, actorID *uuid.UUID) model.CancellerType {
	switch {
	case actorID == nil || *actorID == uuid.Nil:
		return model.CancellerSystem
	case *actorID == s.LiveSessionTeacherID:
		return model.CancellerTeacher
	default:
		return model.CancellerAdmin
	}
}

/* =========================================================
   toAbsent
========================================================= */

// ToAbsent ends an individual READY or ONGOING session as ABSENT and forces
// the student's attendance to absent. It consumes subscription quota.
func (m *StateMachine) ToAbsent(ctx context.Context, id uuid.UUID) (TransitionResult, error) {
	res, err := m.apply(ctx, id, model.SessionStatusAbsent, func(tx *gorm.DB, s *model.LiveSessionModel, now time.Time) (string, error) {
		pol, ok := policy.For(s.LiveSessionSubtype)
		if !ok || !pol.SingleStudent {
			return ReasonNotIndividual, nil
		}
		s.LiveSessionEndedAt = &now
		actual := 0
		if s.LiveSessionStartedAt != nil && now.After(*s.LiveSessionStartedAt) {
			actual = int(now.Sub(*s.LiveSessionStartedAt) / time.Minute)
		}
		s.LiveSessionActualDurationMinutes = &actual
		return "", m.markAbsent(tx, s, now, "student_absent")
	})
	if err != nil || !res.Applied {
		return res, err
	}
	m.afterTerminal(ctx, res.Session)
	return res, nil
}

func (m *StateMachine) markAbsent(tx *gorm.DB, s *model.LiveSessionModel, now time.Time, cause string) error {
	s.LiveSessionStatus = model.SessionStatusAbsent
	s.LiveSessionSubscriptionCounted = true
	if err := m.emit(tx, s, now, outboxModel.EventSessionAbsent, map[string]any{"cause": cause}); err != nil {
		return err
	}
	if s.LiveSessionStudentID != nil {
		id := s.LiveSessionID
		if err := outboxService.Append(tx, now, outboxService.Event{
			Kind:       outboxModel.EventAttendanceAbsent,
			SessionID:  &id,
			Recipients: []uuid.UUID{*s.LiveSessionStudentID},
			Payload: map[string]any{
				"session_id": id.String(),
				"student_id": s.LiveSessionStudentID.String(),
			},
		}); err != nil {
			return err
		}
	}
	return m.emit(tx, s, now, outboxModel.EventSubscriptionUsage, usagePayload(s, "absent"))
}

/* =========================================================
   post-commit side effects
========================================================= */

func (m *StateMachine) roomBudget() time.Duration {
	per := m.Cfg.MeetingTimeout
	if per <= 0 {
		per = 10 * time.Second
	}
	return per * time.Duration(m.Cfg.MeetingRetries+1)
}

// closeRoom is best-effort: failure is logged and never undoes a transition.
func (m *StateMachine) closeRoom(ctx context.Context, id uuid.UUID, name string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.roomBudget())
	defer cancel()
	if ok, err := m.Rooms.CloseRoom(rctx, name); err != nil || !ok {
		log.Printf("[MEETING] close room=%s session=%s failed: ok=%v err=%v", name, id, ok, err)
	}
}

// afterTerminal closes the room and fans out the terminal signal. A failed
// listener leaves the session unsettled for SettleBatch to pick up.
func (m *StateMachine) afterTerminal(ctx context.Context, s *model.LiveSessionModel) {
	if s.LiveSessionMeetingRoomName != nil {
		m.closeRoom(ctx, s.LiveSessionID, *s.LiveSessionMeetingRoomName)
	}
	_ = m.settle(ctx, s)
}

// settle runs the listeners for the session's terminal status and stamps
// settled_at when all of them succeed. Listeners must be idempotent.
func (m *StateMachine) settle(ctx context.Context, s *model.LiveSessionModel) error {
	var listeners []SessionListener
	switch s.LiveSessionStatus {
	case model.SessionStatusCompleted:
		listeners = m.onCompleted
	case model.SessionStatusAbsent:
		listeners = m.onAbsent
	default:
		return nil
	}
	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, s); err != nil {
			log.Printf("[SESSION-SM] %s listener failed session=%s: %v", s.LiveSessionStatus, s.LiveSessionID, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	now := m.now()
	if err := m.DB.WithContext(ctx).Model(&model.LiveSessionModel{}).
		Where("live_session_id = ? AND live_session_settled_at IS NULL", s.LiveSessionID).
		Update("live_session_settled_at", now).Error; err != nil {
		log.Printf("[SESSION-SM] mark settled session=%s: %v", s.LiveSessionID, err)
		return err
	}
	s.LiveSessionSettledAt = &now
	return nil
}

func usagePayload(s *model.LiveSessionModel, reason string) map[string]any {
	return map[string]any{
		"session_id": s.LiveSessionID.String(),
		"student_id": uuidString(s.LiveSessionStudentID),
		"reason":     reason,
	}
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
