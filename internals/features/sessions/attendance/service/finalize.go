// file: internals/features/sessions/attendance/service/finalize.go
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
	attModel "akademiku_backend/internals/features/sessions/attendance/model"
	sessModel "akademiku_backend/internals/features/sessions/session/model"
)

// Finalize freezes one record: closes a running cycle at endAt, computes the
// percentage against the planned duration and derives the status. A manual
// override keeps its status but still gets frozen durations. It is a no-op
// for records already calculated.
func Finalize(rec *attModel.MeetingAttendanceModel, s *sessModel.LiveSessionModel, timing configs.SessionTiming, endAt, now time.Time) bool {
	if rec.MeetingAttendanceIsCalculated {
		return false
	}
	pct := freeze(rec, s, endAt, now)
	if !rec.MeetingAttendanceIsManuallyOverridden {
		status := DeriveStatus(pct, rec.MeetingAttendanceFirstJoinAt, s.LiveSessionScheduledAt, timing)
		rec.MeetingAttendanceStatus = &status
	}
	return true
}

// freeze closes a running cycle at endAt and stores the final totals.
func freeze(rec *attModel.MeetingAttendanceModel, s *sessModel.LiveSessionModel, endAt, now time.Time) float64 {
	cycles := rec.Cycles()
	if n := len(cycles); n > 0 && cycles[n-1].IsOpen() {
		closeCycle(&cycles[n-1], endAt, s.LiveSessionScheduledAt, attModel.AutoCloseSessionEnded)
		rec.SetCycles(cycles)
		rec.MeetingAttendanceLeaveCount++
		t := endAt
		rec.MeetingAttendanceLastLeaveAt = &t
	}

	total := rec.ClosedMinutes()
	planned := s.LiveSessionDurationMinutes
	pct := Percentage(total, planned)

	calcAt := now
	rec.MeetingAttendanceTotalDurationMinutes = total
	rec.MeetingAttendancePercentage = &pct
	rec.MeetingAttendanceIsCalculated = true
	rec.MeetingAttendanceCalculatedAt = &calcAt
	rec.MeetingAttendanceSessionDurationMinutes = &planned
	return pct
}

// Percentage is round(total/planned*100, 2), capped at 100; 0 when planned is 0.
func Percentage(totalMinutes, plannedMinutes int) float64 {
	if plannedMinutes <= 0 || totalMinutes <= 0 {
		return 0
	}
	pct := round2(float64(totalMinutes) / float64(plannedMinutes) * 100)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func DeriveStatus(pct float64, firstJoin, scheduledAt *time.Time, timing configs.SessionTiming) attModel.AttendanceStatus {
	required := timing.RequiredAttendancePercent
	if required <= 0 {
		required = 80
	}
	switch {
	case pct <= 0:
		return attModel.AttendanceStatusAbsent
	case pct < required:
		return attModel.AttendanceStatusLeft
	case firstJoin != nil && scheduledAt != nil &&
		firstJoin.After(scheduledAt.Add(time.Duration(timing.GraceMinutes)*time.Minute)):
		return attModel.AttendanceStatusLate
	default:
		return attModel.AttendanceStatusAttended
	}
}

func sessionEnd(s *sessModel.LiveSessionModel, now time.Time) time.Time {
	if s.LiveSessionEndedAt != nil {
		return *s.LiveSessionEndedAt
	}
	return now
}

// FinalizeSession finalizes every record of a session that reached a
// terminal state. Roster members who never joined get an absent record.
func (l *Ledger) FinalizeSession(ctx context.Context, s *sessModel.LiveSessionModel) error {
	if !s.LiveSessionStatus.IsTerminal() {
		return fmt.Errorf("finalize: session %s is %s", s.LiveSessionID, s.LiveSessionStatus)
	}
	if s.LiveSessionStatus == sessModel.SessionStatusCancelled {
		return nil
	}
	db := l.DB.WithContext(ctx)
	timing := l.timing(db, s)

	userIDs, err := l.expectedParticipants(db, s)
	if err != nil {
		return err
	}

	finalized := 0
	for _, uid := range userIDs {
		err := db.Transaction(func(tx *gorm.DB) error {
			rec, err := lockOrCreate(tx, s, uid)
			if err != nil {
				return err
			}
			now := l.now()
			if !Finalize(rec, s, timing, sessionEnd(s, now), now) {
				return nil
			}
			finalized++
			return tx.Save(rec).Error
		})
		if err != nil {
			return fmt.Errorf("finalize session=%s user=%s: %w", s.LiveSessionID, uid, err)
		}
	}
	log.Printf("[ATTENDANCE] finalized session=%s records=%d", s.LiveSessionID, finalized)
	return nil
}

// MarkSessionAbsent forces the student's record of an absent individual
// session to a finalized 0% absent state. An overridden status is kept.
func (l *Ledger) MarkSessionAbsent(ctx context.Context, s *sessModel.LiveSessionModel) error {
	if s.LiveSessionStudentID == nil {
		return nil
	}
	uid := *s.LiveSessionStudentID
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockOrCreate(tx, s, uid)
		if err != nil {
			return err
		}
		if rec.MeetingAttendanceIsCalculated {
			return nil
		}
		now := l.now()
		freeze(rec, s, sessionEnd(s, now), now)
		zero := 0.0
		rec.MeetingAttendancePercentage = &zero
		if !rec.MeetingAttendanceIsManuallyOverridden {
			absent := attModel.AttendanceStatusAbsent
			rec.MeetingAttendanceStatus = &absent
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		log.Printf("[ATTENDANCE] forced absent session=%s student=%s", s.LiveSessionID, uid)
		return nil
	})
}

// expectedParticipants is everyone with a record plus the roster and the
// individual student.
func (l *Ledger) expectedParticipants(db *gorm.DB, s *sessModel.LiveSessionModel) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	out := []uuid.UUID{}
	add := func(id uuid.UUID) {
		if id == uuid.Nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	var withRecords []uuid.UUID
	if err := db.Model(&attModel.MeetingAttendanceModel{}).
		Where("meeting_attendance_session_id = ?", s.LiveSessionID).
		Pluck("meeting_attendance_user_id", &withRecords).Error; err != nil {
		return nil, err
	}
	for _, id := range withRecords {
		add(id)
	}

	if s.LiveSessionStudentID != nil {
		add(*s.LiveSessionStudentID)
	}

	var roster []uuid.UUID
	if err := db.Model(&sessModel.LiveSessionParticipantModel{}).
		Where("live_session_participant_session_id = ? AND live_session_participant_role = ?",
			s.LiveSessionID, sessModel.ParticipantRoleStudent).
		Pluck("live_session_participant_user_id", &roster).Error; err != nil {
		return nil, err
	}
	for _, id := range roster {
		add(id)
	}
	return out, nil
}

func (l *Ledger) timing(db *gorm.DB, s *sessModel.LiveSessionModel) configs.SessionTiming {
	if l.Policy != nil {
		return l.Policy.Timing(db, s)
	}
	return l.Cfg.Timing(string(s.LiveSessionSubtype))
}

/* =========================================================
   Manual override, listing, statistics
========================================================= */

type OverrideInput struct {
	Status  attModel.AttendanceStatus
	ActorID uuid.UUID
	Note    *string
}

// Override replaces the derived status and marks the record so later
// finalization freezes its durations without touching the status.
func (l *Ledger) Override(ctx context.Context, recordID uuid.UUID, in OverrideInput) (*attModel.MeetingAttendanceModel, error) {
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	var out *attModel.MeetingAttendanceModel
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := &attModel.MeetingAttendanceModel{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("meeting_attendance_id = ?", recordID).Take(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		now := l.now()
		st := in.Status
		actor := in.ActorID
		rec.MeetingAttendanceStatus = &st
		rec.MeetingAttendanceIsManuallyOverridden = true
		rec.MeetingAttendanceOverriddenBy = &actor
		rec.MeetingAttendanceOverriddenAt = &now
		if in.Note != nil {
			note := strings.TrimSpace(*in.Note)
			rec.MeetingAttendanceOverrideNote = &note
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[ATTENDANCE] override record=%s status=%s by=%s", recordID, in.Status, in.ActorID)
	return out, nil
}

func (l *Ledger) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]attModel.MeetingAttendanceModel, error) {
	var rows []attModel.MeetingAttendanceModel
	err := l.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ?", sessionID).
		Order("meeting_attendance_created_at ASC").
		Find(&rows).Error
	return rows, err
}

type Statistics struct {
	Total             int     `json:"total"`
	Attended          int     `json:"attended"`
	Late              int     `json:"late"`
	Left              int     `json:"left"`
	Absent            int     `json:"absent"`
	Pending           int     `json:"pending"`
	TotalMinutes      int     `json:"total_minutes"`
	AveragePercentage float64 `json:"average_percentage"`
}

func (l *Ledger) Statistics(ctx context.Context, sessionID uuid.UUID) (Statistics, error) {
	rows, err := l.ListBySession(ctx, sessionID)
	if err != nil {
		return Statistics{}, err
	}
	var st Statistics
	var pctSum float64
	var pctN int
	for _, r := range rows {
		st.Total++
		st.TotalMinutes += r.MeetingAttendanceTotalDurationMinutes
		if r.MeetingAttendancePercentage != nil {
			pctSum += *r.MeetingAttendancePercentage
			pctN++
		}
		if r.MeetingAttendanceStatus == nil {
			st.Pending++
			continue
		}
		switch *r.MeetingAttendanceStatus {
		case attModel.AttendanceStatusAttended:
			st.Attended++
		case attModel.AttendanceStatusLate:
			st.Late++
		case attModel.AttendanceStatusLeft:
			st.Left++
		case attModel.AttendanceStatusAbsent:
			st.Absent++
		}
	}
	if pctN > 0 {
		st.AveragePercentage = round2(pctSum / float64(pctN))
	}
	return st, nil
}
