// file: internals/features/sessions/attendance/service/ledger.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"akademiku_backend/internals/configs"
	attModel "akademiku_backend/internals/features/sessions/attendance/model"
	sessModel "akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/policy"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRecordNotFound  = errors.New("attendance record not found")
	ErrInvalidStatus   = errors.New("invalid attendance status")
)

// SessionStarter lets the ledger move a READY session to ONGOING on the
// first join without depending on the state machine package.
type SessionStarter interface {
	StartIfReady(ctx context.Context, sessionID uuid.UUID) error
}

type JoinOutcome string

const (
	JoinOpened      JoinOutcome = "opened"
	JoinReconnected JoinOutcome = "reconnected"
	JoinDuplicate   JoinOutcome = "duplicate"
	JoinIgnored     JoinOutcome = "ignored"
)

type JoinResult struct {
	Outcome JoinOutcome
	Reason  string
	Record  *attModel.MeetingAttendanceModel
}

type LeaveOutcome string

const (
	LeaveClosed       LeaveOutcome = "closed"
	LeaveNoAttendance LeaveOutcome = "no_attendance"
	LeaveIgnored      LeaveOutcome = "ignored"
)

type LeaveResult struct {
	Outcome LeaveOutcome
	Reason  string
	Record  *attModel.MeetingAttendanceModel
}

type Ledger struct {
	DB      *gorm.DB
	Cfg     configs.EngineConfig
	Policy  *policy.Resolver
	Now     func() time.Time
	Starter SessionStarter
}

func NewLedger(db *gorm.DB, cfg configs.EngineConfig, resolver *policy.Resolver) *Ledger {
	return &Ledger{
		DB:     db,
		Cfg:    cfg,
		Policy: resolver,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

func (l *Ledger) threshold() time.Duration {
	if l.Cfg.ReconnectThreshold > 0 {
		return l.Cfg.ReconnectThreshold
	}
	return 120 * time.Second
}

/* =========================================================
   Join / Leave
========================================================= */

// RecordJoin registers a participant joining at `at` (zero means now).
// Reconnection is checked before a new cycle is opened.
func (l *Ledger) RecordJoin(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) (JoinResult, error) {
	if at.IsZero() {
		at = l.now()
	}
	var (
		res        JoinResult
		startAfter bool
	)
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if s.LiveSessionStatus.IsTerminal() {
			res = JoinResult{Outcome: JoinIgnored, Reason: "session_closed"}
			return nil
		}

		rec, err := lockOrCreate(tx, s, userID)
		if err != nil {
			return err
		}
		if rec.MeetingAttendanceIsCalculated {
			res = JoinResult{Outcome: JoinIgnored, Reason: "already_finalized", Record: rec}
			return nil
		}

		if last := rec.LastCycle(); last != nil && last.IsOpen() {
			res = JoinResult{Outcome: JoinDuplicate, Reason: "cycle_already_open", Record: rec}
			return nil
		}

		if l.DetectReconnection(rec, at) {
			res = JoinResult{Outcome: JoinReconnected, Record: rec}
		} else {
			cycles := append(rec.Cycles(), attModel.Cycle{JoinedAt: at})
			rec.SetCycles(cycles)
			rec.MeetingAttendanceJoinCount++
			if rec.MeetingAttendanceFirstJoinAt == nil {
				t := at
				rec.MeetingAttendanceFirstJoinAt = &t
			}
			res = JoinResult{Outcome: JoinOpened, Record: rec}
		}

		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("save attendance: %w", err)
		}
		startAfter = res.Outcome == JoinOpened && s.LiveSessionStatus == sessModel.SessionStatusReady
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	log.Printf("[ATTENDANCE] join session=%s user=%s outcome=%s %s", sessionID, userID, res.Outcome, res.Reason)

	if startAfter && l.Starter != nil {
		if err := l.Starter.StartIfReady(ctx, sessionID); err != nil {
			log.Printf("[ATTENDANCE] start session=%s on first join failed: %v", sessionID, err)
		}
	}
	return res, nil
}

// RecordLeave closes the open cycle. A missing record or a record without an
// open cycle is reported through the outcome and nothing is written.
func (l *Ledger) RecordLeave(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) (LeaveResult, error) {
	if at.IsZero() {
		at = l.now()
	}
	var res LeaveResult
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if s.LiveSessionStatus.IsTerminal() {
			res = LeaveResult{Outcome: LeaveIgnored, Reason: "session_closed"}
			return nil
		}

		rec := &attModel.MeetingAttendanceModel{}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", sessionID, userID).
			Take(rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = LeaveResult{Outcome: LeaveNoAttendance, Reason: "no attendance to close"}
			return nil
		}
		if err != nil {
			return err
		}
		if rec.MeetingAttendanceIsCalculated {
			res = LeaveResult{Outcome: LeaveIgnored, Reason: "already_finalized", Record: rec}
			return nil
		}

		cycles := rec.Cycles()
		if len(cycles) == 0 || !cycles[len(cycles)-1].IsOpen() {
			res = LeaveResult{Outcome: LeaveNoAttendance, Reason: "no open cycle", Record: rec}
			return nil
		}

		closeCycle(&cycles[len(cycles)-1], at, s.LiveSessionScheduledAt, "")
		rec.SetCycles(cycles)
		rec.MeetingAttendanceLeaveCount++
		t := at
		rec.MeetingAttendanceLastLeaveAt = &t
		rec.MeetingAttendanceTotalDurationMinutes = rec.ClosedMinutes()

		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("save attendance: %w", err)
		}
		res = LeaveResult{Outcome: LeaveClosed, Record: rec}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}
	log.Printf("[ATTENDANCE] leave session=%s user=%s outcome=%s %s", sessionID, userID, res.Outcome, res.Reason)
	return res, nil
}

// DetectReconnection reopens the last cycle when it was closed no more than
// the reconnection threshold before now. Records without cycles are untouched.
func (l *Ledger) DetectReconnection(rec *attModel.MeetingAttendanceModel, now time.Time) bool {
	cycles := rec.Cycles()
	if len(cycles) == 0 {
		return false
	}
	last := &cycles[len(cycles)-1]
	if last.LeftAt == nil {
		return false
	}
	if now.Sub(*last.LeftAt) > l.threshold() {
		return false
	}

	last.LeftAt = nil
	last.DurationMinutes = nil
	last.AutoClosed = false
	last.AutoCloseReason = ""
	rec.SetCycles(cycles)

	if rec.MeetingAttendanceLeaveCount > 0 {
		rec.MeetingAttendanceLeaveCount--
	}
	rec.MeetingAttendanceTotalDurationMinutes = rec.ClosedMinutes()
	return true
}

// CurrentDuration is the live attendance in minutes, including a running cycle.
func (l *Ledger) CurrentDuration(ctx context.Context, sessionID, userID uuid.UUID) (int, error) {
	db := l.DB.WithContext(ctx)
	s, err := loadSession(db, sessionID)
	if err != nil {
		return 0, err
	}
	var rec attModel.MeetingAttendanceModel
	if err := db.Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", sessionID, userID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRecordNotFound
		}
		return 0, err
	}
	if rec.MeetingAttendanceIsCalculated {
		return rec.MeetingAttendanceTotalDurationMinutes, nil
	}
	return rec.LiveMinutes(l.now(), s.LiveSessionScheduledAt), nil
}

// StudentPresent reports whether any student of the session has a positive
// live duration or is currently connected. db may be a transaction.
func (l *Ledger) StudentPresent(db *gorm.DB, s *sessModel.LiveSessionModel, now time.Time) (bool, error) {
	q := db.Where("meeting_attendance_session_id = ? AND meeting_attendance_role = ?",
		s.LiveSessionID, attModel.AttendanceRoleStudent)
	if s.IsIndividual() && s.LiveSessionStudentID != nil {
		q = q.Where("meeting_attendance_user_id = ?", *s.LiveSessionStudentID)
	}
	var recs []attModel.MeetingAttendanceModel
	if err := q.Find(&recs).Error; err != nil {
		return false, err
	}
	for i := range recs {
		if recs[i].HasOpenCycle() || recs[i].LiveMinutes(now, s.LiveSessionScheduledAt) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// AnyoneConnected reports whether any participant has a running cycle.
func (l *Ledger) AnyoneConnected(db *gorm.DB, sessionID uuid.UUID) (bool, error) {
	var recs []attModel.MeetingAttendanceModel
	if err := db.Where("meeting_attendance_session_id = ? AND meeting_attendance_is_calculated = ?", sessionID, false).
		Find(&recs).Error; err != nil {
		return false, err
	}
	for i := range recs {
		if recs[i].HasOpenCycle() {
			return true, nil
		}
	}
	return false, nil
}

/* =========================================================
   internals
========================================================= */

func loadSession(db *gorm.DB, id uuid.UUID) (*sessModel.LiveSessionModel, error) {
	var s sessModel.LiveSessionModel
	if err := db.Where("live_session_id = ?", id).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func roleFor(s *sessModel.LiveSessionModel, userID uuid.UUID) attModel.AttendanceRole {
	if userID == s.LiveSessionTeacherID {
		return attModel.AttendanceRoleTeacher
	}
	return attModel.AttendanceRoleStudent
}

// lockOrCreate returns the (session, user) record locked FOR UPDATE,
// inserting an empty one first if needed. A concurrent insert is absorbed by
// ON CONFLICT DO NOTHING and the winner's row is locked instead.
func lockOrCreate(tx *gorm.DB, s *sessModel.LiveSessionModel, userID uuid.UUID) (*attModel.MeetingAttendanceModel, error) {
	find := func() (*attModel.MeetingAttendanceModel, error) {
		rec := &attModel.MeetingAttendanceModel{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", s.LiveSessionID, userID).
			Take(rec).Error
		return rec, err
	}

	rec, err := find()
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := attModel.MeetingAttendanceModel{
		MeetingAttendanceTenantID:  s.LiveSessionTenantID,
		MeetingAttendanceSessionID: s.LiveSessionID,
		MeetingAttendanceSubtype:   string(s.LiveSessionSubtype),
		MeetingAttendanceUserID:    userID,
		MeetingAttendanceRole:      roleFor(s, userID),
	}
	fresh.SetCycles([]attModel.Cycle{})
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create attendance: %w", err)
	}
	return find()
}

func closeCycle(c *attModel.Cycle, at time.Time, scheduledAt *time.Time, autoReason string) {
	t := at
	d := attModel.CycleMinutes(c.JoinedAt, at, scheduledAt)
	c.LeftAt = &t
	c.DurationMinutes = &d
	if autoReason != "" {
		c.AutoClosed = true
		c.AutoCloseReason = autoReason
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
