// file: internals/features/sessions/earnings/service/calculator.go
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

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/alert"
	attModel "akademiku_backend/internals/features/sessions/attendance/model"
	earnModel "akademiku_backend/internals/features/sessions/earnings/model"
	sessModel "akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/policy"
	helper "akademiku_backend/internals/helpers"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrEarningNotFound     = errors.New("earning not found")
	ErrMissingPrerequisite = errors.New("missing prerequisite data")
	ErrInvalidRate         = errors.New("invalid rate")
)

const calculationVersion = 1

type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeExisting    Outcome = "existing"
	OutcomeNotEligible Outcome = "not_eligible"
)

type Result struct {
	Outcome Outcome                        `json:"outcome"`
	Reason  string                         `json:"reason,omitempty"`
	Earning *earnModel.TeacherEarningModel `json:"earning,omitempty"`
}

type Calculator struct {
	DB      *gorm.DB
	Cfg     configs.EngineConfig
	Alerter alert.Alerter
	Now     func() time.Time
}

func NewCalculator(db *gorm.DB, cfg configs.EngineConfig, alerter alert.Alerter) *Calculator {
	if alerter == nil {
		alerter = alert.LogAlerter{}
	}
	return &Calculator{
		DB:      db,
		Cfg:     cfg,
		Alerter: alerter,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// OnSessionCompleted is the listener for the completed signal. Missing or
// invalid pricing data has already raised an alert and waits for a manual
// recalculation, so it does not keep the session unsettled.
func (c *Calculator) OnSessionCompleted(ctx context.Context, s *sessModel.LiveSessionModel) error {
	res, err := c.Calculate(ctx, s.LiveSessionID)
	if errors.Is(err, ErrMissingPrerequisite) || errors.Is(err, ErrInvalidRate) {
		log.Printf("[EARNINGS] session=%s needs manual recalculation: %v", s.LiveSessionID, err)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[EARNINGS] session=%s outcome=%s %s", s.LiveSessionID, res.Outcome, res.Reason)
	return nil
}

// Calculate prices a completed session once. Repeated or concurrent calls
// return the first earning. Ineligible sessions return OutcomeNotEligible
// without an error.
func (c *Calculator) Calculate(ctx context.Context, sessionID uuid.UUID) (Result, error) {
	db := c.DB.WithContext(ctx)

	var s sessModel.LiveSessionModel
	if err := db.Where("live_session_id = ?", sessionID).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, ErrSessionNotFound
		}
		return Result{}, err
	}

	if reason, err := c.eligible(db, &s); err != nil {
		return Result{}, err
	} else if reason != "" {
		return Result{Outcome: OutcomeNotEligible, Reason: reason}, nil
	}

	if e, err := findEarning(db, &s); err != nil {
		return Result{}, err
	} else if e != nil {
		return Result{Outcome: OutcomeExisting, Earning: e}, nil
	}

	resolve, ok := resolvers[s.LiveSessionSubtype]
	if !ok {
		err := fmt.Errorf("%w: no pricing for subtype %q", ErrMissingPrerequisite, s.LiveSessionSubtype)
		c.raise(ctx, &s, err)
		return Result{}, err
	}
	q, err := resolve(db, &s)
	if err != nil {
		if errors.Is(err, ErrMissingPrerequisite) || errors.Is(err, ErrInvalidRate) {
			c.raise(ctx, &s, err)
		}
		return Result{}, err
	}

	row := c.build(db, &s, q)

	var out Result
	err = db.Transaction(func(tx *gorm.DB) error {
		// the session row is the mutex for its (subtype, session) key
		var locked sessModel.LiveSessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("live_session_id = ?", s.LiveSessionID).Take(&locked).Error; err != nil {
			return err
		}
		e, err := findEarning(tx, &s)
		if err != nil {
			return err
		}
		if e != nil {
			out = Result{Outcome: OutcomeExisting, Earning: e}
			return nil
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		out = Result{Outcome: OutcomeCreated, Earning: row}
		return nil
	})
	if err != nil {
		if helper.IsUniqueViolation(err) {
			e, ferr := findEarning(db, &s)
			if ferr == nil && e != nil {
				return Result{Outcome: OutcomeExisting, Earning: e}, nil
			}
		}
		return Result{}, fmt.Errorf("persist earning: %w", err)
	}
	if out.Outcome == OutcomeCreated {
		log.Printf("[EARNINGS] created session=%s teacher=%s amount=%s %s method=%s",
			s.LiveSessionID, s.LiveSessionTeacherID, row.TeacherEarningAmount.StringFixed(2),
			row.TeacherEarningCurrency, row.TeacherEarningCalculationMethod)
	}
	return out, nil
}

// eligible returns a non-empty reason when the session must not earn.
func (c *Calculator) eligible(db *gorm.DB, s *sessModel.LiveSessionModel) (string, error) {
	if s.LiveSessionStatus != sessModel.SessionStatusCompleted {
		return "status_" + string(s.LiveSessionStatus), nil
	}
	if pol, ok := policy.For(s.LiveSessionSubtype); ok && s.LiveSessionIsTrial && !pol.TrialEarns {
		return "trial_session", nil
	}
	pct, err := c.teacherAttendance(db, s)
	if err != nil {
		return "", err
	}
	threshold := c.Cfg.TeacherEarningThreshold
	if threshold <= 0 {
		threshold = 50
	}
	if pct < threshold {
		return fmt.Sprintf("teacher_attendance_%.2f", pct), nil
	}
	return "", nil
}

// teacherAttendance is the teacher's attendance percentage. A missing record
// counts as full attendance.
func (c *Calculator) teacherAttendance(db *gorm.DB, s *sessModel.LiveSessionModel) (float64, error) {
	var rec attModel.MeetingAttendanceModel
	err := db.Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?",
		s.LiveSessionID, s.LiveSessionTeacherID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 100, nil
	}
	if err != nil {
		return 0, err
	}
	if rec.MeetingAttendanceIsCalculated && rec.MeetingAttendancePercentage != nil {
		return *rec.MeetingAttendancePercentage, nil
	}
	planned := s.LiveSessionDurationMinutes
	if planned <= 0 {
		return 100, nil
	}
	minutes := rec.LiveMinutes(c.now(), s.LiveSessionScheduledAt)
	return float64(minutes) / float64(planned) * 100, nil
}

func findEarning(db *gorm.DB, s *sessModel.LiveSessionModel) (*earnModel.TeacherEarningModel, error) {
	var e earnModel.TeacherEarningModel
	err := db.Where("teacher_earning_session_subtype = ? AND teacher_earning_session_id = ?",
		string(s.LiveSessionSubtype), s.LiveSessionID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Calculator) build(db *gorm.DB, s *sessModel.LiveSessionModel, q quote) *earnModel.TeacherEarningModel {
	now := c.now()
	meta := datatypes.JSONMap{
		"calculated_at":       now.Format(time.RFC3339),
		"calculation_version": calculationVersion,
		"session_code":        s.LiveSessionCode,
		"session_subtype":     string(s.LiveSessionSubtype),
		"amount":              q.Amount.StringFixed(2),
	}
	for k, v := range q.Meta {
		meta[k] = v
	}
	pol, _ := policy.For(s.LiveSessionSubtype)
	return &earnModel.TeacherEarningModel{
		TeacherEarningTenantID:           s.LiveSessionTenantID,
		TeacherEarningTeacherID:          s.LiveSessionTeacherID,
		TeacherEarningTeacherType:        string(pol.TeacherType),
		TeacherEarningSessionSubtype:     string(s.LiveSessionSubtype),
		TeacherEarningSessionID:          s.LiveSessionID,
		TeacherEarningAmount:             q.Amount,
		TeacherEarningCurrency:           c.currency(db, s, q),
		TeacherEarningCalculationMethod:  q.Method,
		TeacherEarningRateSnapshot:       q.Rate,
		TeacherEarningMetadata:           meta,
		TeacherEarningMonth:              BillingMonth(s, c.location(), now),
		TeacherEarningSessionCompletedAt: s.LiveSessionEndedAt,
	}
}

func (c *Calculator) currency(db *gorm.DB, s *sessModel.LiveSessionModel, q quote) string {
	if q.Currency != "" {
		return q.Currency
	}
	var set sessModel.AcademySettingModel
	if err := db.Where("academy_setting_tenant_id = ?", s.LiveSessionTenantID).Take(&set).Error; err == nil &&
		set.AcademySettingCurrency != nil && *set.AcademySettingCurrency != "" {
		return *set.AcademySettingCurrency
	}
	if c.Cfg.DefaultCurrency != "" {
		return c.Cfg.DefaultCurrency
	}
	return "SAR"
}

func (c *Calculator) location() *time.Location {
	if c.Cfg.Location != nil {
		return c.Cfg.Location
	}
	return time.UTC
}

// BillingMonth is the first day of the month holding the session's end time,
// falling back to its scheduled time.
func BillingMonth(s *sessModel.LiveSessionModel, loc *time.Location, fallback time.Time) time.Time {
	t := fallback
	switch {
	case s.LiveSessionEndedAt != nil:
		t = *s.LiveSessionEndedAt
	case s.LiveSessionScheduledAt != nil:
		t = *s.LiveSessionScheduledAt
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func (c *Calculator) raise(ctx context.Context, s *sessModel.LiveSessionModel, err error) {
	code := "earnings.calculation_failed"
	switch {
	case errors.Is(err, ErrMissingPrerequisite):
		code = "earnings.missing_prerequisite"
	case errors.Is(err, ErrInvalidRate):
		code = "earnings.invalid_rate"
	}
	id := s.LiveSessionID
	c.Alerter.Alert(ctx, alert.Alert{
		Code:      code,
		Message:   err.Error(),
		SessionID: &id,
		Fields: map[string]any{
			"teacher_id": s.LiveSessionTeacherID.String(),
			"subtype":    string(s.LiveSessionSubtype),
		},
	})
}

/* =========================================================
   Queries
========================================================= */

type ListFilter struct {
	TenantID  *uuid.UUID
	TeacherID *uuid.UUID
	Month     *time.Time
	Offset    int
	Limit     int
}

func (c *Calculator) List(ctx context.Context, f ListFilter) ([]earnModel.TeacherEarningModel, int64, error) {
	q := c.DB.WithContext(ctx).Model(&earnModel.TeacherEarningModel{})
	if f.TenantID != nil {
		q = q.Where("teacher_earning_tenant_id = ?", *f.TenantID)
	}
	if f.TeacherID != nil {
		q = q.Where("teacher_earning_teacher_id = ?", *f.TeacherID)
	}
	if f.Month != nil {
		q = q.Where("teacher_earning_month = ?", *f.Month)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	var rows []earnModel.TeacherEarningModel
	err := q.Order("teacher_earning_created_at DESC").Offset(f.Offset).Limit(limit).Find(&rows).Error
	return rows, total, err
}

func (c *Calculator) GetBySession(ctx context.Context, sessionID uuid.UUID) (*earnModel.TeacherEarningModel, error) {
	var e earnModel.TeacherEarningModel
	err := c.DB.WithContext(ctx).Where("teacher_earning_session_id = ?", sessionID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEarningNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
