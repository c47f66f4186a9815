// file: internals/features/sessions/earnings/service/rates.go
package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	earnModel "akademiku_backend/internals/features/sessions/earnings/model"
	sessModel "akademiku_backend/internals/features/sessions/session/model"
)

// quote is the priced outcome of one session before it is persisted.
type quote struct {
	Amount   decimal.Decimal
	Rate     decimal.Decimal
	Method   earnModel.CalculationMethod
	Currency string
	Meta     map[string]any
}

type rateResolver func(db *gorm.DB, s *sessModel.LiveSessionModel) (quote, error)

// resolvers is the per-subtype pricing table.
var resolvers = map[sessModel.SessionSubtype]rateResolver{
	sessModel.SessionSubtypeIndividual:  individualRate,
	sessModel.SessionSubtypeGroup:       groupRate,
	sessModel.SessionSubtypeInteractive: interactiveRate,
}

func loadProfile(db *gorm.DB, s *sessModel.LiveSessionModel) (*earnModel.TeacherProfileModel, error) {
	var p earnModel.TeacherProfileModel
	if err := db.Where("teacher_profile_user_id = ?", s.LiveSessionTeacherID).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no teacher profile for %s", ErrMissingPrerequisite, s.LiveSessionTeacherID)
		}
		return nil, err
	}
	return &p, nil
}

func positive(name string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not set", ErrMissingPrerequisite, name)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s is %s", ErrInvalidRate, name, v.String())
	}
	return *v, nil
}

func profileCurrency(p *earnModel.TeacherProfileModel) string {
	if p.TeacherProfileCurrency != nil {
		return *p.TeacherProfileCurrency
	}
	return ""
}

func individualRate(db *gorm.DB, s *sessModel.LiveSessionModel) (quote, error) {
	p, err := loadProfile(db, s)
	if err != nil {
		return quote{}, err
	}
	rate, method, field := p.TeacherProfileIndividualRate, earnModel.MethodIndividualRate, "individual_rate"
	if s.LiveSessionMode == sessModel.SessionModeGroup {
		rate, method, field = p.TeacherProfileGroupRate, earnModel.MethodGroupRate, "group_rate"
	}
	r, err := positive(field, rate)
	if err != nil {
		return quote{}, err
	}
	return quote{
		Amount:   r,
		Rate:     r,
		Method:   method,
		Currency: profileCurrency(p),
		Meta:     map[string]any{"session_mode": string(s.LiveSessionMode)},
	}, nil
}

func groupRate(db *gorm.DB, s *sessModel.LiveSessionModel) (quote, error) {
	p, err := loadProfile(db, s)
	if err != nil {
		return quote{}, err
	}
	r, err := positive("group_rate", p.TeacherProfileGroupRate)
	if err != nil {
		return quote{}, err
	}
	return quote{Amount: r, Rate: r, Method: earnModel.MethodGroupRate, Currency: profileCurrency(p), Meta: map[string]any{}}, nil
}

func interactiveRate(db *gorm.DB, s *sessModel.LiveSessionModel) (quote, error) {
	if s.LiveSessionCourseID == nil {
		return quote{}, fmt.Errorf("%w: interactive session %s has no course", ErrMissingPrerequisite, s.LiveSessionID)
	}
	var c earnModel.InteractiveCourseModel
	if err := db.Where("interactive_course_id = ?", *s.LiveSessionCourseID).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return quote{}, fmt.Errorf("%w: course %s not found", ErrMissingPrerequisite, *s.LiveSessionCourseID)
		}
		return quote{}, err
	}
	meta := map[string]any{
		"course_id":     c.InteractiveCourseID.String(),
		"payment_model": string(c.InteractiveCoursePaymentModel),
	}

	switch c.InteractiveCoursePaymentModel {
	case earnModel.PaymentFixedAmount:
		total, err := positive("teacher_fixed_amount", c.InteractiveCourseTeacherFixedAmount)
		if err != nil {
			return quote{}, err
		}
		if c.InteractiveCourseTotalSessions == nil {
			return quote{}, fmt.Errorf("%w: total_sessions is not set", ErrMissingPrerequisite)
		}
		n := *c.InteractiveCourseTotalSessions
		if n <= 0 {
			return quote{}, fmt.Errorf("%w: total_sessions is %d", ErrInvalidRate, n)
		}
		per := total.DivRound(decimal.NewFromInt(int64(n)), 2)
		meta["total_sessions"] = n
		return quote{Amount: per, Rate: per, Method: earnModel.MethodFixed, Meta: meta}, nil

	case earnModel.PaymentPerStudent:
		rate, err := positive("amount_per_student", c.InteractiveCourseAmountPerStudent)
		if err != nil {
			return quote{}, err
		}
		var enrolled int64
		if err := db.Model(&earnModel.InteractiveCourseEnrollmentModel{}).
			Where("interactive_course_enrollment_course_id = ? AND interactive_course_enrollment_status = ?",
				c.InteractiveCourseID, earnModel.EnrollmentActive).
			Count(&enrolled).Error; err != nil {
			return quote{}, err
		}
		meta["enrolled_students"] = enrolled
		return quote{
			Amount: rate.Mul(decimal.NewFromInt(enrolled)),
			Rate:   rate,
			Method: earnModel.MethodPerStudent,
			Meta:   meta,
		}, nil

	case earnModel.PaymentPerSession:
		rate, err := positive("amount_per_session", c.InteractiveCourseAmountPerSession)
		if err != nil {
			return quote{}, err
		}
		return quote{Amount: rate, Rate: rate, Method: earnModel.MethodPerSession, Meta: meta}, nil
	}
	return quote{}, fmt.Errorf("%w: unknown payment model %q", ErrInvalidRate, c.InteractiveCoursePaymentModel)
}
