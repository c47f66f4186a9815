// file: internals/features/sessions/earnings/model/interactive_course_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentModel string

const (
	PaymentFixedAmount PaymentModel = "fixed_amount"
	PaymentPerStudent  PaymentModel = "per_student"
	PaymentPerSession  PaymentModel = "per_session"
)

/* =========================================================
   MODEL: interactive_courses
========================================================= */

type InteractiveCourseModel struct {
	InteractiveCourseID                 uuid.UUID        `gorm:"type:uuid;primaryKey;column:interactive_course_id" json:"interactive_course_id"`
	InteractiveCourseTenantID           uuid.UUID        `gorm:"type:uuid;not null;column:interactive_course_tenant_id" json:"interactive_course_tenant_id"`
	InteractiveCourseTitle              string           `gorm:"type:varchar(200);column:interactive_course_title" json:"interactive_course_title"`
	InteractiveCoursePaymentModel       PaymentModel     `gorm:"type:varchar(24);not null;column:interactive_course_payment_model" json:"interactive_course_payment_model"`
	InteractiveCourseTeacherFixedAmount *decimal.Decimal `gorm:"type:numeric(12,2);column:interactive_course_teacher_fixed_amount" json:"interactive_course_teacher_fixed_amount,omitempty"`
	InteractiveCourseTotalSessions      *int             `gorm:"column:interactive_course_total_sessions" json:"interactive_course_total_sessions,omitempty"`
	InteractiveCourseAmountPerStudent   *decimal.Decimal `gorm:"type:numeric(12,2);column:interactive_course_amount_per_student" json:"interactive_course_amount_per_student,omitempty"`
	InteractiveCourseAmountPerSession   *decimal.Decimal `gorm:"type:numeric(12,2);column:interactive_course_amount_per_session" json:"interactive_course_amount_per_session,omitempty"`

	InteractiveCourseCreatedAt time.Time `gorm:"column:interactive_course_created_at;autoCreateTime" json:"interactive_course_created_at"`
	InteractiveCourseUpdatedAt time.Time `gorm:"column:interactive_course_updated_at;autoUpdateTime" json:"interactive_course_updated_at"`
}

func (InteractiveCourseModel) TableName() string { return "interactive_courses" }

func (m *InteractiveCourseModel) BeforeCreate(tx *gorm.DB) error {
	if m.InteractiveCourseID == uuid.Nil {
		m.InteractiveCourseID = uuid.New()
	}
	return nil
}

/* =========================================================
   MODEL: interactive_course_enrollments
========================================================= */

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

type InteractiveCourseEnrollmentModel struct {
	InteractiveCourseEnrollmentID        uuid.UUID        `gorm:"type:uuid;primaryKey;column:interactive_course_enrollment_id" json:"interactive_course_enrollment_id"`
	InteractiveCourseEnrollmentCourseID  uuid.UUID        `gorm:"type:uuid;not null;column:interactive_course_enrollment_course_id;uniqueIndex:uq_course_enrollment,priority:1" json:"interactive_course_enrollment_course_id"`
	InteractiveCourseEnrollmentStudentID uuid.UUID        `gorm:"type:uuid;not null;column:interactive_course_enrollment_student_id;uniqueIndex:uq_course_enrollment,priority:2" json:"interactive_course_enrollment_student_id"`
	InteractiveCourseEnrollmentStatus    EnrollmentStatus `gorm:"type:varchar(16);not null;default:active;column:interactive_course_enrollment_status" json:"interactive_course_enrollment_status"`

	InteractiveCourseEnrollmentCreatedAt time.Time `gorm:"column:interactive_course_enrollment_created_at;autoCreateTime" json:"interactive_course_enrollment_created_at"`
}

func (InteractiveCourseEnrollmentModel) TableName() string { return "interactive_course_enrollments" }

func (m *InteractiveCourseEnrollmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.InteractiveCourseEnrollmentID == uuid.Nil {
		m.InteractiveCourseEnrollmentID = uuid.New()
	}
	if m.InteractiveCourseEnrollmentStatus == "" {
		m.InteractiveCourseEnrollmentStatus = EnrollmentActive
	}
	return nil
}
