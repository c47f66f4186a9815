// file: internals/features/sessions/earnings/model/teacher_earning_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CalculationMethod string

const (
	MethodIndividualRate CalculationMethod = "individual_rate"
	MethodGroupRate      CalculationMethod = "group_rate"
	MethodFixed          CalculationMethod = "fixed"
	MethodPerStudent     CalculationMethod = "per_student"
	MethodPerSession     CalculationMethod = "per_session"
)

// TeacherEarningModel is written once per (subtype, session) and never
// recomputed automatically.
type TeacherEarningModel struct {
	TeacherEarningID                 uuid.UUID         `gorm:"type:uuid;primaryKey;column:teacher_earning_id" json:"teacher_earning_id"`
	TeacherEarningTenantID           uuid.UUID         `gorm:"type:uuid;not null;column:teacher_earning_tenant_id;index:idx_teacher_earning_tenant" json:"teacher_earning_tenant_id"`
	TeacherEarningTeacherID          uuid.UUID         `gorm:"type:uuid;not null;column:teacher_earning_teacher_id;index:idx_teacher_earning_teacher_month,priority:1" json:"teacher_earning_teacher_id"`
	TeacherEarningTeacherType        string            `gorm:"type:varchar(24);not null;column:teacher_earning_teacher_type" json:"teacher_earning_teacher_type"`
	TeacherEarningSessionSubtype     string            `gorm:"type:varchar(24);not null;column:teacher_earning_session_subtype;uniqueIndex:uq_teacher_earning_session,priority:1" json:"teacher_earning_session_subtype"`
	TeacherEarningSessionID          uuid.UUID         `gorm:"type:uuid;not null;column:teacher_earning_session_id;uniqueIndex:uq_teacher_earning_session,priority:2" json:"teacher_earning_session_id"`
	TeacherEarningAmount             decimal.Decimal   `gorm:"type:numeric(12,2);not null;column:teacher_earning_amount" json:"teacher_earning_amount"`
	TeacherEarningCurrency           string            `gorm:"type:varchar(8);not null;column:teacher_earning_currency" json:"teacher_earning_currency"`
	TeacherEarningCalculationMethod  CalculationMethod `gorm:"type:varchar(24);not null;column:teacher_earning_calculation_method" json:"teacher_earning_calculation_method"`
	TeacherEarningRateSnapshot       decimal.Decimal   `gorm:"type:numeric(12,2);not null;column:teacher_earning_rate_snapshot" json:"teacher_earning_rate_snapshot"`
	TeacherEarningMetadata           datatypes.JSONMap `gorm:"column:teacher_earning_metadata" json:"teacher_earning_metadata"`
	TeacherEarningMonth              time.Time         `gorm:"not null;column:teacher_earning_month;index:idx_teacher_earning_teacher_month,priority:2" json:"teacher_earning_month"`
	TeacherEarningSessionCompletedAt *time.Time        `gorm:"column:teacher_earning_session_completed_at" json:"teacher_earning_session_completed_at,omitempty"`
	TeacherEarningIsFinalized        bool              `gorm:"not null;default:false;column:teacher_earning_is_finalized" json:"teacher_earning_is_finalized"`
	TeacherEarningIsDisputed         bool              `gorm:"not null;default:false;column:teacher_earning_is_disputed" json:"teacher_earning_is_disputed"`

	TeacherEarningCreatedAt time.Time `gorm:"column:teacher_earning_created_at;autoCreateTime" json:"teacher_earning_created_at"`
	TeacherEarningUpdatedAt time.Time `gorm:"column:teacher_earning_updated_at;autoUpdateTime" json:"teacher_earning_updated_at"`
}

func (TeacherEarningModel) TableName() string { return "teacher_earnings" }

func (m *TeacherEarningModel) BeforeCreate(tx *gorm.DB) error {
	if m.TeacherEarningID == uuid.Nil {
		m.TeacherEarningID = uuid.New()
	}
	return nil
}
