// file: internals/features/sessions/earnings/model/teacher_profile_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TeacherProfileModel holds the per-session rates of a teacher. Rates are
// nullable: a missing rate is a data problem, never a zero.
type TeacherProfileModel struct {
	TeacherProfileUserID         uuid.UUID        `gorm:"type:uuid;primaryKey;column:teacher_profile_user_id" json:"teacher_profile_user_id"`
	TeacherProfileTenantID       uuid.UUID        `gorm:"type:uuid;not null;column:teacher_profile_tenant_id;index:idx_teacher_profile_tenant" json:"teacher_profile_tenant_id"`
	TeacherProfileType           string           `gorm:"type:varchar(32);not null;column:teacher_profile_type" json:"teacher_profile_type"`
	TeacherProfileIndividualRate *decimal.Decimal `gorm:"type:numeric(12,2);column:teacher_profile_individual_rate" json:"teacher_profile_individual_rate,omitempty"`
	TeacherProfileGroupRate      *decimal.Decimal `gorm:"type:numeric(12,2);column:teacher_profile_group_rate" json:"teacher_profile_group_rate,omitempty"`
	TeacherProfileCurrency       *string          `gorm:"type:varchar(8);column:teacher_profile_currency" json:"teacher_profile_currency,omitempty"`

	TeacherProfileCreatedAt time.Time `gorm:"column:teacher_profile_created_at;autoCreateTime" json:"teacher_profile_created_at"`
	TeacherProfileUpdatedAt time.Time `gorm:"column:teacher_profile_updated_at;autoUpdateTime" json:"teacher_profile_updated_at"`
}

func (TeacherProfileModel) TableName() string { return "teacher_profiles" }
