// file: internals/features/sessions/session/model/academy_setting_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// AcademySettingModel carries per-tenant timing overrides. Nil means "use
// the subtype default".
type AcademySettingModel struct {
	AcademySettingTenantID             uuid.UUID `gorm:"type:uuid;primaryKey;column:academy_setting_tenant_id" json:"academy_setting_tenant_id"`
	AcademySettingPreparationMinutes   *int      `gorm:"column:academy_setting_preparation_minutes" json:"academy_setting_preparation_minutes,omitempty"`
	AcademySettingLateToleranceMinutes *int      `gorm:"column:academy_setting_late_tolerance_minutes" json:"academy_setting_late_tolerance_minutes,omitempty"`
	AcademySettingEndingBufferMinutes  *int      `gorm:"column:academy_setting_ending_buffer_minutes" json:"academy_setting_ending_buffer_minutes,omitempty"`
	AcademySettingTimezone             *string   `gorm:"type:varchar(64);column:academy_setting_timezone" json:"academy_setting_timezone,omitempty"`
	AcademySettingCurrency             *string   `gorm:"type:varchar(8);column:academy_setting_currency" json:"academy_setting_currency,omitempty"`

	AcademySettingUpdatedAt time.Time `gorm:"column:academy_setting_updated_at;autoUpdateTime" json:"academy_setting_updated_at"`
}

func (AcademySettingModel) TableName() string { return "academy_settings" }
