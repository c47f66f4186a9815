// file: internals/features/sessions/session/policy/policy.go
package policy

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/session/model"
)

type TeacherType string

const (
	TeacherTypeQuran    TeacherType = "quran_teacher"
	TeacherTypeAcademic TeacherType = "academic_teacher"
)

// SubtypePolicy is what the engine needs to know about a session subtype.
type SubtypePolicy struct {
	Subtype model.SessionSubtype
	// single-student sessions may end ABSENT
	SingleStudent bool
	TeacherType   TeacherType
	// trial sessions never earn when false
	TrialEarns bool
}

var policies = map[model.SessionSubtype]SubtypePolicy{
	model.SessionSubtypeIndividual: {
		Subtype:       model.SessionSubtypeIndividual,
		SingleStudent: true,
		TeacherType:   TeacherTypeQuran,
	},
	model.SessionSubtypeGroup: {
		Subtype:     model.SessionSubtypeGroup,
		TeacherType: TeacherTypeQuran,
	},
	model.SessionSubtypeInteractive: {
		Subtype:     model.SessionSubtypeInteractive,
		TeacherType: TeacherTypeAcademic,
	},
}

func For(st model.SessionSubtype) (SubtypePolicy, bool) {
	p, ok := policies[st]
	return p, ok
}

// Resolver merges tenant settings, subtype config and defaults into the
// effective timing for one session.
type Resolver struct {
	Cfg configs.EngineConfig
}

func NewResolver(cfg configs.EngineConfig) *Resolver {
	return &Resolver{Cfg: cfg}
}

// Timing must be called with the handle of the current transaction when there is one.
func (r *Resolver) Timing(db *gorm.DB, s *model.LiveSessionModel) configs.SessionTiming {
	t := r.Cfg.Timing(string(s.LiveSessionSubtype))
	if db == nil || s.LiveSessionTenantID == uuid.Nil {
		return t
	}

	var set model.AcademySettingModel
	err := db.Where("academy_setting_tenant_id = ?", s.LiveSessionTenantID).Take(&set).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[WARN] academy settings lookup tenant=%s: %v", s.LiveSessionTenantID, err)
		}
		return t
	}
	if v := set.AcademySettingPreparationMinutes; v != nil && *v >= 0 {
		t.PreparationMinutes = *v
	}
	if v := set.AcademySettingLateToleranceMinutes; v != nil && *v >= 0 {
		t.GraceMinutes = *v
	}
	if v := set.AcademySettingEndingBufferMinutes; v != nil && *v >= 0 {
		t.EndingBufferMinutes = *v
	}
	return t
}
