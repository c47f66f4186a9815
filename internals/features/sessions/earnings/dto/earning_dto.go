// file: internals/features/sessions/earnings/dto/earning_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	"akademiku_backend/internals/features/sessions/earnings/model"
)

type EarningResponse struct {
	ID                 uuid.UUID               `json:"id"`
	TeacherID          uuid.UUID               `json:"teacher_id"`
	TeacherType        string                  `json:"teacher_type"`
	SessionID          uuid.UUID               `json:"session_id"`
	SessionSubtype     string                  `json:"session_subtype"`
	Amount             string                  `json:"amount"`
	Currency           string                  `json:"currency"`
	CalculationMethod  model.CalculationMethod `json:"calculation_method"`
	RateSnapshot       string                  `json:"rate_snapshot"`
	EarningMonth       string                  `json:"earning_month"`
	SessionCompletedAt *time.Time              `json:"session_completed_at,omitempty"`
	IsFinalized        bool                    `json:"is_finalized"`
	IsDisputed         bool                    `json:"is_disputed"`
	Metadata           map[string]any          `json:"metadata"`
	CreatedAt          time.Time               `json:"created_at"`
}

func FromModel(m *model.TeacherEarningModel) EarningResponse {
	return EarningResponse{
		ID:                 m.TeacherEarningID,
		TeacherID:          m.TeacherEarningTeacherID,
		TeacherType:        m.TeacherEarningTeacherType,
		SessionID:          m.TeacherEarningSessionID,
		SessionSubtype:     m.TeacherEarningSessionSubtype,
		Amount:             m.TeacherEarningAmount.StringFixed(2),
		Currency:           m.TeacherEarningCurrency,
		CalculationMethod:  m.TeacherEarningCalculationMethod,
		RateSnapshot:       m.TeacherEarningRateSnapshot.StringFixed(2),
		EarningMonth:       m.TeacherEarningMonth.Format("2006-01"),
		SessionCompletedAt: m.TeacherEarningSessionCompletedAt,
		IsFinalized:        m.TeacherEarningIsFinalized,
		IsDisputed:         m.TeacherEarningIsDisputed,
		Metadata:           m.TeacherEarningMetadata,
		CreatedAt:          m.TeacherEarningCreatedAt,
	}
}

func FromModels(rows []model.TeacherEarningModel) []EarningResponse {
	out := make([]EarningResponse, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
