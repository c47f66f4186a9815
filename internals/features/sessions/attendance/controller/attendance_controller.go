// file: internals/features/sessions/attendance/controller/attendance_controller.go
package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"akademiku_backend/internals/features/sessions/attendance/dto"
	attModel "akademiku_backend/internals/features/sessions/attendance/model"
	"akademiku_backend/internals/features/sessions/attendance/service"
	sessController "akademiku_backend/internals/features/sessions/session/controller"
	helper "akademiku_backend/internals/helpers"
	middleware "akademiku_backend/internals/middlewares/auth_academy"
)

type AttendanceController struct {
	DB        *gorm.DB
	Ledger    *service.Ledger
	Validator *validator.Validate
}

func NewAttendanceController(db *gorm.DB, ledger *service.Ledger) *AttendanceController {
	return &AttendanceController{DB: db, Ledger: ledger, Validator: validator.New()}
}

// GET /sessions/:id/attendance
func (h *AttendanceController) ListBySession(c *fiber.Ctx) error {
	s, err := sessController.LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	ctx := c.UserContext()
	rows, err := h.Ledger.ListBySession(ctx, s.LiveSessionID)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load attendance")
	}
	stats, err := h.Ledger.Statistics(ctx, s.LiveSessionID)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load attendance")
	}

	now := h.Ledger.Now()
	items := make([]dto.AttendanceResponse, 0, len(rows))
	for i := range rows {
		cur := rows[i].MeetingAttendanceTotalDurationMinutes
		if !rows[i].MeetingAttendanceIsCalculated {
			cur = rows[i].LiveMinutes(now, s.LiveSessionScheduledAt)
		}
		items = append(items, dto.FromModel(&rows[i], cur))
	}
	return helper.JsonOK(c, "Attendance loaded", fiber.Map{
		"items":      items,
		"statistics": stats,
	})
}

// parsePresence returns nil after writing the error response.
func (h *AttendanceController) parsePresence(c *fiber.Ctx) (*dto.PresenceEventRequest, time.Time, error) {
	var req dto.PresenceEventRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, time.Time{}, helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Validator.Struct(req); err != nil {
		return nil, time.Time{}, helper.JsonValidationError(c, helper.ValidationErrors(err))
	}
	var at time.Time
	if req.At != nil {
		at = req.At.UTC()
	}
	return &req, at, nil
}

// POST /sessions/:id/attendance/join
func (h *AttendanceController) Join(c *fiber.Ctx) error {
	s, err := sessController.LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	req, at, err := h.parsePresence(c)
	if req == nil {
		return err
	}
	res, err := h.Ledger.RecordJoin(c.UserContext(), s.LiveSessionID, req.UserID, at)
	if err != nil {
		return ledgerError(c, "join", err)
	}
	return helper.JsonOK(c, "Join recorded", fiber.Map{
		"outcome": res.Outcome,
		"reason":  res.Reason,
	})
}

// POST /sessions/:id/attendance/leave
func (h *AttendanceController) Leave(c *fiber.Ctx) error {
	s, err := sessController.LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	req, at, err := h.parsePresence(c)
	if req == nil {
		return err
	}
	res, err := h.Ledger.RecordLeave(c.UserContext(), s.LiveSessionID, req.UserID, at)
	if err != nil {
		return ledgerError(c, "leave", err)
	}
	return helper.JsonOK(c, "Leave recorded", fiber.Map{
		"outcome": res.Outcome,
		"reason":  res.Reason,
	})
}

// PATCH /attendance/:id/override
func (h *AttendanceController) Override(c *fiber.Ctx) error {
	id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid attendance id")
	}
	var req dto.OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Validator.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}
	if tid := middleware.TenantID(c); tid != nil {
		var n int64
		if err := h.DB.WithContext(c.UserContext()).Model(&attModel.MeetingAttendanceModel{}).
			Where("meeting_attendance_id = ? AND meeting_attendance_tenant_id = ?", id, *tid).
			Count(&n).Error; err != nil || n == 0 {
			return helper.JsonError(c, fiber.StatusNotFound, "Attendance record not found")
		}
	}

	rec, err := h.Ledger.Override(c.UserContext(), id, service.OverrideInput{
		Status:  req.Status,
		ActorID: middleware.UserID(c),
		Note:    req.Note,
	})
	if err != nil {
		return ledgerError(c, "override", err)
	}
	return helper.JsonUpdated(c, "Attendance overridden", dto.FromModel(rec, rec.MeetingAttendanceTotalDurationMinutes))
}

func ledgerError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Session not found")
	case errors.Is(err, service.ErrRecordNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Attendance record not found")
	case errors.Is(err, service.ErrInvalidStatus):
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}
	log.Printf("[ATTENDANCE-API] %s: %v", op, err)
	return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to record attendance")
}
