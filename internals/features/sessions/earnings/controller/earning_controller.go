// file: internals/features/sessions/earnings/controller/earning_controller.go
package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"akademiku_backend/internals/features/sessions/earnings/dto"
	"akademiku_backend/internals/features/sessions/earnings/service"
	sessController "akademiku_backend/internals/features/sessions/session/controller"
	helper "akademiku_backend/internals/helpers"
	middleware "akademiku_backend/internals/middlewares/auth_academy"
)

type EarningController struct {
	DB   *gorm.DB
	Calc *service.Calculator
}

func NewEarningController(db *gorm.DB, calc *service.Calculator) *EarningController {
	return &EarningController{DB: db, Calc: calc}
}

// GET /earnings?teacher_id=&month=YYYY-MM&page=&per_page=
func (h *EarningController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 200)
	f := service.ListFilter{
		TenantID: middleware.TenantID(c),
		Offset:   p.Offset,
		Limit:    p.Limit,
	}
	if v := strings.TrimSpace(c.Query("teacher_id")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "teacher_id is not a valid UUID")
		}
		f.TeacherID = &id
	}
	if v := strings.TrimSpace(c.Query("month")); v != "" {
		loc := h.Calc.Cfg.Location
		if loc == nil {
			loc = time.UTC
		}
		m, err := time.ParseInLocation("2006-01", v, loc)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "month must be YYYY-MM")
		}
		f.Month = &m
	}

	rows, total, err := h.Calc.List(c.UserContext(), f)
	if err != nil {
		log.Printf("[EARNINGS-API] list: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load earnings")
	}
	pg := helper.BuildPagination(total, p, len(rows))
	return helper.JsonList(c, "Earnings loaded", dto.FromModels(rows), &pg)
}

// GET /sessions/:id/earning
func (h *EarningController) GetBySession(c *fiber.Ctx) error {
	s, err := sessController.LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	e, err := h.Calc.GetBySession(c.UserContext(), s.LiveSessionID)
	if err != nil {
		if errors.Is(err, service.ErrEarningNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "No earning for this session")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load earning")
	}
	return helper.JsonOK(c, "Earning loaded", dto.FromModel(e))
}

// POST /sessions/:id/earning/calculate
func (h *EarningController) Calculate(c *fiber.Ctx) error {
	s, err := sessController.LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	res, err := h.Calc.Calculate(c.UserContext(), s.LiveSessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return helper.JsonError(c, fiber.StatusNotFound, "Session not found")
		case errors.Is(err, service.ErrMissingPrerequisite), errors.Is(err, service.ErrInvalidRate):
			return helper.JsonError(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		log.Printf("[EARNINGS-API] calculate session=%s: %v", s.LiveSessionID, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to calculate earning")
	}

	out := fiber.Map{"outcome": res.Outcome, "reason": res.Reason}
	if res.Earning != nil {
		out["earning"] = dto.FromModel(res.Earning)
	}
	if res.Outcome == service.OutcomeCreated {
		return helper.JsonCreated(c, "Earning created", out)
	}
	return helper.JsonOK(c, "Earning calculated", out)
}
