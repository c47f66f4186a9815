// file: internals/features/sessions/session/controller/session_controller.go
package controller

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"akademiku_backend/internals/features/sessions/session/dto"
	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/scheduler"
	"akademiku_backend/internals/features/sessions/session/service"
	helper "akademiku_backend/internals/helpers"
	middleware "akademiku_backend/internals/middlewares/auth_academy"
)

type SessionController struct {
	DB        *gorm.DB
	SM        *service.StateMachine
	Sweeper   *scheduler.Sweeper
	Validator *validator.Validate
}

func NewSessionController(db *gorm.DB, sm *service.StateMachine, sweeper *scheduler.Sweeper) *SessionController {
	return &SessionController{DB: db, SM: sm, Sweeper: sweeper, Validator: validator.New()}
}

// LoadScoped reads :id and the session it names, hidden when the caller's
// token is bound to another academy.
func LoadScoped(c *fiber.Ctx, db *gorm.DB) (*model.LiveSessionModel, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return nil, helper.JsonError(c, fiber.StatusBadRequest, "Invalid session id")
	}
	var s model.LiveSessionModel
	q := db.WithContext(c.UserContext()).Where("live_session_id = ?", id)
	if tid := middleware.TenantID(c); tid != nil {
		q = q.Where("live_session_tenant_id = ?", *tid)
	}
	if err := q.Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, helper.JsonError(c, fiber.StatusNotFound, "Session not found")
		}
		return nil, helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load session")
	}
	return &s, nil
}

// GET /sessions/:id
func (h *SessionController) GetSession(c *fiber.Ctx) error {
	s, err := LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	return helper.JsonOK(c, "Session loaded", dto.FromModel(s))
}

type transitionFn func(ctx context.Context, id uuid.UUID) (service.TransitionResult, error)

func (h *SessionController) transition(c *fiber.Ctx, name string, fn transitionFn) error {
	s, err := LoadScoped(c, h.DB)
	if s == nil {
		return err
	}
	res, err := fn(c.UserContext(), s.LiveSessionID)
	if err != nil {
		return transitionError(c, name, s.LiveSessionID, err)
	}
	if !res.Applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":    false,
			"message":    "Transition not applied",
			"error_code": "CONFLICT",
			"data":       dto.FromTransition(res),
		})
	}
	return helper.JsonUpdated(c, "Session "+name, dto.FromTransition(res))
}

func transitionError(c *fiber.Ctx, name string, id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Session not found")
	case errors.Is(err, service.ErrMissingPrerequisite):
		return helper.JsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrMeetingRoomUnavailable):
		return helper.JsonError(c, fiber.StatusBadGateway, err.Error())
	}
	log.Printf("[SESSION-API] %s session=%s: %v", name, id, err)
	return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to update session")
}

// POST /sessions/:id/ready
func (h *SessionController) MarkReady(c *fiber.Ctx) error {
	return h.transition(c, "ready", h.SM.ToReady)
}

// POST /sessions/:id/start
func (h *SessionController) Start(c *fiber.Ctx) error {
	return h.transition(c, "started", h.SM.ToOngoing)
}

// POST /sessions/:id/complete
func (h *SessionController) Complete(c *fiber.Ctx) error {
	return h.transition(c, "completed", h.SM.ToCompleted)
}

// POST /sessions/:id/absent
func (h *SessionController) MarkAbsent(c *fiber.Ctx) error {
	return h.transition(c, "marked absent", h.SM.ToAbsent)
}

// POST /sessions/:id/cancel
func (h *SessionController) Cancel(c *fiber.Ctx) error {
	var req dto.CancelSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := h.Validator.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	var actor *uuid.UUID
	if uid := middleware.UserID(c); uid != uuid.Nil {
		actor = &uid
	}
	return h.transition(c, "cancelled", func(ctx context.Context, id uuid.UUID) (service.TransitionResult, error) {
		return h.SM.ToCancelled(ctx, id, req.Reason, actor)
	})
}

// POST /sessions/sweep runs one sweep now.
func (h *SessionController) Sweep(c *fiber.Ctx) error {
	res, err := h.Sweeper.Run(c.UserContext())
	if err != nil {
		log.Printf("[SESSION-API] sweep: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Sweep failed")
	}
	return helper.JsonOK(c, "Sweep finished", res)
}
