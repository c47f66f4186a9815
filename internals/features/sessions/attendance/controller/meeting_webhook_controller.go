// file: internals/features/sessions/attendance/controller/meeting_webhook_controller.go
package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"gorm.io/gorm"

	"akademiku_backend/internals/features/sessions/attendance/service"
	"akademiku_backend/internals/features/sessions/meeting"
	sessModel "akademiku_backend/internals/features/sessions/session/model"
	helper "akademiku_backend/internals/helpers"
)

// MeetingWebhookController turns provider presence events into ledger calls.
// Delivery is at-least-once; the ledger absorbs duplicates.
type MeetingWebhookController struct {
	DB       *gorm.DB
	Ledger   *service.Ledger
	Receiver *meeting.WebhookReceiver
}

func NewMeetingWebhookController(db *gorm.DB, ledger *service.Ledger, apiKey, apiSecret string) *MeetingWebhookController {
	return &MeetingWebhookController{DB: db, Ledger: ledger, Receiver: meeting.NewWebhookReceiver(apiKey, apiSecret)}
}

// POST /api/webhooks/meeting
func (h *MeetingWebhookController) Handle(c *fiber.Ctx) error {
	req, err := adaptor.ConvertRequest(c, false)
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request")
	}
	ev, err := h.Receiver.Receive(req)
	if err != nil {
		log.Printf("[MEETING-WEBHOOK] rejected: %v", err)
		return helper.JsonError(c, fiber.StatusUnauthorized, "Invalid webhook signature")
	}

	switch ev.Event {
	case meeting.EventParticipantJoined, meeting.EventParticipantLeft:
	case meeting.EventRoomFinished:
		log.Printf("[MEETING-WEBHOOK] room finished room=%s", ev.RoomName)
		return ack(c, "room_finished")
	default:
		return ack(c, "event_ignored")
	}

	if ev.RoomName == "" || ev.Identity == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "Missing room or participant")
	}
	userID, err := meeting.IdentityUserID(ev.Identity)
	if err != nil {
		log.Printf("[MEETING-WEBHOOK] bad identity %q: %v", ev.Identity, err)
		return ack(c, "unknown_participant")
	}

	var s sessModel.LiveSessionModel
	if err := h.DB.WithContext(c.UserContext()).
		Where("live_session_meeting_room_name = ?", ev.RoomName).
		Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[MEETING-WEBHOOK] no session for room=%s", ev.RoomName)
			return ack(c, "unknown_room")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load session")
	}

	ctx := c.UserContext()
	at := ev.OccurredAt()
	if ev.Event == meeting.EventParticipantJoined {
		res, err := h.Ledger.RecordJoin(ctx, s.LiveSessionID, userID, at)
		if err != nil {
			log.Printf("[MEETING-WEBHOOK] join session=%s user=%s: %v", s.LiveSessionID, userID, err)
			return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to record join")
		}
		return ack(c, string(res.Outcome))
	}

	res, err := h.Ledger.RecordLeave(ctx, s.LiveSessionID, userID, at)
	if err != nil {
		log.Printf("[MEETING-WEBHOOK] leave session=%s user=%s: %v", s.LiveSessionID, userID, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to record leave")
	}
	return ack(c, string(res.Outcome))
}

func ack(c *fiber.Ctx, outcome string) error {
	return helper.JsonOK(c, "Webhook processed", fiber.Map{"outcome": outcome})
}
