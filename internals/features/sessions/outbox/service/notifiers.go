// file: internals/features/sessions/outbox/service/notifiers.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"akademiku_backend/internals/features/sessions/outbox/model"
)

// LogNotifier only writes the event to the log. Used when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev *model.SessionOutboxEventModel) error {
	sid := "-"
	if ev.SessionOutboxEventSessionID != nil {
		sid = ev.SessionOutboxEventSessionID.String()
	}
	log.Printf("[OUTBOX] notify kind=%s session=%s recipients=%d",
		ev.SessionOutboxEventKind, sid, len(ev.Recipients()))
	return nil
}

// WebhookNotifier POSTs each event to a collaborator endpoint. The request is
// signed with a short-lived HS256 bearer token carrying the event id.
type WebhookNotifier struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Client  *fiber.Client
}

type webhookEnvelope struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	SessionID  *string        `json:"session_id,omitempty"`
	Recipients []string       `json:"recipients"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, ev *model.SessionOutboxEventModel) error {
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("webhook url not configured")
	}
	client := w.Client
	if client == nil {
		client = &fiber.Client{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal}
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	body := webhookEnvelope{
		ID:         ev.SessionOutboxEventID.String(),
		Kind:       string(ev.SessionOutboxEventKind),
		Recipients: make([]string, 0, len(ev.Recipients())),
		Payload:    map[string]any(ev.SessionOutboxEventPayload),
		CreatedAt:  ev.SessionOutboxEventCreatedAt,
	}
	if ev.SessionOutboxEventSessionID != nil {
		s := ev.SessionOutboxEventSessionID.String()
		body.SessionID = &s
	}
	for _, r := range ev.Recipients() {
		body.Recipients = append(body.Recipients, r.String())
	}

	agent := client.Post(w.URL).
		Set("X-Outbox-Event", body.Kind).
		Set("X-Outbox-Event-ID", body.ID).
		JSON(body).
		Timeout(timeout)

	if w.Secret != "" {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ID:        body.ID,
			Subject:   body.Kind,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		})
		signed, err := tok.SignedString([]byte(w.Secret))
		if err != nil {
			return fmt.Errorf("sign webhook token: %w", err)
		}
		agent.Set(fiber.HeaderAuthorization, "Bearer "+signed)
	}

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook post: %v", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook status %d: %s", code, truncate(string(resp), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
