// file: internals/features/sessions/meeting/webhook.go
package meeting

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
)

var ErrWebhookRejected = errors.New("webhook: rejected")

const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventRoomFinished      = "room_finished"
)

// WebhookReceiver verifies the provider's signed Authorization token against
// the body and decodes the event.
type WebhookReceiver struct {
	keys auth.KeyProvider
}

func NewWebhookReceiver(apiKey, apiSecret string) *WebhookReceiver {
	return &WebhookReceiver{keys: auth.NewSimpleKeyProvider(apiKey, apiSecret)}
}

// Receive consumes r.Body. Any verification or decode failure wraps
// ErrWebhookRejected.
func (w *WebhookReceiver) Receive(r *http.Request) (WebhookEvent, error) {
	ev, err := webhook.ReceiveWebhookEvent(r, w.keys)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookRejected, err)
	}
	if strings.TrimSpace(ev.GetEvent()) == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing event", ErrWebhookRejected)
	}
	return fromLiveKit(ev), nil
}

// SignWebhook produces an Authorization value the way the provider does.
// Used by tests and local tooling.
func SignWebhook(body []byte, apiKey, apiSecret string) (string, error) {
	sum := sha256.Sum256(body)
	return auth.NewAccessToken(apiKey, apiSecret).
		SetValidFor(5 * time.Minute).
		SetSha256(base64.StdEncoding.EncodeToString(sum[:])).
		ToJWT()
}

/* =========================================================
   Event payload
========================================================= */

// WebhookEvent is the part of a provider event the ledger needs.
type WebhookEvent struct {
	ID        string
	Event     string
	CreatedAt int64
	RoomName  string
	Identity  string
	// unix seconds, joins only
	JoinedAt int64
}

func fromLiveKit(ev *livekit.WebhookEvent) WebhookEvent {
	return WebhookEvent{
		ID:        ev.GetId(),
		Event:     ev.GetEvent(),
		CreatedAt: ev.GetCreatedAt(),
		RoomName:  ev.GetRoom().GetName(),
		Identity:  ev.GetParticipant().GetIdentity(),
		JoinedAt:  ev.GetParticipant().GetJoinedAt(),
	}
}

// OccurredAt picks the provider timestamp for the event: participant join
// time for joins, the event creation time otherwise. Zero when absent.
func (e WebhookEvent) OccurredAt() time.Time {
	if e.Event == EventParticipantJoined && e.JoinedAt > 0 {
		return time.Unix(e.JoinedAt, 0).UTC()
	}
	if e.CreatedAt > 0 {
		return time.Unix(e.CreatedAt, 0).UTC()
	}
	return time.Time{}
}

// IdentityUserID extracts the user id from an identity of the form
// "<uuid>" or "<uuid>_<display name>".
func IdentityUserID(identity string) (uuid.UUID, error) {
	id := strings.TrimSpace(identity)
	if i := strings.Index(id, "_"); i >= 0 {
		id = id[:i]
	}
	return uuid.Parse(id)
}
