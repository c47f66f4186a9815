// file: internals/features/sessions/meeting/provider.go
package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RoomOptions struct {
	MaxParticipants int
	Recording       bool
	// room is dropped by the provider after this long
	TTL         time.Duration
	SessionType string
}

type Room struct {
	Name    string
	JoinURL string
}

// RoomProvider is the only surface the engine uses to talk to the video vendor.
type RoomProvider interface {
	CreateRoom(ctx context.Context, name string, opts RoomOptions) (Room, error)
	CloseRoom(ctx context.Context, name string) (bool, error)
}

// RoomName is deterministic per session so a retried toReady reuses the same room.
func RoomName(tenantID uuid.UUID, subtype string, sessionID uuid.UUID) string {
	t := strings.ReplaceAll(tenantID.String(), "-", "")
	if len(t) > 8 {
		t = t[:8]
	}
	return fmt.Sprintf("%s-%s-session-%s", t, strings.ToLower(subtype), sessionID)
}

// NoopProvider is used when no provider is configured. Rooms exist only by name.
type NoopProvider struct {
	BaseURL string
}

func (n NoopProvider) CreateRoom(ctx context.Context, name string, opts RoomOptions) (Room, error) {
	return Room{Name: name, JoinURL: joinURL(n.BaseURL, name)}, nil
}

func (NoopProvider) CloseRoom(ctx context.Context, name string) (bool, error) {
	return true, nil
}

func joinURL(base, name string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + "/" + name
}
