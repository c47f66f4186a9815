// file: internals/features/sessions/meeting/livekit.go
package meeting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
)

var ErrProviderNotConfigured = errors.New("meeting provider not configured")

// roomService is the part of the LiveKit RoomService client the adapter uses.
type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

// LiveKitProvider provisions rooms through the LiveKit server SDK.
type LiveKitProvider struct {
	JoinBase string
	Timeout  time.Duration
	Retries  int
	// Sleep between retries; replaced in tests
	Backoff func(attempt int) time.Duration

	rooms roomService
}

// NewLiveKitProvider returns an unconfigured provider when any credential is
// missing; its calls then fail with ErrProviderNotConfigured.
func NewLiveKitProvider(host, apiKey, apiSecret, joinBase string) *LiveKitProvider {
	p := &LiveKitProvider{JoinBase: joinBase}
	if strings.TrimSpace(host) != "" && apiKey != "" && apiSecret != "" {
		p.rooms = lksdk.NewRoomServiceClient(strings.TrimSpace(host), apiKey, apiSecret)
	}
	return p
}

func (p *LiveKitProvider) CreateRoom(ctx context.Context, name string, opts RoomOptions) (Room, error) {
	if p.rooms == nil {
		return Room{}, ErrProviderNotConfigured
	}
	meta, _ := sonic.MarshalString(map[string]any{
		"created_by":        "akademiku",
		"session_type":      opts.SessionType,
		"recording_enabled": opts.Recording,
		"ttl_seconds":       int(opts.TTL.Seconds()),
	})
	maxP := opts.MaxParticipants
	if maxP <= 0 {
		maxP = 100
	}
	req := &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    uint32(opts.TTL.Seconds()),
		MaxParticipants: uint32(maxP),
		Metadata:        meta,
	}

	var out *livekit.Room
	err := p.retry(ctx, "CreateRoom", name, func(ctx context.Context) error {
		r, err := p.rooms.CreateRoom(ctx, req)
		out = r
		return err
	})
	if err != nil {
		return Room{}, err
	}
	got := out.GetName()
	if got == "" {
		got = name
	}
	return Room{Name: got, JoinURL: joinURL(p.JoinBase, got)}, nil
}

// CloseRoom deletes the room. A room the provider no longer knows counts as closed.
func (p *LiveKitProvider) CloseRoom(ctx context.Context, name string) (bool, error) {
	if p.rooms == nil {
		return false, ErrProviderNotConfigured
	}
	err := p.retry(ctx, "DeleteRoom", name, func(ctx context.Context) error {
		_, err := p.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
		return err
	})
	if code := twirpCode(err); code == twirp.NotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// retry runs call with bounded retries. Only transient provider errors are retried.
func (p *LiveKitProvider) retry(ctx context.Context, method, room string, call func(context.Context) error) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * 500 * time.Millisecond
			if p.Backoff != nil {
				wait = p.Backoff(attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := call(cctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("livekit %s: %w", method, err)
		if !transient(err) {
			return lastErr
		}
		log.Printf("[MEETING] %s room=%s attempt=%d failed: %v", method, room, attempt+1, err)
	}
	return lastErr
}

func twirpCode(err error) twirp.ErrorCode {
	var te twirp.Error
	if errors.As(err, &te) {
		return te.Code()
	}
	return ""
}

func transient(err error) bool {
	switch twirpCode(err) {
	case "", twirp.Unavailable, twirp.Internal, twirp.DeadlineExceeded, twirp.Unknown, twirp.ResourceExhausted:
		return true
	}
	return false
}
