package meeting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"
)

// fakeRoomService fails the first len(errs) calls with errs in order.
type fakeRoomService struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	created []*livekit.CreateRoomRequest
	deleted []string
}

func (f *fakeRoomService) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeRoomService) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()
	return &livekit.Room{Sid: "RM_1", Name: req.Name}, nil
}

func (f *fakeRoomService) DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, req.Room)
	f.mu.Unlock()
	return &livekit.DeleteRoomResponse{}, nil
}

func newProvider(rooms roomService) *LiveKitProvider {
	return &LiveKitProvider{
		JoinBase: "https://meet.example.com/",
		Timeout:  2 * time.Second,
		Retries:  2,
		Backoff:  func(int) time.Duration { return time.Millisecond },
		rooms:    rooms,
	}
}

func TestCreateRoom(t *testing.T) {
	svc := &fakeRoomService{}
	room, err := newProvider(svc).CreateRoom(context.Background(), "room-a", RoomOptions{
		MaxParticipants: 2,
		TTL:             90 * time.Minute,
		SessionType:     "individual",
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.Name != "room-a" || room.JoinURL != "https://meet.example.com/room-a" {
		t.Fatalf("room = %+v", room)
	}
	req := svc.created[0]
	if req.MaxParticipants != 2 || req.EmptyTimeout != 5400 {
		t.Fatalf("request = %+v", req)
	}
	meta := map[string]any{}
	if err := sonic.UnmarshalString(req.Metadata, &meta); err != nil || meta["session_type"] != "individual" {
		t.Fatalf("metadata = %q, %v", req.Metadata, err)
	}
}

func TestRetriesTransientErrors(t *testing.T) {
	svc := &fakeRoomService{errs: []error{
		twirp.NewError(twirp.Unavailable, "node draining"),
		errors.New("connection reset by peer"),
	}}
	ok, err := newProvider(svc).CloseRoom(context.Background(), "room-b")
	if err != nil || !ok {
		t.Fatalf("CloseRoom = %v, %v", ok, err)
	}
	if svc.calls != 3 || len(svc.deleted) != 1 {
		t.Fatalf("calls = %d deleted = %v, want 3 calls and one delete", svc.calls, svc.deleted)
	}
}

func TestGivesUpAfterRetries(t *testing.T) {
	down := twirp.NewError(twirp.Unavailable, "down")
	svc := &fakeRoomService{errs: []error{down, down, down}}

	_, err := newProvider(svc).CreateRoom(context.Background(), "room-c", RoomOptions{})
	if twirpCode(err) != twirp.Unavailable {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if svc.calls != 3 {
		t.Fatalf("calls = %d, want 3", svc.calls)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	svc := &fakeRoomService{errs: []error{twirp.NewError(twirp.Unauthenticated, "bad api key")}}

	if _, err := newProvider(svc).CreateRoom(context.Background(), "room-d", RoomOptions{}); err == nil {
		t.Fatalf("expected an error")
	}
	if svc.calls != 1 {
		t.Fatalf("calls = %d, want 1", svc.calls)
	}
}

func TestCloseMissingRoomCountsAsClosed(t *testing.T) {
	svc := &fakeRoomService{errs: []error{twirp.NewError(twirp.NotFound, "room not found")}}

	ok, err := newProvider(svc).CloseRoom(context.Background(), "room-gone")
	if err != nil || !ok {
		t.Fatalf("CloseRoom = %v, %v; want closed", ok, err)
	}
	if svc.calls != 1 {
		t.Fatalf("calls = %d, want 1", svc.calls)
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	p := NewLiveKitProvider("", "lk-key", "lk-secret", "")
	if _, err := p.CreateRoom(context.Background(), "x", RoomOptions{}); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("err = %v, want ErrProviderNotConfigured", err)
	}
	if _, err := p.CloseRoom(context.Background(), "x"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("err = %v, want ErrProviderNotConfigured", err)
	}
	if NewLiveKitProvider("https://lk.example.com", "lk-key", "lk-secret", "").rooms == nil {
		t.Fatalf("configured provider has no client")
	}
}

func TestRoomNameIsDeterministic(t *testing.T) {
	tenant := uuid.MustParse("7b0a3c5e-1111-4222-8333-944455556666")
	session := uuid.MustParse("0f5e6d7c-aaaa-4bbb-8ccc-dddddddddddd")

	a := RoomName(tenant, "Individual", session)
	b := RoomName(tenant, "individual", session)
	if a != b {
		t.Fatalf("names differ: %s vs %s", a, b)
	}
	if want := "7b0a3c5e-individual-session-" + session.String(); a != want {
		t.Fatalf("RoomName = %s, want %s", a, want)
	}
}

func TestNoopProvider(t *testing.T) {
	room, err := NoopProvider{BaseURL: " https://meet.example.com/ "}.CreateRoom(context.Background(), "r", RoomOptions{})
	if err != nil || room.JoinURL != "https://meet.example.com/r" {
		t.Fatalf("room = %+v, %v", room, err)
	}
	if room, _ := (NoopProvider{}).CreateRoom(context.Background(), "r", RoomOptions{}); room.JoinURL != "" {
		t.Fatalf("join url = %q, want empty", room.JoinURL)
	}
}
