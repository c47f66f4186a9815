package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/meeting"
	outboxModel "akademiku_backend/internals/features/sessions/outbox/model"
	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/policy"
	"akademiku_backend/internals/testutil"
)

type fakePresence struct {
	mu        sync.Mutex
	present   map[uuid.UUID]bool
	connected map[uuid.UUID]bool
	failFor   map[uuid.UUID]error
	panicFor  map[uuid.UUID]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		present:   map[uuid.UUID]bool{},
		connected: map[uuid.UUID]bool{},
		failFor:   map[uuid.UUID]error{},
		panicFor:  map[uuid.UUID]bool{},
	}
}

func (f *fakePresence) StudentPresent(db *gorm.DB, s *model.LiveSessionModel, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicFor[s.LiveSessionID] {
		panic("presence store exploded")
	}
	if err := f.failFor[s.LiveSessionID]; err != nil {
		return false, err
	}
	return f.present[s.LiveSessionID], nil
}

func (f *fakePresence) AnyoneConnected(db *gorm.DB, sessionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[sessionID], nil
}

type fixture struct {
	sm       *StateMachine
	db       *gorm.DB
	clock    *testutil.Clock
	rooms    *testutil.FakeRooms
	presence *fakePresence
}

func newFixture(t *testing.T, mutate ...func(*configs.EngineConfig)) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := configs.DefaultEngineConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	f := &fixture{
		db:       db,
		clock:    testutil.NewClock(testutil.T0),
		rooms:    &testutil.FakeRooms{},
		presence: newFakePresence(),
	}
	f.sm = NewStateMachine(db, cfg, policy.NewResolver(cfg), f.rooms, f.presence)
	f.sm.Now = f.clock.Now
	return f
}

func eventCounts(t *testing.T, db *gorm.DB, sessionID uuid.UUID) map[outboxModel.EventKind]int {
	t.Helper()
	var rows []outboxModel.SessionOutboxEventModel
	if err := db.Where("session_outbox_event_session_id = ?", sessionID).Find(&rows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	out := map[outboxModel.EventKind]int{}
	for _, r := range rows {
		out[r.SessionOutboxEventKind]++
	}
	return out
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.SessionStatus
		want     bool
	}{
		{model.SessionStatusScheduled, model.SessionStatusReady, true},
		{model.SessionStatusScheduled, model.SessionStatusOngoing, false},
		{model.SessionStatusReady, model.SessionStatusOngoing, true},
		{model.SessionStatusReady, model.SessionStatusCompleted, true},
		{model.SessionStatusOngoing, model.SessionStatusCompleted, true},
		{model.SessionStatusOngoing, model.SessionStatusCancelled, false},
		{model.SessionStatusReady, model.SessionStatusAbsent, true},
		{model.SessionStatusScheduled, model.SessionStatusAbsent, false},
		{model.SessionStatusCompleted, model.SessionStatusAbsent, false},
		{model.SessionStatusAbsent, model.SessionStatusCompleted, false},
		{model.SessionStatusCancelled, model.SessionStatusReady, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestToReadyCreatesRoom(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual)

	res, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
	if err != nil {
		t.Fatalf("ToReady: %v", err)
	}
	if !res.Applied || res.To != model.SessionStatusReady {
		t.Fatalf("result = %+v, want applied ready", res)
	}

	got := testutil.Reload(t, f.db, s.LiveSessionID)
	if got.LiveSessionMeetingRoomName == nil || *got.LiveSessionMeetingRoomName != f.rooms.Created[0] {
		t.Fatalf("room name = %v, want %s", got.LiveSessionMeetingRoomName, f.rooms.Created[0])
	}
	if got.LiveSessionMeetingJoinURL == nil || *got.LiveSessionMeetingJoinURL == "" {
		t.Fatalf("join url not stored")
	}
	if got.LiveSessionPreparationCompletedAt == nil {
		t.Fatalf("preparation_completed_at not set")
	}
	opts := f.rooms.Opts[0]
	if opts.MaxParticipants != 2 {
		t.Fatalf("max participants = %d, want 2", opts.MaxParticipants)
	}
	if opts.TTL != 90*time.Minute {
		t.Fatalf("ttl = %s, want 1h30m", opts.TTL)
	}
	if n := eventCounts(t, f.db, s.LiveSessionID)[outboxModel.EventSessionReady]; n != 1 {
		t.Fatalf("session.ready events = %d, want 1", n)
	}
}

func TestToReadyKeepsExistingRoom(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithRoom("existing-room"))

	res, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
	if err != nil || !res.Applied {
		t.Fatalf("ToReady = %+v, %v", res, err)
	}
	if f.rooms.CreatedCount() != 0 {
		t.Fatalf("created %d rooms, want 0", f.rooms.CreatedCount())
	}
}

func TestToReadyRoomFailure(t *testing.T) {
	t.Run("optional room", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.FailCreate = true
		s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)

		res, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
		if err != nil || !res.Applied {
			t.Fatalf("ToReady = %+v, %v; want applied", res, err)
		}
		if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionMeetingRoomName != nil {
			t.Fatalf("room name = %s, want none", *got.LiveSessionMeetingRoomName)
		}
	})

	t.Run("required room", func(t *testing.T) {
		f := newFixture(t, func(c *configs.EngineConfig) { c.MeetingRoomRequired = true })
		f.rooms.FailCreate = true
		s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)

		_, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
		if !errors.Is(err, ErrMeetingRoomUnavailable) {
			t.Fatalf("err = %v, want ErrMeetingRoomUnavailable", err)
		}
		if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionStatus != model.SessionStatusScheduled {
			t.Fatalf("status = %s, want scheduled", got.LiveSessionStatus)
		}
	})
}

// racingRooms runs onCreate once, after the first room exists but before the
// caller stores it, so a second worker can finish ToReady in between.
type racingRooms struct {
	*testutil.FakeRooms
	fired    bool
	onCreate func()
}

func (r *racingRooms) CreateRoom(ctx context.Context, name string, opts meeting.RoomOptions) (meeting.Room, error) {
	room, err := r.FakeRooms.CreateRoom(ctx, name, opts)
	if err == nil && r.onCreate != nil && !r.fired {
		r.fired = true
		r.onCreate()
	}
	return room, err
}

func TestToReadyLoserKeepsWinnersRoom(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)

	var inner TransitionResult
	var innerErr error
	rooms := &racingRooms{FakeRooms: f.rooms}
	rooms.onCreate = func() {
		inner, innerErr = f.sm.ToReady(context.Background(), s.LiveSessionID)
	}
	f.sm.Rooms = rooms

	res, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
	if err != nil {
		t.Fatalf("ToReady: %v", err)
	}
	if innerErr != nil || !inner.Applied {
		t.Fatalf("winner = %+v, %v; want applied", inner, innerErr)
	}
	if res.Applied || res.Reason != ReasonInvalidTransition {
		t.Fatalf("loser = %+v, want invalid transition", res)
	}
	if f.rooms.CreatedCount() != 2 {
		t.Fatalf("created %d rooms, want 2", f.rooms.CreatedCount())
	}
	if f.rooms.ClosedCount() != 0 {
		t.Fatalf("closed rooms %v, want none", f.rooms.Closed)
	}
	got := testutil.Reload(t, f.db, s.LiveSessionID)
	if got.LiveSessionStatus != model.SessionStatusReady || deref(got.LiveSessionMeetingRoomName) != f.rooms.Created[0] {
		t.Fatalf("session = %s room=%v", got.LiveSessionStatus, got.LiveSessionMeetingRoomName)
	}
}

func TestToReadyClosesUnstoredRoom(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)

	rooms := &racingRooms{FakeRooms: f.rooms}
	rooms.onCreate = func() {
		// an admin cancels while the room is being provisioned
		if _, err := f.sm.ToCancelled(context.Background(), s.LiveSessionID, "schedule clash", nil); err != nil {
			t.Errorf("ToCancelled: %v", err)
		}
	}
	f.sm.Rooms = rooms

	res, err := f.sm.ToReady(context.Background(), s.LiveSessionID)
	if err != nil || res.Applied {
		t.Fatalf("ToReady = %+v, %v; want not applied", res, err)
	}
	if f.rooms.ClosedCount() != 1 || f.rooms.Closed[0] != f.rooms.Created[0] {
		t.Fatalf("closed = %v, want %v", f.rooms.Closed, f.rooms.Created)
	}
}

func TestToOngoingStartWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Duration
		want bool
	}{
		{"too early", -16 * time.Minute, false},
		{"early join opens", -15 * time.Minute, true},
		{"on time", 0, true},
		{"latest", 2 * time.Hour, true},
		{"too late", 2*time.Hour + time.Minute, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			f.clock.Set(testutil.At(c.at))
			s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusReady))

			res, err := f.sm.ToOngoing(context.Background(), s.LiveSessionID)
			if err != nil {
				t.Fatalf("ToOngoing: %v", err)
			}
			if res.Applied != c.want {
				t.Fatalf("applied = %v, want %v (reason %q)", res.Applied, c.want, res.Reason)
			}
			if !c.want && res.Reason != ReasonOutsideWindow {
				t.Fatalf("reason = %q, want %q", res.Reason, ReasonOutsideWindow)
			}
			if c.want {
				got := testutil.Reload(t, f.db, s.LiveSessionID)
				if got.LiveSessionStartedAt == nil || !got.LiveSessionStartedAt.Equal(testutil.At(c.at)) {
					t.Fatalf("started_at = %v, want %v", got.LiveSessionStartedAt, testutil.At(c.at))
				}
			}
		})
	}
}

func TestToOngoingWithoutSchedule(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup,
		testutil.WithStatus(model.SessionStatusReady), testutil.WithoutSchedule())

	if _, err := f.sm.ToOngoing(context.Background(), s.LiveSessionID); !errors.Is(err, ErrMissingPrerequisite) {
		t.Fatalf("err = %v, want ErrMissingPrerequisite", err)
	}
	if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionStatus != model.SessionStatusReady {
		t.Fatalf("status = %s, want ready", got.LiveSessionStatus)
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sm.ToOngoing(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.sm.ToReady(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestTerminalStatesNeverChange(t *testing.T) {
	terminals := []model.SessionStatus{
		model.SessionStatusCompleted,
		model.SessionStatusCancelled,
		model.SessionStatusAbsent,
	}
	for _, st := range terminals {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t)
			s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(st))
			ctx := context.Background()
			id := s.LiveSessionID

			attempts := map[string]func() (TransitionResult, error){
				"ready":     func() (TransitionResult, error) { return f.sm.ToReady(ctx, id) },
				"ongoing":   func() (TransitionResult, error) { return f.sm.ToOngoing(ctx, id) },
				"completed": func() (TransitionResult, error) { return f.sm.ToCompleted(ctx, id) },
				"cancelled": func() (TransitionResult, error) { return f.sm.ToCancelled(ctx, id, "late change", nil) },
				"absent":    func() (TransitionResult, error) { return f.sm.ToAbsent(ctx, id) },
			}
			for name, try := range attempts {
				res, err := try()
				if err != nil {
					t.Fatalf("%s: %v", name, err)
				}
				if res.Applied || res.Reason != ReasonInvalidTransition {
					t.Fatalf("%s = %+v, want rejected", name, res)
				}
			}
			if got := testutil.Reload(t, f.db, id); got.LiveSessionStatus != st {
				t.Fatalf("status = %s, want %s", got.LiveSessionStatus, st)
			}
			if n := len(eventCounts(t, f.db, id)); n != 0 {
				t.Fatalf("outbox events = %d, want 0", n)
			}
		})
	}
}

func TestToCancelledClassifiesActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := uuid.New()

	cases := []struct {
		name  string
		actor func(s *model.LiveSessionModel) *uuid.UUID
		want  model.CancellerType
	}{
		{"system", func(*model.LiveSessionModel) *uuid.UUID { return nil }, model.CancellerSystem},
		{"nil uuid", func(*model.LiveSessionModel) *uuid.UUID { id := uuid.Nil; return &id }, model.CancellerSystem},
		{"teacher", func(s *model.LiveSessionModel) *uuid.UUID { return &s.LiveSessionTeacherID }, model.CancellerTeacher},
		{"admin", func(*model.LiveSessionModel) *uuid.UUID { return &admin }, model.CancellerAdmin},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup,
				testutil.WithStatus(model.SessionStatusReady), testutil.WithRoom("room-"+c.name))

			res, err := f.sm.ToCancelled(ctx, s.LiveSessionID, "  teacher unavailable  ", c.actor(s))
			if err != nil || !res.Applied {
				t.Fatalf("ToCancelled = %+v, %v", res, err)
			}
			got := testutil.Reload(t, f.db, s.LiveSessionID)
			if got.LiveSessionCancelledByType == nil || *got.LiveSessionCancelledByType != c.want {
				t.Fatalf("cancelled_by_type = %v, want %s", got.LiveSessionCancelledByType, c.want)
			}
			if *got.LiveSessionCancellationReason != "teacher unavailable" {
				t.Fatalf("reason = %q", *got.LiveSessionCancellationReason)
			}
			if got.LiveSessionCancelledAt == nil || got.LiveSessionEndedAt == nil {
				t.Fatalf("cancelled_at/ended_at not set")
			}
		})
	}
	if f.rooms.ClosedCount() != len(cases) {
		t.Fatalf("closed rooms = %d, want %d", f.rooms.ClosedCount(), len(cases))
	}
}

func TestToCancelledRejectsOngoing(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))

	res, err := f.sm.ToCancelled(context.Background(), s.LiveSessionID, "too late", nil)
	if err != nil || res.Applied {
		t.Fatalf("ToCancelled = %+v, %v; want rejected", res, err)
	}
}

func TestToCompletedIndividual(t *testing.T) {
	t.Run("student attended", func(t *testing.T) {
		f := newFixture(t)
		var completed, absent int
		f.sm.OnCompleted(func(context.Context, *model.LiveSessionModel) error { completed++; return nil })
		f.sm.OnAbsent(func(context.Context, *model.LiveSessionModel) error { absent++; return nil })

		s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual,
			testutil.WithStatus(model.SessionStatusOngoing), testutil.WithStartedAt(testutil.T0), testutil.WithRoom("r1"))
		f.presence.present[s.LiveSessionID] = true
		f.clock.Set(testutil.At(58 * time.Minute))

		res, err := f.sm.ToCompleted(context.Background(), s.LiveSessionID)
		if err != nil || !res.Applied || res.To != model.SessionStatusCompleted {
			t.Fatalf("ToCompleted = %+v, %v", res, err)
		}
		got := testutil.Reload(t, f.db, s.LiveSessionID)
		if !got.LiveSessionSubscriptionCounted {
			t.Fatalf("subscription not counted")
		}
		if got.LiveSessionActualDurationMinutes == nil || *got.LiveSessionActualDurationMinutes != 58 {
			t.Fatalf("actual duration = %v, want 58", got.LiveSessionActualDurationMinutes)
		}
		if completed != 1 || absent != 0 {
			t.Fatalf("listeners completed=%d absent=%d, want 1/0", completed, absent)
		}
		if f.rooms.ClosedCount() != 1 {
			t.Fatalf("closed rooms = %d, want 1", f.rooms.ClosedCount())
		}
		ev := eventCounts(t, f.db, s.LiveSessionID)
		if ev[outboxModel.EventSessionCompleted] != 1 || ev[outboxModel.EventSubscriptionUsage] != 1 {
			t.Fatalf("events = %v", ev)
		}
	})

	t.Run("student never came", func(t *testing.T) {
		f := newFixture(t)
		var completed, absent int
		f.sm.OnCompleted(func(context.Context, *model.LiveSessionModel) error { completed++; return nil })
		f.sm.OnAbsent(func(context.Context, *model.LiveSessionModel) error { absent++; return nil })

		s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusReady))
		f.clock.Set(testutil.At(70 * time.Minute))

		res, err := f.sm.ToCompleted(context.Background(), s.LiveSessionID)
		if err != nil || !res.Applied {
			t.Fatalf("ToCompleted = %+v, %v", res, err)
		}
		if res.To != model.SessionStatusAbsent {
			t.Fatalf("to = %s, want absent", res.To)
		}
		got := testutil.Reload(t, f.db, s.LiveSessionID)
		if got.LiveSessionStatus != model.SessionStatusAbsent || !got.LiveSessionSubscriptionCounted {
			t.Fatalf("status = %s counted = %v", got.LiveSessionStatus, got.LiveSessionSubscriptionCounted)
		}
		if completed != 0 || absent != 1 {
			t.Fatalf("listeners completed=%d absent=%d, want 0/1", completed, absent)
		}
		ev := eventCounts(t, f.db, s.LiveSessionID)
		if ev[outboxModel.EventSessionCompleted] != 0 || ev[outboxModel.EventSessionAbsent] != 1 ||
			ev[outboxModel.EventAttendanceAbsent] != 1 || ev[outboxModel.EventSubscriptionUsage] != 1 {
			t.Fatalf("events = %v", ev)
		}
	})
}

func TestToCompletedGroupIgnoresPresence(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))
	f.clock.Set(testutil.At(65 * time.Minute))

	res, err := f.sm.ToCompleted(context.Background(), s.LiveSessionID)
	if err != nil || res.To != model.SessionStatusCompleted {
		t.Fatalf("ToCompleted = %+v, %v", res, err)
	}
	if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionSubscriptionCounted {
		t.Fatalf("group session counted against a subscription")
	}
}

func TestToAbsent(t *testing.T) {
	t.Run("group rejected", func(t *testing.T) {
		f := newFixture(t)
		s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))
		res, err := f.sm.ToAbsent(context.Background(), s.LiveSessionID)
		if err != nil || res.Applied || res.Reason != ReasonNotIndividual {
			t.Fatalf("ToAbsent = %+v, %v", res, err)
		}
	})

	t.Run("individual forced", func(t *testing.T) {
		f := newFixture(t)
		var got *model.LiveSessionModel
		f.sm.OnAbsent(func(_ context.Context, s *model.LiveSessionModel) error { got = s; return nil })
		s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusReady))
		f.clock.Set(testutil.At(20 * time.Minute))

		res, err := f.sm.ToAbsent(context.Background(), s.LiveSessionID)
		if err != nil || !res.Applied {
			t.Fatalf("ToAbsent = %+v, %v", res, err)
		}
		if got == nil || got.LiveSessionStatus != model.SessionStatusAbsent {
			t.Fatalf("absent listener saw %+v", got)
		}
		if got.LiveSessionEndedAt == nil || !got.LiveSessionEndedAt.Equal(testutil.At(20*time.Minute)) {
			t.Fatalf("ended_at = %v", got.LiveSessionEndedAt)
		}
	})
}

func TestListenerFailureDoesNotUndoTransition(t *testing.T) {
	f := newFixture(t)
	f.sm.OnCompleted(func(context.Context, *model.LiveSessionModel) error { return errors.New("downstream down") })
	f.rooms.FailClose = true
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup,
		testutil.WithStatus(model.SessionStatusOngoing), testutil.WithRoom("r2"))

	res, err := f.sm.ToCompleted(context.Background(), s.LiveSessionID)
	if err != nil || !res.Applied {
		t.Fatalf("ToCompleted = %+v, %v", res, err)
	}
	got := testutil.Reload(t, f.db, s.LiveSessionID)
	if got.LiveSessionStatus != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed", got.LiveSessionStatus)
	}
	if got.LiveSessionSettledAt != nil {
		t.Fatalf("settled_at set although a listener failed")
	}

	// a later pass recovers once the listener works again
	f.sm.onCompleted = nil
	f.sm.OnCompleted(func(context.Context, *model.LiveSessionModel) error { return nil })
	out := f.sm.SettleBatch(context.Background(), []model.LiveSessionModel{*got})
	if out.SettledCount != 1 || len(out.Errors) != 0 {
		t.Fatalf("SettleBatch = %+v, want one settled", out)
	}
	if again := testutil.Reload(t, f.db, s.LiveSessionID); again.LiveSessionSettledAt == nil {
		t.Fatalf("settled_at not stamped")
	}
}

func TestRecipientsIncludeRoster(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)
	a, b := uuid.New(), uuid.New()
	testutil.AddRoster(t, f.db, s, a, b, s.LiveSessionTeacherID)

	got := f.sm.recipients(f.db, s)
	if len(got) != 3 {
		t.Fatalf("recipients = %v, want teacher plus two students", got)
	}
	if got[0] != s.LiveSessionTeacherID {
		t.Fatalf("first recipient = %s, want teacher", got[0])
	}
}
