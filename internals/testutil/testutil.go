// Package testutil holds fixtures shared by package tests: an in-memory
// database migrated like production, a controllable clock and fake rooms.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	database "akademiku_backend/internals/databases"
	"akademiku_backend/internals/features/sessions/meeting"
	"akademiku_backend/internals/features/sessions/session/model"
)

// T0 is the scheduled start used by most tests.
var T0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory SQLite database with every table migrated.
// One connection only, so transactions serialize the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared&_busy_timeout=5000", strings.ReplaceAll(uuid.NewString(), "-", ""))

	db, err := database.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// At is T0 shifted by d.
func At(d time.Duration) time.Time { return T0.Add(d) }

/* =========================================================
   Session fixtures
========================================================= */

type SessionOpt func(*model.LiveSessionModel)

func WithStatus(st model.SessionStatus) SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionStatus = st }
}

func WithSchedule(at time.Time, minutes int) SessionOpt {
	return func(s *model.LiveSessionModel) {
		t := at
		s.LiveSessionScheduledAt = &t
		s.LiveSessionDurationMinutes = minutes
	}
}

func WithoutSchedule() SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionScheduledAt = nil }
}

func WithTrial() SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionIsTrial = true }
}

func WithMode(m model.SessionMode) SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionMode = m }
}

func WithCourse(id uuid.UUID) SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionCourseID = &id }
}

func WithRoom(name string) SessionOpt {
	return func(s *model.LiveSessionModel) { s.LiveSessionMeetingRoomName = &name }
}

func WithStartedAt(at time.Time) SessionOpt {
	return func(s *model.LiveSessionModel) {
		t := at
		s.LiveSessionStartedAt = &t
	}
}

// CreateSession inserts a 60-minute session of subtype scheduled at T0. An
// individual session gets a student.
func CreateSession(t testing.TB, db *gorm.DB, subtype model.SessionSubtype, opts ...SessionOpt) *model.LiveSessionModel {
	t.Helper()
	sched := T0
	s := &model.LiveSessionModel{
		LiveSessionTenantID:        uuid.New(),
		LiveSessionSubtype:         subtype,
		LiveSessionMode:            model.SessionModeIndividual,
		LiveSessionCode:            "S-" + uuid.NewString()[:6],
		LiveSessionScheduledAt:     &sched,
		LiveSessionDurationMinutes: 60,
		LiveSessionStatus:          model.SessionStatusScheduled,
		LiveSessionTeacherID:       uuid.New(),
	}
	if subtype == model.SessionSubtypeIndividual {
		sid := uuid.New()
		s.LiveSessionStudentID = &sid
	}
	for _, o := range opts {
		o(s)
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

// AddRoster puts users on the session roster with the student role.
func AddRoster(t testing.TB, db *gorm.DB, s *model.LiveSessionModel, users ...uuid.UUID) {
	t.Helper()
	for _, u := range users {
		p := &model.LiveSessionParticipantModel{
			LiveSessionParticipantSessionID: s.LiveSessionID,
			LiveSessionParticipantUserID:    u,
			LiveSessionParticipantRole:      model.ParticipantRoleStudent,
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create participant: %v", err)
		}
	}
}

// Reload reads the session back from the database.
func Reload(t testing.TB, db *gorm.DB, id uuid.UUID) *model.LiveSessionModel {
	t.Helper()
	var s model.LiveSessionModel
	if err := db.Where("live_session_id = ?", id).Take(&s).Error; err != nil {
		t.Fatalf("reload session %s: %v", id, err)
	}
	return &s
}

/* =========================================================
   Fake meeting rooms
========================================================= */

var ErrRoomDown = errors.New("room provider down")

// FakeRooms records calls. FailCreate/FailClose make the calls fail.
type FakeRooms struct {
	mu         sync.Mutex
	FailCreate bool
	FailClose  bool
	Created    []string
	Closed     []string
	Opts       []meeting.RoomOptions
}

func (f *FakeRooms) CreateRoom(ctx context.Context, name string, opts meeting.RoomOptions) (meeting.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return meeting.Room{}, ErrRoomDown
	}
	f.Created = append(f.Created, name)
	f.Opts = append(f.Opts, opts)
	return meeting.Room{Name: name, JoinURL: "https://meet.test/" + name}, nil
}

func (f *FakeRooms) CloseRoom(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailClose {
		return false, ErrRoomDown
	}
	f.Closed = append(f.Closed, name)
	return true, nil
}

func (f *FakeRooms) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

func (f *FakeRooms) ClosedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Closed)
}
