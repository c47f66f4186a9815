package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/testutil"
)

func TestProcessBatchReadiesInsidePreparationWindow(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(-10 * time.Minute))
	due := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)
	later := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithSchedule(testutil.At(time.Hour), 60))

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*due, *later})
	if res.ReadyCount != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v, want one ready", res)
	}
	if got := testutil.Reload(t, f.db, due.LiveSessionID); got.LiveSessionStatus != model.SessionStatusReady {
		t.Fatalf("due status = %s, want ready", got.LiveSessionStatus)
	}
	if got := testutil.Reload(t, f.db, later.LiveSessionID); got.LiveSessionStatus != model.SessionStatusScheduled {
		t.Fatalf("later status = %s, want scheduled", got.LiveSessionStatus)
	}
}

func TestProcessBatchIgnoresStaleSchedules(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(25 * time.Hour))
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup)

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*s})
	if res.ReadyCount != 0 {
		t.Fatalf("ready = %d, want 0", res.ReadyCount)
	}
}

func TestProcessBatchStartsConnectedSession(t *testing.T) {
	f := newFixture(t)
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusReady))
	f.presence.connected[s.LiveSessionID] = true

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*s})
	if res.StartedCount != 1 {
		t.Fatalf("started = %d, want 1", res.StartedCount)
	}
	if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionStatus != model.SessionStatusOngoing {
		t.Fatalf("status = %s, want ongoing", got.LiveSessionStatus)
	}
}

// An individual session whose student has not shown up after the grace
// period ends ABSENT.
func TestProcessBatchMarksNoShowAbsent(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(16 * time.Minute))
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusReady))

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*s})
	if res.AbsentCount != 1 || res.CompletedCount != 0 {
		t.Fatalf("result = %+v, want one absent", res)
	}
	if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionStatus != model.SessionStatusAbsent {
		t.Fatalf("status = %s, want absent", got.LiveSessionStatus)
	}
}

func TestProcessBatchWaitsForGracePeriod(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(15 * time.Minute))
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusReady))

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*s})
	if res.AbsentCount != 0 {
		t.Fatalf("absent = %d, want 0 at the grace boundary", res.AbsentCount)
	}
}

// A no-show individual session past its end is never completed.
func TestProcessBatchAbsencePrecedesCompletion(t *testing.T) {
	f := newFixture(t)
	var completed int
	f.sm.OnCompleted(func(context.Context, *model.LiveSessionModel) error { completed++; return nil })
	f.clock.Set(testutil.At(2 * time.Hour))
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual,
		testutil.WithStatus(model.SessionStatusOngoing), testutil.WithStartedAt(testutil.T0))

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*s})
	if res.AbsentCount != 1 || res.CompletedCount != 0 {
		t.Fatalf("result = %+v, want absent only", res)
	}
	if completed != 0 {
		t.Fatalf("completed listener ran %d times", completed)
	}
	if got := testutil.Reload(t, f.db, s.LiveSessionID); got.LiveSessionStatus != model.SessionStatusAbsent {
		t.Fatalf("status = %s, want absent", got.LiveSessionStatus)
	}
}

func TestProcessBatchAutoCompletes(t *testing.T) {
	f := newFixture(t)
	group := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))
	solo := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusOngoing))
	f.presence.present[solo.LiveSessionID] = true

	f.clock.Set(testutil.At(64 * time.Minute))
	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*group, *solo})
	if res.CompletedCount != 0 {
		t.Fatalf("completed = %d before the ending buffer", res.CompletedCount)
	}

	f.clock.Set(testutil.At(65 * time.Minute))
	res = f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{
		*testutil.Reload(t, f.db, group.LiveSessionID),
		*testutil.Reload(t, f.db, solo.LiveSessionID),
	})
	if res.CompletedCount != 2 || res.AbsentCount != 0 {
		t.Fatalf("result = %+v, want two completed", res)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(70 * time.Minute))
	broken := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusOngoing))
	exploding := testutil.CreateSession(t, f.db, model.SessionSubtypeIndividual, testutil.WithStatus(model.SessionStatusOngoing))
	healthy := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))
	f.presence.failFor[broken.LiveSessionID] = errors.New("attendance store unavailable")
	f.presence.panicFor[exploding.LiveSessionID] = true

	res := f.sm.ProcessBatch(context.Background(), []model.LiveSessionModel{*broken, *exploding, *healthy})
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %+v, want 2", res.Errors)
	}
	if res.Errors[0].SessionID != broken.LiveSessionID || res.Errors[0].Stage != "absent" {
		t.Fatalf("first error = %+v", res.Errors[0])
	}
	if res.Errors[1].SessionID != exploding.LiveSessionID {
		t.Fatalf("second error = %+v", res.Errors[1])
	}
	if res.CompletedCount != 1 {
		t.Fatalf("completed = %d, want 1", res.CompletedCount)
	}
	if got := testutil.Reload(t, f.db, broken.LiveSessionID); got.LiveSessionStatus != model.SessionStatusOngoing {
		t.Fatalf("broken status = %s, want ongoing", got.LiveSessionStatus)
	}
}

func TestProcessBatchStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(70 * time.Minute))
	s := testutil.CreateSession(t, f.db, model.SessionSubtypeGroup, testutil.WithStatus(model.SessionStatusOngoing))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := f.sm.ProcessBatch(ctx, []model.LiveSessionModel{*s})
	if res.CompletedCount != 0 {
		t.Fatalf("completed = %d, want 0", res.CompletedCount)
	}
}
