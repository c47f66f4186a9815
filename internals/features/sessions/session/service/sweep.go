// file: internals/features/sessions/session/service/sweep.go
package service

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"akademiku_backend/internals/features/sessions/session/model"
)

// ProcessBatch runs the guards over every session independently: ready,
// start, absent, then auto-complete. Absence is evaluated before
// auto-completion so a no-show is never completed.
func (m *StateMachine) ProcessBatch(ctx context.Context, sessions []model.LiveSessionModel) BatchResult {
	out := BatchResult{Errors: []SessionError{}}
	for i := range sessions {
		if ctx.Err() != nil {
			break
		}
		s := sessions[i]
		if se := m.processOne(ctx, &s, &out); se != nil {
			log.Printf("[SWEEP] %s", se.Error())
			out.Errors = append(out.Errors, *se)
		}
	}
	log.Printf("[SWEEP] batch=%d ready=%d started=%d absent=%d completed=%d errors=%d",
		len(sessions), out.ReadyCount, out.StartedCount, out.AbsentCount, out.CompletedCount, len(out.Errors))
	return out
}

func (m *StateMachine) processOne(ctx context.Context, s *model.LiveSessionModel, out *BatchResult) (se *SessionError) {
	stage := "load"
	fail := func(err error) *SessionError {
		return &SessionError{SessionID: s.LiveSessionID, Stage: stage, Err: err, Message: err.Error()}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SWEEP] panic session=%s: %v\n%s", s.LiveSessionID, r, debug.Stack())
			se = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	// refresh from the snapshot a transition returned
	take := func(res TransitionResult) {
		if res.Session != nil {
			*s = *res.Session
		}
	}

	stage = "ready"
	if m.ShouldBecomeReady(ctx, s, m.now()) {
		res, err := m.ToReady(ctx, s.LiveSessionID)
		if err != nil {
			return fail(err)
		}
		take(res)
		if res.Applied {
			out.ReadyCount++
		}
	}

	stage = "start"
	ok, err := m.ShouldStart(ctx, s, m.now())
	if err != nil {
		return fail(err)
	}
	if ok {
		res, err := m.ToOngoing(ctx, s.LiveSessionID)
		if err != nil {
			return fail(err)
		}
		take(res)
		if res.Applied {
			out.StartedCount++
		}
	}

	stage = "absent"
	ok, err = m.ShouldBecomeAbsent(ctx, s, m.now())
	if err != nil {
		return fail(err)
	}
	if ok {
		res, err := m.ToAbsent(ctx, s.LiveSessionID)
		if err != nil {
			return fail(err)
		}
		take(res)
		if res.Applied {
			out.AbsentCount++
			return nil
		}
	}

	stage = "complete"
	if m.ShouldAutoComplete(ctx, s, m.now()) {
		res, err := m.ToCompleted(ctx, s.LiveSessionID)
		if err != nil {
			return fail(err)
		}
		take(res)
		if res.Applied {
			if res.To == model.SessionStatusAbsent {
				out.AbsentCount++
			} else {
				out.CompletedCount++
			}
		}
	}
	return nil
}

// SettleBatch re-runs the terminal listeners of COMPLETED or ABSENT sessions
// that were never settled, e.g. after a crash or a failed listener.
func (m *StateMachine) SettleBatch(ctx context.Context, sessions []model.LiveSessionModel) BatchResult {
	out := BatchResult{Errors: []SessionError{}}
	for i := range sessions {
		if ctx.Err() != nil {
			break
		}
		s := sessions[i]
		if s.LiveSessionSettledAt != nil {
			continue
		}
		if s.LiveSessionStatus != model.SessionStatusCompleted && s.LiveSessionStatus != model.SessionStatusAbsent {
			continue
		}
		if err := m.settleOne(ctx, &s); err != nil {
			se := SessionError{SessionID: s.LiveSessionID, Stage: "settle", Err: err, Message: err.Error()}
			log.Printf("[SWEEP] %s", se.Error())
			out.Errors = append(out.Errors, se)
			continue
		}
		out.SettledCount++
	}
	if len(sessions) > 0 {
		log.Printf("[SWEEP] settle batch=%d settled=%d errors=%d", len(sessions), out.SettledCount, len(out.Errors))
	}
	return out
}

func (m *StateMachine) settleOne(ctx context.Context, s *model.LiveSessionModel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SWEEP] panic settling session=%s: %v\n%s", s.LiveSessionID, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.settle(ctx, s)
}
