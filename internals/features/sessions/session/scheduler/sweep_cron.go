// file: internals/features/sessions/session/scheduler/sweep_cron.go
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"akademiku_backend/internals/features/sessions/alert"
	"akademiku_backend/internals/features/sessions/session/model"
	"akademiku_backend/internals/features/sessions/session/service"
)

const (
	candidateHorizon = 24 * time.Hour
	// how far back unsettled terminal sessions are re-driven
	settleHorizon = 7 * 24 * time.Hour
)

// Sweeper feeds the state machine with candidate sessions in batches.
// Sessions that fail are reported to Alerter when set.
type Sweeper struct {
	DB        *gorm.DB
	SM        *service.StateMachine
	BatchSize int
	Alerter   alert.Alerter
}

func NewSweeper(db *gorm.DB, sm *service.StateMachine, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweeper{DB: db, SM: sm, BatchSize: batchSize}
}

// Candidates returns SCHEDULED sessions within now±24h plus every READY or
// ONGOING session, oldest first, keyset-paginated by id after `after`.
func (w *Sweeper) Candidates(ctx context.Context, now time.Time, after string, limit int) ([]model.LiveSessionModel, error) {
	var rows []model.LiveSessionModel
	q := w.DB.WithContext(ctx).
		Where(`(live_session_status = ? AND live_session_scheduled_at BETWEEN ? AND ?)
			OR live_session_status IN ?`,
			model.SessionStatusScheduled, now.Add(-candidateHorizon), now.Add(candidateHorizon),
			[]model.SessionStatus{model.SessionStatusReady, model.SessionStatusOngoing})
	if after != "" {
		q = q.Where("live_session_id > ?", after)
	}
	err := q.Order("live_session_id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Unsettled returns COMPLETED or ABSENT sessions ended within the settle
// horizon whose terminal listeners never all succeeded, keyset-paginated by id.
func (w *Sweeper) Unsettled(ctx context.Context, now time.Time, after string, limit int) ([]model.LiveSessionModel, error) {
	var rows []model.LiveSessionModel
	q := w.DB.WithContext(ctx).
		Where("live_session_status IN ? AND live_session_settled_at IS NULL AND live_session_ended_at >= ?",
			[]model.SessionStatus{model.SessionStatusCompleted, model.SessionStatusAbsent}, now.Add(-settleHorizon))
	if after != "" {
		q = q.Where("live_session_id > ?", after)
	}
	err := q.Order("live_session_id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

type pageFn func(ctx context.Context, now time.Time, after string, limit int) ([]model.LiveSessionModel, error)

// Run sweeps every candidate once, then re-drives unsettled terminal
// sessions, and sums the batch results.
func (w *Sweeper) Run(ctx context.Context) (service.BatchResult, error) {
	total := service.BatchResult{Errors: []service.SessionError{}}
	now := w.SM.Now()
	if err := w.walk(ctx, now, w.Candidates, w.SM.ProcessBatch, &total); err != nil {
		return total, err
	}
	if err := w.walk(ctx, now, w.Unsettled, w.SM.SettleBatch, &total); err != nil {
		return total, err
	}
	return total, nil
}

func (w *Sweeper) walk(ctx context.Context, now time.Time, page pageFn,
	process func(context.Context, []model.LiveSessionModel) service.BatchResult, total *service.BatchResult) error {
	after := ""
	for {
		rows, err := page(ctx, now, after, w.BatchSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		res := process(ctx, rows)
		for _, se := range res.Errors {
			w.report(ctx, se)
		}
		total.ReadyCount += res.ReadyCount
		total.StartedCount += res.StartedCount
		total.AbsentCount += res.AbsentCount
		total.CompletedCount += res.CompletedCount
		total.SettledCount += res.SettledCount
		total.Errors = append(total.Errors, res.Errors...)

		if len(rows) < w.BatchSize {
			return nil
		}
		after = rows[len(rows)-1].LiveSessionID.String()
	}
}

func (w *Sweeper) report(ctx context.Context, se service.SessionError) {
	if w.Alerter == nil {
		return
	}
	id := se.SessionID
	w.Alerter.Alert(ctx, alert.Alert{
		Code:      "sweep.session_failed",
		Message:   se.Message,
		SessionID: &id,
		Fields:    map[string]any{"stage": se.Stage},
	})
}

// StartSessionSweepCron runs the sweep on spec. Overlapping runs are skipped.
func StartSessionSweepCron(w *Sweeper, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		start := time.Now()
		res, err := w.Run(ctx)
		if err != nil {
			log.Printf("[SWEEP] load sessions: %v", err)
			return
		}
		log.Printf("[SWEEP] done in %s ready=%d started=%d absent=%d completed=%d settled=%d errors=%d",
			time.Since(start).Truncate(time.Millisecond),
			res.ReadyCount, res.StartedCount, res.AbsentCount, res.CompletedCount, res.SettledCount, len(res.Errors))
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[SWEEP] scheduler started schedule=%q batch=%d", spec, w.BatchSize)
	c.Start()
	return c, nil
}
