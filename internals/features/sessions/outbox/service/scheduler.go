// file: internals/features/sessions/outbox/service/scheduler.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// StartOutboxCron runs the dispatcher on spec. Overlapping runs are skipped.
func StartOutboxCron(d *Dispatcher, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		res, err := d.DispatchPending(ctx)
		if err != nil {
			log.Printf("[OUTBOX] dispatch error: %v", err)
			return
		}
		if res.Delivered+res.Failed+res.Dead > 0 {
			log.Printf("[OUTBOX] delivered=%d failed=%d dead=%d", res.Delivered, res.Failed, res.Dead)
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[OUTBOX] dispatcher started schedule=%q batch=%d maxAttempts=%d", spec, d.BatchSize, d.MaxAttempts)
	c.Start()
	return c, nil
}
