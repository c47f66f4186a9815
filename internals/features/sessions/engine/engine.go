// file: internals/features/sessions/engine/engine.go
package engine

import (
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/alert"
	attService "akademiku_backend/internals/features/sessions/attendance/service"
	earnService "akademiku_backend/internals/features/sessions/earnings/service"
	"akademiku_backend/internals/features/sessions/meeting"
	outboxService "akademiku_backend/internals/features/sessions/outbox/service"
	"akademiku_backend/internals/features/sessions/session/policy"
	"akademiku_backend/internals/features/sessions/session/scheduler"
	sessService "akademiku_backend/internals/features/sessions/session/service"
)

// Engine holds the wired session lifecycle components shared by routes and jobs.
type Engine struct {
	DB         *gorm.DB
	Cfg        configs.EngineConfig
	Ledger     *attService.Ledger
	SM         *sessService.StateMachine
	Earnings   *earnService.Calculator
	Sweeper    *scheduler.Sweeper
	Dispatcher *outboxService.Dispatcher
}

type Options struct {
	Rooms    meeting.RoomProvider
	Notifier outboxService.Notifier
	Alerter  alert.Alerter
	Now      func() time.Time
}

// New wires the ledger, state machine and calculator together:
// completion finalizes attendance then prices the session, absence forces
// the student's record to absent.
func New(db *gorm.DB, cfg configs.EngineConfig, o Options) *Engine {
	if o.Rooms == nil {
		o.Rooms = meeting.NoopProvider{}
	}
	if o.Notifier == nil {
		o.Notifier = outboxService.LogNotifier{}
	}
	if o.Alerter == nil {
		o.Alerter = alert.NewOutboxAlerter(db)
	}

	resolver := policy.NewResolver(cfg)
	ledger := attService.NewLedger(db, cfg, resolver)
	sm := sessService.NewStateMachine(db, cfg, resolver, o.Rooms, ledger)
	calc := earnService.NewCalculator(db, cfg, o.Alerter)

	if o.Now != nil {
		ledger.Now = o.Now
		sm.Now = o.Now
		calc.Now = o.Now
		if oa, ok := o.Alerter.(*alert.OutboxAlerter); ok {
			oa.Now = o.Now
		}
	}

	ledger.Starter = sm
	sm.OnCompleted(ledger.FinalizeSession)
	sm.OnCompleted(calc.OnSessionCompleted)
	sm.OnAbsent(ledger.MarkSessionAbsent)
	sm.OnAbsent(ledger.FinalizeSession)

	sweeper := scheduler.NewSweeper(db, sm, cfg.SweepBatchSize)
	sweeper.Alerter = o.Alerter

	return &Engine{
		DB:       db,
		Cfg:      cfg,
		Ledger:   ledger,
		SM:       sm,
		Earnings: calc,
		Sweeper:  sweeper,
		Dispatcher: &outboxService.Dispatcher{
			DB:          db,
			Notifier:    o.Notifier,
			Now:         sm.Now,
			BatchSize:   cfg.OutboxBatchSize,
			MaxAttempts: cfg.OutboxMaxAttempts,
			BaseBackoff: cfg.OutboxBaseBackoff,
		},
	}
}

// RoomProviderFromEnv returns the LiveKit adapter when LIVEKIT_HOST is set,
// else a provider that only names rooms.
func RoomProviderFromEnv(cfg configs.EngineConfig) meeting.RoomProvider {
	host := strings.TrimSpace(configs.GetEnv("LIVEKIT_HOST"))
	joinBase := configs.GetEnv("MEETING_JOIN_BASE_URL")
	if host == "" {
		log.Println("[MEETING] LIVEKIT_HOST not set, rooms are not provisioned")
		return meeting.NoopProvider{BaseURL: joinBase}
	}
	p := meeting.NewLiveKitProvider(host, configs.MeetingWebhookKey, configs.MeetingWebhookSecret, joinBase)
	p.Timeout = cfg.MeetingTimeout
	p.Retries = cfg.MeetingRetries
	return p
}

// NotifierFromEnv posts events to NOTIFY_WEBHOOK_URL when set, else logs them.
func NotifierFromEnv() outboxService.Notifier {
	url := strings.TrimSpace(configs.GetEnv("NOTIFY_WEBHOOK_URL"))
	if url == "" {
		return outboxService.LogNotifier{}
	}
	return &outboxService.WebhookNotifier{
		URL:     url,
		Secret:  configs.GetEnv("NOTIFY_WEBHOOK_SECRET"),
		Timeout: configs.GetEnvDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
	}
}

// StartJobs schedules the sweep and the outbox dispatcher.
func (e *Engine) StartJobs() ([]*cron.Cron, error) {
	sweep, err := scheduler.StartSessionSweepCron(e.Sweeper, e.Cfg.SweepCron)
	if err != nil {
		return nil, err
	}
	outbox, err := outboxService.StartOutboxCron(e.Dispatcher, e.Cfg.OutboxCron)
	if err != nil {
		sweep.Stop()
		return nil, err
	}
	return []*cron.Cron{sweep, outbox}, nil
}
