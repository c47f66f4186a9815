// file: internals/configs/engine.go
package configs

import (
	"log"
	"strings"
	"time"
)

// SessionTiming holds the minute-level knobs of the session lifecycle.
type SessionTiming struct {
	PreparationMinutes        int
	EarlyJoinMinutes          int
	MaxFutureHours            int
	GraceMinutes              int
	EndingBufferMinutes       int
	RequiredAttendancePercent float64
}

type EngineConfig struct {
	Defaults SessionTiming
	// keyed by session subtype ("individual", "group", "interactive")
	Subtypes map[string]SessionTiming

	ReconnectThreshold      time.Duration
	TeacherEarningThreshold float64

	SweepCron      string
	SweepBatchSize int

	OutboxCron        string
	OutboxBatchSize   int
	OutboxMaxAttempts int
	OutboxBaseBackoff time.Duration

	MeetingTimeout           time.Duration
	MeetingRetries           int
	MeetingRoomRequired      bool
	MeetingRoomBufferMinutes int
	MeetingMaxParticipants   int
	MeetingRecording         bool

	Location        *time.Location
	DefaultCurrency string
}

var KnownSubtypes = []string{"individual", "group", "interactive"}

func DefaultSessionTiming() SessionTiming {
	return SessionTiming{
		PreparationMinutes:        15,
		EarlyJoinMinutes:          15,
		MaxFutureHours:            2,
		GraceMinutes:              15,
		EndingBufferMinutes:       5,
		RequiredAttendancePercent: 80,
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Defaults:                 DefaultSessionTiming(),
		Subtypes:                 map[string]SessionTiming{},
		ReconnectThreshold:       120 * time.Second,
		TeacherEarningThreshold:  50,
		SweepCron:                "@every 1m",
		SweepBatchSize:           200,
		OutboxCron:               "@every 30s",
		OutboxBatchSize:          100,
		OutboxMaxAttempts:        8,
		OutboxBaseBackoff:        30 * time.Second,
		MeetingTimeout:           10 * time.Second,
		MeetingRetries:           2,
		MeetingRoomRequired:      false,
		MeetingRoomBufferMinutes: 30,
		MeetingMaxParticipants:   50,
		MeetingRecording:         false,
		Location:                 time.UTC,
		DefaultCurrency:          "SAR",
	}
}

// Timing returns the subtype override when present, else the defaults.
func (c EngineConfig) Timing(subtype string) SessionTiming {
	if t, ok := c.Subtypes[subtype]; ok {
		return t
	}
	return c.Defaults
}

// LoadEngineConfig reads the engine knobs from env, falling back to defaults.
// Per-subtype knobs use SESSION_<SUBTYPE>_<KNOB>.
func LoadEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()

	cfg.Defaults = timingFromEnv("SESSION", cfg.Defaults)
	for _, st := range KnownSubtypes {
		prefix := "SESSION_" + strings.ToUpper(st)
		t := timingFromEnv(prefix, cfg.Defaults)
		if t != cfg.Defaults {
			cfg.Subtypes[st] = t
		}
	}

	cfg.ReconnectThreshold = GetEnvDuration("ATTENDANCE_RECONNECT_THRESHOLD", cfg.ReconnectThreshold)
	cfg.TeacherEarningThreshold = GetEnvFloat("EARNINGS_TEACHER_ATTENDANCE_PERCENT", cfg.TeacherEarningThreshold)

	cfg.SweepCron = GetEnv("SESSION_SWEEP_CRON", cfg.SweepCron)
	cfg.SweepBatchSize = GetEnvInt("SESSION_SWEEP_BATCH_SIZE", cfg.SweepBatchSize)

	cfg.OutboxCron = GetEnv("OUTBOX_CRON", cfg.OutboxCron)
	cfg.OutboxBatchSize = GetEnvInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = GetEnvInt("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxBaseBackoff = GetEnvDuration("OUTBOX_BASE_BACKOFF", cfg.OutboxBaseBackoff)

	cfg.MeetingTimeout = GetEnvDuration("MEETING_ROOM_TIMEOUT", cfg.MeetingTimeout)
	cfg.MeetingRetries = GetEnvInt("MEETING_ROOM_RETRIES", cfg.MeetingRetries)
	cfg.MeetingRoomRequired = GetEnvBool("MEETING_ROOM_REQUIRED", cfg.MeetingRoomRequired)
	cfg.MeetingRoomBufferMinutes = GetEnvInt("MEETING_ROOM_BUFFER_MINUTES", cfg.MeetingRoomBufferMinutes)
	cfg.MeetingMaxParticipants = GetEnvInt("MEETING_ROOM_MAX_PARTICIPANTS", cfg.MeetingMaxParticipants)
	cfg.MeetingRecording = GetEnvBool("MEETING_ROOM_RECORDING", cfg.MeetingRecording)

	if tz := strings.TrimSpace(GetEnv("APP_TIMEZONE")); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		} else {
			log.Printf("[CONFIG] APP_TIMEZONE=%q invalid, using UTC: %v", tz, err)
		}
	}
	cfg.DefaultCurrency = GetEnv("EARNINGS_DEFAULT_CURRENCY", cfg.DefaultCurrency)

	log.Printf("[CONFIG] engine prep=%dm early=%dm grace=%dm buffer=%dm required=%.0f%% overrides=%d",
		cfg.Defaults.PreparationMinutes, cfg.Defaults.EarlyJoinMinutes, cfg.Defaults.GraceMinutes,
		cfg.Defaults.EndingBufferMinutes, cfg.Defaults.RequiredAttendancePercent, len(cfg.Subtypes))
	return cfg
}

func timingFromEnv(prefix string, base SessionTiming) SessionTiming {
	return SessionTiming{
		PreparationMinutes:        GetEnvInt(prefix+"_PREPARATION_MINUTES", base.PreparationMinutes),
		EarlyJoinMinutes:          GetEnvInt(prefix+"_EARLY_JOIN_MINUTES", base.EarlyJoinMinutes),
		MaxFutureHours:            GetEnvInt(prefix+"_MAX_FUTURE_HOURS", base.MaxFutureHours),
		GraceMinutes:              GetEnvInt(prefix+"_GRACE_MINUTES", base.GraceMinutes),
		EndingBufferMinutes:       GetEnvInt(prefix+"_ENDING_BUFFER_MINUTES", base.EndingBufferMinutes),
		RequiredAttendancePercent: GetEnvFloat(prefix+"_REQUIRED_ATTENDANCE_PERCENT", base.RequiredAttendancePercent),
	}
}
