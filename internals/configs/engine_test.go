package configs

import (
	"testing"
	"time"
)

func TestLoadEngineConfigDefaults(t *testing.T) {
	cfg := LoadEngineConfig()
	want := DefaultEngineConfig()
	if cfg.Defaults != want.Defaults {
		t.Fatalf("defaults = %+v, want %+v", cfg.Defaults, want.Defaults)
	}
	if len(cfg.Subtypes) != 0 {
		t.Fatalf("subtype overrides = %v, want none", cfg.Subtypes)
	}
	if cfg.ReconnectThreshold != 120*time.Second || cfg.TeacherEarningThreshold != 50 {
		t.Fatalf("reconnect=%s teacher=%v", cfg.ReconnectThreshold, cfg.TeacherEarningThreshold)
	}
}

func TestLoadEngineConfigSubtypeOverride(t *testing.T) {
	t.Setenv("SESSION_GRACE_MINUTES", "20")
	t.Setenv("SESSION_GROUP_PREPARATION_MINUTES", "30")
	t.Setenv("ATTENDANCE_RECONNECT_THRESHOLD", "90s")

	cfg := LoadEngineConfig()
	if cfg.Defaults.GraceMinutes != 20 {
		t.Fatalf("grace = %d, want 20", cfg.Defaults.GraceMinutes)
	}
	group := cfg.Timing("group")
	if group.PreparationMinutes != 30 || group.GraceMinutes != 20 {
		t.Fatalf("group timing = %+v, want prep 30 on top of grace 20", group)
	}
	if got := cfg.Timing("individual"); got != cfg.Defaults {
		t.Fatalf("individual timing = %+v, want defaults", got)
	}
	if cfg.ReconnectThreshold != 90*time.Second {
		t.Fatalf("reconnect = %s, want 90s", cfg.ReconnectThreshold)
	}
}

func TestLoadEngineConfigIgnoresBadValues(t *testing.T) {
	t.Setenv("SESSION_SWEEP_BATCH_SIZE", "lots")
	t.Setenv("OUTBOX_BASE_BACKOFF", "soon")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	cfg := LoadEngineConfig()
	if cfg.SweepBatchSize != 200 || cfg.OutboxBaseBackoff != 30*time.Second {
		t.Fatalf("batch=%d backoff=%s, want defaults", cfg.SweepBatchSize, cfg.OutboxBaseBackoff)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("location = %s, want UTC", cfg.Location)
	}
}

func TestGetEnvBool(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"nope", true, false},
	}
	for _, c := range cases {
		t.Setenv("FLAG_UNDER_TEST", c.val)
		if got := GetEnvBool("FLAG_UNDER_TEST", c.def); got != c.want {
			t.Fatalf("GetEnvBool(%q, %v) = %v, want %v", c.val, c.def, got, c.want)
		}
	}
}
