package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads, then seeds the required ones.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT",
		"IDLE_TIMEOUT", "MAX_HEADER_BYTES", "GIN_MODE",
		"LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH",
		"DB_PATH", "HMAC_SECRET", "ROBLOX_BASE_URL",
		"VERIFICATION_CODE_TTL", "ADMIN_TOKEN_TTL", "ADMIN_INITIAL_TOKEN",
		"REFERRAL_REWARD_DAILY_CAP", "SESSION_TTL",
		"RATE_RPS", "RATE_BURST",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "QUEUE_KEY", "QUEUE_POP_TIMEOUT",
		"WORKER_IDLE_SLEEP", "WORKER_ERROR_BACKOFF",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
	t.Setenv("HMAC_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.CodeTTL != 10*time.Minute {
		t.Errorf("CodeTTL = %v", cfg.CodeTTL)
	}
	if cfg.AdminTokenTTL != 15*time.Minute {
		t.Errorf("AdminTokenTTL = %v", cfg.AdminTokenTTL)
	}
	if cfg.ReferralDailyCap != 1000 {
		t.Errorf("ReferralDailyCap = %d", cfg.ReferralDailyCap)
	}
	if cfg.SessionTTL != 2*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.Queue.Key != "verify:events" {
		t.Errorf("Queue.Key = %q", cfg.Queue.Key)
	}
	if cfg.Queue.PopTimeout != time.Second {
		t.Errorf("Queue.PopTimeout = %v", cfg.Queue.PopTimeout)
	}
	if cfg.Worker.IdleSleep != 200*time.Millisecond {
		t.Errorf("Worker.IdleSleep = %v", cfg.Worker.IdleSleep)
	}
	if cfg.OTEL.Enabled {
		t.Error("OTEL enabled by default")
	}
}

func TestLoad_MissingHMACSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("HMAC_SECRET", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "HMAC_SECRET") {
		t.Fatalf("err = %v, want HMAC_SECRET validation error", err)
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	cases := []struct {
		key, value, wantErr string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"VERIFICATION_CODE_TTL", "-1m", "VERIFICATION_CODE_TTL"},
		{"ADMIN_TOKEN_TTL", "-1s", "ADMIN_TOKEN_TTL"},
		{"SESSION_TTL", "-1s", "SESSION_TTL"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"QUEUE_POP_TIMEOUT", "-1s", "QUEUE_POP_TIMEOUT"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(c.key, c.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, c.wantErr)
			}
		})
	}
}

func TestLoad_Normalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "production")
	t.Setenv("API_BASE_PATH", "api/v2/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q, want release", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Errorf("APIBasePath = %q, want /api/v2", cfg.APIBasePath)
	}
}

func TestGetBool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "No": false, "off": false,
	}
	for v, want := range cases {
		t.Setenv("TEST_BOOL", v)
		if got := getbool("TEST_BOOL", !want); got != want {
			t.Errorf("getbool(%q) = %v, want %v", v, got, want)
		}
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !getbool("TEST_BOOL", true) {
		t.Error("unparsable value did not fall back to default")
	}
}

func TestGetDur(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if got := getdur("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("getdur = %v", got)
	}
	t.Setenv("TEST_DUR", "soon")
	if got := getdur("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("fallback = %v", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("splitCSV = %v", got)
	}
	if splitCSV("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
