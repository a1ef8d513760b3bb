package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// requiredArgs carries the flags without which validation fails.
func requiredArgs(extra ...string) []string {
	args := []string{
		"bargepoint",
		"--twilio-account-sid", "AC00000000000000000000000000000000",
		"--twilio-auth-token", "secret",
		"--twilio-caller-id", "+15550000000",
		"--callback-base-url", "https://barge.example.com",
	}
	return append(args, extra...)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"BARGEPOINT_DATA_DIR", "BARGEPOINT_HTTP_PORT", "BARGEPOINT_LOG_LEVEL",
		"BARGEPOINT_TWILIO_ACCOUNT_SID", "BARGEPOINT_TWILIO_AUTH_TOKEN",
		"BARGEPOINT_TWILIO_CALLER_ID", "BARGEPOINT_CALLBACK_BASE_URL",
		"BARGEPOINT_TURBO_SESSION_DSN", "BARGEPOINT_SETTLE_DELAY_MS",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.HTTPPort != defaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, defaultHTTPPort)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.TwilioBaseURL != defaultTwilioBaseURL {
		t.Errorf("TwilioBaseURL = %q, want %q", cfg.TwilioBaseURL, defaultTwilioBaseURL)
	}
	if cfg.SettleDelayMS != defaultSettleDelayMS {
		t.Errorf("SettleDelayMS = %d, want %d", cfg.SettleDelayMS, defaultSettleDelayMS)
	}
	if cfg.SettlePollAttempts != defaultSettlePollAttempts {
		t.Errorf("SettlePollAttempts = %d, want %d", cfg.SettlePollAttempts, defaultSettlePollAttempts)
	}
	if cfg.DialRingTimeoutSec != defaultDialRingTimeoutSec {
		t.Errorf("DialRingTimeoutSec = %d, want %d", cfg.DialRingTimeoutSec, defaultDialRingTimeoutSec)
	}
	if cfg.TurboEnabled() {
		t.Error("expected turbo mode disabled without a DSN")
	}
}

func TestEnvVarOverride(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs()
	t.Setenv("BARGEPOINT_HTTP_PORT", "9090")
	t.Setenv("BARGEPOINT_DATA_DIR", "/tmp/bargepoint-test")
	t.Setenv("BARGEPOINT_SETTLE_DELAY_MS", "750")
	t.Setenv("BARGEPOINT_TURBO_SESSION_DSN", "postgres://dialer:pw@db/dialer")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.DataDir != "/tmp/bargepoint-test" {
		t.Errorf("DataDir = %q, want /tmp/bargepoint-test", cfg.DataDir)
	}
	if cfg.SettleDelayMS != 750 {
		t.Errorf("SettleDelayMS = %d, want 750", cfg.SettleDelayMS)
	}
	if !cfg.TurboEnabled() {
		t.Error("expected turbo mode enabled with a DSN")
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	clearEnv(t)
	// CLI flags should override env vars.
	os.Args = requiredArgs("--http-port", "3000", "--log-level", "warn")
	t.Setenv("BARGEPOINT_HTTP_PORT", "9090")
	t.Setenv("BARGEPOINT_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want 3000 (CLI should override env)", cfg.HTTPPort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn (CLI should override env)", cfg.LogLevel)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	clearEnv(t)
	os.Args = []string{"bargepoint"}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error without provider credentials, got nil")
	}
}

func TestValidateInvalidPort(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs("--http-port", "99999")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs("--log-level", "verbose")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestValidateBadCallbackURL(t *testing.T) {
	clearEnv(t)
	os.Args = []string{
		"bargepoint",
		"--twilio-account-sid", "AC0",
		"--twilio-auth-token", "secret",
		"--twilio-caller-id", "+15550000000",
		"--callback-base-url", "not-a-url",
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for relative callback URL, got nil")
	}
}

func TestValidateRingTimeoutBounds(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs("--dial-ring-timeout", "2")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for ring timeout below provider minimum, got nil")
	}
}

func TestValidateSettleDelayBounds(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs("--settle-delay-ms", "6000")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for settle delay past the cap, got nil")
	}
}

func TestValidateTLSMismatch(t *testing.T) {
	clearEnv(t)
	os.Args = requiredArgs("--tls-cert", "cert.pem")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when tls-cert provided without tls-key")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		TwilioTimeoutSec:     10,
		SettleDelayMS:        500,
		SettlePollIntervalMS: 250,
	}
	if got := cfg.TwilioTimeout(); got != 10*time.Second {
		t.Errorf("TwilioTimeout() = %v, want 10s", got)
	}
	if got := cfg.SettleDelay(); got != 500*time.Millisecond {
		t.Errorf("SettleDelay() = %v, want 500ms", got)
	}
	if got := cfg.SettlePollInterval(); got != 250*time.Millisecond {
		t.Errorf("SettlePollInterval() = %v, want 250ms", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
