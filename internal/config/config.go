package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the BargePoint server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir     string
	HTTPPort    int
	TLSCert     string
	TLSKey      string
	LogLevel    string
	LogFormat   string // log output format: "text" or "json"
	CORSOrigins string
	JWTSecret   string // hex-encoded 32-byte secret for API JWT verification
	ACMEDomain  string // domain for automatic Let's Encrypt certificate
	ACMEEmail   string // contact email for Let's Encrypt account notifications

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioBaseURL    string // override for the provider API endpoint (testing, regional edges)
	TwilioCallerID   string // E.164 number presented on legs the server originates
	TwilioTimeoutSec int    // per-request timeout for provider API calls

	CallbackBaseURL string // public base URL the provider fetches TwiML from
	TurboSessionDSN string // Postgres DSN of the dialer's turbo session table; empty disables turbo mode

	SettleDelayMS        int // pause after the first redirect before touching the second leg
	SettlePollAttempts   int // status polls of the first leg during the settle window
	SettlePollIntervalMS int
	DialRingTimeoutSec   int // how long the invitee's phone rings before the provider gives up
}

// defaults
const (
	defaultDataDir              = "./data"
	defaultHTTPPort             = 8080
	defaultLogLevel             = "info"
	defaultLogFormat            = "text"
	defaultTwilioBaseURL        = "https://api.twilio.com"
	defaultTwilioTimeoutSec     = 10
	defaultSettleDelayMS        = 500
	defaultSettlePollAttempts   = 3
	defaultSettlePollIntervalMS = 250
	defaultDialRingTimeoutSec   = 30
)

// envPrefix is the prefix for all BargePoint environment variables.
const envPrefix = "BARGEPOINT_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("bargepoint", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the journal database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to TLS certificate file")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to TLS private key file")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for API JWT verification (auto-generated if empty)")
	fs.StringVar(&cfg.ACMEDomain, "acme-domain", "", "domain for automatic Let's Encrypt TLS certificate (e.g., barge.example.com)")
	fs.StringVar(&cfg.ACMEEmail, "acme-email", "", "contact email for Let's Encrypt account notifications")

	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token")
	fs.StringVar(&cfg.TwilioBaseURL, "twilio-base-url", defaultTwilioBaseURL, "Twilio API base URL")
	fs.StringVar(&cfg.TwilioCallerID, "twilio-caller-id", "", "caller ID for legs the server dials out (E.164)")
	fs.IntVar(&cfg.TwilioTimeoutSec, "twilio-timeout", defaultTwilioTimeoutSec, "timeout in seconds for Twilio API requests")

	fs.StringVar(&cfg.CallbackBaseURL, "callback-base-url", "", "public base URL Twilio fetches TwiML and posts callbacks to")
	fs.StringVar(&cfg.TurboSessionDSN, "turbo-session-dsn", "", "Postgres DSN of the dialer's turbo session table (empty disables turbo mode)")

	fs.IntVar(&cfg.SettleDelayMS, "settle-delay-ms", defaultSettleDelayMS, "milliseconds to wait after the first leg redirect before moving the second")
	fs.IntVar(&cfg.SettlePollAttempts, "settle-poll-attempts", defaultSettlePollAttempts, "status polls of the first leg during the settle window (0 disables polling)")
	fs.IntVar(&cfg.SettlePollIntervalMS, "settle-poll-interval-ms", defaultSettlePollIntervalMS, "milliseconds between settle status polls")
	fs.IntVar(&cfg.DialRingTimeoutSec, "dial-ring-timeout", defaultDialRingTimeoutSec, "seconds the invitee's phone rings before the call is abandoned")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":                envPrefix + "DATA_DIR",
		"http-port":               envPrefix + "HTTP_PORT",
		"tls-cert":                envPrefix + "TLS_CERT",
		"tls-key":                 envPrefix + "TLS_KEY",
		"log-level":               envPrefix + "LOG_LEVEL",
		"log-format":              envPrefix + "LOG_FORMAT",
		"cors-origins":            envPrefix + "CORS_ORIGINS",
		"jwt-secret":              envPrefix + "JWT_SECRET",
		"acme-domain":             envPrefix + "ACME_DOMAIN",
		"acme-email":              envPrefix + "ACME_EMAIL",
		"twilio-account-sid":      envPrefix + "TWILIO_ACCOUNT_SID",
		"twilio-auth-token":       envPrefix + "TWILIO_AUTH_TOKEN",
		"twilio-base-url":         envPrefix + "TWILIO_BASE_URL",
		"twilio-caller-id":        envPrefix + "TWILIO_CALLER_ID",
		"twilio-timeout":          envPrefix + "TWILIO_TIMEOUT",
		"callback-base-url":       envPrefix + "CALLBACK_BASE_URL",
		"turbo-session-dsn":       envPrefix + "TURBO_SESSION_DSN",
		"settle-delay-ms":         envPrefix + "SETTLE_DELAY_MS",
		"settle-poll-attempts":    envPrefix + "SETTLE_POLL_ATTEMPTS",
		"settle-poll-interval-ms": envPrefix + "SETTLE_POLL_INTERVAL_MS",
		"dial-ring-timeout":       envPrefix + "DIAL_RING_TIMEOUT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "tls-cert":
			cfg.TLSCert = val
		case "tls-key":
			cfg.TLSKey = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "cors-origins":
			cfg.CORSOrigins = val
		case "jwt-secret":
			cfg.JWTSecret = val
		case "acme-domain":
			cfg.ACMEDomain = val
		case "acme-email":
			cfg.ACMEEmail = val
		case "twilio-account-sid":
			cfg.TwilioAccountSID = val
		case "twilio-auth-token":
			cfg.TwilioAuthToken = val
		case "twilio-base-url":
			cfg.TwilioBaseURL = val
		case "twilio-caller-id":
			cfg.TwilioCallerID = val
		case "twilio-timeout":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.TwilioTimeoutSec = v
			}
		case "callback-base-url":
			cfg.CallbackBaseURL = val
		case "turbo-session-dsn":
			cfg.TurboSessionDSN = val
		case "settle-delay-ms":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SettleDelayMS = v
			}
		case "settle-poll-attempts":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SettlePollAttempts = v
			}
		case "settle-poll-interval-ms":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SettlePollIntervalMS = v
			}
		case "dial-ring-timeout":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.DialRingTimeoutSec = v
			}
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.TwilioAccountSID == "" {
		return fmt.Errorf("twilio-account-sid is required")
	}
	if c.TwilioAuthToken == "" {
		return fmt.Errorf("twilio-auth-token is required")
	}
	if c.TwilioCallerID == "" {
		return fmt.Errorf("twilio-caller-id is required")
	}
	if c.CallbackBaseURL == "" {
		return fmt.Errorf("callback-base-url is required")
	}
	for name, raw := range map[string]string{
		"twilio-base-url":   c.TwilioBaseURL,
		"callback-base-url": c.CallbackBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.TwilioTimeoutSec < 1 {
		return fmt.Errorf("twilio-timeout must be at least 1 second, got %d", c.TwilioTimeoutSec)
	}
	// Legs sit in dead air while the redirect settles; past a few seconds
	// the lead starts hanging up.
	if c.SettleDelayMS < 0 || c.SettleDelayMS > 5000 {
		return fmt.Errorf("settle-delay-ms must be between 0 and 5000, got %d", c.SettleDelayMS)
	}
	if c.SettlePollAttempts < 0 {
		return fmt.Errorf("settle-poll-attempts must not be negative, got %d", c.SettlePollAttempts)
	}
	if c.SettlePollIntervalMS < 0 {
		return fmt.Errorf("settle-poll-interval-ms must not be negative, got %d", c.SettlePollIntervalMS)
	}
	// Twilio accepts ring timeouts between 5 and 600 seconds.
	if c.DialRingTimeoutSec < 5 || c.DialRingTimeoutSec > 600 {
		return fmt.Errorf("dial-ring-timeout must be between 5 and 600 seconds, got %d", c.DialRingTimeoutSec)
	}

	// TLS cert and key must both be set or both be empty.
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must both be provided or both be omitted")
	}

	// ACME domain and manual TLS cert/key are mutually exclusive.
	if c.ACMEDomain != "" && c.TLSCert != "" {
		return fmt.Errorf("acme-domain and tls-cert/tls-key are mutually exclusive")
	}

	return nil
}

// TLSEnabled returns true if either manual TLS certificates or automatic
// ACME (Let's Encrypt) certificates are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" || c.ACMEDomain != ""
}

// TurboEnabled returns true if a turbo session DSN is configured.
func (c *Config) TurboEnabled() bool {
	return c.TurboSessionDSN != ""
}

// JWTSecretBytes returns the decoded 32-byte JWT signing secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// TwilioTimeout returns the provider request timeout as a duration.
func (c *Config) TwilioTimeout() time.Duration {
	return time.Duration(c.TwilioTimeoutSec) * time.Second
}

// SettleDelay returns the post-redirect settle pause as a duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// SettlePollInterval returns the pause between settle polls as a duration.
func (c *Config) SettlePollInterval() time.Duration {
	return time.Duration(c.SettlePollIntervalMS) * time.Millisecond
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
