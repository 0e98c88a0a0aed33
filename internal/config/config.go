// Package config loads pulse-compliance settings from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rcourtman/pulse-compliance/internal/kvstore"
	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

const (
	DefaultDataDir       = "/etc/pulse"
	DefaultBind          = "127.0.0.1:7656"
	DefaultMetricsBind   = "127.0.0.1:9656"
	DefaultVerifyTimeout = 10 * time.Second
	DefaultEmailFrom     = "noreply@pulserelay.pro"
)

// Config holds all runtime settings.
type Config struct {
	DataDir   string
	Timezone  string
	Store     string
	RedisURL  string
	KeyPrefix string

	LicenseKey     string
	LicenseKeyFile string
	VerifyURL      string // empty selects the offline verifier
	VerifyTimeout  time.Duration
	InstanceID     string

	NoticesEnabled bool
	EmailEnabled   bool
	NoticeSnooze   time.Duration

	PostmarkToken string // empty logs emails instead of sending
	EmailFrom     string
	EmailTo       string

	BindAddress        string
	MetricsBindAddress string

	LogLevel  string
	LogFormat string
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// StoreOptions maps the config onto kvstore.Open options.
func (c *Config) StoreOptions() kvstore.Options {
	return kvstore.Options{Backend: c.Store, DataDir: c.DataDir, RedisURL: c.RedisURL}
}

// Load reads configuration from the environment. A .env file in the working
// directory or the data directory is loaded if present but not required.
func Load() (*Config, error) {
	_ = godotenv.Load()
	dataDir := envOrDefault("PULSE_COMPLIANCE_DATA_DIR", DefaultDataDir)
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))

	notices, err := envOrDefaultBool("PULSE_COMPLIANCE_NOTICES_ENABLED", true)
	if err != nil {
		return nil, err
	}
	// Email defaults to on only when there is someone to send it to.
	emailTo := strings.TrimSpace(os.Getenv("PULSE_EMAIL_TO"))
	email, err := envOrDefaultBool("PULSE_COMPLIANCE_EMAIL_ENABLED", emailTo != "")
	if err != nil {
		return nil, err
	}
	snooze, err := envOrDefaultDuration("PULSE_COMPLIANCE_NOTICE_SNOOZE", compliance.DefaultNoticeSnooze)
	if err != nil {
		return nil, err
	}
	verifyTimeout, err := envOrDefaultDuration("PULSE_LICENSE_VERIFY_TIMEOUT", DefaultVerifyTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:   dataDir,
		Timezone:  envOrDefault("PULSE_COMPLIANCE_TIMEZONE", "UTC"),
		Store:     strings.ToLower(envOrDefault("PULSE_COMPLIANCE_STORE", kvstore.BackendSQLite)),
		RedisURL:  strings.TrimSpace(os.Getenv("PULSE_COMPLIANCE_REDIS_URL")),
		KeyPrefix: envOrDefault("PULSE_COMPLIANCE_KEY_PREFIX", compliance.DefaultKeyPrefix),

		LicenseKey:     strings.TrimSpace(os.Getenv("PULSE_LICENSE_KEY")),
		LicenseKeyFile: strings.TrimSpace(os.Getenv("PULSE_LICENSE_KEY_FILE")),
		VerifyURL:      strings.TrimSpace(os.Getenv("PULSE_LICENSE_VERIFY_URL")),
		VerifyTimeout:  verifyTimeout,
		InstanceID:     strings.TrimSpace(os.Getenv("PULSE_INSTANCE_ID")),

		NoticesEnabled: notices,
		EmailEnabled:   email,
		NoticeSnooze:   snooze,

		PostmarkToken: strings.TrimSpace(os.Getenv("POSTMARK_SERVER_TOKEN")),
		EmailFrom:     envOrDefault("PULSE_EMAIL_FROM", DefaultEmailFrom),
		EmailTo:       emailTo,

		BindAddress:        envOrDefault("PULSE_COMPLIANCE_BIND", DefaultBind),
		MetricsBindAddress: envOrDefault("PULSE_COMPLIANCE_METRICS_BIND", DefaultMetricsBind),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate compliance config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	switch c.Store {
	case kvstore.BackendSQLite, kvstore.BackendFile, kvstore.BackendMemory:
	case kvstore.BackendRedis:
		if c.RedisURL == "" {
			problems = append(problems, "PULSE_COMPLIANCE_REDIS_URL is required when PULSE_COMPLIANCE_STORE=redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("PULSE_COMPLIANCE_STORE must be one of sqlite, file, redis, memory, got %q", c.Store))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("PULSE_COMPLIANCE_TIMEZONE %q is not a valid IANA zone", c.Timezone))
	}

	if c.VerifyURL != "" {
		parsed, err := url.Parse(c.VerifyURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			problems = append(problems, "PULSE_LICENSE_VERIFY_URL must be an http or https URL")
		}
	}
	if c.VerifyTimeout <= 0 {
		problems = append(problems, "PULSE_LICENSE_VERIFY_TIMEOUT must be greater than 0")
	}
	if c.EmailEnabled && c.EmailTo == "" {
		problems = append(problems, "PULSE_EMAIL_TO is required when PULSE_COMPLIANCE_EMAIL_ENABLED=true")
	}
	if c.NoticeSnooze < 0 {
		problems = append(problems, "PULSE_COMPLIANCE_NOTICE_SNOOZE must not be negative")
	}

	for name, addr := range map[string]string{
		"PULSE_COMPLIANCE_BIND":         c.BindAddress,
		"PULSE_COMPLIANCE_METRICS_BIND": c.MetricsBindAddress,
	} {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			problems = append(problems, fmt.Sprintf("%s must be host:port, got %q", name, addr))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s must be a boolean: %w", key, err)
		}
		return b, nil
	}
	return fallback, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a duration: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}
