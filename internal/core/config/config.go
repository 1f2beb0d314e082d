package config

import (
	"time"

	"github.com/vietddude/arcsign/internal/core/domain"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Site        SiteConfig        `yaml:"site"`
	Endpoints   []domain.Endpoint `yaml:"endpoints"`
	Retry       RetryConfig       `yaml:"retry"`
	SettleDelay time.Duration     `yaml:"settle_delay"` // wait before re-checking the status page
	Markers     MarkersConfig     `yaml:"markers"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	// Credential is never read from the file; see applyEnv.
	Credential domain.Credential `yaml:"-"`
}

// SiteConfig holds the target site's fixed URLs and request shape.
type SiteConfig struct {
	LoginURL           string        `yaml:"login_url"`
	StatusURL          string        `yaml:"status_url"` // user-center page with the sign-in badge
	Origin             string        `yaml:"origin"`
	Referer            string        `yaml:"referer"`
	UserAgent          string        `yaml:"user_agent"`
	LoginType          string        `yaml:"login_type"`
	Timeout            time.Duration `yaml:"timeout"` // default per-request timeout
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// RetryConfig is the loop-and-sleep policy applied to each endpoint.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// MarkersConfig holds phrase variants appended to the built-in classifier rules.
type MarkersConfig struct {
	AlreadyDone    []string `yaml:"already_done"`
	JustSucceeded  []string `yaml:"just_succeeded"`
	MessageSuccess []string `yaml:"message_success"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig holds the optional Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}
