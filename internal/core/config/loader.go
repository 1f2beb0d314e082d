package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/arcsign/internal/core/domain"
)

// Environment variables read on top of the file.
const (
	EnvUsername       = "ARCTIME_USERNAME"
	EnvPassword       = "ARCTIME_PASSWORD"
	EnvDebug          = "ARCSIGN_DEBUG"
	EnvPushgatewayURL = "ARCSIGN_PUSHGATEWAY_URL"
)

// DefaultEndpoints are the known sign-in endpoints, highest priority first.
func DefaultEndpoints() []domain.Endpoint {
	return []domain.Endpoint{
		{Name: "m-api", Method: "POST", URL: "https://m.arctime.cn/api/user/sign", Timeout: 5 * time.Second},
		{Name: "api-v1", Method: "POST", URL: "https://api.arctime.cn/v1/user/sign", Timeout: 5 * time.Second},
		{Name: "do-sign", Method: "GET", URL: "https://m.arctime.cn/home/user/do_sign", Timeout: 5 * time.Second},
		{Name: "sign-in", Method: "POST", URL: "https://m.arctime.cn/user/sign_in", Timeout: 5 * time.Second},
	}
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file, then applies defaults and environment overrides.
// When optional is set, a missing file is not an error.
func Load(path string, optional bool) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default.
func (c *AppConfig) Validate() error {
	if c.Site.LoginURL == "" {
		return fmt.Errorf("site.login_url is required")
	}
	for i, ep := range c.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("endpoints[%d]: url is required", i)
		}
		switch ep.Method {
		case "GET", "POST":
		default:
			return fmt.Errorf("endpoints[%d]: unsupported method %q", i, ep.Method)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	s := &cfg.Site
	if s.LoginURL == "" {
		s.LoginURL = "https://m.arctime.cn/home/user/login_save.html"
	}
	if s.StatusURL == "" {
		s.StatusURL = "https://m.arctime.cn/home/ucenter"
	}
	if s.Origin == "" {
		s.Origin = "https://m.arctime.cn"
	}
	if s.Referer == "" {
		s.Referer = "https://m.arctime.cn/home/user/login.html"
	}
	if s.UserAgent == "" {
		s.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	}
	if s.LoginType == "" {
		s.LoginType = "2"
	}
	if s.Timeout == 0 {
		s.Timeout = 10 * time.Second
	}

	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints()
	}
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
		if ep.Method == "" {
			ep.Method = "POST"
		}
		if ep.Timeout == 0 {
			ep.Timeout = 5 * time.Second
		}
		if ep.Name == "" {
			ep.Name = fmt.Sprintf("endpoint-%d", i+1)
		}
	}

	r := &cfg.Retry
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 2
	}
	if r.InitialDelay == 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = 30 * time.Second
	}
	if r.BackoffMultiple == 0 {
		r.BackoffMultiple = 1.0
	}

	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "arcsign"
	}
}

func applyEnv(cfg *AppConfig) {
	cfg.Credential = domain.Credential{
		Identifier: strings.TrimSpace(os.Getenv(EnvUsername)),
		Secret:     os.Getenv(EnvPassword),
	}
	if debug, err := strconv.ParseBool(os.Getenv(EnvDebug)); err == nil && debug {
		cfg.Logging.Level = "debug"
	}
	if url := os.Getenv(EnvPushgatewayURL); url != "" {
		cfg.Metrics.PushgatewayURL = url
	}
}
