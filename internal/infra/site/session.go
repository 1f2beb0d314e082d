// Package site talks to the sign-in website.
//
// A Session is a cookie-bearing HTTP client that lives for one run. It knows
// nothing about what responses mean; classification is left to the caller.
package site

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/core/domain"
	"github.com/vietddude/arcsign/internal/metrics"
)

// maxBodyBytes bounds how much of a response is kept for classification.
const maxBodyBytes = 1 << 20

// Request describes one call to the site.
type Request struct {
	Target  string // metrics label, e.g. "login" or an endpoint name
	Method  string
	URL     string
	Header  http.Header
	Form    url.Values    // sent as application/x-www-form-urlencoded when non-nil
	Timeout time.Duration // 0 uses the session default
}

// Session is a cookie-bearing HTTP client for one run.
type Session struct {
	cfg        config.SiteConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewSession creates a session with an empty cookie jar.
func NewSession(cfg config.SiteConfig, log *slog.Logger) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Session{
		cfg: cfg,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
		log: log,
	}, nil
}

// Issue performs a request and returns the status code and body. Transport
// failures and timeouts are returned as *NetworkError; any HTTP status is a
// valid sample.
func (s *Session) Issue(ctx context.Context, r Request) (domain.ResponseSample, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return domain.ResponseSample{}, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, r)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest(r.Target, "error", time.Since(start))
		return domain.ResponseSample{}, &NetworkError{Method: r.Method, URL: r.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(r.Target, "error", latency)
		return domain.ResponseSample{}, &NetworkError{Method: r.Method, URL: r.URL, Err: fmt.Errorf("read response: %w", err)}
	}

	sample := domain.ResponseSample{StatusCode: resp.StatusCode, Body: string(data)}

	result := "ok"
	if IsThrottled(sample) {
		result = "throttled"
	}
	metrics.ObserveRequest(r.Target, result, latency)

	s.log.Debug("Response received",
		"target", r.Target,
		"method", r.Method,
		"url", r.URL,
		"status", sample.StatusCode,
		"latency", latency,
		"body", Truncate(sample.Body, 300),
	)

	return sample, nil
}

func (s *Session) setHeaders(req *http.Request, r Request) {
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if s.cfg.Origin != "" {
		req.Header.Set("Origin", s.cfg.Origin)
	}
	if r.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// Close releases idle connections.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// Truncate shortens s to at most n runes for logging.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
