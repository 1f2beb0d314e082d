package signin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/core/domain"
	"github.com/vietddude/arcsign/internal/infra/site"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{&site.NetworkError{Method: "GET", URL: "u", Err: errors.New("connection reset by peer")}, ActionRetry},
		{&site.NetworkError{Method: "GET", URL: "u", Err: context.DeadlineExceeded}, ActionRetry},
		{fmt.Errorf("status 429: %w", ErrThrottled), ActionRetry},
		{&site.NetworkError{Method: "GET", URL: "u", Err: context.Canceled}, ActionFatal},
		{context.Canceled, ActionFatal},
		{fmt.Errorf("login: %w", &site.AuthenticationError{Reason: "bad password"}), ActionFatal},
		{errors.New("create request: bad url"), ActionFailover},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func fastRetry(attempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2,
	}
}

func TestIssueWithRetry_RecoversFromNetworkError(t *testing.T) {
	calls := 0
	sample, attempts, err := issueWithRetry(context.Background(), func(context.Context) (domain.ResponseSample, error) {
		calls++
		if calls < 3 {
			return domain.ResponseSample{}, &site.NetworkError{Method: "POST", URL: "u", Err: errors.New("timeout")}
		}
		return domain.ResponseSample{StatusCode: 200, Body: `{"status":1}`}, nil
	}, site.IsThrottled, fastRetry(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || sample.Body != `{"status":1}` {
		t.Errorf("attempts=%d sample=%+v", attempts, sample)
	}
}

func TestIssueWithRetry_ThrottledExhausts(t *testing.T) {
	calls := 0
	_, attempts, err := issueWithRetry(context.Background(), func(context.Context) (domain.ResponseSample, error) {
		calls++
		return domain.ResponseSample{StatusCode: 429}, nil
	}, site.IsThrottled, fastRetry(2))
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if calls != 2 || attempts != 2 {
		t.Errorf("calls=%d attempts=%d, want 2", calls, attempts)
	}
}

func TestIssueWithRetry_FailoverStopsImmediately(t *testing.T) {
	calls := 0
	_, attempts, err := issueWithRetry(context.Background(), func(context.Context) (domain.ResponseSample, error) {
		calls++
		return domain.ResponseSample{}, errors.New("create request: bad url")
	}, site.IsThrottled, fastRetry(5))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("calls=%d attempts=%d, want 1", calls, attempts)
	}
}

func TestIssueWithRetry_ContextCanceledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(3)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	_, _, err := issueWithRetry(ctx, func(context.Context) (domain.ResponseSample, error) {
		cancel()
		return domain.ResponseSample{}, &site.NetworkError{Method: "GET", URL: "u", Err: errors.New("eof")}
	}, site.IsThrottled, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIssueWithRetry_PredicateDecidesThrottle(t *testing.T) {
	calls := 0
	sample, attempts, err := issueWithRetry(context.Background(), func(context.Context) (domain.ResponseSample, error) {
		calls++
		return domain.ResponseSample{StatusCode: 200, Body: "今日已签到，请勿操作频繁"}, nil
	}, func(domain.ResponseSample) bool { return false }, fastRetry(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("calls=%d attempts=%d, want 1", calls, attempts)
	}
	if sample.Body != "今日已签到，请勿操作频繁" {
		t.Errorf("sample = %+v", sample)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := config.RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffMultiple: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for attempt, w := range want {
		if got := calculateBackoff(attempt, cfg); got != w {
			t.Errorf("calculateBackoff(%d) = %v, want %v", attempt, got, w)
		}
	}
}
