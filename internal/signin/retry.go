package signin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/core/domain"
	"github.com/vietddude/arcsign/internal/infra/site"
)

// ErrThrottled marks a response that is a rate-limit answer.
var ErrThrottled = errors.New("throttled by site")

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry    ErrorAction = iota // same endpoint again after a delay
	ActionFailover                    // move on to the next endpoint
	ActionFatal                       // stop the run
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	default:
		return "fatal"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFailover
	}

	var authErr *site.AuthenticationError
	if errors.Is(err, context.Canceled) || errors.As(err, &authErr) {
		return ActionFatal
	}

	var netErr *site.NetworkError
	if errors.As(err, &netErr) || errors.Is(err, ErrThrottled) {
		return ActionRetry
	}

	return ActionFailover
}

// issueFunc performs one request.
type issueFunc func(ctx context.Context) (domain.ResponseSample, error)

// throttledFunc reports whether a sample should be retried as a rate-limit answer.
type throttledFunc func(domain.ResponseSample) bool

// issueWithRetry runs issue until it yields a sample that throttled rejects, a
// non-retryable error, or MaxAttempts is reached.
func issueWithRetry(ctx context.Context, issue issueFunc, throttled throttledFunc, cfg config.RetryConfig) (domain.ResponseSample, int, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		sample, err := issue(ctx)
		if err == nil && throttled != nil && throttled(sample) {
			err = fmt.Errorf("status %d: %w", sample.StatusCode, ErrThrottled)
		}
		if err == nil {
			return sample, attempt + 1, nil
		}

		lastErr = err
		if ClassifyError(err) != ActionRetry {
			return domain.ResponseSample{}, attempt + 1, err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, cfg)
		select {
		case <-ctx.Done():
			return domain.ResponseSample{}, attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}

	return domain.ResponseSample{}, cfg.MaxAttempts, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, cfg config.RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
