package site

import (
	"net/http"
	"strings"

	"github.com/vietddude/arcsign/internal/core/domain"
)

var throttlePatterns = []string{
	"too many requests",
	"rate limit",
	"请求过于频繁",
	"操作频繁",
	"访问过于频繁",
}

// IsThrottled checks if a response is a rate-limit answer rather than a real verdict.
func IsThrottled(sample domain.ResponseSample) bool {
	if sample.StatusCode == http.StatusTooManyRequests {
		return true
	}

	lowerBody := strings.ToLower(sample.Body)
	for _, pattern := range throttlePatterns {
		if strings.Contains(lowerBody, pattern) {
			return true
		}
	}
	return false
}
