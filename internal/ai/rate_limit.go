package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	// rateLimitBaseBackoff matches Anthropic's per-minute token windows
	rateLimitBaseBackoff = 60 * time.Second

	// rateLimitMaxBackoff caps the wait for rate limit and overload errors
	rateLimitMaxBackoff = 120 * time.Second
)

// isRateLimitError detects rate limit errors by SDK type or message.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimitErr()
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests")
}

// isOverloadedError detects API overload, which is backed off like a rate limit.
func isOverloadedError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsOverloadedErr()
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "503")
}

// isPermanentError reports errors that no amount of retrying will fix, such
// as a rejected key, a malformed request or a cancelled context.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == anthropic.ErrTypeAuthentication ||
			apiErr.Type == anthropic.ErrTypeInvalidRequest
	}

	// Local servers answer a bad model name or request with a 4xx.
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
			statusErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// getBackoffDuration returns 60-120s for rate limit and overload errors and
// 2^attempt seconds for everything else.
func getBackoffDuration(err error, attempt int) time.Duration {
	if isRateLimitError(err) || isOverloadedError(err) {
		backoff := rateLimitBaseBackoff * time.Duration(attempt)
		if backoff > rateLimitMaxBackoff {
			return rateLimitMaxBackoff
		}
		return backoff
	}

	return time.Duration(1<<attempt) * time.Second
}
