// Package webclient holds the outbound HTTP client shared by executors that call
// third-party APIs.
package webclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

const DefaultTimeout = 60 * time.Second

const maxErrorBody = 512

// New returns a resty client with retries disabled; retrying is the step runner's job.
func New(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "nodeflow/1.0")
}

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}

	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt: throttling and server errors.
func Retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// Check classifies the outcome of a resty call. Transport failures are retryable
// upstream errors, non-2xx statuses are upstream errors retryable per Retryable.
func Check(resp *resty.Response, err error) error {
	if err != nil {
		return protocol.Upstream(fmt.Errorf("request failed: %w", err), true)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode(), Body: truncate(strings.TrimSpace(resp.String()))}

		return protocol.Upstream(statusErr, Retryable(statusErr.StatusCode))
	}

	return nil
}

// StatusCode extracts the upstream status from a classified error, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}

	return 0
}

func truncate(body string) string {
	if len(body) <= maxErrorBody {
		return body
	}

	return body[:maxErrorBody] + "..."
}
