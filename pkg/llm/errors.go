package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Category describes how a provider failure should be handled upstream.
type Category string

const (
	// CategoryTransient errors are retried with backoff.
	CategoryTransient Category = "transient"
	// CategoryPermanent errors are never retried and trip the batch breaker.
	CategoryPermanent Category = "permanent"
	// CategoryPartial errors (unparseable output) are retried once.
	CategoryPartial Category = "partial"
)

// Error is the classified form of any provider failure. Callers branch on
// Category, never on provider-specific exception types.
type Error struct {
	Category   Category
	Code       string
	Message    string
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s error [%s]: %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry this call.
func (e *Error) Retryable() bool {
	return e.Category != CategoryPermanent
}

// NewPartial builds a partial-output error (JSON parse failure, unrecovered
// truncation).
func NewPartial(provider, code, message string, err error) *Error {
	return &Error{
		Category: CategoryPartial,
		Code:     code,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// Classify maps a raw provider error to an *Error. Already-classified
// errors pass through. Unknown errors default to transient, failing open
// toward retry.
func Classify(provider string, err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Category: CategoryTransient,
			Code:     "timeout",
			Message:  "request timed out",
			Provider: provider,
			Err:      err,
		}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(provider, apiErr.StatusCode, err)
	}

	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return classifyStatus(provider, httpErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		code := "connection_error"
		if netErr.Timeout() {
			code = "timeout"
		}
		return &Error{
			Category: CategoryTransient,
			Code:     code,
			Message:  err.Error(),
			Provider: provider,
			Err:      err,
		}
	}

	return &Error{
		Category: CategoryTransient,
		Code:     "unknown",
		Message:  err.Error(),
		Provider: provider,
		Err:      err,
	}
}

func classifyStatus(provider string, status int, err error) *Error {
	msg := err.Error()

	switch {
	case status == 401:
		return &Error{Category: CategoryPermanent, Code: "authentication_error", Message: msg, Provider: provider, StatusCode: status, Err: err}
	case status == 403:
		code := "permission_error"
		if strings.Contains(msg, "credit") {
			code = "credit_balance_too_low"
		}
		return &Error{Category: CategoryPermanent, Code: code, Message: msg, Provider: provider, StatusCode: status, Err: err}
	case status == 400:
		return &Error{Category: CategoryPermanent, Code: "invalid_request", Message: msg, Provider: provider, StatusCode: status, Err: err}
	case status == 429:
		return &Error{Category: CategoryTransient, Code: "rate_limit", Message: msg, Provider: provider, StatusCode: status, Err: err}
	case status >= 500:
		return &Error{Category: CategoryTransient, Code: "server_error", Message: msg, Provider: provider, StatusCode: status, Err: err}
	default:
		return &Error{Category: CategoryTransient, Code: "unknown", Message: msg, Provider: provider, StatusCode: status, Err: err}
	}
}

// httpStatusError carries the status of a failed raw HTTP provider call.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}
