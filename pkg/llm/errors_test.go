package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantCategory Category
		wantCode     string
	}{
		{"unauthorized", 401, "invalid x-api-key", CategoryPermanent, "authentication_error"},
		{"forbidden", 403, "permission denied", CategoryPermanent, "permission_error"},
		{"credit exhausted", 403, "credit balance is too low", CategoryPermanent, "credit_balance_too_low"},
		{"bad request", 400, "max_tokens must be positive", CategoryPermanent, "invalid_request"},
		{"rate limited", 429, "rate limit exceeded", CategoryTransient, "rate_limit"},
		{"server error", 500, "internal server error", CategoryTransient, "server_error"},
		{"overloaded", 529, "overloaded", CategoryTransient, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("anthropic", &httpStatusError{StatusCode: tt.status, Body: tt.body})
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestClassifyDeadline(t *testing.T) {
	err := Classify("ollama", context.DeadlineExceeded)
	assert.Equal(t, CategoryTransient, err.Category)
	assert.Equal(t, "timeout", err.Code)
	assert.True(t, err.Retryable())
}

func TestClassifyPassthrough(t *testing.T) {
	orig := NewPartial("ollama", "invalid_response", "bad json", nil)
	got := Classify("ollama", orig)
	assert.Same(t, orig, got)

	wrapped := Classify("ollama", errors.Join(errors.New("outer"), orig))
	assert.Same(t, orig, wrapped)
}

func TestClassifyUnknownFailsOpen(t *testing.T) {
	err := Classify("anthropic", errors.New("something odd"))
	require.NotNil(t, err)
	assert.Equal(t, CategoryTransient, err.Category)
	assert.Equal(t, "unknown", err.Code)
	assert.True(t, err.Retryable())
}

func TestRetryable(t *testing.T) {
	assert.False(t, (&Error{Category: CategoryPermanent}).Retryable())
	assert.True(t, (&Error{Category: CategoryTransient}).Retryable())
	assert.True(t, (&Error{Category: CategoryPartial}).Retryable())
}

func TestResponseTruncated(t *testing.T) {
	assert.True(t, (&Response{StopReason: "max_tokens"}).Truncated())
	assert.True(t, (&Response{StopReason: "length"}).Truncated())
	assert.False(t, (&Response{StopReason: "end_turn"}).Truncated())
}
