package jobs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "short message", msg: "short error", want: "short error"},
		{name: "exactly 500 characters", msg: strings.Repeat("a", 500), want: strings.Repeat("a", 500)},
		{name: "501 characters truncated to 500", msg: strings.Repeat("a", 501), want: strings.Repeat("a", 500)},
		{name: "empty string", msg: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateError(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 500)
		})
	}
}

func TestDefaultStoreConfig(t *testing.T) {
	config := DefaultStoreConfig()

	assert.Equal(t, 3, config.DefaultMaxRetries)
	assert.Equal(t, 60, config.BaseRetryDelaySec)
	assert.Equal(t, 3600, config.MaxRetryDelaySec)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestWorkerDefaults(t *testing.T) {
	w := NewWorker(nil, WorkerConfig{}, nil, testLogger())

	assert.NotEmpty(t, w.ID())
	assert.True(t, strings.HasPrefix(w.ID(), "worker-"))
	assert.Equal(t, []string{QueueDefault}, w.config.Queues)
	assert.NotZero(t, w.config.PollInterval)
	assert.NotZero(t, w.config.DefaultTimeouts.Hard)
}
