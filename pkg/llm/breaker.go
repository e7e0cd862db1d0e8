package llm

import (
	"fmt"
	"sync"
)

// FailureRecord is one failed item logged against a batch breaker.
type FailureRecord struct {
	ItemID   string
	Code     string
	Category Category
	Message  string
}

// BatchBreaker stops a batch early when provider failures indicate the rest
// of the batch would fail the same way. A permanent error trips immediately;
// three consecutive identical transient codes trip. Once tripped, the breaker
// stays tripped for the life of the batch.
type BatchBreaker struct {
	mu                  sync.Mutex
	tripped             bool
	tripReason          string
	consecutiveCode     string
	consecutiveFailures int
	successes           int
	failures            []FailureRecord
}

// NewBatchBreaker creates a breaker scoped to one batch.
func NewBatchBreaker() *BatchBreaker {
	return &BatchBreaker{}
}

// Tripped reports whether the batch should stop.
func (b *BatchBreaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// TripReason returns the reason set when the breaker tripped, or "".
func (b *BatchBreaker) TripReason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripReason
}

// RecordSuccess notes a successful item. It resets the consecutive-failure
// counter but never clears a tripped breaker.
func (b *BatchBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes++
	b.consecutiveCode = ""
	b.consecutiveFailures = 0
}

// RecordError logs a failed item and returns true when this error tripped
// the breaker (not merely when the breaker was already tripped).
func (b *BatchBreaker) RecordError(itemID string, err *Error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = append(b.failures, FailureRecord{
		ItemID:   itemID,
		Code:     err.Code,
		Category: err.Category,
		Message:  err.Message,
	})

	if b.tripped {
		return false
	}

	if err.Category == CategoryPermanent {
		b.tripped = true
		b.tripReason = fmt.Sprintf("Permanent error: %s", err.Code)
		return true
	}

	if err.Code == b.consecutiveCode {
		b.consecutiveFailures++
	} else {
		b.consecutiveCode = err.Code
		b.consecutiveFailures = 1
	}

	if b.consecutiveFailures >= 3 {
		b.tripped = true
		b.tripReason = fmt.Sprintf("3 consecutive %s errors", err.Code)
		return true
	}
	return false
}

// Summary describes the batch outcome for job results and logs.
type Summary struct {
	Tripped    bool
	TripReason string
	Successes  int
	Failures   []FailureRecord
}

// Summary returns a snapshot of the breaker state.
func (b *BatchBreaker) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	failures := make([]FailureRecord, len(b.failures))
	copy(failures, b.failures)
	return Summary{
		Tripped:    b.tripped,
		TripReason: b.tripReason,
		Successes:  b.successes,
		Failures:   failures,
	}
}
