package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, DefaultMaxRetries, policy.MaxAttempts)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3}

	tests := []struct {
		retryCount int
		expected   bool
	}{
		{0, true},
		{1, true},
		{2, true},
		{3, false},
		{5, false},
	}

	for _, tt := range tests {
		task := &Task{RetryCount: tt.retryCount, MaxRetries: 3}
		assert.Equal(t, tt.expected, policy.ShouldRetry(task), "retryCount: %d", tt.retryCount)
	}
}

func TestRetryPolicy_AttemptsLeft(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3}

	assert.Equal(t, 3, policy.AttemptsLeft(&Task{RetryCount: 0}))
	assert.Equal(t, 1, policy.AttemptsLeft(&Task{RetryCount: 2}))
	assert.Equal(t, 0, policy.AttemptsLeft(&Task{RetryCount: 3}))
	assert.Equal(t, 0, policy.AttemptsLeft(&Task{RetryCount: 10}))
}
