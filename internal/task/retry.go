package task

// RetryPolicy describes how many dispatch attempts a task gets before
// it should be escalated to FAILED. internal/dispatcher does not use
// it: it compares RetryCount against its own configured max_retries
// limit. The original never consults
// retry_count/max_retries at all; this repo wires that budget to real
// behavior without inventing a delay schedule the data model has no
// fields for.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy matches the default max_retries given to every
// new task.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: DefaultMaxRetries}
}

// ShouldRetry reports whether t still has dispatch attempts left
// under p. A task that has exhausted its budget should be failed
// instead of requeued.
func (p *RetryPolicy) ShouldRetry(t *Task) bool {
	return t.RetryCount < p.MaxAttempts
}

// AttemptsLeft returns the number of remaining dispatch attempts.
func (p *RetryPolicy) AttemptsLeft(t *Task) int {
	left := p.MaxAttempts - t.RetryCount
	if left < 0 {
		return 0
	}
	return left
}
