package task

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a task, as tracked by the store.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsFinal reports whether the status is terminal.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Error definitions shared across the coordinator.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrTaskNotFound      = errors.New("task not found")
)

// ValidTransitions enumerates the state machine from the data model:
// PENDING -> IN_PROGRESS -> COMPLETED, with a worker-lost path back to
// PENDING and a retries-exhausted path to FAILED.
var ValidTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusPending, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo checks whether a transition from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, v := range ValidTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// StateMachine mutates a Task's lifecycle fields in lockstep with its
// Status, so callers never set Status without also maintaining
// CompletedAt/AssignedWorker invariants.
type StateMachine struct {
	task *Task
}

// NewStateMachine wraps a task for state transitions.
func NewStateMachine(t *Task) *StateMachine {
	return &StateMachine{task: t}
}

// Transition moves the task to target, maintaining CompletedAt.
func (sm *StateMachine) Transition(target Status) error {
	if !sm.task.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	sm.task.Status = target
	sm.task.UpdatedAt = now

	if target == StatusCompleted {
		sm.task.CompletedAt = &now
	} else {
		sm.task.CompletedAt = nil
	}

	return nil
}

// Assign transitions a PENDING task to IN_PROGRESS and records the
// worker holding it. This is the only path that sets AssignedWorker.
func (sm *StateMachine) Assign(workerID string) error {
	if err := sm.Transition(StatusInProgress); err != nil {
		return err
	}
	sm.task.AssignedWorker = workerID
	return nil
}

// Complete transitions an IN_PROGRESS task to COMPLETED.
func (sm *StateMachine) Complete() error {
	return sm.Transition(StatusCompleted)
}

// Fail moves the task to the terminal FAILED state after its retry
// budget is exhausted.
func (sm *StateMachine) Fail() error {
	if err := sm.Transition(StatusFailed); err != nil {
		return err
	}
	sm.task.AssignedWorker = ""
	return nil
}

// Requeue resets a task to PENDING after a worker loss or a failed
// send, clearing the assignment and bumping the retry counter.
func (sm *StateMachine) Requeue() error {
	sm.task.RetryCount++
	sm.task.AssignedWorker = ""
	return sm.Transition(StatusPending)
}
