package backend

import (
	"context"
	"errors"

	"github.com/cschleiden/go-approvals/core"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskAlreadyExists  = errors.New("task already exists")
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrStatusConflict is returned when a conditional update finds the task in an unexpected status.
	ErrStatusConflict = errors.New("task status conflict")

	// ErrInvalidTransition is returned when an update would move a task along an edge the workflow
	// does not have.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

const TracerName = "go-approvals"

// TaskStore is the system of record for business-level task state.
type TaskStore interface {
	// CreateTask creates a new task in status pending.
	CreateTask(ctx context.Context, taskID, threadID, userInput string) (*core.Task, error)

	// GetTask returns the task with the given id, or ErrTaskNotFound.
	GetTask(ctx context.Context, taskID string) (*core.Task, error)

	// UpdateTask atomically applies the given update to a single task and stamps updated_at. It returns
	// the updated task.
	UpdateTask(ctx context.Context, taskID string, opts ...TaskUpdateOption) (*core.Task, error)

	// ListTasks returns tasks ordered by creation time, newest first unless OldestFirst is given.
	ListTasks(ctx context.Context, opts ...ListOption) ([]*core.Task, error)
}

// CheckpointStore keeps the latest workflow state snapshot per thread.
type CheckpointStore interface {
	// SaveCheckpoint stores the state, replacing any previous checkpoint for its thread.
	SaveCheckpoint(ctx context.Context, state *core.WorkflowState) error

	// GetCheckpoint returns the latest checkpoint for the thread, or ErrCheckpointNotFound.
	GetCheckpoint(ctx context.Context, threadID string) (*core.WorkflowState, error)
}

// Backend provides both stores on top of a single persistence layer.
type Backend interface {
	TaskStore
	CheckpointStore

	// Options returns the configured backend options
	Options() Options

	// Close releases resources held by the backend
	Close() error
}

// ListPendingApprovals returns all tasks waiting for approval, oldest first.
func ListPendingApprovals(ctx context.Context, s TaskStore) ([]*core.Task, error) {
	return s.ListTasks(ctx, WithStatus(core.TaskStatusWaitingApproval), OldestFirst())
}
