package backend

import (
	"fmt"
	"slices"
	"time"

	"github.com/cschleiden/go-approvals/core"
)

// TaskUpdate is a partial update of a task. Backends read the current row, call Apply, and write the
// result back within a single atomic operation.
type TaskUpdate struct {
	status        *core.TaskStatus
	currentNode   *core.Node
	pendingAction *string
	errorMessage  *string
	ifStatus      []core.TaskStatus
}

type TaskUpdateOption func(*TaskUpdate)

func SetStatus(status core.TaskStatus) TaskUpdateOption {
	return func(u *TaskUpdate) {
		u.status = &status
	}
}

func SetCurrentNode(node core.Node) TaskUpdateOption {
	return func(u *TaskUpdate) {
		u.currentNode = &node
	}
}

// SetPendingAction sets the description of the action awaiting approval. It only sticks while the
// task is waiting for approval.
func SetPendingAction(action string) TaskUpdateOption {
	return func(u *TaskUpdate) {
		u.pendingAction = &action
	}
}

func SetErrorMessage(msg string) TaskUpdateOption {
	return func(u *TaskUpdate) {
		u.errorMessage = &msg
	}
}

// IfStatus makes the update conditional: it is only applied if the task currently has one of the
// given statuses, otherwise ErrStatusConflict is returned and nothing changes.
func IfStatus(statuses ...core.TaskStatus) TaskUpdateOption {
	return func(u *TaskUpdate) {
		u.ifStatus = append(u.ifStatus, statuses...)
	}
}

func NewTaskUpdate(opts ...TaskUpdateOption) *TaskUpdate {
	u := &TaskUpdate{}
	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Apply mutates the given task. It checks the precondition and the status transition, clears the
// pending action outside of waiting_approval, and stamps updated_at without ever moving it backwards.
func (u *TaskUpdate) Apply(t *core.Task, now time.Time) error {
	if len(u.ifStatus) > 0 && !slices.Contains(u.ifStatus, t.Status) {
		return fmt.Errorf("%w: task %v is %v", ErrStatusConflict, t.TaskID, t.Status)
	}

	if u.status != nil {
		if !core.CanTransition(t.Status, *u.status) {
			return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, t.Status, *u.status)
		}

		t.Status = *u.status
	}

	if u.currentNode != nil {
		t.CurrentNode = *u.currentNode
	}

	if u.pendingAction != nil {
		t.PendingAction = *u.pendingAction
	}

	if t.Status != core.TaskStatusWaitingApproval {
		t.PendingAction = ""
	}

	if u.errorMessage != nil {
		t.ErrorMessage = *u.errorMessage
	}

	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}

	return nil
}

type ListOptions struct {
	// Statuses restricts the result to the given statuses. Empty means all statuses.
	Statuses []core.TaskStatus

	// Limit caps the number of returned tasks. Zero means no limit.
	Limit int

	OldestFirst bool
}

type ListOption func(*ListOptions)

func WithStatus(statuses ...core.TaskStatus) ListOption {
	return func(o *ListOptions) {
		o.Statuses = append(o.Statuses, statuses...)
	}
}

func WithLimit(limit int) ListOption {
	return func(o *ListOptions) {
		o.Limit = limit
	}
}

func OldestFirst() ListOption {
	return func(o *ListOptions) {
		o.OldestFirst = true
	}
}

func ApplyListOptions(opts ...ListOption) ListOptions {
	var o ListOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
