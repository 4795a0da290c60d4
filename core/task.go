package core

import "time"

type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusWaitingApproval TaskStatus = "waiting_approval"
	TaskStatusApproved        TaskStatus = "approved"
	TaskStatusRejected        TaskStatus = "rejected"
	TaskStatusCompleted       TaskStatus = "completed"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusTimeout         TaskStatus = "timeout"
)

// TaskStatuses lists every known status.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusWaitingApproval,
	TaskStatusApproved,
	TaskStatusRejected,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusTimeout,
}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}

	return false
}

// Terminal returns true if no further workflow progress changes the status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusRejected, TaskStatusCompleted, TaskStatusFailed, TaskStatusTimeout:
		return true
	}

	return false
}

var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:         {TaskStatusWaitingApproval, TaskStatusCompleted, TaskStatusFailed},
	TaskStatusWaitingApproval: {TaskStatusApproved, TaskStatusRejected, TaskStatusTimeout},
	TaskStatusApproved:        {TaskStatusCompleted, TaskStatusFailed},
}

// CanTransition reports whether a task may move from one status to another. Staying in the same
// status is always allowed.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}

	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Task is the business-level record of a single submitted request.
type Task struct {
	TaskID   string `json:"task_id"`
	ThreadID string `json:"thread_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status TaskStatus `json:"status"`

	// CurrentNode is the workflow node last entered.
	CurrentNode Node `json:"current_node"`

	// PendingAction describes the action awaiting approval. Only set while the task is waiting for approval.
	PendingAction string `json:"pending_action"`

	UserInput string `json:"user_input"`

	ErrorMessage string `json:"error_message"`
}

func NewTask(taskID, threadID, userInput string, now time.Time) *Task {
	return &Task{
		TaskID:    taskID,
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TaskStatusPending,
		UserInput: userInput,
	}
}
