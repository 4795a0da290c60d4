// Package api holds the request and response bodies of the HTTP interface. They are shared by the
// server and the Go client.
package api

import (
	"time"

	"github.com/cschleiden/go-approvals/core"
)

type CreateTaskRequest struct {
	Message string `json:"message" binding:"required"`
}

type CreateTaskResponse struct {
	TaskID            string          `json:"task_id"`
	ThreadID          string          `json:"thread_id"`
	Status            core.TaskStatus `json:"status"`
	RequiresApproval  bool            `json:"requires_approval"`
	RiskLevel         core.RiskLevel  `json:"risk_level"`
	ActionDescription string          `json:"action_description"`
	Message           string          `json:"message"`
}

type TaskList struct {
	Tasks []*core.Task `json:"tasks"`
	Total int          `json:"total"`
}

type TaskDetail struct {
	Task *core.Task `json:"task"`

	// State is the checkpointed workflow state, nil if the task has none yet.
	State *core.WorkflowState `json:"state"`
}

type ApprovalRequest struct {
	Approved *bool  `json:"approved"`
	Comment  string `json:"comment,omitempty"`
	Approver string `json:"approver,omitempty"`
}

type ApprovalResponse struct {
	TaskID  string          `json:"task_id"`
	Status  core.TaskStatus `json:"status"`
	Result  string          `json:"result"`
	Message string          `json:"message"`
}

type Health struct {
	Status                 string    `json:"status"`
	Timestamp              time.Time `json:"timestamp"`
	ApprovalTimeoutSeconds int       `json:"approval_timeout_seconds"`
}

type Index struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Detail string `json:"detail"`
}
