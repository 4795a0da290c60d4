package backend

import (
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/core"
	"github.com/stretchr/testify/require"
)

func TestTaskUpdate_Apply(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  core.TaskStatus
		opts    []TaskUpdateOption
		now     time.Time
		wantErr error
		check   func(t *testing.T, task *core.Task)
	}{
		{
			name:   "sets waiting approval with pending action",
			status: core.TaskStatusPending,
			opts: []TaskUpdateOption{
				SetStatus(core.TaskStatusWaitingApproval),
				SetCurrentNode(core.NodeHumanReview),
				SetPendingAction("delete all user data"),
			},
			now: created.Add(time.Second),
			check: func(t *testing.T, task *core.Task) {
				require.Equal(t, core.TaskStatusWaitingApproval, task.Status)
				require.Equal(t, core.NodeHumanReview, task.CurrentNode)
				require.Equal(t, "delete all user data", task.PendingAction)
				require.Equal(t, created.Add(time.Second), task.UpdatedAt)
			},
		},
		{
			name:   "pending action only sticks while waiting",
			status: core.TaskStatusPending,
			opts: []TaskUpdateOption{
				SetStatus(core.TaskStatusCompleted),
				SetPendingAction("something"),
			},
			now: created,
			check: func(t *testing.T, task *core.Task) {
				require.Empty(t, task.PendingAction)
			},
		},
		{
			name:   "leaving waiting approval clears pending action",
			status: core.TaskStatusWaitingApproval,
			opts:   []TaskUpdateOption{SetStatus(core.TaskStatusApproved)},
			now:    created,
			check: func(t *testing.T, task *core.Task) {
				require.Equal(t, core.TaskStatusApproved, task.Status)
				require.Empty(t, task.PendingAction)
			},
		},
		{
			name:    "conditional update on wrong status",
			status:  core.TaskStatusCompleted,
			opts:    []TaskUpdateOption{IfStatus(core.TaskStatusWaitingApproval), SetStatus(core.TaskStatusApproved)},
			now:     created,
			wantErr: ErrStatusConflict,
		},
		{
			name:    "invalid transition",
			status:  core.TaskStatusCompleted,
			opts:    []TaskUpdateOption{SetStatus(core.TaskStatusWaitingApproval)},
			now:     created,
			wantErr: ErrInvalidTransition,
		},
		{
			name:   "updated_at never moves backwards",
			status: core.TaskStatusPending,
			opts:   []TaskUpdateOption{SetErrorMessage("boom")},
			now:    created.Add(-time.Hour),
			check: func(t *testing.T, task *core.Task) {
				require.Equal(t, "boom", task.ErrorMessage)
				require.Equal(t, created, task.UpdatedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := core.NewTask("task", "thread", "input", created)
			task.Status = tt.status
			if tt.status == core.TaskStatusWaitingApproval {
				task.PendingAction = "pending"
			}

			before := *task

			err := NewTaskUpdate(tt.opts...).Apply(task, tt.now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, before, *task)
				return
			}

			require.NoError(t, err)
			tt.check(t, task)
		})
	}
}

func TestApplyListOptions(t *testing.T) {
	o := ApplyListOptions(WithStatus(core.TaskStatusPending), WithStatus(core.TaskStatusFailed), WithLimit(5), OldestFirst())

	require.Equal(t, []core.TaskStatus{core.TaskStatusPending, core.TaskStatusFailed}, o.Statuses)
	require.Equal(t, 5, o.Limit)
	require.True(t, o.OldestFirst)
}
