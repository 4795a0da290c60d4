package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// BackendTest runs the store conformance suite against a backend. setup is called once per test with
// options that must be passed on to the backend.
func BackendTest(t *testing.T, setup func(options ...backend.BackendOption) backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock)
	}{
		{
			name: "CreateTask_ReturnsPendingTask",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				taskID, threadID := uuid.NewString(), uuid.NewString()

				task, err := b.CreateTask(ctx, taskID, threadID, "query today's weather")
				require.NoError(t, err)
				require.Equal(t, taskID, task.TaskID)
				require.Equal(t, core.TaskStatusPending, task.Status)

				stored, err := b.GetTask(ctx, taskID)
				require.NoError(t, err)
				require.Equal(t, threadID, stored.ThreadID)
				require.Equal(t, "query today's weather", stored.UserInput)
				require.Equal(t, core.TaskStatusPending, stored.Status)
				require.Empty(t, stored.PendingAction)
				require.Empty(t, stored.ErrorMessage)
				require.True(t, c.Now().Equal(stored.CreatedAt), "created_at %v", stored.CreatedAt)
				require.True(t, stored.CreatedAt.Equal(stored.UpdatedAt))
			},
		},
		{
			name: "CreateTask_SameTaskIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				taskID := uuid.NewString()

				_, err := b.CreateTask(ctx, taskID, uuid.NewString(), "a")
				require.NoError(t, err)

				_, err = b.CreateTask(ctx, taskID, uuid.NewString(), "b")
				require.ErrorIs(t, err, backend.ErrTaskAlreadyExists)
			},
		},
		{
			name: "CreateTask_SameThreadIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				threadID := uuid.NewString()

				_, err := b.CreateTask(ctx, uuid.NewString(), threadID, "a")
				require.NoError(t, err)

				_, err = b.CreateTask(ctx, uuid.NewString(), threadID, "b")
				require.ErrorIs(t, err, backend.ErrTaskAlreadyExists)
			},
		},
		{
			name: "GetTask_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				_, err := b.GetTask(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "UpdateTask_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				_, err := b.UpdateTask(ctx, uuid.NewString(), backend.SetErrorMessage("x"))
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "UpdateTask_AppliesFieldsAndStampsUpdatedAt",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)

				c.Add(5 * time.Second)

				updated, err := b.UpdateTask(ctx, task.TaskID,
					backend.SetStatus(core.TaskStatusWaitingApproval),
					backend.SetCurrentNode(core.NodeHumanReview),
					backend.SetPendingAction("delete all user data"),
				)
				require.NoError(t, err)
				require.Equal(t, core.TaskStatusWaitingApproval, updated.Status)

				stored, err := b.GetTask(ctx, task.TaskID)
				require.NoError(t, err)
				require.Equal(t, core.TaskStatusWaitingApproval, stored.Status)
				require.Equal(t, core.NodeHumanReview, stored.CurrentNode)
				require.Equal(t, "delete all user data", stored.PendingAction)
				require.True(t, c.Now().Equal(stored.UpdatedAt), "updated_at %v", stored.UpdatedAt)
				require.True(t, task.CreatedAt.Equal(stored.CreatedAt))

				c.Add(time.Second)

				_, err = b.UpdateTask(ctx, task.TaskID, backend.SetStatus(core.TaskStatusApproved))
				require.NoError(t, err)

				stored, err = b.GetTask(ctx, task.TaskID)
				require.NoError(t, err)
				require.Equal(t, core.TaskStatusApproved, stored.Status)
				require.Empty(t, stored.PendingAction)
			},
		},
		{
			name: "UpdateTask_ConditionalConflictDoesNotMutate",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)

				c.Add(time.Second)

				_, err := b.UpdateTask(ctx, task.TaskID,
					backend.IfStatus(core.TaskStatusWaitingApproval),
					backend.SetStatus(core.TaskStatusApproved),
				)
				require.ErrorIs(t, err, backend.ErrStatusConflict)

				stored, err := b.GetTask(ctx, task.TaskID)
				require.NoError(t, err)
				require.Equal(t, core.TaskStatusPending, stored.Status)
				require.True(t, task.UpdatedAt.Equal(stored.UpdatedAt))
			},
		},
		{
			name: "UpdateTask_InvalidTransitionErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)

				_, err := b.UpdateTask(ctx, task.TaskID, backend.SetStatus(core.TaskStatusApproved))
				require.ErrorIs(t, err, backend.ErrInvalidTransition)
			},
		},
		{
			name: "UpdateTask_ConcurrentConditionalUpdatesHaveOneWinner",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)
				_, err := b.UpdateTask(ctx, task.TaskID,
					backend.SetStatus(core.TaskStatusWaitingApproval),
					backend.SetPendingAction("pay invoice"),
				)
				require.NoError(t, err)

				const n = 8

				var wg sync.WaitGroup
				errs := make([]error, n)
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()

						_, errs[i] = b.UpdateTask(ctx, task.TaskID,
							backend.IfStatus(core.TaskStatusWaitingApproval),
							backend.SetStatus(core.TaskStatusApproved),
						)
					}(i)
				}
				wg.Wait()

				winners := 0
				for _, err := range errs {
					if err == nil {
						winners++
						continue
					}

					require.ErrorIs(t, err, backend.ErrStatusConflict)
				}

				require.Equal(t, 1, winners)
			},
		},
		{
			name: "ListTasks_OrderAndFilter",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				first := createTask(t, ctx, b)
				c.Add(time.Second)
				second := createTask(t, ctx, b)
				c.Add(time.Second)
				third := createTask(t, ctx, b)

				_, err := b.UpdateTask(ctx, second.TaskID, backend.SetStatus(core.TaskStatusCompleted))
				require.NoError(t, err)

				all, err := b.ListTasks(ctx)
				require.NoError(t, err)
				require.Equal(t, []string{third.TaskID, second.TaskID, first.TaskID}, taskIDs(all))

				oldest, err := b.ListTasks(ctx, backend.OldestFirst())
				require.NoError(t, err)
				require.Equal(t, []string{first.TaskID, second.TaskID, third.TaskID}, taskIDs(oldest))

				pending, err := b.ListTasks(ctx, backend.WithStatus(core.TaskStatusPending))
				require.NoError(t, err)
				require.Equal(t, []string{third.TaskID, first.TaskID}, taskIDs(pending))

				multiple, err := b.ListTasks(ctx, backend.WithStatus(core.TaskStatusPending, core.TaskStatusCompleted), backend.WithLimit(2))
				require.NoError(t, err)
				require.Equal(t, []string{third.TaskID, second.TaskID}, taskIDs(multiple))

				none, err := b.ListTasks(ctx, backend.WithStatus(core.TaskStatusTimeout))
				require.NoError(t, err)
				require.Empty(t, none)
			},
		},
		{
			name: "ListPendingApprovals_OldestFirst",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				var ids []string
				for i := 0; i < 3; i++ {
					task := createTask(t, ctx, b)
					c.Add(time.Second)

					_, err := b.UpdateTask(ctx, task.TaskID,
						backend.SetStatus(core.TaskStatusWaitingApproval),
						backend.SetPendingAction("send email"),
					)
					require.NoError(t, err)

					ids = append(ids, task.TaskID)
				}

				// Not waiting
				createTask(t, ctx, b)

				// Updating the oldest task does not change its position
				_, err := b.UpdateTask(ctx, ids[0], backend.SetCurrentNode(core.NodeHumanReview))
				require.NoError(t, err)

				pending, err := backend.ListPendingApprovals(ctx, b)
				require.NoError(t, err)
				require.Equal(t, ids, taskIDs(pending))
			},
		},
		{
			name: "Checkpoint_RoundTrip",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)

				state := core.NewWorkflowState(task.TaskID, task.ThreadID, task.UserInput)
				state.Analysis = "deletes user data"
				state.RiskLevel = core.RiskCritical
				state.RequiresApproval = true
				state.ActionPlan = &core.ActionPlan{
					ActionType:  "delete_data",
					Description: "delete all user data",
					RiskLevel:   core.RiskCritical,
					Parameters:  core.Parameters{{Key: "scope", Value: "all"}, {Key: "count", Value: float64(42)}},
					Reason:      "irreversible",
				}
				state.Next = core.NodeHumanReview
				state.Interrupted = true

				require.NoError(t, b.SaveCheckpoint(ctx, state))

				loaded, err := b.GetCheckpoint(ctx, task.ThreadID)
				require.NoError(t, err)
				if diff := cmp.Diff(state, loaded); diff != "" {
					t.Fatalf("checkpoint mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "Checkpoint_SaveReplacesPrevious",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				task := createTask(t, ctx, b)

				state := core.NewWorkflowState(task.TaskID, task.ThreadID, task.UserInput)
				require.NoError(t, b.SaveCheckpoint(ctx, state))

				state.ApprovalStatus = core.ApprovalApproved
				state.Approver = "admin"
				state.Next = core.NodeExecute
				require.NoError(t, b.SaveCheckpoint(ctx, state))

				loaded, err := b.GetCheckpoint(ctx, task.ThreadID)
				require.NoError(t, err)
				require.Equal(t, core.ApprovalApproved, loaded.ApprovalStatus)
				require.Equal(t, "admin", loaded.Approver)
				require.Equal(t, core.NodeExecute, loaded.Next)
			},
		},
		{
			name: "Checkpoint_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				_, err := b.GetCheckpoint(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrCheckpointNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewMock()
			c.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

			b := setup(backend.WithClock(c))
			ctx := context.Background()

			tt.f(t, ctx, b, c)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func createTask(t *testing.T, ctx context.Context, b backend.Backend) *core.Task {
	t.Helper()

	task, err := b.CreateTask(ctx, uuid.NewString(), uuid.NewString(), "input "+uuid.NewString())
	require.NoError(t, err)

	return task
}

func taskIDs(tasks []*core.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.TaskID)
	}

	return ids
}
