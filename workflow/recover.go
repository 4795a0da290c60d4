package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/tracing"
	"github.com/cschleiden/go-approvals/log"
)

// recoverable are the task statuses a run can be left in when the process stops mid-run. Tasks
// waiting for approval are suspended on purpose and are left alone.
var recoverable = []core.TaskStatus{
	core.TaskStatusPending,
	core.TaskStatusApproved,
	core.TaskStatusRejected,
	core.TaskStatusTimeout,
	core.TaskStatusCompleted,
	core.TaskStatusFailed,
}

// Recover continues runs that were interrupted by a process stop, oldest first, from their last
// checkpoint. Tasks updated within the recover grace period are left alone. It returns the number of
// runs it continued. Failing to recover one run does not stop the others.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "Recover")
	defer span.End()

	tasks, err := e.tasks.ListTasks(ctx, backend.WithStatus(recoverable...), backend.OldestFirst())
	if err != nil {
		return 0, tracing.WithSpanError(span, fmt.Errorf("listing tasks: %w", err))
	}

	var (
		recovered int
		errs      []error
	)

	cutoff := e.clock.Now().Add(-e.options.RecoverGracePeriod)

	for _, t := range tasks {
		if t.UpdatedAt.After(cutoff) {
			continue
		}

		ok, err := e.recoverTask(ctx, t)
		if err != nil {
			e.logger.ErrorContext(ctx, "could not recover task", log.TaskIDKey, t.TaskID, "error", err)
			errs = append(errs, fmt.Errorf("recovering task %v: %w", t.TaskID, err))
			continue
		}

		if ok {
			recovered++
			e.logger.InfoContext(ctx, "recovered task", log.TaskIDKey, t.TaskID, log.TaskStatusKey, string(t.Status))
		}
	}

	return recovered, tracing.WithSpanError(span, errors.Join(errs...))
}

func (e *Engine) recoverTask(ctx context.Context, t *core.Task) (bool, error) {
	unlock := e.locks.Lock(t.ThreadID)
	defer unlock()

	s, err := e.checkpoints.GetCheckpoint(ctx, t.ThreadID)
	if err != nil {
		if !errors.Is(err, backend.ErrCheckpointNotFound) || t.Status != core.TaskStatusPending {
			return false, fmt.Errorf("loading checkpoint: %w", err)
		}

		// Stopped between creating the task and writing the first checkpoint
		s = core.NewWorkflowState(t.TaskID, t.ThreadID, t.UserInput)
	}

	if s.Done() {
		return false, nil
	}

	if s.Next == core.NodeExecute && (t.Status == core.TaskStatusCompleted || t.Status == core.TaskStatusFailed) {
		// The action already ran, only the checkpoint written after it was lost
		e.logger.WarnContext(ctx, "action already executed, skipping to respond",
			log.TaskIDKey, t.TaskID,
			log.TaskStatusKey, string(t.Status),
		)

		if t.Status == core.TaskStatusFailed && s.Error == "" {
			s.Error = t.ErrorMessage
			if s.Error == "" {
				s.Error = "execution failed"
			}
		}

		s.Next = core.NodeRespond
	}

	if s.Next == core.NodeHumanReview && !s.ApprovalStatus.Decided() {
		decision := approvalStatusFor(t.Status)
		if decision == core.ApprovalNone && t.Status != core.TaskStatusPending {
			return false, nil
		}

		// Either the task was claimed by a decision that never reached the checkpoint, or the run
		// stopped before the task was moved to waiting_approval. Both continue through review.
		s.ApprovalStatus = decision
		s.Interrupted = false
	}

	if err := e.advance(ctx, s); err != nil {
		return false, err
	}

	return true, nil
}
