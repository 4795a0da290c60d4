package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/cschleiden/go-approvals/workflow"
)

const (
	// Approver recorded for auto-rejected tasks
	Approver = "system_timeout"

	Comment = "approval timed out, auto-rejected"
)

// Resumer injects a decision into a suspended run.
type Resumer interface {
	ResumeWithDecision(ctx context.Context, taskID, threadID string, d workflow.Decision) (*workflow.Result, error)
}

// Sweeper periodically auto-rejects tasks that waited for approval longer than the timeout.
//
// A task is claimed for the timeout before its run is resumed. If resuming fails after that, the task
// stays in status timeout with the failure recorded as error message and is not retried, so every
// task is auto-rejected at most once.
type Sweeper struct {
	tasks   backend.TaskStore
	resumer Resumer
	options Options

	wg sync.WaitGroup
}

func New(tasks backend.TaskStore, resumer Resumer, opts ...Option) *Sweeper {
	return &Sweeper{
		tasks:   tasks,
		resumer: resumer,
		options: applyOptions(opts...),
	}
}

// Start sweeps every interval until the context is canceled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := s.options.Clock.Ticker(s.options.Interval)

	s.wg.Add(1)

	go s.loop(ctx, ticker)

	return nil
}

// WaitForCompletion blocks until the loop started by Start has stopped.
func (s *Sweeper) WaitForCompletion() error {
	s.wg.Wait()

	return nil
}

func (s *Sweeper) loop(ctx context.Context, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		if _, err := s.Sweep(ctx); err != nil {
			s.options.Logger.ErrorContext(ctx, "sweep finished with errors", "error", err)
		}
	}
}

// Sweep runs a single cycle and returns the number of tasks it auto-rejected. Errors for individual
// tasks do not stop the cycle, they are joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.options.Metrics.Counter(metrickeys.SweepCycle, metrics.Tags{}, 1)

	pending, err := backend.ListPendingApprovals(ctx, s.tasks)
	if err != nil {
		s.options.Metrics.Counter(metrickeys.SweepErrors, metrics.Tags{}, 1)
		return 0, fmt.Errorf("listing pending approvals: %w", err)
	}

	s.options.Metrics.Gauge(metrickeys.SweepPendingTasks, metrics.Tags{}, int64(len(pending)))

	now := s.options.Clock.Now()

	var (
		swept int
		errs  []error
	)

	for _, t := range pending {
		deadline := t.CreatedAt.Add(s.options.Timeout)
		if !now.After(deadline) {
			// Oldest first, every following task is younger
			break
		}

		ok, err := s.expire(ctx, t, deadline)
		if err != nil {
			s.options.Metrics.Counter(metrickeys.SweepErrors, metrics.Tags{}, 1)
			errs = append(errs, fmt.Errorf("task %v: %w", t.TaskID, err))
		}

		if ok {
			swept++
		}
	}

	return swept, errors.Join(errs...)
}

// expire auto-rejects a single task. It returns true if the task ended in status timeout.
func (s *Sweeper) expire(ctx context.Context, t *core.Task, deadline time.Time) (bool, error) {
	logger := s.options.Logger.With(
		log.TaskIDKey, t.TaskID,
		log.DeadlineKey, deadline,
	)

	_, err := s.resumer.ResumeWithDecision(ctx, t.TaskID, t.ThreadID, workflow.Decision{
		Status:   core.ApprovalTimeout,
		Comment:  Comment,
		Approver: Approver,
	})
	if err == nil {
		s.options.Metrics.Counter(metrickeys.SweepAutoRejected, metrics.Tags{}, 1)
		logger.InfoContext(ctx, "auto-rejected task after approval timeout")

		return true, nil
	}

	if errors.Is(err, workflow.ErrNotAwaitingApproval) {
		// Decided between listing and resuming
		logger.DebugContext(ctx, "task decided before timeout was applied")
		return false, nil
	}

	logger.ErrorContext(ctx, "could not resume timed out task", "error", err)

	// Make sure the task does not stay waiting_approval. A task already decided by a human is left alone.
	if _, uerr := s.tasks.UpdateTask(ctx, t.TaskID,
		backend.IfStatus(core.TaskStatusWaitingApproval, core.TaskStatusTimeout),
		backend.SetStatus(core.TaskStatusTimeout),
		backend.SetErrorMessage(fmt.Sprintf("auto-reject failed: %v", err)),
	); uerr != nil {
		if errors.Is(uerr, backend.ErrStatusConflict) {
			return false, err
		}

		return false, errors.Join(err, fmt.Errorf("marking task as timed out: %w", uerr))
	}

	s.options.Metrics.Counter(metrickeys.SweepAutoRejected, metrics.Tags{}, 1)

	return true, err
}
