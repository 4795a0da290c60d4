package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/classifier"
	"github.com/cschleiden/go-approvals/core"
	mi "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/internal/tracing"
	"github.com/cschleiden/go-approvals/llm"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotAwaitingApproval is returned when a decision is made for a task that is not in status
	// waiting_approval, including when another decision won the race for it.
	ErrNotAwaitingApproval = errors.New("task is not awaiting approval")

	// ErrNotSuspended is returned when the checkpoint of a task is not suspended at the review stage.
	ErrNotSuspended = errors.New("workflow is not suspended at review")

	ErrThreadMismatch = errors.New("thread does not belong to task")

	ErrInvalidDecision = errors.New("invalid approval decision")
)

// DefaultApprover is recorded when a decision does not name an approver.
const DefaultApprover = "system"

// Classifier turns a request into an action plan and a risk level.
type Classifier interface {
	Classify(ctx context.Context, userInput string) (*classifier.Result, error)
}

// Decision is an external approval decision injected into a suspended run.
type Decision struct {
	Status   core.ApprovalStatus
	Comment  string
	Approver string
}

// Result describes where a run or a resume left the task.
type Result struct {
	TaskID   string
	ThreadID string
	Status   core.TaskStatus

	// Result is the final answer. Empty while the task waits for approval.
	Result string

	RequiresApproval  bool
	RiskLevel         core.RiskLevel
	ActionDescription string

	State *core.WorkflowState
}

// Message returns a human readable summary of the result.
func (r *Result) Message() string {
	switch r.Status {
	case core.TaskStatusWaitingApproval:
		return fmt.Sprintf("approval required. risk level: %v, action: %v", r.RiskLevel, r.ActionDescription)
	case core.TaskStatusCompleted:
		return r.Result
	}

	return fmt.Sprintf("task status: %v", r.Status)
}

// Engine drives the approval workflow. Runs on the same thread are serialized within the process,
// decisions are serialized across processes through a conditional status transition in the task store.
type Engine struct {
	tasks       backend.TaskStore
	checkpoints backend.CheckpointStore
	classifier  Classifier
	model       llm.Model

	options Options
	logger  *slog.Logger
	metrics metrics.Client
	tracer  trace.Tracer
	clock   clock.Clock

	locks *threadLocks
}

func New(tasks backend.TaskStore, checkpoints backend.CheckpointStore, c Classifier, model llm.Model, opts ...Option) *Engine {
	options := applyOptions(opts...)

	return &Engine{
		tasks:       tasks,
		checkpoints: checkpoints,
		classifier:  c,
		model:       model,

		options: options,
		logger:  options.Logger,
		metrics: options.Metrics,
		tracer:  options.TracerProvider.Tracer(backend.TracerName),
		clock:   options.Clock,

		locks: newThreadLocks(),
	}
}

// Run creates a new task for the given input and executes the workflow until it either suspends for
// approval or reaches the end.
func (e *Engine) Run(ctx context.Context, userInput string) (*Result, error) {
	taskID := uuid.NewString()
	threadID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "Run", trace.WithAttributes(
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.ThreadIDKey, threadID),
	))
	defer span.End()

	timer := mi.NewTimer(e.metrics, e.clock, metrickeys.RunDuration, metrics.Tags{})
	defer timer.Stop()

	unlock := e.locks.Lock(threadID)
	defer unlock()

	if _, err := e.tasks.CreateTask(ctx, taskID, threadID, userInput); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating task: %w", err))
	}

	e.logger.DebugContext(ctx, "created task", log.TaskIDKey, taskID, log.ThreadIDKey, threadID)

	state := core.NewWorkflowState(taskID, threadID, userInput)
	if err := e.checkpoints.SaveCheckpoint(ctx, state); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("saving checkpoint: %w", err))
	}

	if err := e.advance(ctx, state); err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	r, err := e.result(ctx, state)
	return r, tracing.WithSpanError(span, err)
}

// Resume injects an approve or reject decision into a suspended run and executes it to the end.
func (e *Engine) Resume(ctx context.Context, taskID, threadID string, approved bool, comment, approver string) (*Result, error) {
	d := Decision{Status: core.ApprovalRejected, Comment: comment, Approver: approver}
	if approved {
		d.Status = core.ApprovalApproved
	}

	return e.ResumeWithDecision(ctx, taskID, threadID, d)
}

// ResumeWithDecision claims the task for the decision, patches the checkpoint, and continues the
// run from the review stage. An empty threadID resolves to the task's thread. Only one decision per
// task ever succeeds, every other caller gets ErrNotAwaitingApproval and nothing is changed.
func (e *Engine) ResumeWithDecision(ctx context.Context, taskID, threadID string, d Decision) (*Result, error) {
	if !d.Status.Decided() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, d.Status)
	}

	if d.Approver == "" {
		d.Approver = DefaultApprover
	}

	ctx, span := e.tracer.Start(ctx, "Resume", trace.WithAttributes(
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.ApprovalStatusKey, string(d.Status)),
		attribute.String(log.ApproverKey, d.Approver),
	))
	defer span.End()

	timer := mi.NewTimer(e.metrics, e.clock, metrickeys.ResumeDuration, metrics.Tags{})
	defer timer.Stop()

	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting task: %w", err))
	}

	if threadID == "" {
		threadID = task.ThreadID
	} else if threadID != task.ThreadID {
		return nil, tracing.WithSpanError(span, fmt.Errorf("%w: task %v, thread %v", ErrThreadMismatch, taskID, threadID))
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	// Another resume on this thread may have finished while we were waiting for the lock
	task, err = e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting task: %w", err))
	}

	if task.Status != core.TaskStatusWaitingApproval {
		return nil, tracing.WithSpanError(span, fmt.Errorf("%w: task %v is %v", ErrNotAwaitingApproval, taskID, task.Status))
	}

	state, err := e.checkpoints.GetCheckpoint(ctx, threadID)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("loading checkpoint: %w", err))
	}

	if state.Next != core.NodeHumanReview || state.ApprovalStatus.Decided() {
		// A decision made by another process can be ahead of the task we read
		if t, err := e.tasks.GetTask(ctx, taskID); err == nil && t.Status != core.TaskStatusWaitingApproval {
			return nil, tracing.WithSpanError(span, fmt.Errorf("%w: task %v is %v", ErrNotAwaitingApproval, taskID, t.Status))
		}

		return nil, tracing.WithSpanError(span, fmt.Errorf("%w: task %v is at %v", ErrNotSuspended, taskID, state.Next))
	}

	if _, err := e.tasks.UpdateTask(ctx, taskID,
		backend.IfStatus(core.TaskStatusWaitingApproval),
		backend.SetStatus(taskStatusFor(d.Status)),
		backend.SetCurrentNode(core.NodeHumanReview),
	); err != nil {
		if errors.Is(err, backend.ErrStatusConflict) {
			return nil, tracing.WithSpanError(span, fmt.Errorf("%w: %w", ErrNotAwaitingApproval, err))
		}

		return nil, tracing.WithSpanError(span, fmt.Errorf("claiming task: %w", err))
	}

	e.metrics.Counter(metrickeys.ApprovalDecision, metrics.Tags{metrickeys.Decision: string(d.Status)}, 1)
	e.logger.InfoContext(ctx, "approval decision",
		log.TaskIDKey, taskID,
		log.ApprovalStatusKey, string(d.Status),
		log.ApproverKey, d.Approver,
	)

	state.ApprovalStatus = d.Status
	state.ApprovalComment = d.Comment
	state.Approver = d.Approver
	state.Interrupted = false

	if err := e.checkpoints.SaveCheckpoint(ctx, state); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("saving checkpoint: %w", err))
	}

	if err := e.advance(ctx, state); err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	r, err := e.result(ctx, state)
	return r, tracing.WithSpanError(span, err)
}

// State returns the latest checkpoint of the thread, or nil if there is none.
func (e *Engine) State(ctx context.Context, threadID string) (*core.WorkflowState, error) {
	s, err := e.checkpoints.GetCheckpoint(ctx, threadID)
	if err != nil {
		if errors.Is(err, backend.ErrCheckpointNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	return s, nil
}

// advance executes nodes until the run ends or suspends. A checkpoint is written after every node.
func (e *Engine) advance(ctx context.Context, s *core.WorkflowState) error {
	for !s.Done() {
		if s.Next == core.NodeHumanReview && !s.ApprovalStatus.Decided() {
			if s.Interrupted {
				return nil
			}

			return e.suspend(ctx, s)
		}

		if err := e.step(ctx, s); err != nil {
			return err
		}

		if err := e.checkpoints.SaveCheckpoint(ctx, s); err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}
	}

	return nil
}

// suspend interrupts the run before the review stage. The checkpoint is written before the task is
// moved to waiting_approval, so a task that can be decided always has a resumable checkpoint.
func (e *Engine) suspend(ctx context.Context, s *core.WorkflowState) error {
	s.ApprovalStatus = core.ApprovalPending
	s.Interrupted = true

	if err := e.checkpoints.SaveCheckpoint(ctx, s); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}

	if _, err := e.tasks.UpdateTask(ctx, s.TaskID,
		backend.SetStatus(core.TaskStatusWaitingApproval),
		backend.SetCurrentNode(core.NodeHumanReview),
		backend.SetPendingAction(pendingAction(s)),
	); err != nil {
		return fmt.Errorf("suspending task: %w", err)
	}

	e.metrics.Counter(metrickeys.TaskWaiting, metrics.Tags{metrickeys.Risk: string(s.RiskLevel)}, 1)
	e.logger.InfoContext(ctx, "waiting for approval",
		log.TaskIDKey, s.TaskID,
		log.RiskLevelKey, string(s.RiskLevel),
	)

	return nil
}

func (e *Engine) result(ctx context.Context, s *core.WorkflowState) (*Result, error) {
	t, err := e.tasks.GetTask(ctx, s.TaskID)
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}

	r := &Result{
		TaskID:           s.TaskID,
		ThreadID:         s.ThreadID,
		Status:           t.Status,
		Result:           s.FinalAnswer,
		RequiresApproval: s.RequiresApproval,
		RiskLevel:        s.RiskLevel,
		State:            s,
	}

	if s.ActionPlan != nil {
		r.ActionDescription = s.ActionPlan.Description
	}

	return r, nil
}

func pendingAction(s *core.WorkflowState) string {
	if s.ActionPlan != nil && s.ActionPlan.Description != "" {
		return s.ActionPlan.Description
	}

	if in := s.UserInput(); in != "" {
		return in
	}

	return "action awaiting approval"
}

func taskStatusFor(d core.ApprovalStatus) core.TaskStatus {
	switch d {
	case core.ApprovalApproved:
		return core.TaskStatusApproved
	case core.ApprovalTimeout:
		return core.TaskStatusTimeout
	}

	return core.TaskStatusRejected
}

func approvalStatusFor(s core.TaskStatus) core.ApprovalStatus {
	switch s {
	case core.TaskStatusApproved:
		return core.ApprovalApproved
	case core.TaskStatusRejected:
		return core.ApprovalRejected
	case core.TaskStatusTimeout:
		return core.ApprovalTimeout
	}

	return core.ApprovalNone
}
