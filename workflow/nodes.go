package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/internal/nodeerrors"
	"github.com/cschleiden/go-approvals/internal/tracing"
	"github.com/cschleiden/go-approvals/llm"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// step executes the node the state points to and moves it to the next one. A panicking node fails the
// task and routes the run to respond.
func (e *Engine) step(ctx context.Context, s *core.WorkflowState) error {
	node := s.Next

	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("Node: %s", node), trace.WithAttributes(
		attribute.String(log.TaskIDKey, s.TaskID),
		attribute.String(log.NodeKey, string(node)),
	))
	defer span.End()

	next, err := e.runNode(ctx, node, s)
	if err != nil {
		var pe *nodeerrors.PanicError
		if !errors.As(err, &pe) {
			return tracing.WithSpanError(span, err)
		}

		tracing.WithSpanError(span, err)
		next = e.handlePanic(ctx, s, pe)
	}

	e.metrics.Counter(metrickeys.NodeExecuted, metrics.Tags{metrickeys.Node: string(node)}, 1)

	s.Next = next
	return nil
}

func (e *Engine) runNode(ctx context.Context, node core.Node, s *core.WorkflowState) (next core.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nodeerrors.NewPanicError(string(node), r)
		}
	}()

	switch node {
	case core.NodeAnalyze:
		return e.analyze(ctx, s)
	case core.NodeHumanReview:
		return e.humanReview(ctx, s)
	case core.NodeExecute:
		return e.execute(ctx, s)
	case core.NodeHandleRejection:
		return e.handleRejection(ctx, s)
	case core.NodeRespond:
		return e.respond(ctx, s)
	}

	return "", fmt.Errorf("unknown node %q", node)
}

func (e *Engine) handlePanic(ctx context.Context, s *core.WorkflowState, pe *nodeerrors.PanicError) core.Node {
	e.metrics.Counter(metrickeys.NodePanicked, metrics.Tags{metrickeys.Node: pe.Node}, 1)
	e.logger.ErrorContext(ctx, "node panicked",
		log.TaskIDKey, s.TaskID,
		log.NodeKey, pe.Node,
		"error", pe.Error(),
		"stack", pe.Stack(),
	)

	s.Error = pe.Error()

	if _, err := e.tasks.UpdateTask(ctx, s.TaskID,
		backend.SetStatus(core.TaskStatusFailed),
		backend.SetErrorMessage(s.Error),
	); err != nil {
		e.logger.ErrorContext(ctx, "could not mark task as failed", log.TaskIDKey, s.TaskID, "error", err)
	}

	if pe.Node == string(core.NodeRespond) {
		_, _, s.FinalAnswer = responseBranch(s)
		return core.NodeEnd
	}

	return core.NodeRespond
}

func (e *Engine) setCurrentNode(ctx context.Context, s *core.WorkflowState, node core.Node, opts ...backend.TaskUpdateOption) error {
	opts = append([]backend.TaskUpdateOption{backend.SetCurrentNode(node)}, opts...)
	if _, err := e.tasks.UpdateTask(ctx, s.TaskID, opts...); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	return nil
}

func (e *Engine) analyze(ctx context.Context, s *core.WorkflowState) (core.Node, error) {
	s.Iteration++

	if err := e.setCurrentNode(ctx, s, core.NodeAnalyze); err != nil {
		return "", err
	}

	r, err := e.classifier.Classify(ctx, s.UserInput())
	if err != nil {
		e.logger.ErrorContext(ctx, "analysis failed", log.TaskIDKey, s.TaskID, "error", err)

		s.Error = fmt.Sprintf("analysis failed: %v", err)
		if err := e.setCurrentNode(ctx, s, core.NodeAnalyze,
			backend.SetStatus(core.TaskStatusFailed),
			backend.SetErrorMessage(s.Error),
		); err != nil {
			return "", err
		}

		e.metrics.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: string(core.TaskStatusFailed)}, 1)

		return core.NodeRespond, nil
	}

	s.Analysis = r.Analysis
	s.ActionPlan = r.Plan
	s.RiskLevel = r.RiskLevel
	s.ActionPlan.RiskLevel = r.RiskLevel
	s.RequiresApproval = r.RequiresApproval || r.RiskLevel.RequiresReview()
	s.Messages = append(s.Messages, core.Message{Role: core.RoleAssistant, Content: r.Analysis})

	e.logger.DebugContext(ctx, "analyzed request",
		log.TaskIDKey, s.TaskID,
		log.ActionTypeKey, s.ActionPlan.ActionType,
		log.RiskLevelKey, string(s.RiskLevel),
		log.RequiresApprovalKey, s.RequiresApproval,
	)

	if s.RequiresApproval {
		return core.NodeHumanReview, nil
	}

	return core.NodeExecute, nil
}

// humanReview only runs once a decision has been injected.
func (e *Engine) humanReview(ctx context.Context, s *core.WorkflowState) (core.Node, error) {
	if err := e.setCurrentNode(ctx, s, core.NodeHumanReview); err != nil {
		return "", err
	}

	switch s.ApprovalStatus {
	case core.ApprovalApproved:
		return core.NodeExecute, nil
	case core.ApprovalRejected, core.ApprovalTimeout:
		return core.NodeHandleRejection, nil
	}

	return core.NodeHumanReview, nil
}

func (e *Engine) execute(ctx context.Context, s *core.WorkflowState) (core.Node, error) {
	if err := e.setCurrentNode(ctx, s, core.NodeExecute); err != nil {
		return "", err
	}

	if violation := executionViolation(s); violation != "" {
		e.metrics.Counter(metrickeys.SafetyViolation, metrics.Tags{}, 1)
		e.logger.ErrorContext(ctx, "refusing to execute action",
			log.TaskIDKey, s.TaskID,
			log.ApprovalStatusKey, string(s.ApprovalStatus),
			"reason", violation,
		)

		s.Error = violation
		if err := e.setCurrentNode(ctx, s, core.NodeExecute, backend.SetErrorMessage(violation)); err != nil {
			return "", err
		}

		return core.NodeRespond, nil
	}

	result, err := e.options.Executor.Execute(ctx, s.ActionPlan)
	if err != nil {
		s.Error = fmt.Sprintf("execution failed: %v", err)
		if err := e.setCurrentNode(ctx, s, core.NodeExecute,
			backend.SetStatus(core.TaskStatusFailed),
			backend.SetErrorMessage(s.Error),
		); err != nil {
			return "", err
		}

		e.metrics.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: string(core.TaskStatusFailed)}, 1)

		return core.NodeRespond, nil
	}

	s.ExecutionResult = result
	if err := e.setCurrentNode(ctx, s, core.NodeExecute, backend.SetStatus(core.TaskStatusCompleted)); err != nil {
		return "", err
	}

	e.metrics.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: string(core.TaskStatusCompleted)}, 1)

	return core.NodeRespond, nil
}

// executionViolation re-checks that the action may run and describes why not if it may not.
func executionViolation(s *core.WorkflowState) string {
	if s.ActionPlan == nil {
		return "cannot execute: no action plan"
	}

	if s.RequiresApproval && s.ApprovalStatus != core.ApprovalApproved {
		return fmt.Sprintf("cannot execute: approval_status=%v", s.ApprovalStatus)
	}

	return ""
}

func (e *Engine) handleRejection(ctx context.Context, s *core.WorkflowState) (core.Node, error) {
	status := core.TaskStatusRejected
	if s.ApprovalStatus == core.ApprovalTimeout {
		status = core.TaskStatusTimeout
	}

	if err := e.setCurrentNode(ctx, s, core.NodeHandleRejection, backend.SetStatus(status)); err != nil {
		return "", err
	}

	e.metrics.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: string(status)}, 1)

	return core.NodeRespond, nil
}

func (e *Engine) respond(ctx context.Context, s *core.WorkflowState) (core.Node, error) {
	instruction, prompt, fallback := responseBranch(s)

	answer, err := e.model.Generate(ctx, &llm.Request{
		System:      instruction,
		Prompt:      prompt,
		Temperature: e.options.ResponseTemperature,
	})
	if err != nil || strings.TrimSpace(answer) == "" {
		e.logger.WarnContext(ctx, "could not generate answer, using static answer", log.TaskIDKey, s.TaskID, "error", err)
		answer = fallback
	}

	s.FinalAnswer = answer
	s.Messages = append(s.Messages, core.Message{Role: core.RoleAssistant, Content: answer})

	if err := e.setCurrentNode(ctx, s, core.NodeRespond); err != nil {
		return "", err
	}

	return core.NodeEnd, nil
}
