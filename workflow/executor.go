package workflow

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-approvals/core"
)

// Executor performs the action described by a plan once it may run.
type Executor interface {
	Execute(ctx context.Context, plan *core.ActionPlan) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, plan *core.ActionPlan) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, plan *core.ActionPlan) (string, error) {
	return f(ctx, plan)
}

// SimulatedExecutor does not touch any external system. It reports what would have been done based on
// the action type.
type SimulatedExecutor struct{}

var _ Executor = (*SimulatedExecutor)(nil)

func (*SimulatedExecutor) Execute(ctx context.Context, plan *core.ActionPlan) (string, error) {
	switch plan.ActionType {
	case "query_info":
		return fmt.Sprintf("query completed: %v", plan.Description), nil
	case "modify_data":
		return fmt.Sprintf("data modified: %v", plan.Description), nil
	case "delete_data":
		return fmt.Sprintf("data deleted: %v", plan.Description), nil
	case "send_message":
		return fmt.Sprintf("message sent: %v", plan.Description), nil
	case "make_payment":
		return fmt.Sprintf("payment completed: %v", plan.Description), nil
	}

	return fmt.Sprintf("action completed: %v", plan.Description), nil
}
