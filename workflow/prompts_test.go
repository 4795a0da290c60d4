package workflow

import (
	"testing"

	"github.com/cschleiden/go-approvals/core"
	"github.com/stretchr/testify/require"
)

func Test_ResponseBranch(t *testing.T) {
	base := func() *core.WorkflowState {
		s := core.NewWorkflowState("t", "th", "pay the invoice")
		s.Analysis = "payment"
		s.ActionPlan = &core.ActionPlan{ActionType: "make_payment", Description: "pay invoice 42"}
		return s
	}

	tests := []struct {
		name            string
		mutate          func(s *core.WorkflowState)
		wantInstruction string
		wantPrompt      string
		wantFallback    string
	}{
		{
			name: "error wins",
			mutate: func(s *core.WorkflowState) {
				s.Error = "boom"
				s.ApprovalStatus = core.ApprovalRejected
			},
			wantInstruction: errorInstruction,
			wantPrompt:      "Error: boom",
			wantFallback:    "Sorry, your request could not be completed: boom",
		},
		{
			name: "rejected",
			mutate: func(s *core.WorkflowState) {
				s.ApprovalStatus = core.ApprovalRejected
				s.ApprovalComment = "too expensive"
			},
			wantInstruction: rejectedInstruction,
			wantPrompt:      "Approval comment: too expensive",
			wantFallback:    "Your request was rejected. Comment: too expensive",
		},
		{
			name: "timeout",
			mutate: func(s *core.WorkflowState) {
				s.ApprovalStatus = core.ApprovalTimeout
			},
			wantInstruction: timeoutInstruction,
			wantPrompt:      "Approval result: timed out without a decision",
			wantFallback:    "Your request was not executed because the approval timed out.",
		},
		{
			name: "completed",
			mutate: func(s *core.WorkflowState) {
				s.ApprovalStatus = core.ApprovalApproved
				s.ExecutionResult = "payment completed: pay invoice 42"
			},
			wantInstruction: completedInstruction,
			wantPrompt:      "Execution result: payment completed: pay invoice 42",
			wantFallback:    "Your request was completed. payment completed: pay invoice 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)

			instruction, prompt, fallback := responseBranch(s)
			require.Equal(t, tt.wantInstruction, instruction)
			require.Contains(t, prompt, "User request: pay the invoice")
			require.Contains(t, prompt, tt.wantPrompt)
			require.Equal(t, tt.wantFallback, fallback)
		})
	}
}
