package workflow

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/cschleiden/go-approvals/core"
)

const (
	errorInstruction     = "The user's request ran into a problem. Politely explain the situation and offer suggestions."
	rejectedInstruction  = "The user's request was rejected. Politely explain the reason and offer alternatives."
	timeoutInstruction   = "The user's request was not executed because the approval timed out. Explain the situation."
	completedInstruction = "Based on the execution result, give the user a clear and helpful reply."
)

// responseBranch selects the instruction, the prompt, and the static answer used when the model is
// unavailable.
func responseBranch(s *core.WorkflowState) (instruction, prompt, fallback string) {
	description := ""
	if s.ActionPlan != nil {
		description = s.ActionPlan.Description
	}

	switch {
	case s.Error != "":
		return errorInstruction, heredoc.Docf(`
			User request: %s
			Analysis: %s
			Error: %s
		`, s.UserInput(), s.Analysis, s.Error),
			fmt.Sprintf("Sorry, your request could not be completed: %v", s.Error)

	case s.ApprovalStatus == core.ApprovalRejected:
		return rejectedInstruction, heredoc.Docf(`
			User request: %s
			Analysis: %s
			Planned action: %s
			Approval result: rejected
			Approval comment: %s
		`, s.UserInput(), s.Analysis, description, s.ApprovalComment),
			fmt.Sprintf("Your request was rejected. Comment: %v", s.ApprovalComment)

	case s.ApprovalStatus == core.ApprovalTimeout:
		return timeoutInstruction, heredoc.Docf(`
			User request: %s
			Analysis: %s
			Planned action: %s
			Approval result: timed out without a decision
		`, s.UserInput(), s.Analysis, description),
			"Your request was not executed because the approval timed out."
	}

	return completedInstruction, heredoc.Docf(`
		User request: %s
		Analysis: %s
		Planned action: %s
		Execution result: %s
	`, s.UserInput(), s.Analysis, description, s.ExecutionResult),
		fmt.Sprintf("Your request was completed. %v", s.ExecutionResult)
}
