package core

// Node names a stage of the approval workflow.
type Node string

const (
	NodeAnalyze         Node = "analyze"
	NodeHumanReview     Node = "human_review"
	NodeExecute         Node = "execute"
	NodeHandleRejection Node = "handle_rejection"
	NodeRespond         Node = "respond"
	NodeEnd             Node = "end"
)

type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalTimeout  ApprovalStatus = "timeout"
)

// Decided returns true once a human or the timeout sweeper has made a decision.
func (s ApprovalStatus) Decided() bool {
	return s == ApprovalApproved || s == ApprovalRejected || s == ApprovalTimeout
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WorkflowState is the full, checkpointed execution context of one workflow run.
type WorkflowState struct {
	TaskID   string `json:"task_id"`
	ThreadID string `json:"thread_id"`

	Messages []Message `json:"messages"`

	Analysis   string      `json:"analysis"`
	ActionPlan *ActionPlan `json:"action_plan"`
	RiskLevel  RiskLevel   `json:"risk_level"`

	RequiresApproval bool `json:"requires_approval"`

	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ApprovalComment string         `json:"approval_comment"`
	Approver        string         `json:"approver"`

	ExecutionResult string `json:"execution_result"`
	FinalAnswer     string `json:"final_answer"`

	Iteration int `json:"iteration"`

	Error string `json:"error"`

	// Next is the node the run continues with.
	Next Node `json:"next"`

	// Interrupted is set when the run stopped before entering Next and waits for an external
	// decision. It distinguishes arriving at a node on a fresh run from being resumed into it.
	Interrupted bool `json:"interrupted"`
}

// NewWorkflowState seeds the state for a fresh run.
func NewWorkflowState(taskID, threadID, userInput string) *WorkflowState {
	return &WorkflowState{
		TaskID:   taskID,
		ThreadID: threadID,
		Messages: []Message{{Role: RoleUser, Content: userInput}},
		Next:     NodeAnalyze,
	}
}

// UserInput returns the content of the first user message.
func (s *WorkflowState) UserInput() string {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}

	return ""
}

// Done returns true once the run reached the terminal node.
func (s *WorkflowState) Done() bool {
	return s.Next == NodeEnd
}
