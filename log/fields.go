package log

const (
	NamespaceKey = "approvals"

	TaskIDKey     = NamespaceKey + ".task.id"
	ThreadIDKey   = NamespaceKey + ".thread.id"
	TaskStatusKey = NamespaceKey + ".task.status"

	NodeKey = NamespaceKey + ".node"

	RiskLevelKey        = NamespaceKey + ".risk_level"
	ActionTypeKey       = NamespaceKey + ".action_type"
	RequiresApprovalKey = NamespaceKey + ".requires_approval"

	ApprovalStatusKey = NamespaceKey + ".approval.status"
	ApproverKey       = NamespaceKey + ".approval.approver"

	BackendKey = NamespaceKey + ".backend"

	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"

	// DeadlineKey is the time after which a waiting task is auto-rejected
	DeadlineKey = NamespaceKey + ".deadline"
)
