package metrickeys

const (
	Prefix = "approvals."

	// Tasks
	TaskCreated  = Prefix + "task.created"
	TaskFinished = Prefix + "task.finished"
	TaskWaiting  = Prefix + "task.waiting_approval"

	// Workflow
	NodeExecuted     = Prefix + "workflow.node.executed"
	NodePanicked     = Prefix + "workflow.node.panicked"
	RunDuration      = Prefix + "workflow.run.duration"
	ResumeDuration   = Prefix + "workflow.resume.duration"
	ApprovalDecision = Prefix + "workflow.approval.decision"
	SafetyViolation  = Prefix + "workflow.execute.safety_violation"

	// Classifier
	ClassifierFallback = Prefix + "classifier.fallback"
	ModelRetry         = Prefix + "llm.retry"

	// Sweeper
	SweepCycle        = Prefix + "sweeper.cycle"
	SweepAutoRejected = Prefix + "sweeper.auto_rejected"
	SweepErrors       = Prefix + "sweeper.errors"
	SweepPendingTasks = Prefix + "sweeper.pending"

	// Checkpoint cache
	CheckpointCacheHit      = Prefix + "checkpoint.cache.hit"
	CheckpointCacheMiss     = Prefix + "checkpoint.cache.miss"
	CheckpointCacheEviction = Prefix + "checkpoint.cache.eviction"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	Node     = "node"
	Status   = "status"
	Risk     = "risk"
	Decision = "decision"

	// Reason for evicting an entry from the checkpoint cache
	EvictionReason = "reason"
)
