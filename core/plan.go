package core

import (
	"strings"
)

type RiskLevel string

const (
	// RiskLow is a read-only query without side effects.
	RiskLow RiskLevel = "low"
	// RiskMedium is a reversible data modification.
	RiskMedium RiskLevel = "medium"
	// RiskHigh covers deletions, external API calls, and outbound messages.
	RiskHigh RiskLevel = "high"
	// RiskCritical covers payments and bulk or irreversible operations.
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel parses a risk level, ignoring case and surrounding whitespace.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch r := RiskLevel(strings.ToLower(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, true
	}

	return "", false
}

// RequiresReview returns true for risk levels that always need a human decision.
func (r RiskLevel) RequiresReview() bool {
	return r == RiskHigh || r == RiskCritical
}

const ActionTypeUnknown = "unknown"

// ActionPlan is the structured description of what the system intends to do.
type ActionPlan struct {
	ActionType  string     `json:"action_type"`
	Description string     `json:"description"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	Parameters  Parameters `json:"parameters"`
	Reason      string     `json:"reason"`
}
