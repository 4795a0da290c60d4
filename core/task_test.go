package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusWaitingApproval, true},
		{TaskStatusPending, TaskStatusCompleted, true},
		{TaskStatusPending, TaskStatusApproved, false},
		{TaskStatusWaitingApproval, TaskStatusApproved, true},
		{TaskStatusWaitingApproval, TaskStatusTimeout, true},
		{TaskStatusWaitingApproval, TaskStatusCompleted, false},
		{TaskStatusApproved, TaskStatusCompleted, true},
		{TaskStatusRejected, TaskStatusRejected, true},
		{TaskStatusRejected, TaskStatusCompleted, false},
		{TaskStatusCompleted, TaskStatusWaitingApproval, false},
		{TaskStatusTimeout, TaskStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	require.False(t, TaskStatusPending.Terminal())
	require.False(t, TaskStatusWaitingApproval.Terminal())
	require.False(t, TaskStatusApproved.Terminal())
	require.True(t, TaskStatusRejected.Terminal())
	require.True(t, TaskStatusCompleted.Terminal())
	require.True(t, TaskStatusFailed.Terminal())
	require.True(t, TaskStatusTimeout.Terminal())

	require.False(t, TaskStatus("bogus").Valid())
}

func TestParseRiskLevel(t *testing.T) {
	r, ok := ParseRiskLevel(" HIGH ")
	require.True(t, ok)
	require.Equal(t, RiskHigh, r)
	require.True(t, r.RequiresReview())

	r, ok = ParseRiskLevel("medium")
	require.True(t, ok)
	require.False(t, r.RequiresReview())

	_, ok = ParseRiskLevel("extreme")
	require.False(t, ok)

	_, ok = ParseRiskLevel("")
	require.False(t, ok)
}
