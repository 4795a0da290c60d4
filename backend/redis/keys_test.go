package redis

import (
	"testing"

	"github.com/cschleiden/go-approvals/core"
	"github.com/stretchr/testify/require"
)

func Test_Keys(t *testing.T) {
	tests := []struct {
		name string
		f    func(string) string
		want string
	}{
		{"taskKey", func(p string) string { return taskKey(p, "t1") }, "task:t1"},
		{"threadKey", func(p string) string { return threadKey(p, "th1") }, "thread:th1"},
		{"tasksByCreation", tasksByCreation, "tasks-by-creation"},
		{"tasksByStatus", func(p string) string { return tasksByStatus(p, core.TaskStatusWaitingApproval) }, "tasks-by-status:waiting_approval"},
		{"checkpointKey", func(p string) string { return checkpointKey(p, "th1") }, "checkpoint:th1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.f(""))
			require.Equal(t, "approvals:"+tt.want, tt.f("approvals:"))
		})
	}
}
