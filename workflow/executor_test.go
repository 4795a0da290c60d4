package workflow

import (
	"context"
	"testing"

	"github.com/cschleiden/go-approvals/core"
	"github.com/stretchr/testify/require"
)

func Test_SimulatedExecutor(t *testing.T) {
	tests := []struct {
		actionType string
		want       string
	}{
		{"query_info", "query completed: do it"},
		{"modify_data", "data modified: do it"},
		{"delete_data", "data deleted: do it"},
		{"send_message", "message sent: do it"},
		{"make_payment", "payment completed: do it"},
		{core.ActionTypeUnknown, "action completed: do it"},
		{"launch_rocket", "action completed: do it"},
	}

	e := &SimulatedExecutor{}

	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			got, err := e.Execute(context.Background(), &core.ActionPlan{ActionType: tt.actionType, Description: "do it"})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
