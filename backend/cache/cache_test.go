package cache

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/backend/sqlite"
	"github.com/cschleiden/go-approvals/backend/test"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	im "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/stretchr/testify/require"
)

func Test_CheckpointCache_Conformance(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewCheckpointCache(sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(options...)), 16, time.Minute)
	}, func(b backend.Backend) {
		require.NoError(t, b.Close())
	})
}

func Test_CheckpointCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	rec := im.NewRecorder()

	b := sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(backend.WithMetrics(rec)))
	defer b.Close()

	state := core.NewWorkflowState("task", "thread", "pay the invoice")
	state.Next = core.NodeEnd
	require.NoError(t, b.SaveCheckpoint(ctx, state))

	cc := NewCheckpointCache(b, 4, time.Minute)
	require.Equal(t, 0, cc.Len())

	_, err := cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.CounterValue(metrickeys.CheckpointCacheMiss))
	require.Equal(t, 1, cc.Len())

	_, err = cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.CounterValue(metrickeys.CheckpointCacheHit))
}

func Test_CheckpointCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	cc := NewCheckpointCache(b, 4, time.Minute)

	state := core.NewWorkflowState("task", "thread", "send a message")
	state.Next = core.NodeEnd
	state.ActionPlan = &core.ActionPlan{
		ActionType: "send_message",
		Parameters: core.Parameters{{Key: "to", Value: "team"}},
	}
	require.NoError(t, cc.SaveCheckpoint(ctx, state))

	// Mutating the caller's state must not leak into the cache
	state.ActionPlan.Parameters.Set("to", "everyone")
	state.Messages[0].Content = "changed"

	got, err := cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	v, _ := got.ActionPlan.Parameters.Get("to")
	require.Equal(t, "team", v)
	require.Equal(t, "send a message", got.Messages[0].Content)

	// Neither must mutating a returned copy
	got.Analysis = "changed"

	again, err := cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	require.Empty(t, again.Analysis)
}

func Test_CheckpointCache_Capacity(t *testing.T) {
	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	cc := NewCheckpointCache(b, 2, time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		s := core.NewWorkflowState("task-"+id, id, "input")
		s.Next = core.NodeEnd
		require.NoError(t, cc.SaveCheckpoint(ctx, s))
	}

	require.Equal(t, 2, cc.Len())

	// Evicted entries are still served from the backend
	s, err := cc.GetCheckpoint(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "task-a", s.TaskID)
}

func Test_CheckpointCache_DoesNotCacheRunningWorkflows(t *testing.T) {
	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	cc := NewCheckpointCache(b, 4, time.Minute)

	state := core.NewWorkflowState("task", "thread", "pay the invoice")
	require.NoError(t, cc.SaveCheckpoint(ctx, state))
	require.Equal(t, 0, cc.Len())

	_, err := cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	require.Equal(t, 0, cc.Len())

	// Another process moves the run on through the shared backend
	state.Next = core.NodeHumanReview
	state.Interrupted = true
	require.NoError(t, b.SaveCheckpoint(ctx, state))

	got, err := cc.GetCheckpoint(ctx, "thread")
	require.NoError(t, err)
	require.Equal(t, core.NodeHumanReview, got.Next)

	// A finished run replaces a previously cached entry
	state.Next = core.NodeEnd
	require.NoError(t, cc.SaveCheckpoint(ctx, state))
	require.Equal(t, 1, cc.Len())
}
