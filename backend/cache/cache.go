package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/tiendc/go-deepcopy"
)

// CheckpointCache wraps a backend with a read-through LRU cache for checkpoints. Only finished runs
// are cached: their checkpoint never changes again, so other processes sharing the backend can not
// make a cached entry stale. Callers always receive their own copy of a cached state.
type CheckpointCache struct {
	backend.Backend

	c       *ttlcache.Cache[string, core.WorkflowState]
	metrics metrics.Client
}

var _ backend.Backend = (*CheckpointCache)(nil)

func NewCheckpointCache(b backend.Backend, size int, expiration time.Duration) *CheckpointCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, core.WorkflowState](uint64(size)),
		ttlcache.WithTTL[string, core.WorkflowState](expiration),
	)

	m := b.Options().Metrics

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, core.WorkflowState]) {
		reason := "expired"
		if er == ttlcache.EvictionReasonCapacityReached {
			reason = "capacity"
		}

		m.Counter(metrickeys.CheckpointCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &CheckpointCache{
		Backend: b,
		c:       c,
		metrics: m,
	}
}

func (cc *CheckpointCache) SaveCheckpoint(ctx context.Context, state *core.WorkflowState) error {
	if err := cc.Backend.SaveCheckpoint(ctx, state); err != nil {
		cc.c.Delete(state.ThreadID)
		return err
	}

	if !state.Done() {
		cc.c.Delete(state.ThreadID)
		return nil
	}

	var cached core.WorkflowState
	if err := deepcopy.Copy(&cached, *state); err != nil {
		cc.c.Delete(state.ThreadID)
		return nil
	}

	cc.c.Set(state.ThreadID, cached, ttlcache.DefaultTTL)

	return nil
}

func (cc *CheckpointCache) GetCheckpoint(ctx context.Context, threadID string) (*core.WorkflowState, error) {
	if item := cc.c.Get(threadID); item != nil {
		var state core.WorkflowState
		if err := deepcopy.Copy(&state, item.Value()); err != nil {
			return nil, fmt.Errorf("copying cached checkpoint: %w", err)
		}

		cc.metrics.Counter(metrickeys.CheckpointCacheHit, metrics.Tags{}, 1)

		return &state, nil
	}

	cc.metrics.Counter(metrickeys.CheckpointCacheMiss, metrics.Tags{}, 1)

	state, err := cc.Backend.GetCheckpoint(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if !state.Done() {
		return state, nil
	}

	var cached core.WorkflowState
	if err := deepcopy.Copy(&cached, *state); err == nil {
		cc.c.Set(threadID, cached, ttlcache.DefaultTTL)
	}

	return state, nil
}

// Len returns the number of cached checkpoints.
func (cc *CheckpointCache) Len() int {
	return cc.c.Len()
}

// StartEviction runs the expiration loop until the context is canceled.
func (cc *CheckpointCache) StartEviction(ctx context.Context) {
	go cc.c.Start()

	<-ctx.Done()

	cc.c.Stop()
}
