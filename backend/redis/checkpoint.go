package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/redis/go-redis/v9"
)

func (rb *redisBackend) SaveCheckpoint(ctx context.Context, state *core.WorkflowState) error {
	data, err := rb.options.Converter.To(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if err := rb.rdb.Set(ctx, checkpointKey(rb.options.KeyPrefix, state.ThreadID), data, rb.options.AutoExpiration).Err(); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}

	return nil
}

func (rb *redisBackend) GetCheckpoint(ctx context.Context, threadID string) (*core.WorkflowState, error) {
	data, err := rb.rdb.Get(ctx, checkpointKey(rb.options.KeyPrefix, threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}

	var state core.WorkflowState
	if err := rb.options.Converter.From(data, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}

	return &state, nil
}
