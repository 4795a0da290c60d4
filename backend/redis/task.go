package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/redis/go-redis/v9"
)

func creationScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (rb *redisBackend) CreateTask(ctx context.Context, taskID, threadID, userInput string) (*core.Task, error) {
	task := core.NewTask(taskID, threadID, userInput, rb.options.Clock.Now().UTC())

	data, err := marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshaling task: %w", err)
	}

	tKey := taskKey(rb.options.KeyPrefix, taskID)
	thKey := threadKey(rb.options.KeyPrefix, threadID)

	err = rb.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, tKey, thKey).Result()
		if err != nil {
			return fmt.Errorf("checking for existing task: %w", err)
		}

		if n > 0 {
			return backend.ErrTaskAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tKey, data, 0)
			p.Set(ctx, thKey, taskID, 0)

			z := redis.Z{Score: creationScore(task.CreatedAt), Member: taskID}
			p.ZAdd(ctx, tasksByCreation(rb.options.KeyPrefix), z)
			p.ZAdd(ctx, tasksByStatus(rb.options.KeyPrefix, task.Status), z)

			return nil
		})

		return err
	}, tKey, thKey)
	if err != nil {
		if errors.Is(err, backend.ErrTaskAlreadyExists) {
			return nil, err
		}

		return nil, fmt.Errorf("creating task: %w", err)
	}

	rb.Metrics().Counter(metrickeys.TaskCreated, metrics.Tags{}, 1)

	return task, nil
}

func readTask(ctx context.Context, cmd redis.Cmdable, key string) (*core.Task, error) {
	data, err := cmd.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("reading task: %w", err)
	}

	var t core.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling task: %w", err)
	}

	return &t, nil
}

func (rb *redisBackend) GetTask(ctx context.Context, taskID string) (*core.Task, error) {
	return readTask(ctx, rb.rdb, taskKey(rb.options.KeyPrefix, taskID))
}

func (rb *redisBackend) UpdateTask(ctx context.Context, taskID string, opts ...backend.TaskUpdateOption) (*core.Task, error) {
	key := taskKey(rb.options.KeyPrefix, taskID)
	update := backend.NewTaskUpdate(opts...)

	var result *core.Task

	err := rb.watch(ctx, func(tx *redis.Tx) error {
		t, err := readTask(ctx, tx, key)
		if err != nil {
			return err
		}

		previous := t.Status

		if err := update.Apply(t, rb.options.Clock.Now().UTC()); err != nil {
			return err
		}

		data, err := marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling task: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)

			if previous != t.Status {
				p.ZRem(ctx, tasksByStatus(rb.options.KeyPrefix, previous), taskID)
				p.ZAdd(ctx, tasksByStatus(rb.options.KeyPrefix, t.Status), redis.Z{Score: creationScore(t.CreatedAt), Member: taskID})
			}

			return nil
		})
		if err != nil {
			return err
		}

		result = t

		return nil
	}, key)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListTasks reads the index sets and then the task records. The two reads are not atomic, so tasks
// whose status changed in between are filtered out again after reading.
func (rb *redisBackend) ListTasks(ctx context.Context, opts ...backend.ListOption) ([]*core.Task, error) {
	o := backend.ApplyListOptions(opts...)

	sets := []string{tasksByCreation(rb.options.KeyPrefix)}
	if len(o.Statuses) > 0 {
		sets = sets[:0]
		for _, s := range o.Statuses {
			sets = append(sets, tasksByStatus(rb.options.KeyPrefix, s))
		}
	}

	// The first Limit entries of the union are among the first Limit entries of each set
	stop := int64(-1)
	if o.Limit > 0 {
		stop = int64(o.Limit - 1)
	}

	var entries []redis.Z
	for _, set := range sets {
		zs, err := rb.rdb.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
			Key:   set,
			Start: 0,
			Stop:  stop,
			Rev:   !o.OldestFirst,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("listing tasks: %w", err)
		}

		entries = append(entries, zs...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			if o.OldestFirst {
				return entries[i].Score < entries[j].Score
			}

			return entries[i].Score > entries[j].Score
		}

		return entries[i].Member.(string) < entries[j].Member.(string)
	})

	if o.Limit > 0 && len(entries) > o.Limit {
		entries = entries[:o.Limit]
	}

	tasks := make([]*core.Task, 0, len(entries))
	if len(entries) == 0 {
		return tasks, nil
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, taskKey(rb.options.KeyPrefix, e.Member.(string)))
	}

	values, err := rb.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}

	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}

		var t core.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshaling task: %w", err)
		}

		if len(o.Statuses) > 0 && !slices.Contains(o.Statuses, t.Status) {
			continue
		}

		tasks = append(tasks, &t)
	}

	return tasks, nil
}
