package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/redis/go-redis/v9"
)

var _ backend.Backend = (*redisBackend)(nil)

// ErrTooManyRetries is returned when an optimistic transaction keeps losing against concurrent writers.
var ErrTooManyRetries = errors.New("redis transaction retried too often")

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	// Default options
	options := &RedisOptions{
		Options:      backend.ApplyOptions(),
		MaxTxRetries: 100,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.KeyPrefix != "" && !strings.HasSuffix(options.KeyPrefix, ":") {
		options.KeyPrefix += ":"
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &redisBackend{
		rdb:     client,
		options: options,
	}, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
}

func (rb *redisBackend) Options() backend.Options {
	return rb.options.Options
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}

// watch runs fn in an optimistic transaction over the given keys, retrying when a watched key changed.
func (rb *redisBackend) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < rb.options.MaxTxRetries; i++ {
		err := rb.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrTooManyRetries
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
