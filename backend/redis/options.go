package redis

import (
	"time"

	"github.com/cschleiden/go-approvals/backend"
)

type RedisOptions struct {
	backend.Options

	// AutoExpiration sets the duration after which checkpoints expire from the data store. If set to 0
	// (default), checkpoints never expire. Tasks are never expired.
	AutoExpiration time.Duration

	KeyPrefix string

	// MaxTxRetries limits how often an optimistic transaction is retried after a concurrent write.
	MaxTxRetries int
}

type RedisBackendOption func(*RedisOptions)

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(&o.Options)
		}
	}
}

// WithAutoExpiration sets the duration after which checkpoints expire from the data store.
func WithAutoExpiration(expireCheckpointsAfter time.Duration) RedisBackendOption {
	return func(o *RedisOptions) {
		o.AutoExpiration = expireCheckpointsAfter
	}
}

func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}

func WithMaxTxRetries(retries int) RedisBackendOption {
	return func(o *RedisOptions) {
		o.MaxTxRetries = retries
	}
}
