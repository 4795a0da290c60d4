package sqlite

import (
	"github.com/cschleiden/go-approvals/backend"
)

type options struct {
	*backend.Options

	// BusyTimeoutMs is how long a connection waits for a lock held by another connection.
	BusyTimeoutMs int
}

type option func(*options)

// WithBusyTimeout sets the sqlite busy timeout in milliseconds for file backed databases.
func WithBusyTimeout(ms int) option {
	return func(o *options) {
		o.BusyTimeoutMs = ms
	}
}

// WithBackendOptions allows to pass generic backend options.
func WithBackendOptions(opts ...backend.BackendOption) option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
