package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/backend/test"
)

func Test_SqliteBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b backend.Backend) {
		if err := b.Close(); err != nil {
			panic(err)
		}
	})
}

func Test_SqliteFileBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewSqliteBackend(filepath.Join(t.TempDir(), "approvals.db"), WithBackendOptions(options...))
	}, func(b backend.Backend) {
		if err := b.Close(); err != nil {
			panic(err)
		}
	})
}
