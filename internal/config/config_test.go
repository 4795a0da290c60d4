package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-key")

	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8016", c.Server.Addr)
	require.True(t, c.Server.CORS)
	require.Equal(t, 300*time.Second, c.Approval.Timeout)
	require.Equal(t, 30*time.Second, c.Approval.SweepInterval)
	require.Equal(t, 2*time.Minute, c.Approval.RecoverGrace)
	require.Equal(t, "memory", c.Store.Backend)
	require.Equal(t, 128, c.Store.CheckpointCache.Size)
	require.Equal(t, "gemini", c.LLM.Provider)
	require.Equal(t, "google-key", c.LLM.APIKey)
	require.Equal(t, uint64(3), c.LLM.MaxRetries)
	require.Equal(t, "none", c.Tracing.Exporter)
}

func Test_Load_Environment(t *testing.T) {
	t.Setenv("APPROVALS_STORE_BACKEND", "sqlite")
	t.Setenv("APPROVALS_STORE_PATH", "/tmp/a.sqlite")
	t.Setenv("APPROVALS_APPROVAL_SWEEP_INTERVAL", "5s")
	t.Setenv("APPROVALS_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("APPROVAL_TIMEOUT_SECONDS", "60")

	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "sqlite", c.Store.Backend)
	require.Equal(t, "/tmp/a.sqlite", c.Store.Path)
	require.Equal(t, 5*time.Second, c.Approval.SweepInterval)
	require.Equal(t, 60*time.Second, c.Approval.Timeout)
	require.Equal(t, "anthropic", c.LLM.Provider)
	require.Equal(t, "anthropic-key", c.LLM.APIKey)
}

func Test_Load_ExplicitKeyWins(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("APPROVALS_LLM_API_KEY", "explicit")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "explicit", c.LLM.APIKey)
}

func Test_Load_File(t *testing.T) {
	t.Setenv("APPROVALS_LLM_API_KEY", "key")

	path := filepath.Join(t.TempDir(), "approvals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
store:
  backend: redis
  redis:
    addr: "redis:6379"
    key_prefix: "test"
tracing:
  exporter: stdout
log:
  level: debug
  format: json
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9000", c.Server.Addr)
	require.Equal(t, "redis", c.Store.Backend)
	require.Equal(t, "redis:6379", c.Store.Redis.Addr)
	require.Equal(t, "test", c.Store.Redis.KeyPrefix)
	require.Equal(t, "stdout", c.Tracing.Exporter)
	require.Equal(t, "json", c.Log.Format)
}

func Test_Load_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing api key", map[string]string{}},
		{"unknown backend", map[string]string{"APPROVALS_STORE_BACKEND": "cassandra"}},
		{"unknown provider", map[string]string{"APPROVALS_LLM_PROVIDER": "other"}},
		{"zero timeout", map[string]string{"APPROVALS_APPROVAL_TIMEOUT": "0s"}},
		{"otlp without endpoint", map[string]string{"APPROVALS_TRACING_EXPORTER": "otlp"}},
		{"negative cache size", map[string]string{"APPROVALS_STORE_CHECKPOINT_CACHE_SIZE": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_API_KEY", "")
			if tt.name != "missing api key" {
				t.Setenv("APPROVALS_LLM_API_KEY", "key")
			}

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func Test_LogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}
