package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/internal/metrickeys"
	im "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/stretchr/testify/require"
)

func Test_WithRetry(t *testing.T) {
	overloaded := Transient(errors.New("503 overloaded"))
	invalid := errors.New("invalid api key")

	tests := []struct {
		name      string
		results   []error
		wantErr   error
		wantCalls int
	}{
		{name: "succeeds first time", results: []error{nil}, wantCalls: 1},
		{name: "recovers from transient errors", results: []error{overloaded, overloaded, nil}, wantCalls: 3},
		{name: "gives up after max retries", results: []error{overloaded, overloaded, overloaded, overloaded, overloaded}, wantErr: ErrTransient, wantCalls: 3},
		{name: "does not retry permanent errors", results: []error{invalid, nil}, wantErr: invalid, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			m := ModelFunc(func(ctx context.Context, req *Request) (string, error) {
				err := tt.results[calls]
				calls++

				if err != nil {
					return "", err
				}

				return "ok", nil
			})

			rec := im.NewRecorder()
			r := WithRetry(m, WithMaxRetries(2), WithBackoff(time.Millisecond, 2*time.Millisecond), WithRetryMetrics(rec))

			out, err := r.Generate(context.Background(), &Request{Prompt: "hello"})
			require.Equal(t, tt.wantCalls, calls)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, "ok", out)
			require.Equal(t, int64(tt.wantCalls-1), rec.CounterValue(metrickeys.ModelRetry))
		})
	}
}

func Test_WithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := ModelFunc(func(ctx context.Context, req *Request) (string, error) {
		return "", Transient(errors.New("rate limited"))
	})

	_, err := WithRetry(m, WithBackoff(time.Millisecond, time.Millisecond)).Generate(ctx, &Request{})
	require.Error(t, err)
}

func Test_Transient(t *testing.T) {
	require.Nil(t, Transient(nil))

	base := errors.New("overloaded")
	err := Transient(base)
	require.True(t, IsTransient(err))
	require.ErrorIs(t, err, base)
	require.False(t, IsTransient(base))
}
