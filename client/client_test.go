package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/backend/sqlite"
	"github.com/cschleiden/go-approvals/classifier"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/llm"
	"github.com/cschleiden/go-approvals/llm/llmtest"
	"github.com/cschleiden/go-approvals/web"
	"github.com/cschleiden/go-approvals/workflow"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	b := sqlite.NewInMemoryBackend()
	t.Cleanup(func() { b.Close() })

	model := llmtest.New(func(req *llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "Risk levels:") {
			if strings.Contains(req.Prompt, "weather") {
				return `{"analysis": "lookup", "action_type": "query_info", "description": "query the weather", "risk_level": "low", "requires_approval": false}`, nil
			}

			return `{"analysis": "payment", "action_type": "make_payment", "description": "pay 100 EUR to ACME", "risk_level": "critical", "requires_approval": true}`, nil
		}

		return "answer: " + req.Prompt, nil
	})

	engine := workflow.New(b, b, classifier.New(model), model)

	srv := httptest.NewServer(web.NewRouter(engine, b))
	t.Cleanup(srv.Close)

	return srv
}

func Test_Client_RoundTrip(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL + "/")
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "healthy", h.Status)

	low, err := c.CreateTask(ctx, "what's the weather")
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusCompleted, low.Status)

	r, err := c.CreateTask(ctx, "pay 100 EUR to ACME")
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusWaitingApproval, r.Status)
	require.Equal(t, core.RiskCritical, r.RiskLevel)

	pending, err := c.PendingTasks(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending.Total)

	list, err := c.ListTasks(ctx, core.TaskStatusCompleted, 10)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, low.TaskID, list.Tasks[0].TaskID)

	a, err := c.Approve(ctx, r.TaskID, "ok", "cfo")
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusCompleted, a.Status)
	require.Contains(t, a.Result, "payment completed")

	_, err = c.Reject(ctx, r.TaskID, "", "")
	require.ErrorIs(t, err, ErrBadRequest)

	d, err := c.GetTask(ctx, r.TaskID)
	require.NoError(t, err)
	require.Equal(t, "cfo", d.State.Approver)

	task, err := c.WaitForStatus(ctx, r.TaskID, time.Second, core.TaskStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, r.TaskID, task.TaskID)
}

func Test_Client_NotFound(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	_, err := c.GetTask(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTaskNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "task not found", apiErr.Detail)
}

func Test_Client_WaitForStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := core.TaskStatusWaitingApproval
		if calls.Add(1) >= 3 {
			status = core.TaskStatusTimeout
		}

		json.NewEncoder(w).Encode(api.TaskDetail{Task: &core.Task{TaskID: "t1", Status: status}})
	}))
	defer srv.Close()

	c := New(srv.URL)

	task, err := c.WaitForStatus(context.Background(), "t1", 5*time.Second, core.TaskStatusTimeout, core.TaskStatusRejected)
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusTimeout, task.Status)
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func Test_Client_WaitForStatusTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.TaskDetail{Task: &core.Task{TaskID: "t1", Status: core.TaskStatusWaitingApproval}})
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.WaitForStatus(context.Background(), "t1", 100*time.Millisecond, core.TaskStatusCompleted)
	require.ErrorIs(t, err, ErrWaitTimeout)
}

func Test_Client_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Health(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, "bad gateway", apiErr.Detail)
}
