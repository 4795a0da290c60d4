package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/core"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h http.Handler, args ...string) (string, error) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	cmd := newRootCmd(out)
	cmd.SetArgs(append([]string{"--addr", srv.URL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func Test_List(t *testing.T) {
	var query string

	out, err := run(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(&api.TaskList{
			Tasks: []*core.Task{{
				TaskID:      "t1",
				Status:      core.TaskStatusWaitingApproval,
				CurrentNode: core.NodeHumanReview,
				CreatedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
				UserInput:   "delete all user records",
			}},
			Total: 1,
		})
	}), "list", "--status", "waiting_approval", "--limit", "5")

	require.NoError(t, err)
	require.Equal(t, "limit=5&status=waiting_approval", query)
	require.Contains(t, out, "t1")
	require.Contains(t, out, "waiting_approval")
	require.Contains(t, out, "2024-05-01T09:00:00Z")
	require.Contains(t, out, "1 task(s)")
}

func Test_Reject(t *testing.T) {
	var req api.ApprovalRequest
	var path string

	out, err := run(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		json.NewEncoder(w).Encode(&api.ApprovalResponse{
			TaskID:  "t1",
			Status:  core.TaskStatusRejected,
			Message: "task status: rejected",
		})
	}), "reject", "t1", "--comment", "too risky", "--approver", "alice")

	require.NoError(t, err)
	require.Equal(t, "/tasks/t1/reject", path)
	require.NotNil(t, req.Approved)
	require.False(t, *req.Approved)
	require.Equal(t, "too risky", req.Comment)
	require.Equal(t, "alice", req.Approver)
	require.Contains(t, out, "task t1: rejected")
}

func Test_Get_NotFound(t *testing.T) {
	_, err := run(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(&api.Error{Detail: "task not found"})
	}), "get", "missing")

	require.Error(t, err)
	require.Contains(t, err.Error(), "task not found")
}

func Test_Truncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
