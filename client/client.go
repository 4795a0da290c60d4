// Package client is a Go client for the approvals HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/core"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrBadRequest   = errors.New("bad request")
	ErrWaitTimeout  = errors.New("task did not reach status in specified timeout")
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %v", e.StatusCode, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTaskNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}

	return false
}

type Client struct {
	baseURL string
	http    *http.Client
	clock   clock.Clock
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithClock(c clock.Clock) Option {
	return func(cl *Client) {
		cl.clock = c
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		clock:   clock.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Health(ctx context.Context) (*api.Health, error) {
	var h api.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}

	return &h, nil
}

// CreateTask submits a request. It returns once the task either waits for approval or is finished.
func (c *Client) CreateTask(ctx context.Context, message string) (*api.CreateTaskResponse, error) {
	var r api.CreateTaskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", api.CreateTaskRequest{Message: message}, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// ListTasks returns tasks newest first. An empty status lists all tasks, a limit of 0 uses the
// server's default.
func (c *Client) ListTasks(ctx context.Context, status core.TaskStatus, limit int) (*api.TaskList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}

	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var r api.TaskList
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// PendingTasks returns the tasks waiting for approval, oldest first.
func (c *Client) PendingTasks(ctx context.Context) (*api.TaskList, error) {
	var r api.TaskList
	if err := c.do(ctx, http.MethodGet, "/tasks/pending", nil, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*api.TaskDetail, error) {
	var r api.TaskDetail
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

func (c *Client) Approve(ctx context.Context, taskID, comment, approver string) (*api.ApprovalResponse, error) {
	return c.decide(ctx, taskID, "approve", true, comment, approver)
}

func (c *Client) Reject(ctx context.Context, taskID, comment, approver string) (*api.ApprovalResponse, error) {
	return c.decide(ctx, taskID, "reject", false, comment, approver)
}

func (c *Client) decide(ctx context.Context, taskID, action string, approved bool, comment, approver string) (*api.ApprovalResponse, error) {
	req := api.ApprovalRequest{Approved: &approved, Comment: comment, Approver: approver}

	var r api.ApprovalResponse
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/"+action, req, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// WaitForStatus polls the task until it has one of the given statuses or the timeout expires. A
// timeout of 0 waits for up to 20 seconds.
func (c *Client) WaitForStatus(ctx context.Context, taskID string, timeout time.Duration, statuses ...core.TaskStatus) (*core.Task, error) {
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	b := backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	ticker := backoff.NewTicker(backoff.WithContext(&b, ctx))
	defer ticker.Stop()

	for range ticker.C {
		d, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("getting task: %w", err)
		}

		if slices.Contains(statuses, d.Task.Status) {
			return d.Task, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return nil, ErrWaitTimeout
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}

		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%v %v: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var e api.Error
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			apiErr.Detail = e.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(data))
		}

		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
