// Package web exposes the approval workflow over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Engine is the part of the workflow engine the API drives.
type Engine interface {
	Run(ctx context.Context, userInput string) (*workflow.Result, error)
	Resume(ctx context.Context, taskID, threadID string, approved bool, comment, approver string) (*workflow.Result, error)
	State(ctx context.Context, threadID string) (*core.WorkflowState, error)
}

type server struct {
	engine  Engine
	tasks   backend.TaskStore
	options Options
	logger  *slog.Logger
	clock   clock.Clock
}

// NewRouter returns the HTTP handler serving the task API.
func NewRouter(engine Engine, tasks backend.TaskStore, opts ...Option) *gin.Engine {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	s := &server{
		engine:  engine,
		tasks:   tasks,
		options: options,
		logger:  options.Logger,
		clock:   options.Clock,
	}

	r := gin.New()
	r.Use(s.requestLogger(), gin.CustomRecovery(s.recovered))

	if options.CORS {
		config := cors.DefaultConfig()
		config.AllowAllOrigins = true
		config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		r.Use(cors.New(config))
	}

	r.GET("/", s.index)
	r.GET("/health", s.health)

	r.POST("/tasks", s.createTask)
	r.GET("/tasks", s.listTasks)
	r.GET("/tasks/pending", s.pendingTasks)
	r.GET("/tasks/:task_id", s.getTask)
	r.POST("/tasks/:task_id/approve", s.approve)
	r.POST("/tasks/:task_id/reject", s.reject)

	return r
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()

		c.Next()

		s.logger.DebugContext(c.Request.Context(), "handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			log.DurationKey, s.clock.Since(start).Milliseconds(),
		)
	}
}

func (s *server) recovered(c *gin.Context, r any) {
	s.abort(c, fmt.Errorf("panic handling request: %v", r))
}

func (s *server) index(c *gin.Context) {
	c.JSON(http.StatusOK, api.Index{
		Name:    "approvals",
		Version: s.options.Version,
		Endpoints: map[string]string{
			"create_task":   "POST /tasks",
			"list_tasks":    "GET /tasks",
			"pending_tasks": "GET /tasks/pending",
			"get_task":      "GET /tasks/{task_id}",
			"approve_task":  "POST /tasks/{task_id}/approve",
			"reject_task":   "POST /tasks/{task_id}/reject",
			"health":        "GET /health",
		},
	})
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, api.Health{
		Status:                 "healthy",
		Timestamp:              s.clock.Now().UTC(),
		ApprovalTimeoutSeconds: int(s.options.ApprovalTimeout.Seconds()),
	})
}

func (s *server) createTask(c *gin.Context) {
	var req api.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	r, err := s.engine.Run(c.Request.Context(), req.Message)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.CreateTaskResponse{
		TaskID:            r.TaskID,
		ThreadID:          r.ThreadID,
		Status:            r.Status,
		RequiresApproval:  r.RequiresApproval,
		RiskLevel:         r.RiskLevel,
		ActionDescription: r.ActionDescription,
		Message:           r.Message(),
	})
}

func (s *server) listTasks(c *gin.Context) {
	opts := []backend.ListOption{backend.WithLimit(s.options.DefaultListLimit)}

	if status := c.Query("status"); status != "" {
		if !core.TaskStatus(status).Valid() {
			s.abort(c, fmt.Errorf("%w: unknown status %q", errBadRequest, status))
			return
		}

		opts = append(opts, backend.WithStatus(core.TaskStatus(status)))
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			s.abort(c, fmt.Errorf("%w: invalid limit %q", errBadRequest, limit))
			return
		}

		opts = append(opts, backend.WithLimit(n))
	}

	tasks, err := s.tasks.ListTasks(c.Request.Context(), opts...)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks))
}

func (s *server) pendingTasks(c *gin.Context) {
	tasks, err := backend.ListPendingApprovals(c.Request.Context(), s.tasks)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, taskList(tasks))
}

func (s *server) getTask(c *gin.Context) {
	ctx := c.Request.Context()

	task, err := s.tasks.GetTask(ctx, c.Param("task_id"))
	if err != nil {
		s.abort(c, err)
		return
	}

	state, err := s.engine.State(ctx, task.ThreadID)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TaskDetail{Task: task, State: state})
}

func (s *server) approve(c *gin.Context) {
	var req api.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.abort(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	if req.Approved == nil || !*req.Approved {
		s.abort(c, fmt.Errorf("%w: approved must be true, use the reject endpoint to reject", errBadRequest))
		return
	}

	s.decide(c, true, req, "task approved")
}

func (s *server) reject(c *gin.Context) {
	var req api.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.abort(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	s.decide(c, false, req, "task rejected")
}

func (s *server) decide(c *gin.Context, approved bool, req api.ApprovalRequest, message string) {
	ctx := c.Request.Context()

	task, err := s.tasks.GetTask(ctx, c.Param("task_id"))
	if err != nil {
		s.abort(c, err)
		return
	}

	if task.Status != core.TaskStatusWaitingApproval {
		s.abort(c, fmt.Errorf("%w: task status is %v", workflow.ErrNotAwaitingApproval, task.Status))
		return
	}

	r, err := s.engine.Resume(ctx, task.TaskID, task.ThreadID, approved, req.Comment, req.Approver)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ApprovalResponse{
		TaskID:  r.TaskID,
		Status:  r.Status,
		Result:  r.Result,
		Message: message,
	})
}

func taskList(tasks []*core.Task) api.TaskList {
	if tasks == nil {
		tasks = []*core.Task{}
	}

	return api.TaskList{Tasks: tasks, Total: len(tasks)}
}
