package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

func NewInMemoryBackend(opts ...option) *sqliteBackend {
	b := newSqliteBackend("file::memory:", opts...)

	b.db.SetMaxOpenConns(1)

	return b
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	o := applyOptions(opts...)

	dsn := fmt.Sprintf(
		"file:%v?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, o.BusyTimeoutMs,
	)

	return newSqliteBackend(dsn, opts...)
}

func applyOptions(opts ...option) *options {
	o := &options{
		Options:       &backend.Options{},
		BusyTimeoutMs: 5000,
	}

	*o.Options = backend.ApplyOptions()

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	options := applyOptions(opts...)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	// Initialize database
	if _, err := db.Exec(schema); err != nil {
		panic(fmt.Errorf("initializing database: %w", err))
	}

	return &sqliteBackend{
		db:      db,
		options: options,
	}
}

type sqliteBackend struct {
	db      *sql.DB
	options *options
}

var _ backend.Backend = (*sqliteBackend)(nil)

func (sb *sqliteBackend) Options() backend.Options {
	return *sb.options.Options
}

func (sb *sqliteBackend) Metrics() metrics.Client {
	return sb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "sqlite"})
}

func (sb *sqliteBackend) Close() error {
	return sb.db.Close()
}

func (sb *sqliteBackend) CreateTask(ctx context.Context, taskID, threadID, userInput string) (*core.Task, error) {
	task := core.NewTask(taskID, threadID, userInput, sb.options.Clock.Now().UTC())

	res, err := sb.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO `tasks` (task_id, thread_id, status, user_input, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		task.TaskID,
		task.ThreadID,
		string(task.Status),
		task.UserInput,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rows != 1 {
		return nil, backend.ErrTaskAlreadyExists
	}

	sb.Metrics().Counter(metrickeys.TaskCreated, metrics.Tags{}, 1)

	return task, nil
}

const taskColumns = "task_id, thread_id, status, current_node, pending_action, user_input, error_message, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*core.Task, error) {
	var t core.Task
	var status, node string

	if err := row.Scan(
		&t.TaskID,
		&t.ThreadID,
		&status,
		&node,
		&t.PendingAction,
		&t.UserInput,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Status = core.TaskStatus(status)
	t.CurrentNode = core.Node(node)

	return &t, nil
}

func (sb *sqliteBackend) GetTask(ctx context.Context, taskID string) (*core.Task, error) {
	row := sb.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM `tasks` WHERE task_id = ?", taskID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("getting task: %w", err)
	}

	return t, nil
}

func (sb *sqliteBackend) UpdateTask(ctx context.Context, taskID string, opts ...backend.TaskUpdateOption) (*core.Task, error) {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM `tasks` WHERE task_id = ?", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("getting task: %w", err)
	}

	if err := backend.NewTaskUpdate(opts...).Apply(t, sb.options.Clock.Now().UTC()); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(
		ctx,
		"UPDATE `tasks` SET status = ?, current_node = ?, pending_action = ?, error_message = ?, updated_at = ? WHERE task_id = ?",
		string(t.Status),
		string(t.CurrentNode),
		t.PendingAction,
		t.ErrorMessage,
		t.UpdatedAt,
		t.TaskID,
	); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task update: %w", err)
	}

	return t, nil
}

func (sb *sqliteBackend) ListTasks(ctx context.Context, opts ...backend.ListOption) ([]*core.Task, error) {
	o := backend.ApplyListOptions(opts...)

	query := "SELECT " + taskColumns + " FROM `tasks`"
	args := make([]any, 0, len(o.Statuses)+1)

	if len(o.Statuses) > 0 {
		query += " WHERE status IN (?" + strings.Repeat(",?", len(o.Statuses)-1) + ")"
		for _, s := range o.Statuses {
			args = append(args, string(s))
		}
	}

	if o.OldestFirst {
		query += " ORDER BY created_at ASC, rowid ASC"
	} else {
		query += " ORDER BY created_at DESC, rowid DESC"
	}

	if o.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, o.Limit)
	}

	rows, err := sb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*core.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}

		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

func (sb *sqliteBackend) SaveCheckpoint(ctx context.Context, state *core.WorkflowState) error {
	data, err := sb.options.Converter.To(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if _, err := sb.db.ExecContext(
		ctx,
		"INSERT INTO `checkpoints` (thread_id, task_id, state, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at",
		state.ThreadID,
		state.TaskID,
		data,
		sb.options.Clock.Now().UTC(),
	); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}

	return nil
}

func (sb *sqliteBackend) GetCheckpoint(ctx context.Context, threadID string) (*core.WorkflowState, error) {
	var data []byte

	row := sb.db.QueryRowContext(ctx, "SELECT state FROM `checkpoints` WHERE thread_id = ?", threadID)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}

	var state core.WorkflowState
	if err := sb.options.Converter.From(data, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}

	return &state, nil
}
