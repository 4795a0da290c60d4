package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// Error number MySQL reports for a duplicate key
const errDuplicateEntry = 1062

func NewMysqlBackend(host string, port int, user, password, database string, opts ...option) *mysqlBackend {
	options := &options{
		Options:         backend.ApplyOptions(),
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true", user, password, host, port, database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}

	b := &mysqlBackend{
		dsn:     dsn,
		db:      db,
		options: options,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type mysqlBackend struct {
	dsn     string
	db      *sql.DB
	options *options
}

var _ backend.Backend = (*mysqlBackend)(nil)

// Migrate applies any pending database migrations.
func (b *mysqlBackend) Migrate() error {
	schemaDsn := b.dsn + "&multiStatements=true"
	db, err := sql.Open("mysql", schemaDsn)
	if err != nil {
		return fmt.Errorf("opening schema database: %w", err)
	}

	dbi, err := mysqlmigrate.WithInstance(db, &mysqlmigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("closing schema database: %w", err)
	}

	return nil
}

func (b *mysqlBackend) Options() backend.Options {
	return b.options.Options
}

func (b *mysqlBackend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "mysql"})
}

func (b *mysqlBackend) Close() error {
	return b.db.Close()
}

func (b *mysqlBackend) CreateTask(ctx context.Context, taskID, threadID, userInput string) (*core.Task, error) {
	task := core.NewTask(taskID, threadID, userInput, b.options.Clock.Now().UTC())

	if _, err := b.db.ExecContext(
		ctx,
		"INSERT INTO `tasks` (task_id, thread_id, status, pending_action, user_input, error_message, created_at, updated_at) VALUES (?, ?, ?, '', ?, '', ?, ?)",
		task.TaskID,
		task.ThreadID,
		string(task.Status),
		task.UserInput,
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return nil, backend.ErrTaskAlreadyExists
		}

		return nil, fmt.Errorf("inserting task: %w", err)
	}

	b.Metrics().Counter(metrickeys.TaskCreated, metrics.Tags{}, 1)

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

func (b *mysqlBackend) GetTask(ctx context.Context, taskID string) (*core.Task, error) {
	t, err := scanTask(b.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM `tasks` WHERE task_id = ?", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("getting task: %w", err)
	}

	return t, nil
}

func (b *mysqlBackend) UpdateTask(ctx context.Context, taskID string, opts ...backend.TaskUpdateOption) (*core.Task, error) {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the row for the read-modify-write
	t, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM `tasks` WHERE task_id = ? FOR UPDATE", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("getting task: %w", err)
	}

	if err := backend.NewTaskUpdate(opts...).Apply(t, b.options.Clock.Now().UTC()); err != nil {
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

func (b *mysqlBackend) ListTasks(ctx context.Context, opts ...backend.ListOption) ([]*core.Task, error) {
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
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	if o.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, o.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
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

func (b *mysqlBackend) SaveCheckpoint(ctx context.Context, state *core.WorkflowState) error {
	data, err := b.options.Converter.To(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if _, err := b.db.ExecContext(
		ctx,
		"INSERT INTO `checkpoints` (thread_id, task_id, state, updated_at) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE state = VALUES(state), updated_at = VALUES(updated_at)",
		state.ThreadID,
		state.TaskID,
		data,
		b.options.Clock.Now().UTC(),
	); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}

	return nil
}

func (b *mysqlBackend) GetCheckpoint(ctx context.Context, threadID string) (*core.WorkflowState, error) {
	var data []byte

	row := b.db.QueryRowContext(ctx, "SELECT state FROM `checkpoints` WHERE thread_id = ?", threadID)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}

	var state core.WorkflowState
	if err := b.options.Converter.From(data, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}

	return &state, nil
}
