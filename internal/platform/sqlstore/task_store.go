package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/phrazzld/taskboard/internal/store"
)

// DB is the connection a TaskStore runs on. *sql.DB satisfies it.
type DB interface {
	store.DBTX
	store.TxBeginner
}

// ErrorMapper translates backend specific driver errors into store errors.
type ErrorMapper func(error) error

// TaskStore implements store.TaskStore with plain SQL.
type TaskStore struct {
	db       DB
	mapError ErrorMapper
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone creation timestamps are captured and
// reported in. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *TaskStore) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewTaskStore creates a TaskStore. A nil mapper leaves driver errors as
// they are; a nil logger falls back to slog.Default().
func NewTaskStore(db DB, mapError ErrorMapper, logger *slog.Logger, opts ...Option) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if mapError == nil {
		mapError = func(err error) error { return err }
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &TaskStore{
		db:       db,
		mapError: mapError,
		now:      time.Now,
		location: time.UTC,
		logger:   logger.With(slog.String("component", "task_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.TaskStore = (*TaskStore)(nil)

const taskColumns = "id, title, description, status, created_at"

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, title, description, status string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	draft, err := domain.NewTaskDraft(title, description, status)
	if err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()))
		return nil, err
	}

	task := &domain.Task{
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		CreatedAt:   s.now().In(s.location).Truncate(time.Microsecond),
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			INSERT INTO tasks (title, description, status, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		return tx.QueryRowContext(
			ctx,
			query,
			task.Title,
			task.Description,
			task.Status.String(),
			task.CreatedAt,
		).Scan(&task.ID)
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()))
		return nil, s.wrap("create", err)
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("status", task.Status.String()))
	return task, nil
}

// Get implements store.TaskStore.Get.
func (s *TaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := s.scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, s.wrap("get", err)
	}

	return task, nil
}

// List implements store.TaskStore.List. The count and the page are read in
// one transaction so total always describes the same snapshot as the page.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) (int64, []domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := filter.Validate(); err != nil {
		return 0, nil, err
	}
	where, args, err := statusClause(filter.Status)
	if err != nil {
		log.Warn("invalid status filter", slog.String("error", err.Error()))
		return 0, nil, err
	}

	var (
		total int64
		tasks []domain.Task
	)
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
			return err
		}

		n := len(args)
		query := `SELECT ` + taskColumns + ` FROM tasks` + where +
			` ORDER BY id DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
		page := append(args, filter.Limit, filter.Skip)

		var err error
		tasks, err = s.queryTasks(ctx, tx, query, page...)
		return err
	})
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return 0, nil, s.wrap("list", err)
	}

	log.Debug("tasks listed",
		slog.Int64("total", total),
		slog.Int("returned", len(tasks)))
	return total, tasks, nil
}

// ListAll implements store.TaskStore.ListAll.
func (s *TaskStore) ListAll(ctx context.Context, status domain.Optional[string]) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args, err := statusClause(status)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY id DESC`
	tasks, err := s.queryTasks(ctx, s.db, query, args...)
	if err != nil {
		log.Error("failed to list all tasks", slog.String("error", err.Error()))
		return nil, s.wrap("list", err)
	}
	return tasks, nil
}

// Update implements store.TaskStore.Update. Unset fields are passed as NULL
// and kept by COALESCE, so the change lands in one statement.
func (s *TaskStore) Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	changes, err := patch.Validate()
	if err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, err
	}

	var status sql.NullString
	if st, ok := changes.Status.Get(); ok {
		status = sql.NullString{String: st.String(), Valid: true}
	}

	var task *domain.Task
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			UPDATE tasks
			SET title = COALESCE($1, title),
				description = COALESCE($2, description),
				status = COALESCE($3, status)
			WHERE id = $4
			RETURNING ` + taskColumns
		var err error
		task, err = s.scanTask(tx.QueryRowContext(
			ctx,
			query,
			nullString(changes.Title),
			nullString(changes.Description),
			status,
			id,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found for update", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, s.wrap("update", err)
	}

	log.Info("task updated", slog.Int64("task_id", id))
	return task, nil
}

// Delete implements store.TaskStore.Delete.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return CheckRowsAffected(result, "task")
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("task not found for delete", slog.Int64("task_id", id))
			return store.ErrTaskNotFound
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return s.wrap("delete", err)
	}

	log.Info("task deleted", slog.Int64("task_id", id))
	return nil
}

// CheckRowsAffected returns store.ErrNotFound when a statement touched no rows.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if entityName == "" {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}

	return nil
}

func (s *TaskStore) wrap(operation string, err error) error {
	return store.NewStoreError("task", operation, "database operation failed", s.mapError(err))
}

func statusClause(status domain.Optional[string]) (string, []any, error) {
	raw, ok := status.Get()
	if !ok {
		return "", nil, nil
	}
	parsed, err := domain.ParseTaskStatus(raw)
	if err != nil {
		return "", nil, err
	}
	return ` WHERE status = $1`, []any{parsed.String()}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TaskStore) scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task      domain.Task
		status    string
		createdAt dbTime
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &status, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseTaskStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, fmt.Errorf("%w: stored status %q: %v", store.ErrInvalidEntity, status, err)
	}
	task.Status = parsed
	task.CreatedAt = createdAt.Time.In(s.location)
	return &task, nil
}

func (s *TaskStore) queryTasks(ctx context.Context, q store.DBTX, query string, args ...any) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func nullString(o domain.Optional[string]) sql.NullString {
	v, ok := o.Get()
	return sql.NullString{String: v, Valid: ok}
}
