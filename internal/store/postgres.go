package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/task-tracker/internal/models"
)

// DBTX is the subset of database/sql used by TaskStore. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const taskColumns = `id, title, description, due_date, status, user_id, created_at, updated_at`

// TaskStore handles task CRUD against PostgreSQL. Every query is scoped by
// the owning user id.
type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t   models.Task
		due sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &t.Status, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

// Create inserts a task for owner. Status defaults to pending.
func (s *TaskStore) Create(ctx context.Context, owner string, in models.TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("title", "Title is required.")
	}
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		return nil, models.NewValidationError("status", "Status must be pending or completed.")
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, description, due_date, status, user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+taskColumns,
		title, in.Description, nullableDate(in.DueDate), string(status), owner,
	)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// ListByOwner returns owner's tasks, newest first.
func (s *TaskStore) ListByOwner(ctx context.Context, owner string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindByIDAndOwner returns models.ErrNotFound for malformed, missing and
// foreign ids alike.
func (s *TaskStore) FindByIDAndOwner(ctx context.Context, id, owner string) (*models.Task, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, owner)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundOr(err, "find task")
	}
	return t, nil
}

// Update writes the non-nil fields of u to the owned task.
func (s *TaskStore) Update(ctx context.Context, id, owner string, u models.TaskUpdate) (*models.Task, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, models.NewValidationError("title", "Title is required.")
		}
		add("title", title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.ClearDueDate {
		add("due_date", nil)
	} else if u.DueDate != nil {
		add("due_date", *u.DueDate)
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, models.NewValidationError("status", "Status must be pending or completed.")
		}
		add("status", string(*u.Status))
	}
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id, owner)

	query := fmt.Sprintf(`UPDATE tasks SET %s
		 WHERE id = $%d AND user_id = $%d
		 RETURNING %s`, strings.Join(sets, ", "), len(args)-1, len(args), taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "update task")
	}
	return t, nil
}

// Delete removes the owned task. Missing or foreign ids are not an error.
func (s *TaskStore) Delete(ctx context.Context, id, owner string) error {
	if !validID(id) {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, owner); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ToggleStatus flips pending and completed in a single statement.
func (s *TaskStore) ToggleStatus(ctx context.Context, id, owner string) (*models.Task, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET status = CASE WHEN status = 'completed' THEN 'pending' ELSE 'completed' END,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskColumns, id, owner)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundOr(err, "toggle task")
	}
	return t, nil
}

// CountByOwner counts owner's tasks, optionally restricted to one status.
func (s *TaskStore) CountByOwner(ctx context.Context, owner string, status *models.TaskStatus) (int, error) {
	var (
		n   int
		err error
	)
	if status == nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE user_id = $1`, owner).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND status = $2`, owner, string(*status)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
