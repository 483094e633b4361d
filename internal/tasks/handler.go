package tasks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ayush/task-tracker/internal/logger"
	"github.com/ayush/task-tracker/internal/middleware"
	"github.com/ayush/task-tracker/internal/models"
)

const (
	msgCreateFailed = "Failed to create task."
	msgUpdateFailed = "Failed to update task."
	msgBadDueDate   = "Due date must be a valid date (YYYY-MM-DD)."
)

// TaskStore defines the interface for owner-scoped task persistence.
type TaskStore interface {
	Create(ctx context.Context, owner string, in models.TaskInput) (*models.Task, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Task, error)
	FindByIDAndOwner(ctx context.Context, id, owner string) (*models.Task, error)
	Update(ctx context.Context, id, owner string, u models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, id, owner string) error
	ToggleStatus(ctx context.Context, id, owner string) (*models.Task, error)
	CountByOwner(ctx context.Context, owner string, status *models.TaskStatus) (int, error)
}

// Renderer writes a named view.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, data any)
}

// TaskForm holds the raw form values, so a rejected submission can be
// shown back exactly as typed.
type TaskForm struct {
	ID          string
	Title       string
	Description string
	DueDate     string
	Status      string
}

type TaskFormView struct {
	Error   string
	Editing bool
	Task    TaskForm
}

type TaskListView struct {
	Tasks []models.Task
}

type DashboardView struct {
	Stats models.TaskStats
}

// Handler holds the dashboard and task HTTP handlers. All of them expect
// middleware.RequireAuth in front.
type Handler struct {
	store TaskStore
	views Renderer
}

func NewHandler(store TaskStore, views Renderer) *Handler {
	return &Handler{store: store, views: views}
}

func ownerOf(r *http.Request) string {
	id, _ := middleware.IdentityFrom(r.Context())
	return id.UserID
}

func formFrom(r *http.Request) TaskForm {
	return TaskForm{
		ID:          chi.URLParam(r, "id"),
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		DueDate:     strings.TrimSpace(r.PostFormValue("dueDate")),
		Status:      strings.TrimSpace(r.PostFormValue("status")),
	}
}

func formOf(t *models.Task) TaskForm {
	f := TaskForm{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
	}
	if t.DueDate != nil {
		f.DueDate = t.DueDate.Format(time.DateOnly)
	}
	return f
}

func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, models.NewValidationError("dueDate", msgBadDueDate)
	}
	return &d, nil
}

// Dashboard shows the owner's task counts. The three counts are independent
// reads; on failure zeros are shown.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	completed, pending := models.StatusCompleted, models.StatusPending

	var stats models.TaskStats
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		stats.Total, err = h.store.CountByOwner(ctx, owner, nil)
		return err
	})
	g.Go(func() (err error) {
		stats.Completed, err = h.store.CountByOwner(ctx, owner, &completed)
		return err
	})
	g.Go(func() (err error) {
		stats.Pending, err = h.store.CountByOwner(ctx, owner, &pending)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("dashboard counts", "user_id", owner, "err", err)
		stats = models.TaskStats{}
	}

	h.views.Render(w, r, http.StatusOK, "dashboard", DashboardView{Stats: stats})
}

// List shows the owner's tasks, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListByOwner(r.Context(), ownerOf(r))
	if err != nil {
		logger.Error("list tasks", "user_id", ownerOf(r), "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.views.Render(w, r, http.StatusOK, "tasks", TaskListView{Tasks: tasks})
}

func (h *Handler) ShowAdd(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "task_form", TaskFormView{
		Task: TaskForm{Status: string(models.StatusPending)},
	})
}

// Add creates a task from the submitted form.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := formFrom(r)
	view := TaskFormView{Task: form}

	due, err := parseDueDate(form.DueDate)
	if err == nil {
		_, err = h.store.Create(r.Context(), ownerOf(r), models.TaskInput{
			Title:       form.Title,
			Description: form.Description,
			DueDate:     due,
			Status:      models.TaskStatus(form.Status),
		})
	}

	var ve *models.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
	case errors.As(err, &ve):
		view.Error = ve.Message
		h.views.Render(w, r, http.StatusUnprocessableEntity, "task_form", view)
	default:
		logger.Error("create task", "user_id", ownerOf(r), "err", err)
		view.Error = msgCreateFailed
		h.views.Render(w, r, http.StatusInternalServerError, "task_form", view)
	}
}

// ShowEdit renders the edit form. Unknown and foreign ids go back to the
// list without comment.
func (h *Handler) ShowEdit(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.FindByIDAndOwner(r.Context(), chi.URLParam(r, "id"), ownerOf(r))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.Error("find task", "user_id", ownerOf(r), "err", err)
		}
		http.Redirect(w, r, "/tasks", http.StatusFound)
		return
	}
	h.views.Render(w, r, http.StatusOK, "task_form", TaskFormView{Editing: true, Task: formOf(t)})
}

// Edit updates the owned task from the submitted form.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := formFrom(r)
	view := TaskFormView{Editing: true, Task: form}

	upd := models.TaskUpdate{
		Title:       &form.Title,
		Description: &form.Description,
	}
	if form.Status != "" {
		status := models.TaskStatus(form.Status)
		upd.Status = &status
	}

	due, err := parseDueDate(form.DueDate)
	if err == nil {
		upd.DueDate = due
		upd.ClearDueDate = due == nil
		_, err = h.store.Update(r.Context(), form.ID, ownerOf(r), upd)
	}

	var ve *models.ValidationError
	switch {
	case err == nil, errors.Is(err, models.ErrNotFound):
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
	case errors.As(err, &ve):
		view.Error = ve.Message
		h.views.Render(w, r, http.StatusUnprocessableEntity, "task_form", view)
	default:
		logger.Error("update task", "user_id", ownerOf(r), "err", err)
		view.Error = msgUpdateFailed
		h.views.Render(w, r, http.StatusInternalServerError, "task_form", view)
	}
}

// Delete removes the owned task; unknown ids are ignored.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), ownerOf(r)); err != nil {
		logger.Error("delete task", "user_id", ownerOf(r), "err", err)
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// ToggleStatus flips pending/completed on the owned task.
func (h *Handler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	_, err := h.store.ToggleStatus(r.Context(), chi.URLParam(r, "id"), ownerOf(r))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		logger.Error("toggle task", "user_id", ownerOf(r), "err", err)
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}
