package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayush/task-tracker/internal/logger"
	"github.com/ayush/task-tracker/internal/models"
)

const (
	msgRegisterInvalid    = "Invalid input or passwords do not match."
	msgRegisterDuplicate  = "Username or email already exists."
	msgRegisterFailed     = "Registration failed."
	msgInvalidCredentials = "Invalid credentials."
	msgLoginFailed        = "Login failed."
)

// CredentialStore defines the interface for user persistence.
type CredentialStore interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	FindByLoginIdentifier(ctx context.Context, identifier string) (*models.User, error)
	VerifyPassword(u *models.User, password string) bool
}

// Renderer writes a named view.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, data any)
}

// RegisterView is the view model of the registration form. The password is
// never echoed back.
type RegisterView struct {
	Error    string
	Username string
	Email    string
}

// LoginView is the view model of the login form.
type LoginView struct {
	Error      string
	Identifier string
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    CredentialStore
	sessions *Manager
	views    Renderer
}

func NewHandler(users CredentialStore, sessions *Manager, views Renderer) *Handler {
	return &Handler{users: users, sessions: sessions, views: views}
}

func (h *Handler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "register", RegisterView{})
}

// Register creates a new user and sends them to the login page.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.views.Render(w, r, http.StatusBadRequest, "register", RegisterView{Error: msgRegisterInvalid})
		return
	}
	req := models.RegisterRequest{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	view := RegisterView{Username: req.Username, Email: req.Email}

	if req.Username == "" || req.Email == "" || req.Password == "" || req.Password != req.ConfirmPassword {
		view.Error = msgRegisterInvalid
		h.views.Render(w, r, http.StatusUnprocessableEntity, "register", view)
		return
	}

	if _, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			view.Error = msgRegisterDuplicate
			h.views.Render(w, r, http.StatusConflict, "register", view)
			return
		}
		logger.Error("register user", "username", req.Username, "err", err)
		view.Error = msgRegisterFailed
		h.views.Render(w, r, http.StatusInternalServerError, "register", view)
		return
	}

	logger.Info("user registered", "username", req.Username)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "login", LoginView{})
}

// Login authenticates a user and starts a session. Unknown identifiers and
// wrong passwords produce the same message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.views.Render(w, r, http.StatusBadRequest, "login", LoginView{Error: msgInvalidCredentials})
		return
	}
	req := models.LoginRequest{
		Identifier: strings.TrimSpace(r.PostFormValue("identifier")),
		Password:   r.PostFormValue("password"),
	}
	view := LoginView{Identifier: req.Identifier}

	user, err := h.users.FindByLoginIdentifier(r.Context(), req.Identifier)
	switch {
	case errors.Is(err, models.ErrNotFound):
		view.Error = msgInvalidCredentials
		h.views.Render(w, r, http.StatusUnauthorized, "login", view)
		return
	case err != nil:
		logger.Error("find user", "err", err)
		view.Error = msgLoginFailed
		h.views.Render(w, r, http.StatusInternalServerError, "login", view)
		return
	}

	if !h.users.VerifyPassword(user, req.Password) {
		view.Error = msgInvalidCredentials
		h.views.Render(w, r, http.StatusUnauthorized, "login", view)
		return
	}

	token, err := h.sessions.Begin(Identity{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		logger.Error("begin session", "err", err)
		view.Error = msgLoginFailed
		h.views.Render(w, r, http.StatusInternalServerError, "login", view)
		return
	}

	h.sessions.SetCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout ends the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), h.sessions.TokenFrom(r)); err != nil {
		logger.Warn("end session", "err", err)
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
