// Package router wires the HTTP routes and middleware chain.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayush/task-tracker/internal/auth"
	"github.com/ayush/task-tracker/internal/middleware"
	"github.com/ayush/task-tracker/internal/tasks"
)

// NotFoundRenderer renders the page for unmatched paths.
type NotFoundRenderer interface {
	NotFound(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Sessions    *auth.Manager
	Auth        *auth.Handler
	Tasks       *tasks.Handler
	Views       NotFoundRenderer
	CORSOrigins []string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.LoadSession(d.Sessions))

	r.NotFound(d.Views.NotFound)
	r.MethodNotAllowed(d.Views.NotFound)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.IdentityFrom(r.Context()); ok {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	// public
	r.Get("/register", d.Auth.ShowRegister)
	r.Post("/register", d.Auth.Register)
	r.Get("/login", d.Auth.ShowLogin)
	r.Post("/login", d.Auth.Login)

	// signed-in only
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/logout", d.Auth.Logout)
		r.Get("/dashboard", d.Tasks.Dashboard)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", d.Tasks.List)
			r.Get("/add", d.Tasks.ShowAdd)
			r.Post("/add", d.Tasks.Add)
			r.Get("/edit/{id}", d.Tasks.ShowEdit)
			r.Post("/edit/{id}", d.Tasks.Edit)
			r.Post("/delete/{id}", d.Tasks.Delete)
			r.Post("/status/{id}", d.Tasks.ToggleStatus)
		})
	})

	return r
}
