package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/task-api/internal/api/middleware"
	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/config"
	"github.com/phrazzld/task-api/internal/service/auth"
	"github.com/phrazzld/task-api/internal/store"
)

// RouterDeps holds the dependencies needed to build the API router.
type RouterDeps struct {
	TaskStore        store.TaskStore
	UserStore        store.UserStore
	JWTService       auth.JWTService
	PasswordVerifier auth.PasswordVerifier
	AuthConfig       *config.AuthConfig
	Logger           *slog.Logger
}

// Router is the HTTP handler exposing the full API surface.
type Router struct {
	mux *chi.Mux
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// NewRouter builds the chi router with all middleware and routes.
//
// Route surface:
//
//	POST   /api/auth/register
//	POST   /api/auth/login
//	POST   /api/auth/refresh
//	GET    /api/tasks            (auth)
//	POST   /api/tasks            (auth)
//	GET    /api/tasks/export     (auth)
//	POST   /api/tasks/import     (auth)
//	GET    /api/tasks/{id}       (auth)
//	PATCH  /api/tasks/{id}       (auth)
//	DELETE /api/tasks/{id}       (auth)
//	PATCH  /api/tasks/{id}/assign (auth)
//	GET    /health
func NewRouter(deps RouterDeps) *Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	authHandler := NewAuthHandler(
		deps.UserStore,
		deps.JWTService,
		deps.PasswordVerifier,
		deps.AuthConfig,
		deps.Logger,
	)
	taskHandler := NewTaskHandler(deps.TaskStore, deps.Logger)
	csvHandler := NewTaskCSVHandler(deps.TaskStore, deps.Logger)
	authMiddleware := middleware.NewAuthMiddleware(deps.JWTService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Get("/export", csvHandler.ExportTasks)
			r.Post("/import", csvHandler.ImportTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Patch("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
				r.Patch("/assign", taskHandler.AssignTask)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		shared.RespondWithJSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Router{mux: r}
}
