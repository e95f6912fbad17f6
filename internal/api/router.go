package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/taskboard/internal/api/middleware"
	"github.com/phrazzld/taskboard/internal/api/shared"
	"github.com/phrazzld/taskboard/internal/service"
)

// RouterConfig holds the dependencies of the HTTP API.
type RouterConfig struct {
	TaskService  service.TaskService
	Registry     SubscriberRegistry
	Logger       *slog.Logger
	DefaultLimit int
	MaxLimit     int
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	taskHandler := NewTaskHandler(cfg.TaskService, cfg.DefaultLimit, cfg.MaxLimit, log)
	csvHandler := NewCSVHandler(cfg.TaskService, log)
	realtimeHandler := NewRealtimeHandler(cfg.Registry, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Trace(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{shared.TraceIDHeader, "Content-Disposition"},
	}))

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", taskHandler.ListTasks)
		r.Post("/", taskHandler.CreateTask)
		r.Get("/export", csvHandler.ExportTasks)
		r.Get("/stream", realtimeHandler.ServeSSE)
		r.Get("/{id}", taskHandler.GetTask)
		r.Put("/{id}", taskHandler.UpdateTask)
		r.Patch("/{id}", taskHandler.UpdateTask)
		r.Delete("/{id}", taskHandler.DeleteTask)
	})

	r.Post("/convert", csvHandler.ConvertToCSV)
	r.Get("/ws/tasks", realtimeHandler.ServeWebSocket)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
			Status:      "ok",
			Subscribers: cfg.Registry.Count(),
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
