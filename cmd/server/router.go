package main

import (
	"net/http"

	"github.com/phrazzld/taskboard/internal/api"
)

// setupRouter creates the HTTP handler from the application dependencies.
func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterConfig{
		TaskService:  app.taskService,
		Registry:     app.registry,
		Logger:       app.logger,
		DefaultLimit: app.config.Tasks.DefaultLimit,
		MaxLimit:     app.config.Tasks.MaxLimit,
	})
}
