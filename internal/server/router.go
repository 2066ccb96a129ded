package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/imtdakar/imtbot/internal/api"
	"github.com/imtdakar/imtbot/internal/api/handlers"
	"github.com/imtdakar/imtbot/internal/api/middleware"
)

type RouterConfig struct {
	// AuthValidator protects the search endpoints when set.
	AuthValidator middleware.AuthValidator
	SearchHandler *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}

		r.Get("/index", cfg.SearchHandler.Index)
		r.Post("/search", cfg.SearchHandler.Search)
	})

	return r
}
