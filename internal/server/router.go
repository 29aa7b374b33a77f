package server

import (
	"net/http"

	"github.com/aifai-labs/aifai/internal/api"
	"github.com/aifai-labs/aifai/internal/api/handlers"
	"github.com/aifai-labs/aifai/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	TokenValidator   middleware.TokenValidator
	KnowledgeHandler *handlers.KnowledgeHandler
	InstanceHandler  *handlers.InstanceHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/instances", cfg.InstanceHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.InstanceAuth(cfg.TokenValidator))

			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/", cfg.KnowledgeHandler.Create)
				r.Get("/", cfg.KnowledgeHandler.Search)
				r.Get("/entries", cfg.KnowledgeHandler.List)
				r.Get("/graph/path", cfg.KnowledgeHandler.Path)
				r.Get("/{id}", cfg.KnowledgeHandler.Get)
				r.Post("/{id}/vote", cfg.KnowledgeHandler.Vote)
				r.Post("/{id}/verify", cfg.KnowledgeHandler.Verify)
				r.Get("/{id}/related", cfg.KnowledgeHandler.Related)
				r.Put("/{id}/lock", cfg.KnowledgeHandler.AcquireLock)
				r.Delete("/{id}/lock", cfg.KnowledgeHandler.ReleaseLock)
				r.Post("/{id}/watch", cfg.KnowledgeHandler.Watch)
			})
		})
	})

	return r
}
