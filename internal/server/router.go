package server

import (
	"net/http"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/api/handlers"
	"github.com/agentkb/agentkb/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AgentHandler        *handlers.AgentHandler
	KnowledgeHandler    *handlers.KnowledgeHandler
	ChunkHandler        *handlers.ChunkHandler
	ConversationHandler *handlers.ConversationHandler
	ChatHandler         *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Large enough for document imports, small enough to bound memory.
	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/agents", func(r chi.Router) {
		r.Post("/", cfg.AgentHandler.Create)
		r.Get("/", cfg.AgentHandler.List)
		r.Get("/default", cfg.AgentHandler.GetDefault)

		r.Route("/{agentID}", func(r chi.Router) {
			r.Get("/", cfg.AgentHandler.Get)
			r.Put("/", cfg.AgentHandler.Update)
			r.Delete("/", cfg.AgentHandler.Delete)

			r.Post("/chat", cfg.ChatHandler.Stream)

			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/", cfg.KnowledgeHandler.Create)
				r.Get("/", cfg.KnowledgeHandler.List)

				r.Route("/{knowledgeID}", func(r chi.Router) {
					r.Get("/", cfg.KnowledgeHandler.Get)
					r.Put("/", cfg.KnowledgeHandler.Update)
					r.Delete("/", cfg.KnowledgeHandler.Delete)
					r.Post("/import", cfg.KnowledgeHandler.Import)

					r.Route("/chunks", func(r chi.Router) {
						r.Post("/", cfg.ChunkHandler.Add)
						r.Get("/", cfg.ChunkHandler.List)
						r.Post("/search", cfg.ChunkHandler.Search)

						r.Route("/{chunkID}", func(r chi.Router) {
							r.Get("/", cfg.ChunkHandler.Get)
							r.Put("/", cfg.ChunkHandler.Update)
							r.Delete("/", cfg.ChunkHandler.Delete)
						})
					})
				})
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", cfg.ConversationHandler.Create)
				r.Get("/", cfg.ConversationHandler.List)

				r.Route("/{conversationID}", func(r chi.Router) {
					r.Get("/", cfg.ConversationHandler.Get)
					r.Put("/", cfg.ConversationHandler.Rename)
					r.Delete("/", cfg.ConversationHandler.Delete)
					r.Get("/messages", cfg.ConversationHandler.Messages)
				})
			})
		})
	})

	return r
}
