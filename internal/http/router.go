package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"companion-ai/internal/handlers"
	"companion-ai/internal/indexer"
	"companion-ai/internal/rag"
	"companion-ai/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	RAGEngine      rag.Engine
	Pipeline       *indexer.Pipeline
	FeedbackRepo   storage.FeedbackStore
	VectorStore    handlers.CollectionChecker
	CollectionName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.RAGEngine)
	documentsHandler := handlers.NewDocumentsHandler(deps.Pipeline)
	feedbackHandler := handlers.NewFeedbackHandler(deps.FeedbackRepo)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.CollectionName)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodPost, "/ask", askHandler)
			r.Method(http.MethodPost, "/feedback", feedbackHandler)
			r.Post("/documents", documentsHandler.Ingest)
			r.Delete("/documents/{id}", documentsHandler.Delete)
		})
	})

	return r
}
