package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgsync/internal/orgservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *orgservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{id}", h.GetDocument)
	r.Get("/documents/{id}/headlines/{headline}", h.GetHeadline)
	r.Get("/headlines/{headline}/document", h.DocumentForHeadline)

	// Metadata registry.
	r.Get("/tags", h.ListTags)
	r.Get("/tags/{name}/headlines", h.HeadlinesWithTag)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{name}/headlines", h.HeadlinesWithCategory)
	r.Get("/todo-keywords", h.TodoKeywords)

	// Change feed.
	r.Get("/updates", h.Updates)
	r.Get("/failures", h.Failures)

	// Search.
	r.Get("/search", h.Search)

	// Coverage.
	r.Get("/paths", h.GetPaths)
	r.Put("/paths", h.PutPaths)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
