package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/catalogservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *catalogservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Component discovery. The resolve route must not be swallowed by the
	// path wildcard, so it is registered first.
	r.Get("/components/resolve", h.ResolveComponent)
	r.Get("/components", h.ListComponents)
	r.Get("/components/*", h.GetComponent)

	// Search.
	r.Get("/search", h.Search)

	// Index snapshot and registry document.
	r.Get("/index", h.Index)
	r.Get("/registry", h.Registry)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
