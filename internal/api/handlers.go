package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/catalogservice"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/resolver"
)

// Handler holds API route handlers.
type Handler struct {
	svc *catalogservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *catalogservice.Service) *Handler {
	return &Handler{svc: svc}
}

// componentPath extracts the component path from the URL (everything after
// /api/components/). Supports encoded slashes from generated clients
// (e.g. agents%2Fweb%2Freviewer.md).
func componentPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// typeFilter validates the optional ?type= query value.
func typeFilter(r *http.Request) (models.ComponentType, bool) {
	ts := r.URL.Query().Get("type")
	if ts == "" {
		return "", true
	}
	t := models.ComponentType(ts)
	return t, t.Valid()
}

// ListComponents handles GET /api/components.
//
//	@Summary		List components with optional pagination and filtering
//	@Tags			components
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			type	query		string	false	"Filter by component type"	Enums(agent, command, skill, hook, template)
//	@Param			domain	query		string	false	"Filter by domain"
//	@Param			sort	query		string	false	"Sort field"	Enums(name, updated)
//	@Success		200		{object}	ComponentListResponse
//	@Security		BearerAuth
//	@Router			/components [get]
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	typ, ok := typeFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown component type"))
		return
	}

	items, total, err := h.svc.ListComponents(r.Context(), limit, offset, string(typ), q.Get("domain"), q.Get("sort"))
	if err != nil {
		internalError(w, "list components failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"components": items,
		"total":      total,
	})
}

// ResolveComponent handles GET /api/components/resolve.
//
//	@Summary		Resolve a component name to its registry entry
//	@Tags			components
//	@Produce		json
//	@Param			name	query		string	true	"Component name (case-insensitive)"
//	@Param			type	query		string	false	"Narrow by component type"
//	@Param			domain	query		string	false	"Narrow by domain"
//	@Success		200		{object}	models.ComponentRecord
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	ResolveConflictResponse
//	@Security		BearerAuth
//	@Router			/components/resolve [get]
func (h *Handler) ResolveComponent(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'name' is required"))
		return
	}

	typ, ok := typeFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown component type"))
		return
	}
	f := resolver.Filters{Type: typ, Domain: r.URL.Query().Get("domain")}

	rec, err := h.svc.Resolve(r.Context(), name, f)
	if err != nil {
		var amb *apperr.AmbiguousError
		switch {
		case errors.As(err, &amb):
			writeJSON(w, http.StatusConflict, ResolveConflictResponse{
				Error:      amb.Error(),
				Candidates: amb.Candidates,
			})
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		default:
			internalError(w, "resolve failed", err, slog.String("name", name))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetComponent handles GET /api/components/*.
//
//	@Summary		Get a single component by library path
//	@Tags			components
//	@Produce		json
//	@Param			path	path		string	true	"Component path"
//	@Success		200		{object}	ComponentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{path} [get]
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	path := componentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.GetComponent(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			internalError(w, "get component failed", err, slog.String("path", path))
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the component corpus
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		internalError(w, "search failed", err, slog.String("query", q))
		return
	}
	hits := make([]SearchHit, len(results))
	for i, res := range results {
		hits[i] = SearchHit{
			Path:    res.Path,
			Name:    res.Name,
			Type:    res.Type,
			Domain:  res.Domain,
			Snippet: res.Snippet,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
	})
}

// Index handles GET /api/index.
//
//	@Summary		Build a fresh index snapshot of the library
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	models.IndexSnapshot
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		internalError(w, "index snapshot failed", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Registry handles GET /api/registry.
//
//	@Summary		Get the component registry document
//	@Tags			registry
//	@Produce		json
//	@Success		200	{object}	models.Registry
//	@Security		BearerAuth
//	@Router			/registry [get]
func (h *Handler) Registry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Registry(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrStructural) {
			slog.Error("registry damaged", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("registry file is damaged"))
			return
		}
		internalError(w, "registry read failed", err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
