package api

import (
	"github.com/starford/othala/internal/catalogservice"
	"github.com/starford/othala/internal/models"
)

// ComponentDetail is the full component response type (aliased from the
// domain layer).
type ComponentDetail = catalogservice.ComponentDetail

// ComponentListItem is a lightweight item in a list response (aliased from
// the domain layer).
type ComponentListItem = catalogservice.ComponentListItem

// ComponentListResponse wraps paginated component listings.
type ComponentListResponse struct {
	Components []ComponentListItem `json:"components"`
	Total      int                 `json:"total"`
}

// SearchHit is a single search result in the API response.
type SearchHit struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Domain  string `json:"domain,omitempty"`
	Snippet string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// ResolveConflictResponse is returned when a name matches several components.
type ResolveConflictResponse struct {
	Error      string                    `json:"error"`
	Candidates []*models.ComponentRecord `json:"candidates"`
}
