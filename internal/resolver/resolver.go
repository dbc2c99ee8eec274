// Package resolver turns a human-supplied component name into a concrete
// registry record, applying optional type/domain filters before judging
// uniqueness.
package resolver

import (
	"sort"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Filters narrow a lookup. Zero values match everything.
type Filters struct {
	Type   models.ComponentType
	Domain string
}

// Resolve finds the component named name. Matching is case-insensitive on
// the name; filters are ANDed in before ambiguity is evaluated, so a name
// shared by many records still resolves cleanly once a filter singles one
// out. Zero matches yield a NotFoundError, several an AmbiguousError with
// the full candidate list.
func Resolve(reg *models.Registry, name string, f Filters) (*models.ComponentRecord, error) {
	var matches []*models.ComponentRecord
	for _, rec := range reg.Components {
		if !strings.EqualFold(rec.Name, name) {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Domain != "" && rec.Domain != f.Domain {
			continue
		}
		matches = append(matches, rec)
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &apperr.NotFoundError{
			Name:   name,
			Type:   string(f.Type),
			Domain: f.Domain,
		}
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
		return nil, &apperr.AmbiguousError{Name: name, Candidates: matches}
	}
}
