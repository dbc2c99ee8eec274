// Package catalogservice coordinates storage, the search cache, and the
// registry for the API and MCP layers.
package catalogservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/catalog"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/install"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/storage"
)

// ComponentDetail is the full representation of one component. Files lists a
// skill's payload (references, scripts, assets); it is empty for every other
// type.
type ComponentDetail struct {
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Domain      string            `json:"domain,omitempty"`
	Description string            `json:"description,omitempty"`
	Content     string            `json:"content"`
	Checksum    string            `json:"checksum"`
	Frontmatter map[string]string `json:"frontmatter,omitempty"`
	Files       []string          `json:"files,omitempty"`
	RemoteURL   string            `json:"remote_url,omitempty"`
	PublishedAt time.Time         `json:"published_at,omitzero"`
}

// ComponentListItem is a lightweight item in a list response.
type ComponentListItem struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Domain      string    `json:"domain,omitempty"`
	Description string    `json:"description,omitempty"`
	Checksum    string    `json:"checksum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service coordinates storage, search cache, and registry operations.
type Service struct {
	store  storage.Provider
	db     *search.DB
	reg    *registry.Store
	remote gist.Remote
	log    *slog.Logger
}

// NewService creates a new catalog service. remote may be nil when the caller
// never installs (the read-only API surface).
func NewService(store storage.Provider, db *search.DB, reg *registry.Store, remote gist.Remote, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, db: db, reg: reg, remote: remote, log: log}
}

// ListComponents returns one page of cached components with optional filters.
func (s *Service) ListComponents(_ context.Context, limit, offset int, typ, domain, sort string) ([]ComponentListItem, int, error) {
	rows, total, err := s.db.ListComponents(limit, offset, typ, domain, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ComponentListItem, len(rows))
	for i, r := range rows {
		items[i] = ComponentListItem{
			Path:        r.Path,
			Name:        r.Name,
			Type:        r.Type,
			Domain:      r.Domain,
			Description: r.Description,
			Checksum:    r.Checksum,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// GetComponent reads a component from storage and enriches it with registry
// publication state.
func (s *Service) GetComponent(_ context.Context, path string) (*ComponentDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	rec, err := scanner.New(s.store.Root(), s.log).RecordFor(path)
	if err != nil {
		return nil, err
	}

	detail := &ComponentDetail{
		Path:     rec.Path,
		Name:     rec.Name,
		Type:     string(rec.Type),
		Domain:   rec.Domain,
		Content:  string(data),
		Checksum: checksum.Sum(data),
	}
	if rec.Description != nil {
		detail.Description = *rec.Description
	}
	if strings.HasSuffix(path, ".md") {
		detail.Frontmatter = fieldMap(frontmatter.Parse(data))
	}
	if rec.Type == models.TypeSkill {
		detail.Files = s.skillPayload(rec.Path)
	}

	reg, err := s.reg.Load()
	if err != nil {
		return nil, err
	}
	if entry, ok := reg.Components[rec.Path]; ok {
		detail.RemoteURL = entry.RemoteURL
		detail.PublishedAt = entry.PublishedAt
	}
	return detail, nil
}

// Search delegates full-text search to the cache.
func (s *Service) Search(_ context.Context, query string, limit int) ([]search.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Resolve finds the single registry entry matching name and the optional
// filters. It surfaces apperr.NotFoundError and apperr.AmbiguousError.
func (s *Service) Resolve(_ context.Context, name string, f resolver.Filters) (*models.ComponentRecord, error) {
	reg, err := s.reg.Load()
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(reg, name, f)
}

// Snapshot builds a fresh index snapshot from the library tree.
func (s *Service) Snapshot(_ context.Context) (*models.IndexSnapshot, error) {
	return catalog.NewBuilder(s.store, s.log).Build()
}

// Registry returns the registry document.
func (s *Service) Registry(_ context.Context) (*models.Registry, error) {
	return s.reg.Load()
}

// Install resolves name and installs the published content into the library.
func (s *Service) Install(ctx context.Context, name string, f resolver.Filters, force bool) (*install.Result, error) {
	if s.remote == nil {
		return nil, errors.New("catalogservice: no remote configured")
	}
	inst := install.NewInstaller(s.store, s.remote, s.reg, s.log)
	return inst.ByName(ctx, name, f, "", install.Options{Force: force})
}

// skillPayload lists every file in a skill's directory except the SKILL.md
// itself, sorted. Payload trouble degrades the detail, never fails it.
func (s *Service) skillPayload(skillPath string) []string {
	metas, err := s.store.List(path.Dir(skillPath))
	if err != nil {
		s.log.Warn("skill payload listing failed",
			slog.String("path", skillPath), slog.String("error", err.Error()))
		return nil
	}
	var files []string
	for _, m := range metas {
		if m.Path != skillPath {
			files = append(files, m.Path)
		}
	}
	sort.Strings(files)
	return files
}

// fieldMap flattens a metadata block to decoded scalar values.
func fieldMap(doc *frontmatter.Doc) map[string]string {
	fields := doc.Fields()
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := doc.Get(f.Key); ok {
			out[f.Key] = v
		}
	}
	return out
}
