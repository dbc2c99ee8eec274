// Package registry persists the authoritative mapping from component path to
// publication metadata. Unlike the index snapshot it is never rebuilt from
// the file tree: every mutation is an explicit load→modify→save cycle.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

const (
	// File is the registry's location relative to the library root.
	File = ".component-registry.json"
	// URLFile remembers where the registry itself was last published.
	URLFile = ".component-registry-url"
	// Version is the registry schema version.
	Version = "1.0.0"

	defaultDescription = "Registry of components published to GitHub Gists"
)

// New returns an empty registry with the current schema version.
func New() *models.Registry {
	return &models.Registry{
		Version:     Version,
		Description: defaultDescription,
		Components:  map[string]*models.ComponentRecord{},
	}
}

// Store reads and writes the registry file.
type Store struct {
	store   storage.Provider
	file    string
	urlFile string
}

// NewStore returns a Store over the library's registry file at its
// conventional locations.
func NewStore(store storage.Provider) *Store {
	return NewStoreAt(store, File, URLFile)
}

// NewStoreAt returns a Store over explicit library-relative locations, for
// deployments that relocate the registry inside the library.
func NewStoreAt(store storage.Provider, file, urlFile string) *Store {
	if file == "" {
		file = File
	}
	if urlFile == "" {
		urlFile = URLFile
	}
	return &Store{store: store, file: file, urlFile: urlFile}
}

// File returns the registry's library-relative location.
func (s *Store) File() string { return s.file }

// Load reads the registry. An absent file is a first run and yields an empty
// registry; a present but unparseable or malformed file is a StructuralError,
// never silently replaced.
func (s *Store) Load() (*models.Registry, error) {
	ok, err := s.store.Exists(s.file)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if !ok {
		return New(), nil
	}

	data, err := s.store.Read(s.file)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	reg, err := decode(data)
	if err != nil {
		return nil, &apperr.StructuralError{Path: s.file, Err: err}
	}
	return reg, nil
}

// Save writes the registry atomically.
func (s *Store) Save(reg *models.Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := s.store.Write(s.file, append(data, '\n')); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	return nil
}

// RemoteURL returns the paste URL the registry was last published to, if any.
func (s *Store) RemoteURL() (string, bool) {
	data, err := s.store.Read(s.urlFile)
	if err != nil {
		return "", false
	}
	u := strings.TrimSpace(string(data))
	return u, u != ""
}

// SaveRemoteURL records the registry's own paste URL for future updates.
func (s *Store) SaveRemoteURL(u string) error {
	if err := s.store.Write(s.urlFile, []byte(u+"\n")); err != nil {
		return fmt.Errorf("registry: save url: %w", err)
	}
	return nil
}

func decode(data []byte) (*models.Registry, error) {
	var reg models.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if reg.Components == nil {
		reg.Components = map[string]*models.ComponentRecord{}
	}
	if err := Validate(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks the registry's structural invariants: a version, and every
// component keyed by its own path with a name and a known type.
func Validate(reg *models.Registry) error {
	if err := validation.ValidateStruct(reg,
		validation.Field(&reg.Version, validation.Required),
	); err != nil {
		return err
	}
	for path, rec := range reg.Components {
		if rec == nil {
			return fmt.Errorf("component %q: null entry", path)
		}
		if err := validation.ValidateStruct(rec,
			validation.Field(&rec.Name, validation.Required),
			validation.Field(&rec.Type, validation.Required, validation.In(
				models.TypeAgent, models.TypeCommand, models.TypeSkill, models.TypeHook, models.TypeTemplate)),
			validation.Field(&rec.Path, validation.Required),
		); err != nil {
			return fmt.Errorf("component %q: %w", path, err)
		}
		if rec.Path != path {
			return fmt.Errorf("component %q: path field is %q, must match its key", path, rec.Path)
		}
	}
	return nil
}

// Upsert inserts or replaces rec by path and returns the stored record.
// Replacing preserves the original published_at; every other field is
// overwritten and updated_at is refreshed. A remote id may appear on at most
// one entry, so an entry at a different path claiming rec's remote id is
// dropped (the component moved on disk and kept its paste).
func Upsert(reg *models.Registry, rec models.ComponentRecord, now time.Time) *models.ComponentRecord {
	stored := rec
	if prev, ok := reg.Components[rec.Path]; ok && !prev.PublishedAt.IsZero() {
		stored.PublishedAt = prev.PublishedAt
	} else {
		stored.PublishedAt = now
	}
	stored.UpdatedAt = now

	if stored.RemoteID != "" {
		for p, other := range reg.Components {
			if p != stored.Path && other != nil && other.RemoteID == stored.RemoteID {
				delete(reg.Components, p)
			}
		}
	}

	reg.Components[stored.Path] = &stored
	return &stored
}

// Delete removes the entry at path, reporting whether it existed.
func Delete(reg *models.Registry, path string) bool {
	if _, ok := reg.Components[path]; !ok {
		return false
	}
	delete(reg.Components, path)
	return true
}

// FetchRemote downloads a registry published as a paste. The registry
// document is the first .json file in the paste (by name, for determinism).
func FetchRemote(ctx context.Context, remote gist.Remote, urlOrID string) (*models.Registry, error) {
	g, err := remote.Fetch(ctx, gist.IDFromURL(urlOrID))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(g.Files))
	for name := range g.Files {
		if strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, &apperr.StructuralError{
			Path: urlOrID,
			Err:  fmt.Errorf("paste has no .json registry file"),
		}
	}
	sort.Strings(names)

	reg, err := decode([]byte(g.Files[names[0]]))
	if err != nil {
		return nil, &apperr.StructuralError{Path: urlOrID, Err: err}
	}
	return reg, nil
}
