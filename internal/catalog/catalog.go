// Package catalog builds the component index snapshot: a full, disposable
// listing of every component in the library, rebuilt from scratch on demand.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/storage"
)

// Version is the snapshot schema version. Bump only on breaking shape changes.
const Version = "1.0.0"

// DefaultFile is the snapshot's location relative to the library root.
const DefaultFile = "index.json"

// Builder assembles index snapshots from a library.
type Builder struct {
	store storage.Provider
	scan  *scanner.Scanner
	log   *slog.Logger
}

// NewBuilder returns a Builder over the given library.
func NewBuilder(store storage.Provider, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		store: store,
		scan:  scanner.New(store.Root(), log),
		log:   log,
	}
}

// Build scans every component type and returns a fresh snapshot. Unreadable
// individual files are skipped by the scanner; Build itself fails only when
// the library root is missing.
func (b *Builder) Build() (*models.IndexSnapshot, error) {
	if _, err := os.Stat(b.store.Root()); err != nil {
		return nil, fmt.Errorf("catalog: library root: %w", err)
	}

	snap := &models.IndexSnapshot{
		Version:     Version,
		GeneratedAt: time.Now().UTC(),
	}
	for _, t := range models.AllTypes {
		bucket := snap.Bucket(t)
		for rec := range b.scan.Scan(t) {
			*bucket = append(*bucket, rec)
		}
	}

	b.log.Debug("catalog: built snapshot",
		"agents", len(snap.Agents),
		"commands", len(snap.Commands),
		"skills", len(snap.Skills),
		"hooks", len(snap.Hooks),
		"templates", len(snap.Templates),
	)
	return snap, nil
}

// Save writes the snapshot as indented JSON at rel (library-relative),
// replacing any previous snapshot wholesale. Snapshots are never read back
// as authority; consumers that need current state rebuild instead.
func (b *Builder) Save(snap *models.IndexSnapshot, rel string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode snapshot: %w", err)
	}
	if err := b.store.Write(rel, append(data, '\n')); err != nil {
		return fmt.Errorf("catalog: save snapshot: %w", err)
	}
	return nil
}
