package search

import (
	"log/slog"
	"strings"
	"time"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/storage"
)

// Sync scans the library and brings the search cache up to date:
//   - new/changed components are upserted
//   - components removed from disk are deleted from the cache
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	return syncLibrary(db, store, scanner.New(store.Root(), logger), logger, nil)
}

// syncLibrary is the shared body of Sync and the watcher's rename
// reconciliation. cb (if non-nil) fires once per cache mutation.
func syncLibrary(db *DB, store storage.Provider, sc *scanner.Scanner, logger *slog.Logger, cb EventCallback) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for _, t := range models.AllTypes {
		for rec := range sc.Scan(t) {
			disk[rec.Path] = struct{}{}

			data, err := store.Read(rec.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", rec.Path), slog.String("error", err.Error()))
				continue
			}
			if checksum.Matches(checksums[rec.Path], data) {
				continue
			}
			_, indexed := checksums[rec.Path]

			if err := indexComponent(db, rec, data); err != nil {
				logger.Warn("sync: index failed", slog.String("path", rec.Path), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("sync: indexed", slog.String("path", rec.Path))
			if cb != nil {
				if indexed {
					cb("updated", rec.Path)
				} else {
					cb("created", rec.Path)
				}
			}
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteComponent(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("sync: removed stale", slog.String("path", p))
			if cb != nil {
				cb("deleted", p)
			}
		}
	}

	return nil
}

// indexComponent upserts one scanned component. Markdown bodies are indexed
// without their metadata block; hook scripts are indexed whole.
func indexComponent(db *DB, rec models.ComponentRecord, data []byte) error {
	body := string(data)
	if strings.HasSuffix(rec.Path, ".md") {
		body = frontmatter.Parse(data).Body()
	}

	row := ComponentRow{
		Path:      rec.Path,
		Name:      rec.Name,
		Type:      string(rec.Type),
		Domain:    rec.Domain,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}
	if rec.Description != nil {
		row.Description = *rec.Description
	}
	return db.UpsertComponent(row, body)
}
