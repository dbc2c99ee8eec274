// Package scanner walks the component-type directory trees under a library
// root and yields one metadata record per matched file. It reads files but
// never mutates them.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/models"
)

// patterns maps a component type to its glob, relative to the type's
// subdirectory. Templates are flat on purpose: nested template folders
// hold scaffolding payloads, not components.
var patterns = map[models.ComponentType]string{
	models.TypeAgent:    "**/*.md",
	models.TypeCommand:  "**/*.md",
	models.TypeSkill:    "*/SKILL.md",
	models.TypeHook:     "**/*.py",
	models.TypeTemplate: "*.md",
}

// errStop aborts a glob walk once the consumer stops ranging.
var errStop = errors.New("scanner: stop")

// Scanner produces component records from a library root.
type Scanner struct {
	fsys fs.FS
	log  *slog.Logger
}

// New returns a Scanner over the given library root.
func New(root string, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{fsys: os.DirFS(root), log: log}
}

// Scan yields records for every component of type t, one per matched file,
// in a single pass. Files that cannot be read are logged and skipped. A
// missing type directory yields nothing; it is not an error.
func (s *Scanner) Scan(t models.ComponentType) iter.Seq[models.ComponentRecord] {
	return func(yield func(models.ComponentRecord) bool) {
		pattern := path.Join(t.Dir(), patterns[t])
		err := doublestar.GlobWalk(s.fsys, pattern, func(p string, d fs.DirEntry) error {
			if d.IsDir() || skip(t, p) {
				return nil
			}
			rec, err := s.record(t, p)
			if err != nil {
				s.log.Warn("scanner: skipping component", "path", p, "error", err)
				return nil
			}
			if !yield(rec) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			s.log.Warn("scanner: walk failed", "type", t, "error", err)
		}
	}
}

// Match reports whether rel names a component file, and of which type. It
// applies the same glob and skip rules as Scan, so callers reacting to
// filesystem events index exactly what a full scan would. Match is pure path
// logic; the file need not exist.
func Match(rel string) (models.ComponentType, bool) {
	rel = path.Clean(rel)
	dir, _, ok := strings.Cut(rel, "/")
	if !ok {
		return "", false
	}
	t, ok := models.TypeForDir(dir)
	if !ok {
		return "", false
	}
	matched, err := doublestar.Match(path.Join(t.Dir(), patterns[t]), rel)
	if err != nil || !matched || skip(t, rel) {
		return "", false
	}
	return t, true
}

// RecordFor builds the record for a single library file, deriving the
// component type from its top-level directory. Used by publish so registry
// entries carry the same metadata a scan would produce.
func (s *Scanner) RecordFor(rel string) (models.ComponentRecord, error) {
	rel = path.Clean(rel)
	dir, _, ok := strings.Cut(rel, "/")
	if !ok {
		return models.ComponentRecord{}, fmt.Errorf("scanner: %s: not under a component directory", rel)
	}
	t, ok := models.TypeForDir(dir)
	if !ok {
		return models.ComponentRecord{}, fmt.Errorf("scanner: %s: unknown component directory %q", rel, dir)
	}
	return s.record(t, rel)
}

// skip filters out files that match a type's glob but are not components:
// READMEs, python package markers, test trees, and anything under a hidden
// directory.
func skip(t models.ComponentType, rel string) bool {
	base := path.Base(rel)
	if t == models.TypeHook {
		if base == "__init__.py" {
			return true
		}
	} else if base == "README.md" {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
		if t == models.TypeHook && seg == "tests" {
			return true
		}
	}
	return false
}

func (s *Scanner) record(t models.ComponentType, rel string) (models.ComponentRecord, error) {
	data, err := fs.ReadFile(s.fsys, rel)
	if err != nil {
		return models.ComponentRecord{}, err
	}

	rec := models.ComponentRecord{
		Type:   t,
		Path:   rel,
		Domain: domainOf(t, rel),
		Name:   stem(rel),
	}

	var meta *frontmatter.Doc
	switch t {
	case models.TypeSkill:
		// A skill is a directory; the record carries the directory name
		// and flags for its optional payload subdirectories.
		dir := path.Dir(rel)
		rec.Name = path.Base(dir)
		rec.HasReferences = s.dirExists(path.Join(dir, "references"))
		rec.HasScripts = s.dirExists(path.Join(dir, "scripts"))
		rec.HasAssets = s.dirExists(path.Join(dir, "assets"))
		meta = frontmatter.Parse(data)
	case models.TypeHook:
		// Hook docs live in a same-stem markdown twin. A hook without a
		// twin is still a component, just undocumented.
		twin := strings.TrimSuffix(rel, ".py") + ".md"
		if twinData, err := fs.ReadFile(s.fsys, twin); err == nil {
			meta = frontmatter.Parse(twinData)
		}
	default:
		meta = frontmatter.Parse(data)
	}

	if meta != nil {
		if v, ok := meta.Get("name"); ok && v != "" {
			rec.Name = v
		}
		if v, ok := meta.Get("description"); ok {
			rec.Description = &v
		}
		if v, ok := meta.Get("tools"); ok {
			rec.Tools = &v
		}
		if v, ok := meta.Get("model"); ok {
			rec.Model = &v
		}
		if v, ok := meta.Get("skills"); ok {
			rec.Skills = &v
		}
	}
	return rec, nil
}

func (s *Scanner) dirExists(rel string) bool {
	info, err := fs.Stat(s.fsys, rel)
	return err == nil && info.IsDir()
}

// domainOf derives the grouping segment between the type root and the file.
// Skills use their directory as identity, not grouping, so their domain is
// always empty.
func domainOf(t models.ComponentType, rel string) string {
	if t == models.TypeSkill {
		return ""
	}
	inner := strings.TrimPrefix(rel, t.Dir()+"/")
	if i := strings.IndexByte(inner, '/'); i >= 0 {
		return inner[:i]
	}
	return ""
}

func stem(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}
