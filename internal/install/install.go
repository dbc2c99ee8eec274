// Package install writes components fetched from the paste service into the
// library: fetch, classify when the origin carries no metadata, guard
// against overwrites, then write atomically.
package install

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/classify"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/storage"
)

// Options configure one install.
type Options struct {
	Force  bool   // overwrite an existing target instead of failing
	Target string // explicit library-relative target; skips classification
}

// Result reports where a component landed. Certain is false when the
// placement came from the classifier's fallback rule; the install succeeded
// but a human should verify the type and domain.
type Result struct {
	Path    string
	Type    models.ComponentType
	Domain  string
	Certain bool
}

// Installer installs components into one library.
type Installer struct {
	store  storage.Provider
	remote gist.Remote
	reg    *registry.Store
	log    *slog.Logger
}

// NewInstaller returns an Installer over the given library and paste service.
func NewInstaller(store storage.Provider, remote gist.Remote, reg *registry.Store, log *slog.Logger) *Installer {
	if log == nil {
		log = slog.Default()
	}
	return &Installer{store: store, remote: remote, reg: reg, log: log}
}

// FromURL fetches a paste and installs its first file. Without an explicit
// target the type and path are inferred from the filename and content.
func (i *Installer) FromURL(ctx context.Context, pasteURL string, opts Options) (*Result, error) {
	g, err := i.remote.Fetch(ctx, gist.IDFromURL(pasteURL))
	if err != nil {
		return nil, err
	}
	filename, content, err := firstFile(g)
	if err != nil {
		return nil, err
	}

	res := &Result{Certain: true}
	if opts.Target != "" {
		res.Path = opts.Target
		if t, ok := models.TypeForDir(firstSegment(opts.Target)); ok {
			res.Type = t
		}
	} else {
		cls := classify.Classify(filename, []byte(content))
		name, _ := frontmatter.Parse([]byte(content)).Get("name")
		res.Path = classify.TargetPath(cls, name, filename)
		res.Type = cls.Type
		res.Domain = cls.Domain
		res.Certain = cls.Certain
		if res.Domain == "" && cls.Type != models.TypeSkill && cls.Type != models.TypeTemplate {
			res.Domain = classify.DefaultDomain
		}
		if !cls.Certain {
			i.log.Warn("install: classification uncertain, defaulting to agent",
				"filename", filename, "target", res.Path)
		}
	}

	if err := i.write(res.Path, content, opts.Force); err != nil {
		return nil, err
	}
	i.log.Info("install: done", "path", res.Path, "from", pasteURL)
	return res, nil
}

// ByName resolves name against a registry and installs the record's paste
// at the record's own path. The registry is the local one unless registryURL
// points at a published registry paste.
func (i *Installer) ByName(ctx context.Context, name string, f resolver.Filters, registryURL string, opts Options) (*Result, error) {
	var reg *models.Registry
	var err error
	if registryURL != "" {
		reg, err = registry.FetchRemote(ctx, i.remote, registryURL)
	} else {
		reg, err = i.reg.Load()
	}
	if err != nil {
		return nil, err
	}

	rec, err := resolver.Resolve(reg, name, f)
	if err != nil {
		return nil, err
	}
	if rec.RemoteID == "" && rec.RemoteURL == "" {
		return nil, fmt.Errorf("install: component %q has never been published", rec.Name)
	}
	id := rec.RemoteID
	if id == "" {
		id = gist.IDFromURL(rec.RemoteURL)
	}

	g, err := i.remote.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	_, content, err := firstFile(g)
	if err != nil {
		return nil, err
	}

	target := rec.Path
	if opts.Target != "" {
		target = opts.Target
	}
	if err := i.write(target, content, opts.Force); err != nil {
		return nil, err
	}

	i.log.Info("install: done", "name", rec.Name, "path", target)
	return &Result{
		Path:    target,
		Type:    rec.Type,
		Domain:  rec.Domain,
		Certain: true,
	}, nil
}

// write guards the target and writes atomically. An existing target without
// force is a ConflictError and leaves the file untouched.
func (i *Installer) write(rel, content string, force bool) error {
	exists, err := i.store.Exists(rel)
	if err != nil {
		return fmt.Errorf("install: %w", err)
	}
	if exists && !force {
		return &apperr.ConflictError{Path: rel}
	}
	if err := i.store.Write(rel, []byte(content)); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	return nil
}

// firstFile picks the paste's payload: its first file by name, for
// determinism across fetches.
func firstFile(g *gist.Gist) (string, string, error) {
	if len(g.Files) == 0 {
		return "", "", fmt.Errorf("install: paste has no files")
	}
	names := make([]string, 0, len(g.Files))
	for n := range g.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	name := names[0]
	content := g.Files[name]
	if content == "" {
		return "", "", fmt.Errorf("install: paste file %s is empty", name)
	}
	return name, content, nil
}

func firstSegment(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return rel
}
