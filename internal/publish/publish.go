// Package publish implements the publication state machine: read, diff
// against the last published state, create or update the paste, patch the
// paste URL back into the file, and finally upsert the registry. The
// registry write comes last so a crash leaves the remote and the file ahead
// of the registry, which re-running recovers.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/storage"
)

const (
	// registryFilename is the name the registry document carries inside its
	// own paste. Install looks for the first .json file, so the exact name
	// only matters for humans browsing the paste.
	registryFilename = "component-registry.json"

	registryDescription = "Othala component registry - discover and install components"
)

// Options configure one publish.
type Options struct {
	Public bool // create the paste public; visibility is fixed at creation
	New    bool // ignore any prior paste and create a fresh one
}

// Outcome reports what a publish did.
type Outcome struct {
	Record  *models.ComponentRecord
	Created bool // a new paste was created rather than updated
	Skipped bool // content matched the last published state; no remote call
}

// Summary tallies a bulk publish.
type Summary struct {
	Published int
	Skipped   int
	Failed    int
}

// Publisher runs publish workflows against one library and one remote.
type Publisher struct {
	store  storage.Provider
	remote gist.Remote
	reg    *registry.Store
	scan   *scanner.Scanner
	log    *slog.Logger
	now    func() time.Time
}

// NewPublisher returns a Publisher over the given library and paste service.
func NewPublisher(store storage.Provider, remote gist.Remote, reg *registry.Store, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		store:  store,
		remote: remote,
		reg:    reg,
		scan:   scanner.New(store.Root(), log),
		log:    log,
		now:    time.Now,
	}
}

// Publish pushes one component to the paste service and records it in the
// registry. A prior paste (known from the registry, or from the file's own
// gist_url) is updated in place, keeping publishes idempotent; Options.New
// forces a fresh paste instead. When the content already matches the last
// published state the remote call is skipped entirely and only the
// registry's updated_at moves.
func (p *Publisher) Publish(ctx context.Context, rel string, opts Options) (*Outcome, error) {
	content, err := p.store.Read(rel)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	reg, err := p.reg.Load()
	if err != nil {
		return nil, err
	}

	rec, err := p.scan.RecordFor(rel)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	doc := frontmatter.Parse(content)
	prev := reg.Components[rel]

	var priorID, priorURL string
	if !opts.New {
		if prev != nil && prev.RemoteID != "" {
			priorID, priorURL = prev.RemoteID, prev.RemoteURL
		} else if u, ok := doc.Get("gist_url"); ok && u != "" {
			priorID, priorURL = gist.IDFromURL(u), u
		}
	}

	sum := checksum.Sum(content)
	out := &Outcome{}

	if prev != nil && priorID != "" && prev.Checksum == sum {
		out.Skipped = true
		rec.RemoteID, rec.RemoteURL, rec.Checksum = priorID, priorURL, sum
		p.log.Debug("publish: content unchanged, skipping remote write", "path", rel)
	} else {
		g := gist.Gist{
			Description: describe(rel),
			Public:      opts.Public,
			Files:       map[string]string{path.Base(rel): string(content)},
		}
		var published *gist.Gist
		if priorID != "" {
			published, err = p.remote.Update(ctx, priorID, g)
		} else {
			published, err = p.remote.Create(ctx, g)
			out.Created = true
		}
		if err != nil {
			return nil, err
		}
		rec.RemoteID, rec.RemoteURL, rec.Checksum = published.ID, published.URL, sum
	}

	// Patch the paste URL into the file. The parser's round-trip guarantee
	// keeps every other byte identical. Script components have no
	// frontmatter block to patch.
	if strings.HasSuffix(rel, ".md") {
		if cur, _ := doc.Get("gist_url"); cur != rec.RemoteURL {
			doc.Set("gist_url", rec.RemoteURL)
			if err := p.store.Write(rel, doc.Bytes()); err != nil {
				return nil, fmt.Errorf("publish: patch %s: %w", rel, err)
			}
		}
	}

	out.Record = registry.Upsert(reg, rec, p.now().UTC())
	if err := p.reg.Save(reg); err != nil {
		return nil, err
	}

	p.log.Info("publish: done",
		"path", rel,
		"remote_id", out.Record.RemoteID,
		"created", out.Created,
		"skipped", out.Skipped)
	return out, nil
}

// PublishAll publishes every component the scanner finds under root,
// pausing delay between remote calls. Individual failures are logged and
// counted, never abort the run.
func (p *Publisher) PublishAll(ctx context.Context, opts Options, delay time.Duration) (*Summary, error) {
	// Materialize the scan up front: publishing patches files in place and
	// must not race the directory walk. Skills go first so a skill pack's
	// SKILL.md lands before anything that references it.
	order := []models.ComponentType{models.TypeSkill}
	for _, t := range models.AllTypes {
		if t != models.TypeSkill {
			order = append(order, t)
		}
	}
	var paths []string
	for _, t := range order {
		for rec := range p.scan.Scan(t) {
			paths = append(paths, rec.Path)
		}
	}

	sum := &Summary{}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, err := p.Publish(ctx, rel, opts)
		if err != nil {
			p.log.Error("publish: component failed", "path", rel, "error", err)
			sum.Failed++
			continue
		}
		if out.Skipped {
			sum.Skipped++
			continue
		}
		sum.Published++
		if delay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return sum, nil
}

// PublishRegistry uploads the registry file itself as a paste so a remote
// party can discover and install from it. The paste URL is remembered next
// to the registry so later runs update the same paste.
func (p *Publisher) PublishRegistry(ctx context.Context, opts Options) (string, error) {
	regFile := p.reg.File()
	ok, err := p.store.Exists(regFile)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("publish: no registry at %s: publish a component first", regFile)
	}
	content, err := p.store.Read(regFile)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	var priorID string
	if !opts.New {
		if u, ok := p.reg.RemoteURL(); ok {
			priorID = gist.IDFromURL(u)
		}
	}

	g := gist.Gist{
		Description: registryDescription,
		Public:      opts.Public,
		Files:       map[string]string{registryFilename: string(content)},
	}
	var published *gist.Gist
	if priorID != "" {
		published, err = p.remote.Update(ctx, priorID, g)
	} else {
		published, err = p.remote.Create(ctx, g)
	}
	if err != nil {
		return "", err
	}

	if err := p.reg.SaveRemoteURL(published.URL); err != nil {
		return "", err
	}
	p.log.Info("publish: registry published", "url", published.URL)
	return published.URL, nil
}

func describe(rel string) string {
	return fmt.Sprintf("%s/%s from component library", path.Base(path.Dir(rel)), path.Base(rel))
}
