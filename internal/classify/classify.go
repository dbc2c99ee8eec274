// Package classify infers a component's type and install path from raw file
// content. It is the fallback for installing content whose origin metadata is
// unknown, e.g. a bare paste URL with no registry entry.
package classify

import (
	"path"
	"strings"

	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/models"
)

// DefaultDomain groups installed components that carry no domain hint.
const DefaultDomain = "uncategorized"

// Result is a classification outcome. Certain is false when only the
// fallback rule matched; installs proceed but should surface the guess so a
// human can correct the placement afterwards.
type Result struct {
	Type    models.ComponentType
	Domain  string
	Certain bool
}

// rules are evaluated top to bottom, first match wins. The order is a
// deliberate tie-break policy: the extension is the strongest signal, agent-
// vs command-only frontmatter fields beat filename heuristics, and the
// SKILL.md filename is checked last because it is narrow enough to appear in
// other contexts.
var rules = []struct {
	name  string
	match func(filename string, meta *frontmatter.Doc) (models.ComponentType, bool)
}{
	{"py-extension", func(filename string, _ *frontmatter.Doc) (models.ComponentType, bool) {
		if strings.HasSuffix(filename, ".py") {
			return models.TypeHook, true
		}
		return "", false
	}},
	{"skills-field", func(_ string, meta *frontmatter.Doc) (models.ComponentType, bool) {
		if meta.Has("skills") {
			return models.TypeAgent, true
		}
		return "", false
	}},
	{"allowed-tools-field", func(_ string, meta *frontmatter.Doc) (models.ComponentType, bool) {
		if meta.Has("allowed-tools") {
			return models.TypeCommand, true
		}
		return "", false
	}},
	{"skill-filename", func(filename string, _ *frontmatter.Doc) (models.ComponentType, bool) {
		if path.Base(filename) == "SKILL.md" {
			return models.TypeSkill, true
		}
		return "", false
	}},
}

// Classify runs the rules against a filename and its content. When nothing
// matches it falls back to agent, the most general type, with Certain=false.
func Classify(filename string, content []byte) Result {
	meta := frontmatter.Parse(content)

	res := Result{Domain: domainHint(meta)}
	for _, r := range rules {
		if t, ok := r.match(filename, meta); ok {
			res.Type = t
			res.Certain = true
			return res
		}
	}
	res.Type = models.TypeAgent
	return res
}

// domainHint reads a grouping hint from frontmatter. Hand-authored files
// use either key.
func domainHint(meta *frontmatter.Doc) string {
	if v, ok := meta.Get("domain"); ok && v != "" {
		return v
	}
	if v, ok := meta.Get("category"); ok && v != "" {
		return v
	}
	return ""
}

// TargetPath maps a classification to the library-relative install path.
// Skills become a directory named after the component; templates are flat;
// everything else is grouped under a domain directory, defaulting to
// DefaultDomain when the classification carried no hint.
func TargetPath(res Result, name, filename string) string {
	base := path.Base(filename)
	switch res.Type {
	case models.TypeSkill:
		if name == "" {
			name = strings.TrimSuffix(base, path.Ext(base))
		}
		return path.Join(models.TypeSkill.Dir(), name, "SKILL.md")
	case models.TypeTemplate:
		return path.Join(models.TypeTemplate.Dir(), base)
	default:
		domain := res.Domain
		if domain == "" {
			domain = DefaultDomain
		}
		return path.Join(res.Type.Dir(), domain, base)
	}
}
