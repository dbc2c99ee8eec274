// Package models defines the domain types for Othala.
package models

import "time"

// ComponentType identifies what kind of component a file is.
type ComponentType string

// The five component types the library understands.
const (
	TypeAgent    ComponentType = "agent"
	TypeCommand  ComponentType = "command"
	TypeSkill    ComponentType = "skill"
	TypeHook     ComponentType = "hook"
	TypeTemplate ComponentType = "template"
)

// AllTypes lists every component type in scan order.
var AllTypes = []ComponentType{TypeAgent, TypeCommand, TypeSkill, TypeHook, TypeTemplate}

// typeDirs maps a component type to its subdirectory under the library root.
var typeDirs = map[ComponentType]string{
	TypeAgent:    "agents",
	TypeCommand:  "commands",
	TypeSkill:    "skills",
	TypeHook:     "hooks",
	TypeTemplate: "templates",
}

// Dir returns the library subdirectory holding components of this type.
func (t ComponentType) Dir() string {
	return typeDirs[t]
}

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	_, ok := typeDirs[t]
	return ok
}

// TypeForDir returns the component type whose tree starts at dir
// ("agents" → TypeAgent). ok is false for unknown directories.
func TypeForDir(dir string) (ComponentType, bool) {
	for t, d := range typeDirs {
		if d == dir {
			return t, true
		}
	}
	return "", false
}

// ComponentRecord is one entry per on-disk component. The same shape serves
// both the index snapshot (scan output, no remote/timestamps) and the
// registry (publication bookkeeping added).
//
// Description/Tools/Model/Skills are pointers so that "not specified" and
// "explicitly empty" survive a round trip: absent frontmatter keys marshal as
// omitted JSON keys, present-but-empty keys marshal as "".
type ComponentRecord struct {
	Name   string        `json:"name"`
	Type   ComponentType `json:"type"`
	Domain string        `json:"domain"` // subdirectory grouping; empty for root-level items
	Path   string        `json:"path"`   // library-relative; primary key in the registry

	RemoteURL string `json:"remote_url,omitempty"` // set on first publish
	RemoteID  string `json:"remote_id,omitempty"`  // unique once assigned

	Description *string `json:"description,omitempty"`
	Tools       *string `json:"tools,omitempty"`
	Model       *string `json:"model,omitempty"`
	Skills      *string `json:"skills,omitempty"`

	// Skill-only directory flags (sibling dirs next to SKILL.md).
	HasReferences bool `json:"has_references,omitempty"`
	HasScripts    bool `json:"has_scripts,omitempty"`
	HasAssets     bool `json:"has_assets,omitempty"`

	// Checksum is the SHA-256 of the file content at publish time, used to
	// skip remote updates when nothing changed.
	Checksum string `json:"checksum,omitempty"`

	PublishedAt time.Time `json:"published_at,omitzero"` // set once, never overwritten
	UpdatedAt   time.Time `json:"updated_at,omitzero"`   // refreshed on every publish
}

// Registry is the persisted, authoritative mapping from component path to
// publication metadata. It is load-modify-saved wholesale; entries are removed
// only by explicit deletion, never by rebuild.
type Registry struct {
	Version     string                      `json:"version"`
	Description string                      `json:"description"`
	Components  map[string]*ComponentRecord `json:"components"`
}

// IndexSnapshot is the derived, fully-rebuildable listing of every component
// in the library. Consumers must treat it as a disposable cache.
type IndexSnapshot struct {
	Version     string            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	Agents      []ComponentRecord `json:"agents"`
	Commands    []ComponentRecord `json:"commands"`
	Skills      []ComponentRecord `json:"skills"`
	Hooks       []ComponentRecord `json:"hooks"`
	Templates   []ComponentRecord `json:"templates"`
}

// Bucket returns the snapshot slice holding records of the given type.
func (s *IndexSnapshot) Bucket(t ComponentType) *[]ComponentRecord {
	switch t {
	case TypeAgent:
		return &s.Agents
	case TypeCommand:
		return &s.Commands
	case TypeSkill:
		return &s.Skills
	case TypeHook:
		return &s.Hooks
	case TypeTemplate:
		return &s.Templates
	}
	return nil
}

// Total returns the number of records across all buckets.
func (s *IndexSnapshot) Total() int {
	return len(s.Agents) + len(s.Commands) + len(s.Skills) + len(s.Hooks) + len(s.Templates)
}
