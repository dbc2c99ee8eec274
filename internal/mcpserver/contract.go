package mcpserver

// ComponentFormatContract describes the canonical component layout and
// frontmatter format that LLM consumers should follow when authoring
// components for the library.
const ComponentFormatContract = `# Othala Component Format Contract

Every component stored in the Othala library MUST follow this structure.

## Layout

Components live under fixed type directories at the library root:

- ` + "`" + `agents/<domain>/<name>.md` + "`" + ` - subagent definitions, grouped by domain
- ` + "`" + `commands/<domain>/<name>.md` + "`" + ` - slash commands, grouped by domain
- ` + "`" + `skills/<skill-name>/SKILL.md` + "`" + ` - one directory per skill; optional
  ` + "`" + `references/` + "`" + `, ` + "`" + `scripts/` + "`" + `, ` + "`" + `assets/` + "`" + ` payload subdirectories
- ` + "`" + `hooks/<domain>/<name>.py` + "`" + ` - hook scripts; a same-stem ` + "`" + `.md` + "`" + ` twin
  carries the metadata
- ` + "`" + `templates/<name>.md` + "`" + ` - flat; folders under ` + "`" + `templates/` + "`" + ` hold
  scaffolding payloads, not components

## Frontmatter

` + "```" + `markdown
---
name: component-name          # identity; defaults to the filename stem
description: What it does     # used in search, listings, paste descriptions
tools: Read, Grep             # OPTIONAL (agents) - comma-separated tool list
model: sonnet                 # OPTIONAL (agents) - preferred model
skills: skill-a, skill-b      # OPTIONAL (agents) - skills the agent loads
gist_url: https://...         # MANAGED - written by publish, never edit
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory** for Markdown components. The ` + "`" + `---` + "`" + `
   fences must be the first thing in the file (no leading blank lines).
2. **Names** are lowercase, kebab-case (e.g. ` + "`" + `code-reviewer` + "`" + `). A skill's
   name is its directory name.
3. **Hook scripts** (` + "`" + `.py` + "`" + `) carry no frontmatter of their own. Document a
   hook in a Markdown twin with the same stem (` + "`" + `run-black.py` + "`" + ` +
   ` + "`" + `run-black.md` + "`" + `).
4. ` + "`" + `README.md` + "`" + ` files, ` + "`" + `__init__.py` + "`" + `, and ` + "`" + `tests/` + "`" + ` trees are
   never components.
5. **Unknown frontmatter keys are preserved verbatim.** Publishing patches
   ` + "`" + `gist_url` + "`" + ` in place and never rewrites, reorders, or drops other keys.
6. **Encoding** is UTF-8 with a trailing newline; paths use forward slashes.

## Publishing

- ` + "`" + `publish` + "`" + ` uploads a component to a GitHub Gist and records it in the
  registry (` + "`" + `.component-registry.json` + "`" + ` at the library root). The registry
  is authoritative; do not edit it by hand.
- Paste descriptions follow ` + "`" + `<dir>/<filename> from component library` + "`" + `.
- Bulk publishing uploads skills first so a skill pack's ` + "`" + `SKILL.md` + "`" + ` lands
  before anything that references it.
`
