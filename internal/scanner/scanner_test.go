package scanner

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/starford/othala/internal/models"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func collect(t *testing.T, s *Scanner, ct models.ComponentType) []models.ComponentRecord {
	t.Helper()
	var out []models.ComponentRecord
	for rec := range s.Scan(ct) {
		out = append(out, rec)
	}
	return out
}

func names(recs []models.ComponentRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	slices.Sort(out)
	return out
}

func TestScanAgents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/web/reviewer.md", "---\nname: code-reviewer\ndescription: Reviews code\ntools: Read, Grep\nmodel: opus\n---\nbody\n")
	writeFile(t, root, "agents/web/README.md", "docs, not a component\n")
	writeFile(t, root, "agents/planner.md", "no frontmatter here\n")

	s := New(root, nil)
	recs := collect(t, s, models.TypeAgent)
	if len(recs) != 2 {
		t.Fatalf("Scan: got %d records, want 2: %+v", len(recs), recs)
	}

	byName := map[string]models.ComponentRecord{}
	for _, r := range recs {
		byName[r.Name] = r
	}

	rev, ok := byName["code-reviewer"]
	if !ok {
		t.Fatalf("Scan: missing code-reviewer, got %v", names(recs))
	}
	if rev.Domain != "web" {
		t.Errorf("Domain: got %q, want %q", rev.Domain, "web")
	}
	if rev.Path != "agents/web/reviewer.md" {
		t.Errorf("Path: got %q", rev.Path)
	}
	if rev.Description == nil || *rev.Description != "Reviews code" {
		t.Errorf("Description: got %v", rev.Description)
	}
	if rev.Tools == nil || *rev.Tools != "Read, Grep" {
		t.Errorf("Tools: got %v", rev.Tools)
	}
	if rev.Model == nil || *rev.Model != "opus" {
		t.Errorf("Model: got %v", rev.Model)
	}
	if rev.Skills != nil {
		t.Errorf("Skills: got %v, want nil for absent field", rev.Skills)
	}

	// Fallback naming: no name field means the filename stem is the name,
	// and a file directly under the type root has no domain.
	pl, ok := byName["planner"]
	if !ok {
		t.Fatalf("Scan: missing planner, got %v", names(recs))
	}
	if pl.Domain != "" {
		t.Errorf("Domain: got %q, want empty", pl.Domain)
	}
	if pl.Description != nil {
		t.Errorf("Description: got %v, want nil", pl.Description)
	}
}

func TestScanSkills(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "skills/pdf-tools/SKILL.md", "---\ndescription: Works with PDFs\n---\nbody\n")
	writeFile(t, root, "skills/pdf-tools/references/formats.md", "reference doc\n")
	writeFile(t, root, "skills/pdf-tools/scripts/extract.py", "print('x')\n")
	writeFile(t, root, "skills/empty-skill/SKILL.md", "body only\n")
	writeFile(t, root, "skills/stray.md", "not a skill: no SKILL.md layout\n")

	s := New(root, nil)
	recs := collect(t, s, models.TypeSkill)
	if len(recs) != 2 {
		t.Fatalf("Scan: got %d records, want 2: %v", len(recs), names(recs))
	}

	byName := map[string]models.ComponentRecord{}
	for _, r := range recs {
		byName[r.Name] = r
	}

	pdf, ok := byName["pdf-tools"]
	if !ok {
		t.Fatalf("Scan: missing pdf-tools, got %v", names(recs))
	}
	if pdf.Domain != "" {
		t.Errorf("Domain: got %q, want empty for skills", pdf.Domain)
	}
	if !pdf.HasReferences || !pdf.HasScripts || pdf.HasAssets {
		t.Errorf("skill flags: refs=%v scripts=%v assets=%v", pdf.HasReferences, pdf.HasScripts, pdf.HasAssets)
	}

	if _, ok := byName["empty-skill"]; !ok {
		t.Errorf("Scan: skill without frontmatter not named after its directory: %v", names(recs))
	}
}

func TestScanHooks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "hooks/format/format_code.py", "print('fmt')\n")
	writeFile(t, root, "hooks/format/format_code.md", "---\nname: format-code\ndescription: Formats on save\n---\n")
	writeFile(t, root, "hooks/format/undocumented.py", "print('raw')\n")
	writeFile(t, root, "hooks/format/__init__.py", "")
	writeFile(t, root, "hooks/format/tests/test_format.py", "assert True\n")

	s := New(root, nil)
	recs := collect(t, s, models.TypeHook)
	if len(recs) != 2 {
		t.Fatalf("Scan: got %d records, want 2: %v", len(recs), names(recs))
	}

	byName := map[string]models.ComponentRecord{}
	for _, r := range recs {
		byName[r.Name] = r
	}

	fc, ok := byName["format-code"]
	if !ok {
		t.Fatalf("Scan: missing format-code, got %v", names(recs))
	}
	if fc.Path != "hooks/format/format_code.py" {
		t.Errorf("Path: record should point at the script, got %q", fc.Path)
	}
	if fc.Domain != "format" {
		t.Errorf("Domain: got %q, want %q", fc.Domain, "format")
	}
	if fc.Description == nil || *fc.Description != "Formats on save" {
		t.Errorf("Description: got %v", fc.Description)
	}

	// No markdown twin: still a component, docs fields stay empty.
	und, ok := byName["undocumented"]
	if !ok {
		t.Fatalf("Scan: missing undocumented, got %v", names(recs))
	}
	if und.Description != nil {
		t.Errorf("Description: got %v, want nil", und.Description)
	}
}

func TestScanTemplatesFlat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "templates/prd.md", "# PRD template\n")
	writeFile(t, root, "templates/nested/inner.md", "payload, not a component\n")

	s := New(root, nil)
	recs := collect(t, s, models.TypeTemplate)
	if len(recs) != 1 {
		t.Fatalf("Scan: got %d records, want 1: %v", len(recs), names(recs))
	}
	if recs[0].Name != "prd" {
		t.Errorf("Name: got %q, want %q", recs[0].Name, "prd")
	}
}

func TestScanMissingTypeDir(t *testing.T) {
	s := New(t.TempDir(), nil)
	recs := collect(t, s, models.TypeAgent)
	if len(recs) != 0 {
		t.Errorf("Scan: got %d records from empty root, want 0", len(recs))
	}
}

func TestScanUnreadableFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/ok.md", "---\nname: ok\n---\n")
	writeFile(t, root, "agents/locked.md", "---\nname: locked\n---\n")
	if err := os.Chmod(filepath.Join(root, "agents", "locked.md"), 0o000); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(root, "agents", "locked.md"), 0o644)
	})
	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	s := New(root, nil)
	recs := collect(t, s, models.TypeAgent)
	if len(recs) != 1 || recs[0].Name != "ok" {
		t.Errorf("Scan: got %v, want only the readable component", names(recs))
	}
}

func TestRecordFor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/web/reviewer.md", "---\nname: code-reviewer\n---\n")
	writeFile(t, root, "skills/pdf-tools/SKILL.md", "---\ndescription: PDFs\n---\n")

	s := New(root, nil)

	rec, err := s.RecordFor("agents/web/reviewer.md")
	if err != nil {
		t.Fatalf("RecordFor: %v", err)
	}
	if rec.Type != models.TypeAgent || rec.Name != "code-reviewer" || rec.Domain != "web" {
		t.Errorf("record: %+v", rec)
	}

	rec, err = s.RecordFor("skills/pdf-tools/SKILL.md")
	if err != nil {
		t.Fatalf("RecordFor: %v", err)
	}
	if rec.Type != models.TypeSkill || rec.Name != "pdf-tools" {
		t.Errorf("record: %+v", rec)
	}

	if _, err := s.RecordFor("docs/guide.md"); err == nil {
		t.Error("RecordFor: expected error for a path outside the component directories")
	}
	if _, err := s.RecordFor("README.md"); err == nil {
		t.Error("RecordFor: expected error for a root-level file")
	}
}

func TestScanStopsEarly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/a.md", "x")
	writeFile(t, root, "agents/b.md", "x")
	writeFile(t, root, "agents/c.md", "x")

	s := New(root, nil)
	count := 0
	for range s.Scan(models.TypeAgent) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Scan: ranged %d records after break, want 1", count)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		rel  string
		typ  models.ComponentType
		want bool
	}{
		{"agents/web/reviewer.md", models.TypeAgent, true},
		{"agents/reviewer.md", models.TypeAgent, true},
		{"agents/README.md", "", false},
		{"agents/web/reviewer.py", "", false},
		{"commands/git/commit.md", models.TypeCommand, true},
		{"skills/pdf-tools/SKILL.md", models.TypeSkill, true},
		{"skills/pdf-tools/references/guide.md", "", false},
		{"skills/stray.md", "", false},
		{"hooks/format/run-black.py", models.TypeHook, true},
		{"hooks/format/run-black.md", "", false},
		{"hooks/format/__init__.py", "", false},
		{"hooks/format/tests/test_run.py", "", false},
		{"templates/plan.md", models.TypeTemplate, true},
		{"templates/scaffold/plan.md", "", false},
		{"docs/guide.md", "", false},
		{"README.md", "", false},
		{".component-registry.json", "", false},
	}
	for _, tc := range cases {
		typ, ok := Match(tc.rel)
		if ok != tc.want || typ != tc.typ {
			t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tc.rel, typ, ok, tc.typ, tc.want)
		}
	}
}
