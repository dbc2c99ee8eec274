package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	p, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return p
}

func TestNewFSMissingRoot(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("NewFS: expected error for missing root")
	}
}

func TestWriteRead(t *testing.T) {
	p := newTestFS(t)

	if err := p.Write("agents/web/reviewer.md", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := p.Read("agents/web/reviewer.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Read: got %q, want %q", data, "hello")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	p := newTestFS(t)

	if err := p.Write("a.md", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(p.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".othala-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSafePathRejectsEscape(t *testing.T) {
	p := newTestFS(t)

	cases := []string{
		"../outside.md",
		"a/../../outside.md",
		"/etc/passwd",
	}
	for _, c := range cases {
		if _, err := p.Read(c); err == nil {
			t.Errorf("Read(%q): expected traversal error", c)
		}
		if err := p.Write(c, []byte("x")); err == nil {
			t.Errorf("Write(%q): expected traversal error", c)
		}
	}
}

func TestExists(t *testing.T) {
	p := newTestFS(t)

	ok, err := p.Exists("missing.md")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists: missing file reported present")
	}

	if err := p.Write("present.md", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ok, err = p.Exists("present.md")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("Exists: written file reported missing")
	}
}

func TestListFiltersAndSkipsHidden(t *testing.T) {
	p := newTestFS(t)

	files := map[string]string{
		"agents/web/reviewer.md": "a",
		"agents/web/draft.txt":   "b",
		"agents/.git/secret.md":  "c",
		"hooks/format/format.py": "d",
		"hooks/format/format.md": "e",
	}
	for path, content := range files {
		if err := p.Write(path, []byte(content)); err != nil {
			t.Fatalf("Write %s: %v", path, err)
		}
	}

	metas, err := p.List("agents", ".md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("List: got %d entries, want 1: %+v", len(metas), metas)
	}
	if metas[0].Path != "agents/web/reviewer.md" {
		t.Errorf("List: got path %q", metas[0].Path)
	}
	if metas[0].Checksum == "" {
		t.Error("List: empty checksum")
	}

	metas, err = p.List("hooks", ".md", ".py")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(metas))
	}
}

func TestListNoFilterReturnsAll(t *testing.T) {
	p := newTestFS(t)

	if err := p.Write("x/a.md", []byte("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Write("x/b.py", []byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	metas, err := p.List("x")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("List: got %d entries, want 2", len(metas))
	}
}
