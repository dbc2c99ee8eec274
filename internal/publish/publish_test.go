package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/storage"
)

// stubRemote is an in-memory paste service that hands out sequential ids.
type stubRemote struct {
	creates int
	updates int

	lastCreated  gist.Gist
	lastUpdated  gist.Gist
	lastUpdateID string

	failWith error
}

func (s *stubRemote) Create(_ context.Context, g gist.Gist) (*gist.Gist, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.creates++
	s.lastCreated = g
	id := fmt.Sprintf("abc%d", 122+s.creates) // first paste is "abc123"
	return &gist.Gist{ID: id, URL: "https://example/" + id, Files: g.Files}, nil
}

func (s *stubRemote) Update(_ context.Context, id string, g gist.Gist) (*gist.Gist, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.updates++
	s.lastUpdateID = id
	s.lastUpdated = g
	return &gist.Gist{ID: id, URL: "https://example/" + id, Files: g.Files}, nil
}

func (s *stubRemote) Fetch(_ context.Context, id string) (*gist.Gist, error) {
	return nil, errors.New("unexpected fetch")
}

type env struct {
	store  storage.Provider
	remote *stubRemote
	reg    *registry.Store
	pub    *Publisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	remote := &stubRemote{}
	regStore := registry.NewStore(st)
	return &env{
		store:  st,
		remote: remote,
		reg:    regStore,
		pub:    NewPublisher(st, remote, regStore, nil),
	}
}

func (e *env) seed(t *testing.T, rel, content string) {
	t.Helper()
	if err := e.store.Write(rel, []byte(content)); err != nil {
		t.Fatalf("Write %s: %v", rel, err)
	}
}

func TestPublishNewComponent(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/core/foo.md", "---\nname: foo\n---\nbody\n")

	out, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !out.Created || out.Skipped {
		t.Errorf("Outcome: created=%v skipped=%v", out.Created, out.Skipped)
	}

	// The file gained gist_url and nothing else changed.
	patched, err := e.store.Read("agents/core/foo.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := "---\nname: foo\ngist_url: https://example/abc123\n---\nbody\n"
	if string(patched) != want {
		t.Errorf("patched file:\n got %q\nwant %q", patched, want)
	}

	// The registry holds exactly one entry keyed by path.
	reg, err := e.reg.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Components) != 1 {
		t.Fatalf("Components: got %d entries, want 1", len(reg.Components))
	}
	rec, ok := reg.Components["agents/core/foo.md"]
	if !ok {
		t.Fatalf("registry missing agents/core/foo.md: %+v", reg.Components)
	}
	if rec.RemoteID != "abc123" {
		t.Errorf("RemoteID: got %q, want %q", rec.RemoteID, "abc123")
	}
	if rec.RemoteURL != "https://example/abc123" {
		t.Errorf("RemoteURL: got %q", rec.RemoteURL)
	}
	if rec.Name != "foo" || rec.Domain != "core" {
		t.Errorf("record: name=%q domain=%q", rec.Name, rec.Domain)
	}
	if rec.PublishedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// The paste received the content as read, before the URL patch.
	sent := e.remote.lastCreated.Files["foo.md"]
	if strings.Contains(sent, "gist_url") {
		t.Errorf("published content already contains gist_url: %q", sent)
	}
	if e.remote.lastCreated.Description != "core/foo.md from component library" {
		t.Errorf("Description: got %q", e.remote.lastCreated.Description)
	}
}

func TestPublishIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/core/foo.md", "---\nname: foo\n---\nbody\n")

	times := []time.Time{
		time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	i := 0
	e.pub.now = func() time.Time { t := times[i]; i++; return t }

	first, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish #1: %v", err)
	}

	// The second publish sees the gist_url patch and updates the same paste.
	second, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish #2: %v", err)
	}
	if second.Created {
		t.Error("Publish #2 created a new paste")
	}
	if second.Record.RemoteID != first.Record.RemoteID {
		t.Errorf("RemoteID changed: %q → %q", first.Record.RemoteID, second.Record.RemoteID)
	}
	if !second.Record.PublishedAt.Equal(first.Record.PublishedAt) {
		t.Errorf("PublishedAt changed: %v → %v", first.Record.PublishedAt, second.Record.PublishedAt)
	}
	if !second.Record.UpdatedAt.Equal(times[1]) {
		t.Errorf("UpdatedAt: got %v, want %v", second.Record.UpdatedAt, times[1])
	}
	if e.remote.creates != 1 || e.remote.updates != 1 {
		t.Errorf("remote calls: creates=%d updates=%d", e.remote.creates, e.remote.updates)
	}
	if e.remote.lastUpdateID != first.Record.RemoteID {
		t.Errorf("update keyed by %q, want %q", e.remote.lastUpdateID, first.Record.RemoteID)
	}

	// The third publish finds the content unchanged and skips the remote.
	third, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish #3: %v", err)
	}
	if !third.Skipped {
		t.Error("Publish #3 did not skip an unchanged component")
	}
	if e.remote.creates != 1 || e.remote.updates != 1 {
		t.Errorf("remote called on unchanged content: creates=%d updates=%d", e.remote.creates, e.remote.updates)
	}
	if !third.Record.UpdatedAt.Equal(times[2]) {
		t.Errorf("UpdatedAt: got %v, want %v", third.Record.UpdatedAt, times[2])
	}
	if !third.Record.PublishedAt.Equal(first.Record.PublishedAt) {
		t.Error("PublishedAt changed on skip")
	}
}

func TestPublishNewFlagForcesFreshPaste(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/core/foo.md", "---\nname: foo\n---\nbody\n")

	first, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	second, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{New: true})
	if err != nil {
		t.Fatalf("Publish --new: %v", err)
	}
	if !second.Created {
		t.Error("expected a fresh paste")
	}
	if second.Record.RemoteID == first.Record.RemoteID {
		t.Errorf("RemoteID unchanged: %q", second.Record.RemoteID)
	}
	if e.remote.creates != 2 || e.remote.updates != 0 {
		t.Errorf("remote calls: creates=%d updates=%d", e.remote.creates, e.remote.updates)
	}

	// The file now points at the fresh paste.
	data, _ := e.store.Read("agents/core/foo.md")
	if !strings.Contains(string(data), second.Record.RemoteURL) {
		t.Errorf("file not repointed to %q:\n%s", second.Record.RemoteURL, data)
	}
}

func TestPublishUsesFrontmatterURLWhenRegistryEmpty(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/core/foo.md", "---\nname: foo\ngist_url: https://example/xyz789\n---\nbody\n")

	out, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Created {
		t.Error("created a paste despite the file's gist_url")
	}
	if e.remote.lastUpdateID != "xyz789" {
		t.Errorf("update keyed by %q, want xyz789", e.remote.lastUpdateID)
	}
	if out.Record.RemoteID != "xyz789" {
		t.Errorf("RemoteID: got %q", out.Record.RemoteID)
	}
}

func TestPublishRemoteFailureLeavesLocalStateUntouched(t *testing.T) {
	e := newEnv(t)
	content := "---\nname: foo\n---\nbody\n"
	e.seed(t, "agents/core/foo.md", content)
	e.remote.failWith = &apperr.RemoteError{Op: "create", Status: 401, Err: errors.New("bad credentials")}

	_, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{})
	if !errors.Is(err, apperr.ErrRemote) {
		t.Fatalf("got %v, want RemoteError", err)
	}

	data, _ := e.store.Read("agents/core/foo.md")
	if string(data) != content {
		t.Errorf("file mutated after remote failure:\n%s", data)
	}
	reg, err := e.reg.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Components) != 0 {
		t.Errorf("registry mutated after remote failure: %+v", reg.Components)
	}
}

func TestPublishHookScript(t *testing.T) {
	e := newEnv(t)
	script := "#!/usr/bin/env python3\nprint('x')\n"
	e.seed(t, "hooks/format/fmt.py", script)

	out, err := e.pub.Publish(context.Background(), "hooks/format/fmt.py", Options{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if e.remote.lastCreated.Files["fmt.py"] != script {
		t.Errorf("paste content: %q", e.remote.lastCreated.Files["fmt.py"])
	}

	// Scripts have no frontmatter; the file must stay byte-identical.
	data, _ := e.store.Read("hooks/format/fmt.py")
	if string(data) != script {
		t.Errorf("script mutated:\n%s", data)
	}
	if out.Record.Type != "hook" {
		t.Errorf("Type: got %q", out.Record.Type)
	}
}

func TestPublishOutsideComponentDirs(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "docs/guide.md", "not a component\n")

	if _, err := e.pub.Publish(context.Background(), "docs/guide.md", Options{}); err == nil {
		t.Fatal("Publish: expected error for non-component path")
	}
}

func TestPublishAll(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/web/reviewer.md", "---\nname: reviewer\n---\n")
	e.seed(t, "commands/git/commit.md", "---\nname: commit\nallowed-tools: Bash\n---\n")
	e.seed(t, "skills/pdf/SKILL.md", "---\ndescription: x\n---\n")

	sum, err := e.pub.PublishAll(context.Background(), Options{}, 0)
	if err != nil {
		t.Fatalf("PublishAll: %v", err)
	}
	if sum.Published != 3 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Errorf("Summary: %+v", sum)
	}

	reg, err := e.reg.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Components) != 3 {
		t.Errorf("Components: got %d entries, want 3", len(reg.Components))
	}

	// A second run updates pastes but publishes the patched content once,
	// then settles: the third run skips everything.
	if _, err := e.pub.PublishAll(context.Background(), Options{}, 0); err != nil {
		t.Fatalf("PublishAll #2: %v", err)
	}
	sum, err = e.pub.PublishAll(context.Background(), Options{}, 0)
	if err != nil {
		t.Fatalf("PublishAll #3: %v", err)
	}
	if sum.Skipped != 3 || sum.Published != 0 {
		t.Errorf("steady state: %+v", sum)
	}
}

func TestPublishRegistry(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "agents/core/foo.md", "---\nname: foo\n---\n")

	if _, err := e.pub.Publish(context.Background(), "agents/core/foo.md", Options{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	url, err := e.pub.PublishRegistry(context.Background(), Options{Public: true})
	if err != nil {
		t.Fatalf("PublishRegistry: %v", err)
	}
	if url == "" {
		t.Fatal("empty registry URL")
	}
	if _, ok := e.remote.lastCreated.Files["component-registry.json"]; !ok {
		t.Errorf("paste files: %v", e.remote.lastCreated.Files)
	}

	// The URL is remembered, so the next publish updates the same paste.
	saved, ok := e.reg.RemoteURL()
	if !ok || saved != url {
		t.Errorf("saved URL: got %q ok=%v, want %q", saved, ok, url)
	}
	creates := e.remote.creates
	if _, err := e.pub.PublishRegistry(context.Background(), Options{}); err != nil {
		t.Fatalf("PublishRegistry #2: %v", err)
	}
	if e.remote.creates != creates {
		t.Error("second registry publish created a new paste")
	}
	if e.remote.lastUpdateID != gist.IDFromURL(url) {
		t.Errorf("update keyed by %q, want id of %q", e.remote.lastUpdateID, url)
	}
}

func TestPublishRegistryRequiresRegistryFile(t *testing.T) {
	e := newEnv(t)
	if _, err := e.pub.PublishRegistry(context.Background(), Options{}); err == nil {
		t.Fatal("PublishRegistry: expected error without a registry file")
	}
}
