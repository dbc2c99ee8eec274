// Package gist talks to the GitHub Gist API, the paste service components
// are published to and installed from.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/starford/othala/internal/apperr"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second

	acceptHeader = "application/vnd.github.v3+json"
)

// Gist is one remote paste: a named set of text files.
type Gist struct {
	ID          string
	URL         string
	Description string
	Public      bool
	Files       map[string]string // filename → content
}

// Remote is the paste service surface consumed by the publish and install
// workflows. Create and Update require a credential; Fetch does not.
type Remote interface {
	Create(ctx context.Context, g Gist) (*Gist, error)
	Update(ctx context.Context, id string, g Gist) (*Gist, error)
	Fetch(ctx context.Context, id string) (*Gist, error)
}

// Client implements Remote against the GitHub API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithToken sets the credential sent on create/update calls.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithBaseURL points the client at a different API host (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout bounds each API call. Applies to the default HTTP client only;
// WithHTTPClient overrides it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient returns a Client with the given options applied.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire types for the gists endpoints.
type gistFile struct {
	Content string `json:"content"`
}

type gistRequest struct {
	Description string              `json:"description"`
	Public      bool                `json:"public,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

type gistResponse struct {
	ID          string              `json:"id"`
	HTMLURL     string              `json:"html_url"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

// Create publishes a new paste and returns it with the assigned id and URL.
func (c *Client) Create(ctx context.Context, g Gist) (*Gist, error) {
	req := gistRequest{
		Description: g.Description,
		Public:      g.Public,
		Files:       toWireFiles(g.Files),
	}
	return c.call(ctx, "create", http.MethodPost, "/gists", &req)
}

// Update rewrites the files of an existing paste keyed by id.
func (c *Client) Update(ctx context.Context, id string, g Gist) (*Gist, error) {
	req := gistRequest{
		Description: g.Description,
		Files:       toWireFiles(g.Files),
	}
	return c.call(ctx, "update", http.MethodPatch, "/gists/"+url.PathEscape(id), &req)
}

// Fetch retrieves a paste by id. Works without a credential for public
// pastes.
func (c *Client) Fetch(ctx context.Context, id string) (*Gist, error) {
	return c.call(ctx, "fetch", http.MethodGet, "/gists/"+url.PathEscape(id), nil)
}

func (c *Client) call(ctx context.Context, op, method, path string, body *gistRequest) (*Gist, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &apperr.RemoteError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &apperr.RemoteError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &apperr.RemoteError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s %s: %s", method, path, strings.TrimSpace(string(msg))),
		}
	}

	var wire gistResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &apperr.RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &Gist{
		ID:          wire.ID,
		URL:         wire.HTMLURL,
		Description: wire.Description,
		Public:      wire.Public,
		Files:       fromWireFiles(wire.Files),
	}, nil
}

func toWireFiles(files map[string]string) map[string]gistFile {
	out := make(map[string]gistFile, len(files))
	for name, content := range files {
		out[name] = gistFile{Content: content}
	}
	return out
}

func fromWireFiles(files map[string]gistFile) map[string]string {
	out := make(map[string]string, len(files))
	for name, f := range files {
		out[name] = f.Content
	}
	return out
}

// IDFromURL extracts the paste id: the last path segment of the URL. Bare
// ids pass through unchanged.
func IDFromURL(gistURL string) string {
	trimmed := strings.TrimRight(gistURL, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ResolveToken returns the publish credential: the GITHUB_TOKEN environment
// variable, else the github.token git config key. Publishing without one is
// a precondition failure; read paths never call this.
func ResolveToken() (string, error) {
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	out, err := exec.Command("git", "config", "--get", "github.token").Output()
	if err == nil {
		if tok := strings.TrimSpace(string(out)); tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("gist: no credential: set GITHUB_TOKEN or the github.token git config key")
}
