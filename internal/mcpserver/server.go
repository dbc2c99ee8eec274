// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/catalogservice"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/resolver"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp *server.MCPServer
	svc *catalogservice.Service
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *catalogservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_components",
		mcp.WithDescription("Full-text search through component names, descriptions, and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchComponents)

	s.mcp.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List library components, optionally filtered by type and domain."),
		mcp.WithString("type", mcp.Description("Optional component type: agent, command, skill, hook, or template")),
		mcp.WithString("domain", mcp.Description("Optional domain filter (e.g. web, git)")),
	), s.listComponents)

	s.mcp.AddTool(mcp.NewTool("resolve_component",
		mcp.WithDescription("Resolve a component name to its registry record. "+
			"Ambiguous names return the candidate list; narrow with type or domain."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Component name (case-insensitive)")),
		mcp.WithString("type", mcp.Description("Optional component type filter")),
		mcp.WithString("domain", mcp.Description("Optional domain filter")),
	), s.resolveComponent)

	s.mcp.AddTool(mcp.NewTool("read_component",
		mcp.WithDescription("Read the full content of a component file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Library-relative path (e.g. agents/web/reviewer.md)")),
	), s.readComponent)

	s.mcp.AddTool(mcp.NewTool("install_component",
		mcp.WithDescription("Resolve a published component by name and install its paste "+
			"content into the library. Fails if the target exists unless force is set."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Component name to install")),
		mcp.WithString("type", mcp.Description("Optional component type filter")),
		mcp.WithString("domain", mcp.Description("Optional domain filter")),
		mcp.WithBoolean("force", mcp.Description("Overwrite an existing target")),
	), s.installComponent)

	s.mcp.AddTool(mcp.NewTool("get_component_contract",
		mcp.WithDescription("Returns the canonical component format contract. "+
			"Call this before authoring components to ensure correct structure."),
	), s.getComponentContract)

	// Resource: component format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://component-format", "Component Format Contract",
			mcp.WithResourceDescription("Canonical layout and frontmatter format all components must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readComponentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var typ, domain string
	if v, err := req.RequireString("type"); err == nil {
		typ = v
	}
	if v, err := req.RequireString("domain"); err == nil {
		domain = v
	}
	if typ != "" && !models.ComponentType(typ).Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown component type: %s", typ)), nil
	}

	items, _, err := s.svc.ListComponents(ctx, 200, 0, typ, domain, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, errResult := filtersFrom(req)
	if errResult != nil {
		return errResult, nil
	}

	rec, err := s.svc.Resolve(ctx, name, f)
	if err != nil {
		return mcp.NewToolResultError(resolveErrText(err)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetComponent(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) installComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, errResult := filtersFrom(req)
	if errResult != nil {
		return errResult, nil
	}
	force := req.GetBool("force", false)

	res, err := s.svc.Install(ctx, name, f, force)
	if err != nil {
		return mcp.NewToolResultError(resolveErrText(err)), nil
	}
	msg := fmt.Sprintf("installed: %s", res.Path)
	if !res.Certain {
		msg += " (type and domain were guessed; verify the placement)"
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) getComponentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ComponentFormatContract), nil
}

func (s *Server) readComponentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://component-format",
			MIMEType: "text/markdown",
			Text:     ComponentFormatContract,
		},
	}, nil
}

// filtersFrom reads the optional type/domain arguments, rejecting unknown
// types with a tool error result.
func filtersFrom(req mcp.CallToolRequest) (resolver.Filters, *mcp.CallToolResult) {
	var f resolver.Filters
	if v, err := req.RequireString("type"); err == nil && v != "" {
		t := models.ComponentType(v)
		if !t.Valid() {
			return f, mcp.NewToolResultError(fmt.Sprintf("unknown component type: %s", v))
		}
		f.Type = t
	}
	if v, err := req.RequireString("domain"); err == nil {
		f.Domain = v
	}
	return f, nil
}

// resolveErrText renders resolver failures for an LLM caller: ambiguity
// includes the candidate list so the model can retry with a filter.
func resolveErrText(err error) string {
	var amb *apperr.AmbiguousError
	if errors.As(err, &amb) {
		lines := make([]string, 0, len(amb.Candidates)+1)
		lines = append(lines, amb.Error())
		for _, c := range amb.Candidates {
			lines = append(lines, fmt.Sprintf("  %s (%s, %s)", c.Path, c.Type, c.Domain))
		}
		return strings.Join(lines, "\n")
	}
	return err.Error()
}
