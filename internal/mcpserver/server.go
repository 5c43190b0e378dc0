// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the file viewer to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fileviewer/internal/apperr"
	"github.com/starford/fileviewer/internal/viewer"
)

const formatsURI = "fileviewer://formats"

// Server wraps the MCP server with file viewer tools.
type Server struct {
	mcp *server.MCPServer
	svc *viewer.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *viewer.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"fileviewer",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List registered projects with their id, slug, title and folder."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("browse_folder",
		mcp.WithDescription("List one folder of a project: sub-folders first, then supported files, each group sorted by name."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id or slug")),
		mcp.WithString("path", mcp.Description("Folder relative to the project root (empty for the root)")),
	), s.browseFolder)

	s.mcp.AddTool(mcp.NewTool("scan_project",
		mcp.WithDescription("Recursively list a project folder. Returns every reachable folder keyed by absolute path."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id or slug")),
		mcp.WithString("path", mcp.Description("Folder relative to the project root (empty for the root)")),
	), s.scanProject)

	s.mcp.AddTool(mcp.NewTool("read_file_tree",
		mcp.WithDescription("Read a Markdown, JSON, YAML or Mermaid file and return its content with a navigable tree. "+
			"See the "+formatsURI+" resource for how trees are built."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id or slug")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the project root (e.g. docs/guide.md)")),
	), s.readFileTree)

	s.mcp.AddResource(
		mcp.NewResource(formatsURI, "Supported formats",
			mcp.WithResourceDescription("Which files are listed and how their trees are built."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatsResource,
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

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a service error into a tool-level error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return mcp.NewToolResultError("path outside project")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps, err := s.svc.ListProjects(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ps)
}

func (s *Server) browseFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.svc.Browse(ctx, ref, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(l)
}

func (s *Server) scanProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Scan(ctx, ref, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) readFileTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Preview(ctx, ref, path)
	if err != nil {
		return toolError(err), nil
	}
	// Rendered HTML is for browsers only.
	p.HTML = ""
	return jsonResult(p)
}

func (s *Server) readFormatsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatsURI,
			MIMEType: "text/markdown",
			Text:     FormatGuide,
		},
	}, nil
}
