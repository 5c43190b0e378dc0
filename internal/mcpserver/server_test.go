package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fileviewer/internal/render"
	"github.com/starford/fileviewer/internal/sse"
	"github.com/starford/fileviewer/internal/testutil"
	"github.com/starford/fileviewer/internal/viewer"
)

func testServer(t *testing.T, files map[string]string) (*Server, viewer.ProjectView) {
	t.Helper()

	b := sse.NewBroadcaster(10, time.Second)
	t.Cleanup(b.Close)
	svc := viewer.NewService(testutil.TestRegistry(t), b, render.NewGoldmark(), testutil.Logger())
	t.Cleanup(svc.Shutdown)

	p, err := svc.AddProject(context.Background(), viewer.AddProjectInput{
		Path:  testutil.TestFolder(t, files),
		Title: "Docs",
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, "test"), p
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "browse_folder":
		result, err = srv.browseFolder(ctx, req)
	case "scan_project":
		result, err = srv.scanProject(ctx, req)
	case "read_file_tree":
		result, err = srv.readFileTree(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListProjects(t *testing.T) {
	srv, p := testServer(t, map[string]string{"a.md": "# A"})

	r := callTool(t, srv, "list_projects", map[string]any{})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var ps []viewer.ProjectView
	if err := json.Unmarshal([]byte(resultText(r)), &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].ID != p.ID || ps[0].Slug != "docs" {
		t.Errorf("projects = %+v", ps)
	}
}

func TestBrowseFolder(t *testing.T) {
	srv, _ := testServer(t, map[string]string{
		"guide.md":     "# g",
		"sub/a.json":   "{}",
		"notes.txt":    "skip",
		".hidden/x.md": "",
	})

	r := callTool(t, srv, "browse_folder", map[string]any{"project": "docs"})
	var l viewer.Listing
	if err := json.Unmarshal([]byte(resultText(r)), &l); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if len(l.Items) != 2 || l.Items[0].Name != "sub" || l.Items[1].Name != "guide.md" {
		t.Errorf("items = %+v", l.Items)
	}

	r = callTool(t, srv, "browse_folder", map[string]any{"project": "docs", "path": "sub"})
	if r.IsError || !strings.Contains(resultText(r), "a.json") {
		t.Errorf("sub listing = %s", resultText(r))
	}
}

func TestScanProject(t *testing.T) {
	srv, p := testServer(t, map[string]string{"a/b/c.yml": "k: v"})

	r := callTool(t, srv, "scan_project", map[string]any{"project": p.ID})
	var c struct {
		Folders map[string]json.RawMessage `json:"folders"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &c); err != nil {
		t.Fatal(err)
	}
	if len(c.Folders) != 3 {
		t.Errorf("folders = %d, want 3", len(c.Folders))
	}
}

func TestReadFileTree(t *testing.T) {
	srv, _ := testServer(t, map[string]string{"doc.md": "# Title\n## Part\n"})

	r := callTool(t, srv, "read_file_tree", map[string]any{"project": "docs", "path": "doc.md"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var prev viewer.Preview
	if err := json.Unmarshal([]byte(resultText(r)), &prev); err != nil {
		t.Fatal(err)
	}
	if len(prev.Tree) != 1 || prev.Tree[0].Label != "Title" || len(prev.Tree[0].Children) != 1 {
		t.Errorf("tree = %+v", prev.Tree)
	}
	if prev.HTML != "" {
		t.Error("html should be stripped")
	}
}

func TestToolErrors(t *testing.T) {
	srv, _ := testServer(t, map[string]string{"doc.md": "# x"})

	cases := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"browse_folder", map[string]any{}, ""},
		{"browse_folder", map[string]any{"project": "nope"}, "not found"},
		{"read_file_tree", map[string]any{"project": "docs"}, ""},
		{"read_file_tree", map[string]any{"project": "docs", "path": "missing.md"}, "not found"},
		{"read_file_tree", map[string]any{"project": "docs", "path": "../../etc/passwd"}, "path outside project"},
	}
	for _, c := range cases {
		r := callTool(t, srv, c.tool, c.args)
		if !r.IsError {
			t.Errorf("%s %v: expected error", c.tool, c.args)
			continue
		}
		if c.want != "" && !strings.Contains(resultText(r), c.want) {
			t.Errorf("%s %v: text = %q", c.tool, c.args, resultText(r))
		}
	}
}

func TestFormatsResource(t *testing.T) {
	srv, _ := testServer(t, nil)
	res, err := srv.readFormatsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := res[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, "Root Array") {
		t.Errorf("resource = %+v", res)
	}
}
