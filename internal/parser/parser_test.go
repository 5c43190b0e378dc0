package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/fileviewer/internal/models"
)

func labels(nodes []models.TreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMarkdown_SiblingsCloseBranch(t *testing.T) {
	tree := Parse([]byte("# A\n## B\n## C\n# D"), FormatMarkdown)
	if got := labels(tree); !equalStrings(got, []string{"A", "D"}) {
		t.Fatalf("roots = %v, want [A D]", got)
	}
	if got := labels(tree[0].Children); !equalStrings(got, []string{"B", "C"}) {
		t.Errorf("A children = %v, want [B C]", got)
	}
	if len(tree[1].Children) != 0 {
		t.Errorf("D children = %v, want none", labels(tree[1].Children))
	}
	if tree[0].Type != "h1" || tree[0].Level != 1 {
		t.Errorf("A type/level = %q/%d", tree[0].Type, tree[0].Level)
	}
	if tree[0].Children[0].Type != "h2" || tree[0].Children[0].Level != 2 {
		t.Errorf("B type/level = %q/%d", tree[0].Children[0].Type, tree[0].Children[0].Level)
	}
}

func TestMarkdown_SkippedLevels(t *testing.T) {
	tree := Parse([]byte("# A\n### deep\n## mid\n#### x\n# B\n"), FormatMarkdown)
	if got := labels(tree); !equalStrings(got, []string{"A", "B"}) {
		t.Fatalf("roots = %v", got)
	}
	a := tree[0]
	if got := labels(a.Children); !equalStrings(got, []string{"deep", "mid"}) {
		t.Fatalf("A children = %v, want [deep mid]", got)
	}
	if got := labels(a.Children[1].Children); !equalStrings(got, []string{"x"}) {
		t.Errorf("mid children = %v, want [x]", got)
	}
}

func TestMarkdown_StartsDeep(t *testing.T) {
	tree := Parse([]byte("### three\n# one\n"), FormatMarkdown)
	if got := labels(tree); !equalStrings(got, []string{"three", "one"}) {
		t.Errorf("roots = %v, want [three one]", got)
	}
}

func TestMarkdown_NonHeaders(t *testing.T) {
	input := "plain text\n#nospace\n####### seven\n#\n   ## Indented  \r\nbody\n"
	tree := Parse([]byte(input), FormatMarkdown)
	if len(tree) != 1 {
		t.Fatalf("roots = %v, want only the indented heading", labels(tree))
	}
	if tree[0].Label != "Indented" || tree[0].Level != 2 {
		t.Errorf("node = %+v", tree[0])
	}
}

func TestMarkdown_Empty(t *testing.T) {
	tree := Parse(nil, FormatMarkdown)
	if tree == nil || len(tree) != 0 {
		t.Errorf("tree = %#v, want empty non-nil", tree)
	}
}

func TestJSON_PreservesOrder(t *testing.T) {
	input := `{"zeta": 1, "alpha": {"y": true, "b": null}, "list": [1, "two", 3.5]}`
	tree := Parse([]byte(input), FormatJSON)

	if got := labels(tree); !equalStrings(got, []string{"zeta", "alpha", "list"}) {
		t.Fatalf("root labels = %v", got)
	}
	if tree[0].Type != TypeNumber {
		t.Errorf("zeta type = %q", tree[0].Type)
	}
	alpha := tree[1]
	if alpha.Type != TypeObject {
		t.Errorf("alpha type = %q", alpha.Type)
	}
	if got := labels(alpha.Children); !equalStrings(got, []string{"y", "b"}) {
		t.Errorf("alpha children = %v", got)
	}
	if alpha.Children[0].Type != TypeBoolean || alpha.Children[1].Type != TypeNull {
		t.Errorf("alpha child types = %q, %q", alpha.Children[0].Type, alpha.Children[1].Type)
	}
	list := tree[2]
	if list.Type != "array[3]" {
		t.Errorf("list type = %q, want array[3]", list.Type)
	}
	if got := labels(list.Children); !equalStrings(got, []string{"[0]", "[1]", "[2]"}) {
		t.Errorf("list children = %v", got)
	}
	if list.Children[1].Type != TypeString {
		t.Errorf("[1] type = %q", list.Children[1].Type)
	}
}

func TestJSON_RootArray(t *testing.T) {
	tree := Parse([]byte(`[{"a": 1}, [], "x"]`), FormatJSON)
	if len(tree) != 1 {
		t.Fatalf("len = %d, want 1", len(tree))
	}
	root := tree[0]
	if root.Label != "Root Array" || root.Type != "array[3]" {
		t.Errorf("root = %q %q", root.Label, root.Type)
	}
	if root.Children[0].Type != TypeObject || root.Children[0].Label != "[0]" {
		t.Errorf("[0] = %+v", root.Children[0])
	}
	if root.Children[1].Type != "array[0]" || len(root.Children[1].Children) != 0 {
		t.Errorf("[1] = %+v", root.Children[1])
	}
}

func TestJSON_RootScalar(t *testing.T) {
	tree := Parse([]byte(`"hello world"`), FormatJSON)
	if len(tree) != 1 || tree[0].Label != "hello world" || tree[0].Type != TypeString {
		t.Errorf("tree = %+v", tree)
	}
	tree = Parse([]byte(`42`), FormatJSON)
	if len(tree) != 1 || tree[0].Label != "42" || tree[0].Type != TypeNumber {
		t.Errorf("tree = %+v", tree)
	}
}

func TestJSON_EmptyObject(t *testing.T) {
	tree := Parse([]byte(`{}`), FormatJSON)
	if len(tree) != 0 {
		t.Errorf("tree = %+v, want empty", tree)
	}
}

func TestJSON_Malformed(t *testing.T) {
	tree := Parse([]byte(`{"a":}`), FormatJSON)
	if len(tree) != 1 {
		t.Fatalf("len = %d, want 1", len(tree))
	}
	if !strings.HasPrefix(tree[0].Label, "JSON Parse Error") {
		t.Errorf("label = %q", tree[0].Label)
	}
	if len(tree[0].Children) != 0 {
		t.Errorf("error node has children")
	}
}

func TestBuild_ReturnsParseError(t *testing.T) {
	_, err := Build([]byte(`[1,`), FormatJSON)
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("err = %T %v, want *ParseError", err, err)
	}
	if pe.Format != FormatJSON || pe.Message == "" {
		t.Errorf("parse error = %+v", pe)
	}
}

func TestYAML_OrderAndTypes(t *testing.T) {
	input := `
name: demo
version: 1.2
enabled: true
nothing: ~
when: 2024-01-02
servers:
  - host: a
    port: 80
  - host: b
meta:
  z: 1
  a: 2
`
	tree := Parse([]byte(input), FormatYAML)
	want := []string{"name", "version", "enabled", "nothing", "when", "servers", "meta"}
	if got := labels(tree); !equalStrings(got, want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	types := []string{TypeString, TypeNumber, TypeBoolean, TypeNull, TypeString, "array[2]", TypeObject}
	for i, typ := range types {
		if tree[i].Type != typ {
			t.Errorf("%s type = %q, want %q", tree[i].Label, tree[i].Type, typ)
		}
	}
	servers := tree[5]
	if got := labels(servers.Children[0].Children); !equalStrings(got, []string{"host", "port"}) {
		t.Errorf("servers[0] = %v", got)
	}
	if got := labels(tree[6].Children); !equalStrings(got, []string{"z", "a"}) {
		t.Errorf("meta = %v", got)
	}
}

func TestYAML_AnchorsAndMerge(t *testing.T) {
	input := `
base: &base
  a: 1
  b: 2
child:
  <<: *base
  b: 3
  c: 4
copy: *base
`
	tree := Parse([]byte(input), FormatYAML)
	if got := labels(tree); !equalStrings(got, []string{"base", "child", "copy"}) {
		t.Fatalf("labels = %v", got)
	}
	if got := labels(tree[1].Children); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Errorf("child = %v, want [a b c]", got)
	}
	if got := labels(tree[2].Children); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("copy = %v, want [a b]", got)
	}
}

func TestYAML_RecursiveMerge(t *testing.T) {
	inputs := []string{
		"a: &a\n  x: 1\n  <<: *a\n",
		"a: &a\n  x: 1\n  <<: [*a]\n",
		"a: &a\n  b: &b\n    <<: *a\n",
	}
	for _, in := range inputs {
		tree := Parse([]byte(in), FormatYAML)
		if len(tree) != 1 || !strings.HasPrefix(tree[0].Label, "YAML Parse Error") {
			t.Errorf("%q: tree = %+v", in, tree)
			continue
		}
		if !strings.Contains(tree[0].Label, "recursive") {
			t.Errorf("%q: label = %q", in, tree[0].Label)
		}
	}
}

func TestYAML_SharedMergeIsNotRecursive(t *testing.T) {
	input := `
base: &base
  a: 1
one:
  <<: *base
two:
  <<: [*base, *base]
`
	tree := Parse([]byte(input), FormatYAML)
	if got := labels(tree); !equalStrings(got, []string{"base", "one", "two"}) {
		t.Fatalf("labels = %v", got)
	}
	if got := labels(tree[2].Children); !equalStrings(got, []string{"a"}) {
		t.Errorf("two = %v, want [a]", got)
	}
}

func TestDuplicateKeysLastValueWins(t *testing.T) {
	cases := []struct {
		format Format
		input  string
	}{
		{FormatJSON, `{"a": 1, "b": 2, "a": {"x": true}}`},
		{FormatYAML, "a: 1\nb: 2\na:\n  x: true\n"},
	}
	for _, c := range cases {
		tree := Parse([]byte(c.input), c.format)
		if got := labels(tree); !equalStrings(got, []string{"a", "b"}) {
			t.Errorf("%s labels = %v, want [a b]", c.format, got)
			continue
		}
		if tree[0].Type != TypeObject || len(tree[0].Children) != 1 || tree[0].Children[0].Label != "x" {
			t.Errorf("%s a = %+v, want last value", c.format, tree[0])
		}
	}
}

func TestYAML_RootSequence(t *testing.T) {
	tree := Parse([]byte("- one\n- two\n"), FormatYAML)
	if len(tree) != 1 || tree[0].Label != "Root Array" || tree[0].Type != "array[2]" {
		t.Errorf("tree = %+v", tree)
	}
}

func TestYAML_Empty(t *testing.T) {
	tree := Parse([]byte(""), FormatYAML)
	if len(tree) != 1 || tree[0].Type != TypeNull {
		t.Errorf("tree = %+v, want single null node", tree)
	}
}

func TestYAML_Malformed(t *testing.T) {
	tree := Parse([]byte("a: [1, 2\n"), FormatYAML)
	if len(tree) != 1 || !strings.HasPrefix(tree[0].Label, "YAML Parse Error") {
		t.Errorf("tree = %+v", tree)
	}
}

func TestYAML_MultipleDocuments(t *testing.T) {
	tree := Parse([]byte("a: 1\n---\nb: 2\n"), FormatYAML)
	if len(tree) != 1 || !strings.HasPrefix(tree[0].Label, "YAML Parse Error") {
		t.Errorf("tree = %+v", tree)
	}
}

func TestUnsupportedFormatsAreEmpty(t *testing.T) {
	for _, f := range []Format{FormatMermaid, FormatUnknown} {
		tree := Parse([]byte("graph TD; A-->B"), f)
		if tree == nil || len(tree) != 0 {
			t.Errorf("%s tree = %+v, want empty", f, tree)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"a/README.md":  FormatMarkdown,
		"x.JSON":       FormatJSON,
		"c.yml":        FormatYAML,
		"c.yaml":       FormatYAML,
		"flow.mmd":     FormatMermaid,
		"notes.txt":    FormatUnknown,
		"no-extension": FormatUnknown,
	}
	for path, want := range cases {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(p, []byte("# Title\n## Sub\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := ParseFile(p)
	if res.Format != FormatMarkdown {
		t.Errorf("format = %q", res.Format)
	}
	if res.Content != "# Title\n## Sub\n" {
		t.Errorf("content = %q", res.Content)
	}
	if len(res.Tree) != 1 || len(res.Tree[0].Children) != 1 {
		t.Errorf("tree = %+v", res.Tree)
	}
	if res.Error != "" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestParseFile_Malformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(p, []byte(`{"a":}`), 0o644); err != nil {
		t.Fatal(err)
	}
	res := ParseFile(p)
	if !strings.HasPrefix(res.Error, "JSON Parse Error") {
		t.Errorf("error = %q", res.Error)
	}
	if len(res.Tree) != 1 || res.Tree[0].Label != res.Error {
		t.Errorf("tree = %+v", res.Tree)
	}
	if res.Content != `{"a":}` {
		t.Errorf("content = %q", res.Content)
	}
}

func TestReadRaw_Missing(t *testing.T) {
	got := ReadRaw(filepath.Join(t.TempDir(), "missing.md"))
	if !strings.HasPrefix(got, "Error reading file: ") {
		t.Errorf("ReadRaw = %q", got)
	}
	res := ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	if len(res.Tree) != 0 || !strings.HasPrefix(res.Content, "Error reading file: ") || res.Error != res.Content {
		t.Errorf("result = %+v", res)
	}
}
