// Package parser turns markdown, JSON and YAML documents into a uniform tree
// of labeled nodes for structured previews.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/starford/fileviewer/internal/models"
)

// Format identifies how a file's content is interpreted.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMermaid  Format = "mermaid"
	FormatUnknown  Format = "unknown"
)

// Node type tags.
const (
	TypeObject  = "object"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// rootArrayLabel labels an array that has no enclosing key.
const rootArrayLabel = "Root Array"

// ParseError reports a malformed JSON or YAML document.
type ParseError struct {
	Format  Format
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s Parse Error: %s", e.Format.title(), e.Message)
}

func (f Format) title() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	case FormatMarkdown:
		return "Markdown"
	default:
		return strings.ToUpper(string(f))
	}
}

// Result is a parsed file ready for preview. Error is set when the file could
// not be read or parsed; Tree and Content still hold something renderable.
type Result struct {
	Tree    []models.TreeNode `json:"tree"`
	Content string            `json:"content"`
	Format  Format            `json:"format"`
	Error   string            `json:"error,omitempty"`
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	case ".yml", ".yaml":
		return FormatYAML
	case ".mmd":
		return FormatMermaid
	default:
		return FormatUnknown
	}
}

// Build parses content and returns the tree or a *ParseError.
// Formats without a structural view yield an empty tree.
func Build(content []byte, format Format) ([]models.TreeNode, error) {
	switch format {
	case FormatMarkdown:
		return buildMarkdown(content), nil
	case FormatJSON:
		return buildJSON(content)
	case FormatYAML:
		return buildYAML(content)
	default:
		return []models.TreeNode{}, nil
	}
}

// Parse is Build that never fails: a parse error becomes a single childless
// node whose label carries the message.
func Parse(content []byte, format Format) []models.TreeNode {
	tree, err := Build(content, format)
	if err != nil {
		return []models.TreeNode{{Label: err.Error(), Children: []models.TreeNode{}}}
	}
	return tree
}

// ReadRaw returns the file content as text. Read failures are reported in the
// returned string rather than as an error.
func ReadRaw(path string) string {
	content, err := readText(path)
	if err != nil {
		return "Error reading file: " + err.Error()
	}
	return content
}

// ParseFile reads path once, detects its format and builds the tree.
// When the file cannot be read the tree is empty and Content holds the error text.
func ParseFile(path string) Result {
	format := DetectFormat(path)
	content, err := readText(path)
	if err != nil {
		msg := "Error reading file: " + err.Error()
		return Result{
			Tree:    []models.TreeNode{},
			Content: msg,
			Format:  format,
			Error:   msg,
		}
	}
	res := Result{Content: content, Format: format}
	tree, err := Build([]byte(content), format)
	if err != nil {
		res.Error = err.Error()
		tree = []models.TreeNode{{Label: res.Error, Children: []models.TreeNode{}}}
	}
	res.Tree = tree
	return res
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: content is not valid UTF-8", filepath.Base(path))
	}
	return string(data), nil
}

func scalarNode(key string, keyed bool, text, typ string) []models.TreeNode {
	label := text
	if keyed {
		label = key
	}
	return []models.TreeNode{{Label: label, Type: typ, Children: []models.TreeNode{}}}
}

func arrayType(n int) string {
	return fmt.Sprintf("array[%d]", n)
}

func indexLabel(i int) string {
	return fmt.Sprintf("[%d]", i)
}

func nonNil(nodes []models.TreeNode) []models.TreeNode {
	if nodes == nil {
		return []models.TreeNode{}
	}
	return nodes
}
