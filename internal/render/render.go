// Package render converts markdown previews to HTML.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter turns markdown text into HTML.
type Converter interface {
	Convert(markdown string) (string, error)
}

// Goldmark renders GitHub-flavoured markdown. Raw HTML in the source is
// escaped.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark returns a converter with tables, strikethrough, task lists,
// autolinks and heading ids enabled.
func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// Convert renders markdown to HTML.
func (g *Goldmark) Convert(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	return buf.String(), nil
}
