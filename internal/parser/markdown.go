package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/fileviewer/internal/models"
)

var headerRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// heading is a mutable node used while the outline is assembled.
type heading struct {
	title    string
	level    int
	children []*heading
}

// buildMarkdown nests headings by level. A heading closes every open heading
// of the same or deeper level before it attaches. Body lines are ignored.
func buildMarkdown(content []byte) []models.TreeNode {
	var (
		roots []*heading
		stack []*heading
	)

	for _, line := range strings.Split(string(content), "\n") {
		m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		h := &heading{title: strings.TrimSpace(m[2]), level: len(m[1])}

		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, h)
		} else {
			roots = append(roots, h)
		}
		stack = append(stack, h)
	}

	return freeze(roots)
}

func freeze(hs []*heading) []models.TreeNode {
	out := make([]models.TreeNode, len(hs))
	for i, h := range hs {
		out[i] = models.TreeNode{
			Label:    h.title,
			Type:     fmt.Sprintf("h%d", h.level),
			Level:    h.level,
			Children: freeze(h.children),
		}
	}
	return out
}
