package extract

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// extractMarkdown renders the text of each block node, dropping markup.
// Blocks are separated by a blank line.
func (e *Extractor) extractMarkdown(data []byte) string {
	source := []byte(DecodeText(data))
	doc := e.md.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock:
			if t := strings.TrimSpace(inlineText(n, source)); t != "" {
				blocks = append(blocks, t)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if t := strings.TrimSpace(blockLines(n, source)); t != "" {
				blocks = append(blocks, t)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, "\n\n")
}

// inlineText concatenates the literal text under an inline container.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func blockLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// markdownMetadata lists the heading hierarchy as "# Title > ## Section" paths.
func (e *Extractor) markdownMetadata(data []byte) (map[string]any, error) {
	source := []byte(DecodeText(data))
	doc := e.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []string
	collectHeadings(tree.Items, nil, &headings)
	return map[string]any{
		"headings":      headings,
		"heading_count": len(headings),
	}, nil
}

// collectHeadings walks TOC items depth-first, recording each item's path.
func collectHeadings(items toc.Items, ancestors []string, out *[]string) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.Title) > 0 {
			*out = append(*out, formatHeaderPath(path))
		}
		if len(item.Items) > 0 {
			collectHeadings(item.Items, path, out)
		}
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	var parts []string
	for i, segment := range path {
		if segment == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment))
	}
	return strings.Join(parts, " > ")
}
