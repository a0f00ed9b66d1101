package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// NameListFromMarkdown extracts a name list from pasted content. If the
// content contains fenced code blocks, the first block is treated as the
// list; otherwise the content itself is split into lines. This lets a
// list be pasted straight out of a markdown document or chat transcript.
func NameListFromMarkdown(source []byte) ([]string, error) {
	block, err := firstFencedBlock(source)
	if err != nil {
		return nil, err
	}
	if block == "" {
		block = string(source)
	}
	return splitLines(block), nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// firstFencedBlock walks the markdown AST and returns the raw content of
// the first fenced code block, or "" when there is none.
func firstFencedBlock(source []byte) (string, error) {
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	var content string
	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(source))
		}
		content = buf.String()
		return ast.WalkStop, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return "", err
	}
	return content, nil
}
