//go:build cgo

package syntax

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
)

// Available reports whether ParseShell is backed by a real parser.
const Available = true

// ParseShell parses a command line with the tree-sitter bash grammar.
func ParseShell(command string) (*ShellParse, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_bash.Language())); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	source := []byte(command)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse command: parser returned nil tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("failed to get root node from parsed tree")
	}

	result := &ShellParse{HasError: root.HasError()}

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}

		switch kind := n.Kind(); {
		case kind == "command":
			if name := n.ChildByFieldName("name"); name != nil {
				result.Commands = append(result.Commands, unquoteWord(nodeText(name, source)))
			}
		case kind == "command_substitution" || kind == "process_substitution":
			result.Substitutions++
		case kind == "ERROR" || strings.Contains(kind, "MISSING"):
			pos := n.StartPosition()
			result.Errors = append(result.Errors, SyntaxError{
				Line:      int(pos.Row) + 1,
				Column:    int(pos.Column) + 1,
				Message:   fmt.Sprintf("syntax error near '%s'", truncate(nodeText(n, source), 40)),
				ErrorNode: kind,
			})
		}

		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	if result.HasError && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, SyntaxError{Line: 1, Column: 1, Message: "syntax error", ErrorNode: "ERROR"})
	}

	return result, nil
}

func nodeText(n *tree_sitter.Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if start >= end || end > uint(len(source)) {
		return ""
	}
	return string(source[start:end])
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
