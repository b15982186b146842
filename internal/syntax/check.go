//go:build cgo

package syntax

import (
	"fmt"
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var grammars = map[string]func() unsafe.Pointer{
	"go":         tree_sitter_go.Language,
	"python":     tree_sitter_python.Language,
	"typescript": tree_sitter_typescript.LanguageTypescript,
	"javascript": tree_sitter_typescript.LanguageTypescript,
	"tsx":        tree_sitter_typescript.LanguageTSX,
	"jsx":        tree_sitter_typescript.LanguageTSX,
	"bash":       tree_sitter_bash.Language,
}

// Supported reports whether Check can parse language.
func Supported(language string) bool {
	_, ok := grammars[language]
	return ok
}

// Check parses source as language and returns its ERROR and MISSING nodes.
// Empty source and clean parses return nil.
func Check(source, language string) ([]SyntaxError, error) {
	grammar, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLanguageUnsupported, language)
	}
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(grammar())); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	src := []byte(source)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s source", language)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}

	var errs []SyntaxError
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			errs = append(errs, nodeError(n, src))
		}
		if !n.HasError() {
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	if len(errs) == 0 {
		pos := root.StartPosition()
		errs = append(errs, SyntaxError{
			Line:      int(pos.Row) + 1,
			Column:    int(pos.Column) + 1,
			Message:   "syntax error",
			ErrorNode: "ERROR",
		})
	}
	return errs, nil
}

func nodeError(n *tree_sitter.Node, source []byte) SyntaxError {
	pos := n.StartPosition()
	e := SyntaxError{
		Line:      int(pos.Row) + 1,
		Column:    int(pos.Column) + 1,
		ErrorNode: "ERROR",
	}
	if n.IsMissing() {
		e.ErrorNode = "MISSING"
		e.Message = "missing " + n.Kind()
		return e
	}
	if text := nodeText(n, source); text != "" {
		e.Message = fmt.Sprintf("syntax error near '%s'", truncate(text, 50))
	} else {
		e.Message = "syntax error"
	}
	return e
}
