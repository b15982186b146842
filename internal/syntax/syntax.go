// Package syntax wraps tree-sitter. ParseShell lets the command classifier
// cross-check its own tokenizer, and Check reports syntax errors in files
// written by the file tools. Without CGo both return ErrUnsupported.
package syntax

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupported is returned when built without CGo.
	ErrUnsupported = errors.New("syntax parsing requires cgo (tree-sitter)")
	// ErrLanguageUnsupported is returned by Check for languages without a grammar.
	ErrLanguageUnsupported = errors.New("no grammar for language")
)

// SyntaxError represents a single syntax error found during parsing.
type SyntaxError struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Message   string `json:"message"`
	ErrorNode string `json:"error_node"` // Type of error node (e.g., "ERROR", "MISSING")
}

// ShellParse summarizes a parsed command line.
type ShellParse struct {
	HasError bool
	Errors   []SyntaxError
	// Commands lists the name of every simple command in source order,
	// including commands nested in pipelines, lists and substitutions.
	Commands []string
	// Substitutions counts command and process substitutions.
	Substitutions int
}

// unquoteWord strips the quoting characters from a shell word.
func unquoteWord(w string) string {
	return strings.NewReplacer(`"`, "", `'`, "", `\`, "").Replace(w)
}
