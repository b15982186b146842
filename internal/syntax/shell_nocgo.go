//go:build !cgo

package syntax

// Available reports whether ParseShell is backed by a real parser.
const Available = false

// ParseShell always fails with ErrUnsupported without CGo (tree-sitter unavailable).
func ParseShell(command string) (*ShellParse, error) {
	return nil, ErrUnsupported
}
