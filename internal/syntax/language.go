package syntax

import (
	"path/filepath"
	"strings"
)

// DetectLanguage maps a file name to a language name understood by Check.
// Unknown files return "".
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py", ".pyw":
		return "python"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".tsx":
		return "tsx"
	case ".jsx":
		return "jsx"
	case ".sh", ".bash":
		return "bash"
	}
	return ""
}
