package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":        "go",
		"pkg/Util.PY":    "python",
		"src/app.ts":     "typescript",
		"src/app.mjs":    "javascript",
		"ui/View.tsx":    "tsx",
		"ui/View.jsx":    "jsx",
		"scripts/run.sh": "bash",
		"README.md":      "",
		"Makefile":       "",
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
}
