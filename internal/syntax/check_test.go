//go:build cgo

package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		language string
		source   string
		wantErr  bool
	}{
		{"go ok", "go", "package main\n\nfunc main() {}\n", false},
		{"go unbalanced", "go", "package main\n\nfunc main() {\n", true},
		{"python ok", "python", "def f(x):\n    return x\n", false},
		{"python broken", "python", "def f(x)\n    return x\n", true},
		{"typescript ok", "typescript", "const x: number = 1;\n", false},
		{"javascript broken", "javascript", "function f( {\n", true},
		{"bash ok", "bash", "if true; then echo hi; fi\n", false},
		{"bash broken", "bash", "if true; then echo hi\n", true},
		{"empty", "go", "  \n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := Check(tt.source, tt.language)
			require.NoError(t, err)
			if !tt.wantErr {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			for _, e := range errs {
				assert.Positive(t, e.Line)
				assert.Positive(t, e.Column)
				assert.NotEmpty(t, e.Message)
				assert.Contains(t, []string{"ERROR", "MISSING"}, e.ErrorNode)
			}
		})
	}
}

func TestCheckUnknownLanguage(t *testing.T) {
	_, err := Check("x", "cobol")
	assert.True(t, errors.Is(err, ErrLanguageUnsupported))
	assert.False(t, Supported("cobol"))
	assert.True(t, Supported("go"))
}
