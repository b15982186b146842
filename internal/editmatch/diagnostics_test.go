package editmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectNewlineStyle(t *testing.T) {
	assert.Equal(t, "\r\n", DetectNewlineStyle("a\r\nb\r\n"))
	assert.Equal(t, "\n", DetectNewlineStyle("a\nb\n"))
	assert.Equal(t, "\n", DetectNewlineStyle("no newline"))
	assert.Equal(t, "\n", DetectNewlineStyle("a\r\nb\nc\n"))
}

func TestNormalizeNewlines(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", NormalizeNewlines("a\nb\r\n", "\r\n"))
	assert.Equal(t, "a\nb\n", NormalizeNewlines("a\r\nb\n", "\n"))
}

func TestMatchLocations(t *testing.T) {
	content := "one\nfoo()\nthree\nfour\nfoo()\n"

	got := MatchLocations(content, "foo()", 1)
	assert.Equal(t, "  1: one\n> 2: foo()\n  3: three\n---\n  4: four\n> 5: foo()\n  6: ", got)
	assert.Empty(t, MatchLocations(content, "\nfoo", 1))
}

func TestWhitespaceHint(t *testing.T) {
	t.Run("tabs in old text, spaces in file", func(t *testing.T) {
		hint := WhitespaceHint("if x {\n    y()\n}", "if x {\n\ty()\n}")
		assert.Contains(t, hint, "4 spaces")
	})

	t.Run("spaces in old text, tabs in file", func(t *testing.T) {
		hint := WhitespaceHint("if x {\n\ty()\n}", "if x {\n  y()\n}")
		assert.Contains(t, hint, "tabs")
	})

	t.Run("no whitespace involved", func(t *testing.T) {
		assert.Empty(t, WhitespaceHint("abc", "xyz"))
	})
}
