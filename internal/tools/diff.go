package tools

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/syntax"
)

// unifiedDiff renders the change from oldContent to newContent for display.
func unifiedDiff(path, oldContent, newContent string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		logger.Debug("tools: diff for %s failed: %v", path, err)
		return ""
	}
	return text
}

// newSyntaxErrors parses after when the file's language has a grammar and
// returns its syntax errors, unless before was already at least as broken.
// The errors are reported alongside a successful write; they never block it.
func newSyntaxErrors(path, before, after string) []syntax.SyntaxError {
	lang := syntax.DetectLanguage(path)
	if lang == "" || !syntax.Supported(lang) {
		return nil
	}
	errs, err := syntax.Check(after, lang)
	if err != nil {
		logger.Debug("tools: syntax check of %s failed: %v", path, err)
		return nil
	}
	if len(errs) == 0 || before == "" {
		return errs
	}
	if prev, err := syntax.Check(before, lang); err == nil && len(prev) >= len(errs) {
		return nil
	}
	return errs
}
