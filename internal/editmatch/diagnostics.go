package editmatch

import (
	"fmt"
	"strings"
)

// DetectNewlineStyle returns the newline style used in content: "\r\n" for CRLF, "\n" for LF.
// If the content has no newlines or mixed styles, defaults to LF.
func DetectNewlineStyle(content string) string {
	crlf := strings.Count(content, "\r\n")
	lf := strings.Count(content, "\n") - crlf
	if crlf > lf {
		return "\r\n"
	}
	return "\n"
}

// NormalizeNewlines converts all newlines in s to the target style.
func NormalizeNewlines(s, style string) string {
	normalized := strings.ReplaceAll(s, "\r\n", "\n")
	if style == "\r\n" {
		normalized = strings.ReplaceAll(normalized, "\n", "\r\n")
	}
	return normalized
}

// MatchLocations lists every line of content that contains the first line of
// pattern, with up to contextLines lines around each hit. Line numbers are
// 1-based and hits are marked with '>'.
func MatchLocations(content, pattern string, contextLines int) string {
	needle := strings.SplitN(pattern, "\n", 2)[0]
	if strings.TrimSpace(needle) == "" {
		return ""
	}
	needle = strings.TrimSpace(needle)

	lines := strings.Split(content, "\n")
	var blocks []string
	for i, line := range lines {
		if !strings.Contains(line, needle) {
			continue
		}
		start := max(i-contextLines, 0)
		end := min(i+contextLines, len(lines)-1)

		var b strings.Builder
		for j := start; j <= end; j++ {
			marker := "  "
			if j == i {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%d: %s", marker, j+1, strings.TrimRight(lines[j], "\r"))
			if j < end {
				b.WriteByte('\n')
			}
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n---\n")
}

// WhitespaceHint explains a failed match caused by tabs versus spaces. It
// returns "" when swapping indentation style would not help.
func WhitespaceHint(content, oldText string) string {
	hasTabs := strings.Contains(oldText, "\t")
	hasLeadingSpaces := false
	for _, line := range strings.Split(oldText, "\n") {
		if strings.HasPrefix(line, " ") {
			hasLeadingSpaces = true
			break
		}
	}

	if hasTabs {
		for _, width := range []int{2, 4, 8} {
			candidate := strings.ReplaceAll(oldText, "\t", strings.Repeat(" ", width))
			if strings.Contains(content, candidate) {
				return fmt.Sprintf("The file indents with %d spaces but old_text uses tabs. Replace tabs with %d spaces and retry.", width, width)
			}
		}
	}

	if hasLeadingSpaces {
		for _, width := range []int{2, 4, 8} {
			candidate := spacesToTabs(oldText, width)
			if candidate != oldText && strings.Contains(content, candidate) {
				return fmt.Sprintf("The file indents with tabs but old_text uses spaces. Replace each %d-space indent with a tab and retry.", width)
			}
		}
	}

	return ""
}

func spacesToTabs(text string, width int) string {
	unit := strings.Repeat(" ", width)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		prefix := ""
		for strings.HasPrefix(line, unit) {
			prefix += "\t"
			line = line[width:]
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
