package editmatch

import (
	"regexp"
	"strings"
)

// Strategy is one rule for locating old text in content.
type Strategy int

const (
	// LineTrimmed compares lines with leading and trailing whitespace removed.
	LineTrimmed Strategy = iota
	// WhitespaceNormalized collapses every whitespace run to a single space.
	WhitespaceNormalized
	// IndentationFlexible removes the common indentation of a block.
	IndentationFlexible
	// Literal is a plain substring search. It runs last so that a mid-line
	// multi-line edit still lands when no line-based strategy fits; without
	// it such edits fail with OldTextNotFound.
	Literal
)

var strategies = []Strategy{LineTrimmed, WhitespaceNormalized, IndentationFlexible, Literal}

func (s Strategy) String() string {
	switch s {
	case LineTrimmed:
		return "line_trimmed"
	case WhitespaceNormalized:
		return "whitespace_normalized"
	case IndentationFlexible:
		return "indentation_flexible"
	case Literal:
		return "literal"
	default:
		return "unknown"
	}
}

// Candidate is a substring of the content that one strategy considers a
// match for the old text. Candidates are listed in content order.
type Candidate struct {
	Strategy Strategy
	Text     string
}

// Candidates lists what strategy s finds for oldText in content.
func Candidates(s Strategy, content, oldText string) []Candidate {
	if oldText == "" {
		return nil
	}
	idx := newLineIndex(content)
	q := newQuery(oldText)

	var texts []string
	switch s {
	case LineTrimmed:
		texts = lineTrimmed(idx, q)
	case WhitespaceNormalized:
		texts = whitespaceNormalized(idx, q)
	case IndentationFlexible:
		texts = indentationFlexible(idx, q)
	case Literal:
		if strings.Contains(content, oldText) {
			texts = []string{oldText}
		}
	}

	out := make([]Candidate, 0, len(texts))
	for _, t := range texts {
		out = append(out, Candidate{Strategy: s, Text: t})
	}
	return out
}

// query is the old text split into lines. A single trailing newline is
// remembered separately so that "foo\n" searches for the line "foo".
type query struct {
	lines           []string
	trailingNewline bool
}

func newQuery(oldText string) query {
	text := oldText
	trailing := false
	if strings.HasSuffix(text, "\n") {
		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
		trailing = true
	}
	return query{lines: strings.Split(text, "\n"), trailingNewline: trailing}
}

func (q query) first() string { return q.lines[0] }
func (q query) last() string  { return q.lines[len(q.lines)-1] }
func (q query) text() string  { return strings.Join(q.lines, "\n") }

type lineIndex struct {
	content string
	lines   []string
	starts  []int
}

func newLineIndex(content string) lineIndex {
	lines := strings.Split(content, "\n")
	starts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		starts[i] = off
		off += len(l) + 1
	}
	return lineIndex{content: content, lines: lines, starts: starts}
}

// windows returns the start indices of every n-line window.
func (x lineIndex) windows(n int) int {
	return len(x.lines) - n + 1
}

// block returns lines[i:i+n] joined, plus the newline after the block when
// the query asked for one.
func (x lineIndex) block(i, n int, trailingNewline bool) string {
	start := x.starts[i]
	end := x.lineEnd(i + n - 1)
	if trailingNewline && end < len(x.content) {
		end++
	}
	return x.content[start:end]
}

// span is like block but drops the outer whitespace of the block wherever the
// query has none, so that replacing the span keeps the surrounding
// indentation and trailing spaces intact.
func (x lineIndex) span(i, n int, q query) string {
	start := x.starts[i]
	if !startsWithSpace(q.first()) {
		start += len(x.lines[i]) - len(strings.TrimLeft(x.lines[i], spaceChars))
	}

	lastLine := i + n - 1
	end := x.lineEnd(lastLine)
	switch {
	case q.trailingNewline:
		if end < len(x.content) {
			end++
		}
	case !endsWithSpace(q.last()):
		end -= len(x.lines[lastLine]) - len(strings.TrimRight(x.lines[lastLine], spaceChars))
	}

	if end < start {
		return ""
	}
	return x.content[start:end]
}

func (x lineIndex) lineEnd(i int) int {
	return x.starts[i] + len(x.lines[i])
}

const spaceChars = " \t\r\f\v"

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(spaceChars, rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(spaceChars, rune(s[len(s)-1]))
}

func lineTrimmed(x lineIndex, q query) []string {
	n := len(q.lines)
	trimmed := make([]string, n)
	for k, l := range q.lines {
		trimmed[k] = strings.TrimSpace(l)
	}

	var out []string
	for i := 0; i < x.windows(n); i++ {
		matched := true
		for k := 0; k < n; k++ {
			if strings.TrimSpace(x.lines[i+k]) != trimmed[k] {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, x.span(i, n, q))
		}
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func whitespaceNormalized(x lineIndex, q query) []string {
	target := normalizeWhitespace(q.text())
	if target == "" {
		return nil
	}

	n := len(q.lines)
	var out []string

	if n == 1 {
		var loose *regexp.Regexp
		for i, line := range x.lines {
			norm := normalizeWhitespace(line)
			if norm == target {
				out = append(out, x.span(i, 1, q))
				continue
			}
			if !strings.Contains(norm, target) {
				continue
			}
			if loose == nil {
				loose = looseWordPattern(q.first())
			}
			out = append(out, loose.FindAllString(line, -1)...)
		}
		return out
	}

	// A multi-line query may also match a single line once newlines collapse.
	windows := x.windows(n)
	for i, line := range x.lines {
		if normalizeWhitespace(line) == target {
			out = append(out, x.span(i, 1, q))
		}
		if i < windows && normalizeWhitespace(strings.Join(x.lines[i:i+n], "\n")) == target {
			out = append(out, x.span(i, n, q))
		}
	}
	return out
}

// looseWordPattern matches the words of s separated by any whitespace run.
func looseWordPattern(s string) *regexp.Regexp {
	words := strings.Fields(s)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(strings.Join(quoted, `\s+`))
}

func removeIndentation(lines []string) string {
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		w := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || w < indent {
			indent = w
		}
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out[i] = strings.TrimRight(l[indent:], "\r")
	}
	return strings.Join(out, "\n")
}

func indentationFlexible(x lineIndex, q query) []string {
	n := len(q.lines)
	target := removeIndentation(q.lines)
	if strings.TrimSpace(target) == "" {
		return nil
	}

	var out []string
	for i := 0; i < x.windows(n); i++ {
		if removeIndentation(x.lines[i:i+n]) == target {
			out = append(out, x.block(i, n, q.trailingNewline))
		}
	}
	return out
}
