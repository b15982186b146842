// Package editmatch turns model-authored (old, new) text pairs into exact
// replacements inside a file's content.
//
// Models rarely reproduce whitespace faithfully, so the old text is located
// through a chain of progressively more forgiving strategies. Whatever
// strategy finds it, the located text must occur exactly once in the content
// (unless replace-all was requested); an ambiguous match is an error and is
// never resolved by guessing.
package editmatch

import (
	"fmt"
	"strings"

	"github.com/codefionn/toolgate/internal/toolerr"
)

// Edit is one requested replacement.
type Edit struct {
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// Match describes how one edit was applied.
type Match struct {
	Strategy     Strategy
	Text         string
	Replacements int
}

// Result is the outcome of Apply.
type Result struct {
	Content string
	Matches []Match
}

// Replacements returns the total number of replaced occurrences.
func (r *Result) Replacements() int {
	n := 0
	for _, m := range r.Matches {
		n += m.Replacements
	}
	return n
}

// EditError reports which edit of a batch failed.
type EditError struct {
	Index int // 0-based position in the batch
	Edit  Edit
	Err   error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit %d: %v", e.Index+1, e.Err)
}

func (e *EditError) Unwrap() error { return e.Err }

// Replace applies a single edit to content.
func Replace(content, oldText, newText string, replaceAll bool) (string, error) {
	out, _, err := replace(content, oldText, newText, replaceAll)
	return out, err
}

// ApplyEdits applies edits in order, each one seeing the output of the one
// before it. Either every edit applies or an error is returned.
func ApplyEdits(content string, edits []Edit, replaceAll bool) (string, error) {
	res, err := Apply(content, edits, replaceAll)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Apply is ApplyEdits that also reports how each edit matched.
func Apply(content string, edits []Edit, replaceAll bool) (*Result, error) {
	if len(edits) == 0 {
		return nil, toolerr.New(toolerr.CodeInvalidEdit, "", "no edits supplied")
	}

	res := &Result{Content: content, Matches: make([]Match, 0, len(edits))}
	for i, e := range edits {
		out, m, err := replace(res.Content, e.OldText, e.NewText, replaceAll)
		if err != nil {
			return nil, &EditError{Index: i, Edit: e, Err: err}
		}
		res.Content = out
		res.Matches = append(res.Matches, m)
	}
	return res, nil
}

func replace(content, oldText, newText string, replaceAll bool) (string, Match, error) {
	if oldText == "" {
		return "", Match{}, toolerr.New(toolerr.CodeInvalidEdit, "", "old text must not be empty")
	}
	if oldText == newText {
		return "", Match{}, toolerr.New(toolerr.CodeNoOpEdit, "", "old text and new text are identical")
	}

	found := false
	occurrences := 0
	for _, strategy := range strategies {
		for _, cand := range Candidates(strategy, content, oldText) {
			if cand.Text == "" {
				continue
			}
			first := strings.Index(content, cand.Text)
			if first < 0 {
				continue
			}
			found = true

			if replaceAll {
				n := strings.Count(content, cand.Text)
				return strings.ReplaceAll(content, cand.Text, newText), Match{Strategy: strategy, Text: cand.Text, Replacements: n}, nil
			}

			if first != strings.LastIndex(content, cand.Text) {
				if occurrences == 0 {
					occurrences = strings.Count(content, cand.Text)
				}
				continue
			}

			out := content[:first] + newText + content[first+len(cand.Text):]
			return out, Match{Strategy: strategy, Text: cand.Text, Replacements: 1}, nil
		}
	}

	if !found {
		return "", Match{}, toolerr.New(toolerr.CodeOldTextNotFound, "", "old text not found in content")
	}
	return "", Match{}, toolerr.New(toolerr.CodeAmbiguousMatch, "",
		"old text matches %d locations; include more surrounding lines so it matches exactly once, or set replace_all", occurrences)
}
