package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/codefionn/toolgate/internal/editmatch"
	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
	"github.com/codefionn/toolgate/internal/toolerr"
)

const devNull = "/dev/null"

// ApplyPatchToolSpec is the static specification for the apply_patch tool
type ApplyPatchToolSpec struct{}

func (s *ApplyPatchToolSpec) Name() string {
	return ToolNameApplyPatch
}

func (s *ApplyPatchToolSpec) Description() string {
	return `Apply a unified diff (as produced by git diff or diff -u) that may touch several files.
Hunks are located by their content, not their line numbers, so small offsets and whitespace differences are tolerated. Files with "--- /dev/null" are created, files with "+++ /dev/null" are deleted.
Either every file is updated or none is.`
}

func (s *ApplyPatchToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch": map[string]interface{}{
				"type":        "string",
				"description": "Unified diff with ---/+++ file headers and @@ hunks",
			},
		},
		"required": []string{"patch"},
	}
}

// ApplyPatchTool applies multi-file unified diffs.
type ApplyPatchTool struct {
	sandbox *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
}

func NewApplyPatchTool(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) *ApplyPatchTool {
	return &ApplyPatchTool{
		sandbox: mgr,
		fs:      filesystem,
		session: sess,
	}
}

// NewApplyPatchToolFactory creates a factory for ApplyPatchTool
func NewApplyPatchToolFactory(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewApplyPatchTool(mgr, filesystem, sess)
	}
}

// patchFile is one file section of a parsed patch.
type patchFile struct {
	diff *diff.FileDiff
}

func stripPatchPrefix(name string) string {
	if name == devNull {
		return name
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

func (f patchFile) isNew() bool    { return f.diff.OrigName == devNull }
func (f patchFile) isDelete() bool { return f.diff.NewName == devNull }

// path is the file the patch leaves behind, or the deleted one.
func (f patchFile) path() string {
	if f.isDelete() {
		return stripPatchPrefix(f.diff.OrigName)
	}
	return stripPatchPrefix(f.diff.NewName)
}

// origPath is the file the patch starts from; empty for new files.
func (f patchFile) origPath() string {
	if f.isNew() {
		return ""
	}
	return stripPatchPrefix(f.diff.OrigName)
}

func (f patchFile) isRename() bool {
	return !f.isNew() && !f.isDelete() && f.origPath() != f.path()
}

func parsePatch(patch string) ([]patchFile, error) {
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}
	diffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CodeInvalidEdit, "", err, "failed to parse patch")
	}
	files := make([]patchFile, 0, len(diffs))
	for _, d := range diffs {
		if d.OrigName == "" && d.NewName == "" {
			continue
		}
		if d.OrigName == devNull && d.NewName == devNull {
			return nil, toolerr.New(toolerr.CodeInvalidEdit, "", "patch section has /dev/null on both sides")
		}
		files = append(files, patchFile{diff: d})
	}
	if len(files) == 0 {
		return nil, toolerr.New(toolerr.CodeInvalidEdit, "", "patch contains no file changes")
	}
	return files, nil
}

// hunkText splits a hunk body into the text it expects and the text it
// leaves behind, both LF terminated.
func hunkText(h *diff.Hunk) (oldText, newText string, err error) {
	var oldLines, newLines []string
	var last byte
	trimLast := func(lines []string) {
		if n := len(lines); n > 0 {
			lines[n-1] = strings.TrimSuffix(lines[n-1], "\n")
		}
	}

	for _, line := range strings.SplitAfter(string(h.Body), "\n") {
		if line == "" {
			continue
		}
		if line[0] == '\\' {
			switch last {
			case ' ':
				trimLast(oldLines)
				trimLast(newLines)
			case '-':
				trimLast(oldLines)
			case '+':
				trimLast(newLines)
			}
			continue
		}
		// Editors often strip the single space of an empty context line.
		if line == "\n" {
			line = " \n"
		}
		// A missing newline means the new side ends without one.
		text := line[1:]
		switch line[0] {
		case ' ':
			oldLines = append(oldLines, text)
			newLines = append(newLines, text)
		case '-':
			oldLines = append(oldLines, text)
		case '+':
			newLines = append(newLines, text)
		default:
			return "", "", toolerr.New(toolerr.CodeInvalidEdit, "", "unexpected line in hunk: %q", strings.TrimSuffix(line, "\n"))
		}
		last = line[0]
	}
	if h.OrigNoNewlineAt > 0 {
		trimLast(oldLines)
	}
	return strings.Join(oldLines, ""), strings.Join(newLines, ""), nil
}

// insertAt inserts text after line `after` (0 means the start of content).
func insertAt(content string, after int, text string) string {
	if after <= 0 {
		return text + content
	}
	offset := 0
	for i := 0; i < after; i++ {
		next := strings.IndexByte(content[offset:], '\n')
		if next < 0 {
			if content != "" && !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			return content + text
		}
		offset += next + 1
	}
	return content[:offset] + text + content[offset:]
}

// patchContent computes the content a file section produces from current.
func patchContent(f patchFile, current string) (string, int, error) {
	if f.isNew() {
		var b strings.Builder
		for _, h := range f.diff.Hunks {
			_, added, err := hunkText(h)
			if err != nil {
				return "", 0, err
			}
			b.WriteString(added)
		}
		return b.String(), len(f.diff.Hunks), nil
	}

	style := editmatch.DetectNewlineStyle(current)
	content := editmatch.NormalizeNewlines(current, "\n")
	replacements := 0
	for i, h := range f.diff.Hunks {
		oldText, newText, err := hunkText(h)
		if err != nil {
			return "", 0, err
		}
		if oldText == newText {
			continue
		}
		if oldText == "" {
			content = insertAt(content, int(h.OrigStartLine), newText)
			replacements++
			continue
		}
		res, err := editmatch.Apply(content, []editmatch.Edit{{OldText: oldText, NewText: newText}}, false)
		if err != nil {
			return "", 0, fmt.Errorf("hunk %d (@@ -%d,%d): %w", i+1, h.OrigStartLine, h.OrigLines, explainEditError(content, err))
		}
		content = res.Content
		replacements += res.Replacements()
	}
	if style != "\n" {
		content = editmatch.NormalizeNewlines(content, style)
	}
	return content, replacements, nil
}

// plannedWrite is one file change computed before anything touches disk.
type plannedWrite struct {
	display  string
	resolved string
	// removeOrig is the source of a rename or the target of a deletion.
	removeOrig string
	before     string
	after      string
	existed    bool
	delete     bool
	hunks      int
}

func (t *ApplyPatchTool) plan(ctx context.Context, f patchFile) (*plannedWrite, error) {
	p := &plannedWrite{}

	var source string
	if !f.isNew() {
		resolved, err := resolvePath(ctx, t.sandbox, f.origPath(), sandbox.AccessReadWrite, true)
		if err != nil {
			return nil, err
		}
		data, err := t.fs.ReadFile(ctx, resolved)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", f.origPath(), err)
		}
		p.before = string(data)
		p.existed = true
		source = resolved
		if t.session != nil && t.session.IsStale(resolved, p.before) {
			return nil, fmt.Errorf("file %s changed since it was last read; read it again and regenerate the patch", f.origPath())
		}
	}

	if f.isDelete() {
		p.resolved = source
		p.removeOrig = source
		p.delete = true
		p.display = displayPath(t.sandbox, source)
		return p, nil
	}

	target := source
	if f.isNew() || f.isRename() {
		resolved, err := resolvePath(ctx, t.sandbox, f.path(), sandbox.AccessReadWrite, false)
		if err != nil {
			return nil, err
		}
		exists, err := t.fs.Exists(ctx, resolved)
		if err != nil {
			return nil, fmt.Errorf("error checking %s: %w", f.path(), err)
		}
		if exists {
			return nil, fmt.Errorf("cannot create %s: file already exists", f.path())
		}
		target = resolved
		if f.isRename() {
			p.removeOrig = source
		}
	}

	after, hunks, err := patchContent(f, p.before)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path(), err)
	}
	p.resolved = target
	p.display = displayPath(t.sandbox, target)
	p.after = after
	p.hunks = hunks
	return p, nil
}

func (t *ApplyPatchTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	meta := newMetadata(ToolNameApplyPatch)

	patch := GetStringParam(params, "patch", "")
	if strings.TrimSpace(patch) == "" {
		return errorResult(fmt.Errorf("patch is required"), meta)
	}
	files, err := parsePatch(patch)
	if err != nil {
		return errorResult(err, meta)
	}

	plans := make([]*plannedWrite, 0, len(files))
	seen := make(map[string]bool)
	for _, f := range files {
		p, err := t.plan(ctx, f)
		if err != nil {
			logger.Warn("apply_patch: %v", err)
			return errorResult(err, meta)
		}
		// A rename also claims its source, which commit removes.
		touched := []string{p.resolved}
		if p.removeOrig != "" && p.removeOrig != p.resolved {
			touched = append(touched, p.removeOrig)
		}
		for _, path := range touched {
			if seen[path] {
				return errorResult(fmt.Errorf("patch changes %s more than once", displayPath(t.sandbox, path)), meta)
			}
			seen[path] = true
		}
		plans = append(plans, p)
	}

	if err := t.commit(ctx, plans); err != nil {
		logger.Error("apply_patch: %v", err)
		return errorResult(err, meta)
	}

	changed := make([]map[string]interface{}, 0, len(plans))
	var diffs strings.Builder
	for _, p := range plans {
		action := "updated"
		switch {
		case p.delete:
			action = "deleted"
		case !p.existed:
			action = "created"
		case p.removeOrig != "":
			action = "renamed"
		}
		entry := map[string]interface{}{
			"path":   p.display,
			"action": action,
			"hunks":  p.hunks,
		}
		if !p.delete {
			if errs := newSyntaxErrors(p.resolved, p.before, p.after); len(errs) > 0 {
				entry["syntax_errors"] = errs
			}
		}
		changed = append(changed, entry)
		diffs.WriteString(unifiedDiff(p.display, p.before, p.after))
	}

	logger.Info("apply_patch: applied patch to %d files", len(plans))

	result := NewToolResultWithMetadata("", map[string]interface{}{
		"files":   changed,
		"applied": true,
	}, nil, meta)
	result.UIResult = diffs.String()
	return result
}

// commit writes every planned change. When a write fails, files already
// written are restored to their previous content.
func (t *ApplyPatchTool) commit(ctx context.Context, plans []*plannedWrite) error {
	var done []*plannedWrite
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			p := done[i]
			if !p.delete && p.resolved != p.removeOrig {
				if p.existed && p.removeOrig == "" {
					_ = t.fs.WriteFile(ctx, p.resolved, []byte(p.before))
				} else {
					_ = t.fs.Delete(ctx, p.resolved)
				}
			}
			if p.removeOrig != "" {
				_ = t.fs.WriteFile(ctx, p.removeOrig, []byte(p.before))
			}
		}
	}

	for _, p := range plans {
		if !p.delete {
			if err := t.fs.WriteFile(ctx, p.resolved, []byte(p.after)); err != nil {
				rollback()
				return fmt.Errorf("error writing %s: %w", p.display, err)
			}
		}
		if p.removeOrig != "" {
			if err := t.fs.Delete(ctx, p.removeOrig); err != nil {
				if !p.delete {
					_ = t.fs.Delete(ctx, p.resolved)
				}
				rollback()
				return fmt.Errorf("error removing %s: %w", p.removeOrig, err)
			}
		}
		done = append(done, p)
	}

	if t.session != nil {
		for _, p := range plans {
			if !p.delete {
				t.session.TrackFileModified(p.resolved, p.after)
			}
		}
	}
	return nil
}
