package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/codefionn/toolgate/internal/editmatch"
	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
	"github.com/codefionn/toolgate/internal/toolerr"
)

// EditFileToolSpec is the static specification for the edit_file tool
type EditFileToolSpec struct{}

func (s *EditFileToolSpec) Name() string {
	return ToolNameEditFile
}

func (s *EditFileToolSpec) Description() string {
	return `Update an existing file by replacing text. Either provide a single old_text/new_text pair, or an edits array to apply several replacements in order.
Each old_text must identify exactly one location in the file; differences in indentation and spacing are tolerated, but if old_text matches more than one place the edit fails. Include more surrounding lines, or set replace_all to change every occurrence.
Either every edit applies or the file is left untouched. The file must have been read in this session.`
}

func (s *EditFileToolSpec) Parameters() map[string]interface{} {
	editProps := map[string]interface{}{
		"old_text": map[string]interface{}{
			"type":        "string",
			"description": "Text to replace. Must identify a single location in the file.",
		},
		"new_text": map[string]interface{}{
			"type":        "string",
			"description": "Replacement text. Empty string deletes the match.",
		},
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to update (relative to the workspace)",
			},
			"old_text": editProps["old_text"],
			"new_text": editProps["new_text"],
			"edits": map[string]interface{}{
				"type":        "array",
				"description": "Replacements to apply in order; each sees the result of the previous one.",
				"items": map[string]interface{}{
					"type":       "object",
					"properties": editProps,
					"required":   []string{"old_text", "new_text"},
				},
			},
			"replace_all": map[string]interface{}{
				"type":        "boolean",
				"description": "Replace every occurrence of each old_text instead of requiring a unique match",
			},
		},
		"required": []string{"path"},
	}
}

// EditFileTool is the executor with runtime dependencies
type EditFileTool struct {
	sandbox *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
}

func NewEditFileTool(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) *EditFileTool {
	return &EditFileTool{
		sandbox: mgr,
		fs:      filesystem,
		session: sess,
	}
}

// NewEditFileToolFactory creates a factory for EditFileTool
func NewEditFileToolFactory(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewEditFileTool(mgr, filesystem, sess)
	}
}

// editParam accepts the old_string/new_string spelling some models use.
type editParam struct {
	OldText   *string `json:"old_text"`
	NewText   *string `json:"new_text"`
	OldString *string `json:"old_string"`
	NewString *string `json:"new_string"`
}

func (p editParam) edit(i int) (editmatch.Edit, error) {
	old, neu := p.OldText, p.NewText
	if old == nil {
		old = p.OldString
	}
	if neu == nil {
		neu = p.NewString
	}
	if old == nil || neu == nil {
		return editmatch.Edit{}, fmt.Errorf("edit %d: old_text and new_text are required", i+1)
	}
	return editmatch.Edit{OldText: *old, NewText: *neu}, nil
}

func parseEdits(params map[string]interface{}) ([]editmatch.Edit, error) {
	var raw []editParam
	found, err := decodeParam(params, "edits", &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		single := editParam{}
		for key, dst := range map[string]**string{
			"old_text": &single.OldText, "new_text": &single.NewText,
			"old_string": &single.OldString, "new_string": &single.NewString,
		} {
			if v, ok := params[key].(string); ok {
				*dst = &v
			}
		}
		raw = []editParam{single}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("edits cannot be empty")
	}

	edits := make([]editmatch.Edit, 0, len(raw))
	for i, p := range raw {
		e, err := p.edit(i)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func (t *EditFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	meta := newMetadata(ToolNameEditFile)

	path := GetStringParam(params, "path", "")
	if path == "" {
		return errorResult(fmt.Errorf("path is required"), meta)
	}
	edits, err := parseEdits(params)
	if err != nil {
		return errorResult(err, meta)
	}
	replaceAll := GetBoolParam(params, "replace_all", false)

	logger.Debug("edit_file: path=%s edits=%d replace_all=%t", path, len(edits), replaceAll)

	resolved, err := resolvePath(ctx, t.sandbox, path, sandbox.AccessReadWrite, true)
	if err != nil {
		logger.Warn("edit_file: %v", err)
		return errorResult(err, meta)
	}

	data, err := t.fs.ReadFile(ctx, resolved)
	if err != nil {
		return errorResult(fmt.Errorf("error reading current file: %w", err), meta)
	}
	content := string(data)

	if t.session != nil && t.session.IsStale(resolved, content) {
		return errorResult(fmt.Errorf("file %s changed since it was last read; read it again and redo the edit", path), meta)
	}

	updated, res, err := applyFileEdits(content, edits, replaceAll)
	if err != nil {
		return errorResult(explainEditError(content, err), meta)
	}

	if err := t.fs.WriteFile(ctx, resolved, []byte(updated)); err != nil {
		logger.Error("edit_file: error writing file: %v", err)
		return errorResult(fmt.Errorf("error writing file: %w", err), meta)
	}
	if t.session != nil {
		t.session.TrackFileModified(resolved, updated)
	}

	strategies := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		strategies = append(strategies, m.Strategy.String())
	}
	meta.Details = map[string]interface{}{"strategies": strategies}

	logger.Info("edit_file: updated %s (%d replacements)", resolved, res.Replacements())

	display := displayPath(t.sandbox, resolved)
	out := map[string]interface{}{
		"path":          display,
		"replacements":  res.Replacements(),
		"edits_applied": len(edits),
		"updated":       true,
	}
	if errs := newSyntaxErrors(resolved, content, updated); len(errs) > 0 {
		out["syntax_errors"] = errs
	}
	result := NewToolResultWithMetadata("", out, nil, meta)
	result.UIResult = unifiedDiff(display, content, updated)
	return result
}

// applyFileEdits applies edits to a file's content, matching against the
// LF form of both sides and restoring the file's newline style afterwards.
func applyFileEdits(content string, edits []editmatch.Edit, replaceAll bool) (string, *editmatch.Result, error) {
	style := editmatch.DetectNewlineStyle(content)
	normalized := editmatch.NormalizeNewlines(content, "\n")

	lfEdits := make([]editmatch.Edit, len(edits))
	for i, e := range edits {
		lfEdits[i] = editmatch.Edit{
			OldText: editmatch.NormalizeNewlines(e.OldText, "\n"),
			NewText: editmatch.NormalizeNewlines(e.NewText, "\n"),
		}
	}

	res, err := editmatch.Apply(normalized, lfEdits, replaceAll)
	if err != nil {
		return "", nil, err
	}
	if style == "\n" && normalized == content {
		return res.Content, res, nil
	}
	return editmatch.NormalizeNewlines(res.Content, style), res, nil
}

// explainEditError adds hints that help the caller retry a failed edit.
func explainEditError(content string, err error) error {
	var editErr *editmatch.EditError
	if !errors.As(err, &editErr) {
		return err
	}
	normalized := editmatch.NormalizeNewlines(content, "\n")
	oldText := editmatch.NormalizeNewlines(editErr.Edit.OldText, "\n")

	switch {
	case toolerr.Has(err, toolerr.CodeOldTextNotFound):
		if hint := editmatch.WhitespaceHint(normalized, oldText); hint != "" {
			return fmt.Errorf("%w. %s", err, hint)
		}
		return fmt.Errorf("%w. Read the file again and redo the edit", err)
	case toolerr.Has(err, toolerr.CodeAmbiguousMatch):
		if locations := editmatch.MatchLocations(normalized, oldText, 3); locations != "" {
			return fmt.Errorf("%w\n\nFound matches at:\n%s", err, locations)
		}
	}
	return err
}
