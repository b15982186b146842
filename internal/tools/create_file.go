package tools

import (
	"context"
	"fmt"

	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
)

// CreateFileToolSpec is the static specification for the create_file tool
type CreateFileToolSpec struct{}

func (s *CreateFileToolSpec) Name() string {
	return ToolNameCreateFile
}

func (s *CreateFileToolSpec) Description() string {
	return "Create a new file with the provided content. Missing parent directories are created. Fails if the file already exists unless overwrite is set."
}

func (s *CreateFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to create (relative to the workspace)",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write into the new file (optional, defaults to empty file)",
			},
			"overwrite": map[string]interface{}{
				"type":        "boolean",
				"description": "Replace the file if it already exists (it must have been read first)",
			},
		},
		"required": []string{"path"},
	}
}

// CreateFileTool writes brand new files.
type CreateFileTool struct {
	sandbox *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
}

func NewCreateFileTool(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) *CreateFileTool {
	return &CreateFileTool{
		sandbox: mgr,
		fs:      filesystem,
		session: sess,
	}
}

// NewCreateFileToolFactory creates a factory for CreateFileTool
func NewCreateFileToolFactory(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewCreateFileTool(mgr, filesystem, sess)
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	meta := newMetadata(ToolNameCreateFile)

	path := GetStringParam(params, "path", "")
	if path == "" {
		return errorResult(fmt.Errorf("path is required"), meta)
	}
	content := GetStringParam(params, "content", "")
	overwrite := GetBoolParam(params, "overwrite", false)

	resolved, err := resolvePath(ctx, t.sandbox, path, sandbox.AccessReadWrite, false)
	if err != nil {
		logger.Warn("create_file: %v", err)
		return errorResult(err, meta)
	}

	exists, err := t.fs.Exists(ctx, resolved)
	if err != nil {
		logger.Error("create_file: error checking if file exists: %v", err)
		return errorResult(fmt.Errorf("error checking file: %w", err), meta)
	}

	var previous string
	if exists {
		if !overwrite {
			return errorResult(fmt.Errorf("file already exists: %s (use edit_file to update existing files)", path), meta)
		}
		data, err := t.fs.ReadFile(ctx, resolved)
		if err != nil {
			return errorResult(fmt.Errorf("error reading existing file: %w", err), meta)
		}
		previous = string(data)
		if t.session != nil && t.session.IsStale(resolved, previous) {
			return errorResult(fmt.Errorf("file %s changed since it was last read; read it again before overwriting", path), meta)
		}
	}

	if err := t.fs.WriteFile(ctx, resolved, []byte(content)); err != nil {
		logger.Error("create_file: error writing file: %v", err)
		return errorResult(fmt.Errorf("error writing file: %w", err), meta)
	}

	if t.session != nil {
		t.session.TrackFileModified(resolved, content)
	}

	logger.Info("create_file: wrote %s (%d bytes, overwrite=%t)", resolved, len(content), exists)

	display := displayPath(t.sandbox, resolved)
	out := map[string]interface{}{
		"path":          display,
		"bytes_written": len(content),
		"created":       !exists,
	}
	if errs := newSyntaxErrors(resolved, previous, content); len(errs) > 0 {
		out["syntax_errors"] = errs
	}
	result := NewToolResultWithMetadata("", out, nil, meta)
	result.UIResult = unifiedDiff(display, previous, content)
	return result
}
