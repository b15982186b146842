package tools

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/toolgate/internal/consts"
	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
)

// ReadFileToolSpec is the static specification for the read_file tool
type ReadFileToolSpec struct{}

func (s *ReadFileToolSpec) Name() string {
	return ToolNameReadFile
}

func (s *ReadFileToolSpec) Description() string {
	return "Read a file inside the allowed directories. Can read the entire file or a line range; at most 2000 lines per read. Files must be read before they can be edited."
}

func (s *ReadFileToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read (relative to the workspace)",
			},
			"from_line": map[string]interface{}{
				"type":        "integer",
				"description": "Starting line number (1-indexed, optional)",
			},
			"to_line": map[string]interface{}{
				"type":        "integer",
				"description": "Ending line number (1-indexed, inclusive, optional)",
			},
		},
		"required": []string{"path"},
	}
}

// ReadFileTool is the executor with runtime dependencies
type ReadFileTool struct {
	sandbox *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
}

func NewReadFileTool(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) *ReadFileTool {
	return &ReadFileTool{
		sandbox: mgr,
		fs:      filesystem,
		session: sess,
	}
}

// NewReadFileToolFactory creates a factory for ReadFileTool
func NewReadFileToolFactory(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewReadFileTool(mgr, filesystem, sess)
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	meta := newMetadata(ToolNameReadFile)

	path := GetStringParam(params, "path", "")
	if path == "" {
		return errorResult(fmt.Errorf("path is required"), meta)
	}
	fromLine := GetIntParam(params, "from_line", 0)
	toLine := GetIntParam(params, "to_line", 0)

	logger.Debug("read_file: path=%s, from_line=%d, to_line=%d", path, fromLine, toLine)

	resolved, err := resolvePath(ctx, t.sandbox, path, sandbox.AccessReadOnly, true)
	if err != nil {
		logger.Warn("read_file: %v", err)
		return errorResult(err, meta)
	}

	info, err := t.fs.Stat(ctx, resolved)
	if err != nil {
		return errorResult(fmt.Errorf("error reading file: %w", err), meta)
	}
	if info.IsDir {
		return errorResult(fmt.Errorf("%s is a directory", path), meta)
	}

	data, err := t.fs.ReadFile(ctx, resolved)
	if err != nil {
		return errorResult(fmt.Errorf("error reading file: %w", err), meta)
	}
	if isBinary(data) {
		return errorResult(fmt.Errorf("%s looks like a binary file", path), meta)
	}
	content := string(data)

	// The whole file is the baseline for staleness, even for a partial read.
	if t.session != nil {
		t.session.TrackFileRead(resolved, content)
	}

	totalLines := countLines(content)
	if fromLine <= 0 {
		fromLine = 1
	}
	if toLine <= 0 || toLine > totalLines {
		toLine = totalLines
	}

	truncated := false
	if toLine-fromLine+1 > consts.MaxLinesPerRead {
		toLine = fromLine + consts.MaxLinesPerRead - 1
		truncated = true
	}

	var lines []string
	if totalLines > 0 {
		lines, err = t.fs.ReadFileLines(ctx, resolved, fromLine, toLine)
		if err != nil {
			return errorResult(fmt.Errorf("error reading file lines: %w", err), meta)
		}
	}
	out := strings.Join(lines, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n[... file truncated, %d total lines, showing lines %d-%d. Use from_line and to_line to read more]", totalLines, fromLine, toLine)
	}

	logger.Info("read_file: read %s (%d of %d lines)", resolved, len(lines), totalLines)

	meta.OutputSizeBytes, meta.OutputLineCount = CalculateOutputStats(out)
	return NewToolResultWithMetadata("", map[string]interface{}{
		"path":        displayPath(t.sandbox, resolved),
		"content":     out,
		"from_line":   fromLine,
		"to_line":     toLine,
		"total_lines": totalLines,
		"truncated":   truncated,
	}, nil, meta)
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// isBinary reports whether data has a NUL byte in its first 8000 bytes,
// the same heuristic git uses.
func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}
