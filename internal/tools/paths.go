package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codefionn/toolgate/internal/sandbox"
)

// resolvePath validates path against the sandbox and returns the location
// the tool must operate on.
func resolvePath(ctx context.Context, mgr *sandbox.Manager, path string, access sandbox.AccessLevel, mustExist bool) (string, error) {
	if mgr == nil {
		return "", fmt.Errorf("sandbox is not configured")
	}
	resolved, err := mgr.Resolve(ctx, path, access, sandbox.Options{RequireExistence: mustExist})
	if err != nil {
		return "", err
	}
	return resolved.Path, nil
}

// displayPath shortens resolved to a workspace-relative path when it lies
// inside the workspace.
func displayPath(mgr *sandbox.Manager, resolved string) string {
	if mgr == nil {
		return resolved
	}
	ws := mgr.WorkspaceDir()
	if real, err := filepath.EvalSymlinks(ws); err == nil {
		ws = real
	}
	if !sandbox.IsWithin(resolved, ws) {
		return resolved
	}
	rel, err := filepath.Rel(ws, resolved)
	if err != nil {
		return resolved
	}
	return filepath.ToSlash(rel)
}
