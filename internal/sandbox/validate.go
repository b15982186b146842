package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/toolerr"
)

const (
	// maxSymlinkHops bounds how many dangling links are followed by hand.
	maxSymlinkHops = 40
	// maxWalkSteps bounds the walk towards the nearest existing ancestor.
	maxWalkSteps = 256
)

var (
	errTooManyLinks = errors.New("too many levels of symbolic links")
	errNoAncestor   = errors.New("no existing ancestor")
)

type root struct {
	clean     string
	canonical string
}

// Validate resolves requested against roots and returns the path a tool may
// operate on.
//
// A relative request is resolved against the process working directory and a
// leading "~" is expanded to the home directory. The request must lie inside
// a root both as written and after symlink resolution. A target that does not
// exist yet is accepted when its nearest existing ancestor resolves inside a
// root, unless opts.RequireExistence is set.
func Validate(ctx context.Context, requested string, roots []string, opts Options) (ResolvedPath, error) {
	if err := cancelled(ctx, requested); err != nil {
		return ResolvedPath{}, err
	}

	if strings.TrimSpace(requested) == "" {
		return ResolvedPath{}, toolerr.New(toolerr.CodeOutsideAllowedRoots, "", "empty path")
	}

	target, err := absolute(requested)
	if err != nil {
		return ResolvedPath{}, toolerr.Wrap(toolerr.CodeOutsideAllowedRoots, requested, err, "cannot resolve path")
	}

	allowed := normalizeRoots(roots)
	if len(allowed) == 0 {
		return ResolvedPath{}, toolerr.New(toolerr.CodeOutsideAllowedRoots, target, "no allowed roots configured")
	}

	if !intendedInside(target, allowed) {
		logger.Debug("sandbox: %s is outside %v", target, roots)
		return ResolvedPath{}, outside(target, allowed)
	}

	result, err := resolve(target, allowed)
	if err != nil {
		return ResolvedPath{}, err
	}

	if err := cancelled(ctx, requested); err != nil {
		return ResolvedPath{}, err
	}

	if opts.RequireExistence {
		if !result.Exists {
			return ResolvedPath{}, toolerr.New(toolerr.CodePathNotFound, target, "path does not exist")
		}
		if _, err := os.Stat(result.Path); err != nil {
			return ResolvedPath{}, toolerr.Wrap(toolerr.CodePathNotFound, target, err, "path does not exist")
		}
	}

	return result, nil
}

// IsWithin reports whether path equals dir or lies beneath it. Both are
// compared lexically.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if filepath.IsAbs(rel) || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolve(target string, allowed []root) (ResolvedPath, error) {
	real, err := filepath.EvalSymlinks(target)
	if err == nil {
		if !canonicalInside(real, allowed) {
			logger.Debug("sandbox: %s resolves to %s outside allowed roots", target, real)
			return ResolvedPath{}, escapes(target, real)
		}
		return ResolvedPath{Path: real, Exists: true}, nil
	}
	if !isMissing(err) {
		return ResolvedPath{}, toolerr.Wrap(toolerr.CodeSymlinkEscapesSandbox, target, err, "cannot resolve symlinks")
	}

	ancestor, err := nearestExisting(target)
	if err != nil {
		return ResolvedPath{}, toolerr.Wrap(toolerr.CodeSymlinkEscapesSandbox, target, err, "cannot resolve parent directory")
	}
	if !canonicalInside(ancestor, allowed) {
		logger.Debug("sandbox: nearest existing ancestor of %s is %s, outside allowed roots", target, ancestor)
		return ResolvedPath{}, escapes(target, ancestor)
	}

	return ResolvedPath{Path: target, Exists: false}, nil
}

// nearestExisting returns the canonical form of the closest ancestor of path
// that exists. Dangling symlinks met on the way are followed, so a link that
// points at a not-yet-created directory outside the roots is judged by where
// it points.
func nearestExisting(path string) (string, error) {
	cur := path
	hops := 0
	for step := 0; step < maxWalkSteps; step++ {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return real, nil
		}
		if !isMissing(err) {
			return "", err
		}

		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			hops++
			if hops > maxSymlinkHops {
				return "", errTooManyLinks
			}
			dest, rerr := readLink(cur)
			if rerr != nil {
				return "", rerr
			}
			cur = dest
			continue
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", errNoAncestor
		}
		cur = parent
	}
	return "", fmt.Errorf("path nesting exceeds %d levels", maxWalkSteps)
}

func readLink(path string) (string, error) {
	dest, err := os.Readlink(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(dest) {
		return filepath.Clean(dest), nil
	}
	dir := filepath.Dir(path)
	if realDir, err := filepath.EvalSymlinks(dir); err == nil {
		dir = realDir
	}
	return filepath.Join(dir, dest), nil
}

func normalizeRoots(roots []string) []root {
	out := make([]root, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		clean, err := absolute(r)
		if err != nil {
			logger.Warn("sandbox: ignoring root %q: %v", r, err)
			continue
		}
		canonical := clean
		if info, err := os.Stat(clean); err == nil && info.IsDir() {
			if real, err := filepath.EvalSymlinks(clean); err == nil {
				canonical = real
			}
		}
		out = append(out, root{clean: clean, canonical: canonical})
	}
	return out
}

func intendedInside(target string, allowed []root) bool {
	for _, r := range allowed {
		if IsWithin(target, r.clean) || IsWithin(target, r.canonical) {
			return true
		}
	}
	return false
}

func canonicalInside(real string, allowed []root) bool {
	for _, r := range allowed {
		if IsWithin(real, r.canonical) {
			return true
		}
	}
	return false
}

func absolute(p string) (string, error) {
	expanded, err := expandHome(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func cancelled(ctx context.Context, path string) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return toolerr.Wrap(toolerr.CodeCancelled, path, err, "path validation cancelled")
	}
	return nil
}

func outside(target string, allowed []root) error {
	names := make([]string, 0, len(allowed))
	for _, r := range allowed {
		names = append(names, r.clean)
	}
	return toolerr.New(toolerr.CodeOutsideAllowedRoots, target,
		"path is outside the allowed directories (%s)", strings.Join(names, ", "))
}

func escapes(target, real string) error {
	return toolerr.New(toolerr.CodeSymlinkEscapesSandbox, target,
		"path resolves to %s, which is outside the allowed directories", real)
}
