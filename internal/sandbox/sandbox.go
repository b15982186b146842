// Package sandbox decides whether a tool may touch a filesystem path.
//
// Validate resolves a requested path against a set of allowed root
// directories, following symlinks, and refuses anything whose real location
// lies outside every root. It performs read-only queries only (stat, lstat,
// readlink) and holds no state between calls; the allowed roots are passed in
// on every call. Manager layers per-session directory approvals on top.
package sandbox

import (
	"path/filepath"
)

// AccessLevel represents the type of filesystem access granted to a path.
type AccessLevel int

const (
	// AccessReadOnly grants read-only access (read files, list directories)
	AccessReadOnly AccessLevel = iota
	// AccessReadWrite grants read and write access
	AccessReadWrite
)

func (a AccessLevel) String() string {
	if a == AccessReadWrite {
		return "readwrite"
	}
	return "read"
}

// ParseAccessLevel maps "readwrite"/"rw"/"write" to AccessReadWrite and
// anything else to AccessReadOnly.
func ParseAccessLevel(s string) AccessLevel {
	switch s {
	case "readwrite", "rw", "write":
		return AccessReadWrite
	default:
		return AccessReadOnly
	}
}

// DirectoryPermission represents a directory path with its access level.
type DirectoryPermission struct {
	Path   string
	Access AccessLevel
}

// SandboxConfig holds the directories granted in addition to the workspace.
type SandboxConfig struct {
	AdditionalReadOnlyPaths  []string
	AdditionalReadWritePaths []string
}

// Options tunes a single Validate call.
type Options struct {
	// RequireExistence fails with PathNotFound when the target is absent.
	RequireExistence bool
}

// ResolvedPath is the outcome of a successful Validate call.
type ResolvedPath struct {
	// Path is the canonical path when the target exists, otherwise the
	// absolute, cleaned form of the request.
	Path   string
	Exists bool
}

// RootsFor returns the directories in perms that grant access. Read-write
// directories also grant read access. Order is preserved and duplicates are
// dropped.
func RootsFor(perms []DirectoryPermission, access AccessLevel) []string {
	seen := make(map[string]struct{}, len(perms))
	roots := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.Path == "" {
			continue
		}
		if access == AccessReadWrite && p.Access != AccessReadWrite {
			continue
		}
		clean := filepath.Clean(p.Path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		roots = append(roots, clean)
	}
	return roots
}
