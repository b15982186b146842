package sandbox

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/codefionn/toolgate/internal/logger"
)

// Manager tracks the directories a session may access: the workspace, the
// configured additional paths and any paths approved during the session.
// It snapshots them into a root list for every Validate call.
type Manager struct {
	mu           sync.RWMutex
	workspaceDir string
	configured   []DirectoryPermission
	sessionPaths []DirectoryPermission // Paths approved for this session only
}

// NewManager creates a new sandbox manager. The workspace is always granted
// read-write access.
func NewManager(workspaceDir string, cfg *SandboxConfig) *Manager {
	workspaceDir = filepath.Clean(workspaceDir)
	configured := []DirectoryPermission{{Path: workspaceDir, Access: AccessReadWrite}}
	if cfg != nil {
		for _, p := range cfg.AdditionalReadWritePaths {
			configured = append(configured, DirectoryPermission{Path: p, Access: AccessReadWrite})
		}
		for _, p := range cfg.AdditionalReadOnlyPaths {
			configured = append(configured, DirectoryPermission{Path: p, Access: AccessReadOnly})
		}
	}

	return &Manager{
		workspaceDir: workspaceDir,
		configured:   configured,
	}
}

// WorkspaceDir returns the directory relative paths are resolved against.
func (m *Manager) WorkspaceDir() string {
	return m.workspaceDir
}

// ApprovePath grants access to path for the rest of the session. Approving
// read-write on a path previously approved read-only upgrades it.
func (m *Manager) ApprovePath(path string, access AccessLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = m.abs(path)
	for i, p := range m.sessionPaths {
		if p.Path == path {
			if access > p.Access {
				m.sessionPaths[i].Access = access
			}
			return
		}
	}
	logger.Info("sandbox: approved %s for session (%s)", path, access)
	m.sessionPaths = append(m.sessionPaths, DirectoryPermission{Path: path, Access: access})
}

// GetAllowedPaths returns all currently allowed paths.
func (m *Manager) GetAllowedPaths() []DirectoryPermission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]DirectoryPermission, 0, len(m.configured)+len(m.sessionPaths))
	for _, p := range m.configured {
		result = append(result, DirectoryPermission{Path: m.abs(p.Path), Access: p.Access})
	}
	result = append(result, m.sessionPaths...)
	return result
}

// GetSessionPaths returns paths approved for this session only.
func (m *Manager) GetSessionPaths() []DirectoryPermission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]DirectoryPermission, len(m.sessionPaths))
	copy(result, m.sessionPaths)
	return result
}

// Roots returns the root directories granting access.
func (m *Manager) Roots(access AccessLevel) []string {
	return RootsFor(m.GetAllowedPaths(), access)
}

// Resolve validates path for the given access. Relative paths are taken
// relative to the workspace rather than the process working directory.
func (m *Manager) Resolve(ctx context.Context, path string, access AccessLevel, opts Options) (ResolvedPath, error) {
	if path != "" && !filepath.IsAbs(path) && path != "~" && !hasHomePrefix(path) {
		path = filepath.Join(m.workspaceDir, path)
	}
	return Validate(ctx, path, m.Roots(access), opts)
}

func (m *Manager) abs(path string) string {
	if path == "" || filepath.IsAbs(path) || path == "~" || hasHomePrefix(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.workspaceDir, path)
}

func hasHomePrefix(p string) bool {
	return len(p) >= 2 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator)
}
