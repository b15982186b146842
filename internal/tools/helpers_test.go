package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
)

var testPrograms = []string{"echo", "cat", "ls", "rm", "touch", "printf", "sleep", "pwd", "grep", "git", "sh"}

type testEnv struct {
	dir     string
	mgr     *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
	reg     *Registry
}

func newTestEnv(t *testing.T, approval ApprovalMode) *testEnv {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		dir:     dir,
		mgr:     sandbox.NewManager(dir, nil),
		fs:      fs.NewOSFS(),
		session: session.NewSession("", dir),
	}
	env.reg = NewBuiltinRegistry(env.mgr, env.fs, env.session, Options{
		Approval: approval,
		Shell:    ShellOptions{AllowedPrograms: testPrograms},
	})
	return env
}

func (e *testEnv) path(rel string) string {
	return filepath.Join(e.dir, rel)
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := e.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(e.path(rel))
	require.NoError(t, err)
	return string(data)
}

// markRead records rel as read so edits pass the read-before-write check.
func (e *testEnv) markRead(t *testing.T, rel string) {
	t.Helper()
	e.session.TrackFileRead(e.path(rel), e.read(t, rel))
}

func (e *testEnv) call(name string, params map[string]interface{}) *ToolResult {
	return e.reg.Execute(context.Background(), &ToolCall{Name: name, Parameters: params})
}

func resultMap(t *testing.T, res *ToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Empty(t, res.Error)
	require.False(t, res.RequiresUserInput, res.AuthReason)
	m, ok := res.Result.(map[string]interface{})
	require.True(t, ok, "result is %T", res.Result)
	return m
}
