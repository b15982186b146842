package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/toolgate/internal/tools"
)

// resetFlags puts every flag of cmd and its children back to its default so
// rootCmd can be executed more than once per process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// runCLI runs toolgate in a fresh workspace with an empty user config and
// logging disabled.
func runCLI(t *testing.T, workspace, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TOOLGATE_LOG_LEVEL", "none")
	t.Setenv("TOOLGATE_ALLOWED_ROOTS", "")
	t.Setenv("TOOLGATE_APPROVAL", "")

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	base := []string{"--config", filepath.Join(t.TempDir(), "config.toml"), "-C", workspace}
	rootCmd.SetArgs(append(base, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestCheckCommandCLI(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		name      string
		command   string
		wantErr   error
		wantValid bool
		mutating  bool
	}{
		{name: "read only", command: "ls -la", wantValid: true},
		{name: "mutating", command: "rm -rf build", wantValid: true, mutating: true},
		{name: "not allowed", command: "curl http://example.com", wantErr: errRefused},
		{name: "substitution", command: "echo $(whoami)", wantErr: errRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, ws, "", "--json", "check-command", tt.command)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			var report commandReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, tt.command, report.Command)
			assert.Equal(t, tt.wantValid, report.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.mutating, report.Mutating)
			} else {
				assert.NotEmpty(t, report.Code)
			}
		})
	}
}

func TestCheckPathCLI(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "a.txt"), []byte("a"), 0o644))

	out, err := runCLI(t, ws, "", "--json", "check-path", "--must-exist", "a.txt")
	require.NoError(t, err)
	var report pathReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Allowed)
	assert.True(t, report.Exists)
	assert.Equal(t, filepath.Join(ws, "a.txt"), report.Resolved)

	out, err = runCLI(t, ws, "", "--json", "check-path", "/etc/passwd")
	assert.ErrorIs(t, err, errRefused)
	report = pathReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Allowed)
	assert.Equal(t, "outside_allowed_roots", report.Code)
}

func TestEditCLI(t *testing.T) {
	ws := newWorkspace(t)
	path := filepath.Join(ws, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("func main() {\n\tprintln(\"hi\")\n}\n"), 0o644))

	_, err := runCLI(t, ws, "", "--json", "edit", "main.go", "--old", "println(\"hi\")", "--new", "println(\"bye\")")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "func main() {\n\tprintln(\"bye\")\n}\n", string(data))

	_, err = runCLI(t, ws, "", "edit", "main.go", "--old", "missing", "--new", "x")
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, exitRefused, exitCodeFor(err))
}

func TestEditCLIRequiresOldOrEdits(t *testing.T) {
	ws := newWorkspace(t)
	_, err := runCLI(t, ws, "", "edit", "main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--old/--new or --edits")
}

func TestCallCLI(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("one\ntwo\n"), 0o644))

	out, err := runCLI(t, ws, `{"name": "read_file", "parameters": {"path": "notes.txt"}}`, "--json", "call")
	require.NoError(t, err)

	var res tools.ToolResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Error)
	assert.Contains(t, res.ID, "call_")
}

func TestCallCLIApproval(t *testing.T) {
	ws := newWorkspace(t)
	call := `{"name": "shell", "parameters": {"command": "touch made.txt"}}`

	_, err := runCLI(t, ws, call, "call")
	assert.ErrorIs(t, err, errRefused)
	assert.NoFileExists(t, filepath.Join(ws, "made.txt"))

	_, err = runCLI(t, ws, call, "call", "--yes")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws, "made.txt"))
}

func TestToolsCLI(t *testing.T) {
	ws := newWorkspace(t)
	out, err := runCLI(t, ws, "", "--json", "tools")
	require.NoError(t, err)

	var schema []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	var names []string
	for _, s := range schema {
		fn := s["function"].(map[string]interface{})
		names = append(names, fn["name"].(string))
	}
	assert.Equal(t, []string{"apply_patch", "create_file", "edit_file", "read_file", "shell"}, names)
}

func TestReadCalls(t *testing.T) {
	calls, err := readCalls(strings.NewReader(`[{"name":"a"},{"name":"b","parameters":{"n":3}}]`))
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "b", calls[1].Name)
	assert.Equal(t, json.Number("3"), calls[1].Parameters["n"])

	_, err = readCalls(strings.NewReader("  "))
	assert.Error(t, err)

	_, err = readCalls(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, exitRefused, exitCodeFor(errRefused))
	assert.Equal(t, exitFailure, exitCodeFor(errToolFailed))
	assert.Equal(t, 7, exitCodeFor(exitStatus(7)))
	assert.True(t, isExitStatus(exitStatus(1)))
	assert.False(t, isExitStatus(errRefused))
}

func TestDescribeParams(t *testing.T) {
	lines := describeParams(&tools.ReadFileToolSpec{})
	require.NotEmpty(t, lines)
	var pathLine string
	for _, l := range lines {
		if strings.Contains(l, "path") {
			pathLine = l
		}
	}
	assert.True(t, strings.HasPrefix(pathLine, "*"), "path is required: %q", pathLine)
}
