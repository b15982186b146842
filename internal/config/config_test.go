package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mutating", cfg.Approval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Shell.Timeout))
	assert.Contains(t, cfg.AllowedPrograms, "git")
	assert.Empty(t, cfg.AllowedRoots)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TOOLGATE_LOG_LEVEL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().AllowedPrograms, cfg.AllowedPrograms)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `allowed_programs = ["ls", "git"]
approval = "always"
read_only_roots = ["/srv/shared"]

[shell]
timeout = "10s"
confine = true
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `allowed_programs: [ls, git]
approval: always
read_only_roots:
  - /srv/shared
shell:
  timeout: 10
  confine: true
`,
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"allowed_programs": ["ls", "git"], "approval": "always", "read_only_roots": ["/srv/shared"], "shell": {"timeout": "10s", "confine": true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := Load(path, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"git", "ls"}, cfg.AllowedPrograms)
			assert.Equal(t, "always", cfg.Approval)
			assert.Equal(t, []string{"/srv/shared"}, cfg.ReadOnlyRoots)
			assert.Equal(t, 10*time.Second, time.Duration(cfg.Shell.Timeout))
			assert.Equal(t, 5*time.Minute, time.Duration(cfg.Shell.MaxTimeout), "unset fields keep defaults")
			assert.True(t, cfg.Shell.Confine)
			assert.Equal(t, []string{path}, cfg.Sources)
		})
	}
}

func TestLoadProjectFileOverridesUserFile(t *testing.T) {
	user := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(user, []byte("approval = \"always\"\nlog_level = \"debug\"\n"), 0o644))

	workspace := t.TempDir()
	project := filepath.Join(workspace, ".toolgate.yaml")
	require.NoError(t, os.WriteFile(project, []byte("approval: never\n"), 0o644))

	cfg, err := Load(user, workspace)
	require.NoError(t, err)
	assert.Equal(t, "never", cfg.Approval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{user, project}, cfg.Sources)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("approval = [unterminated"), 0o644))

	_, err := Load(path, "")
	assert.ErrorContains(t, err, "parse config")

	bad := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("shell:\n  timeout: soon\n"), 0o644))
	_, err = Load(bad, "")
	assert.ErrorContains(t, err, "invalid duration")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TOOLGATE_LOG_LEVEL":     "warn",
		"TOOLGATE_LOG_PATH":      "/tmp/toolgate.log",
		"TOOLGATE_ALLOWED_ROOTS": "/a" + string(os.PathListSeparator) + "/b",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/toolgate.log", cfg.LogPath)
	assert.Equal(t, []string{"/a", "/b"}, cfg.AllowedRoots)

	unchanged := DefaultConfig()
	unchanged.ApplyEnv(noEnv)
	assert.Equal(t, DefaultConfig(), unchanged)
}

func TestAddRootsAndPrograms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddRoots(true, "/work", " /work ", "")
	cfg.AddRoots(false, "/docs")
	cfg.AllowPrograms("zig", "git")
	cfg.AuthorizeCommand("go test")
	cfg.AuthorizeCommand("go test ")

	assert.Equal(t, []string{"/work"}, cfg.AllowedRoots)
	assert.Equal(t, []string{"/docs"}, cfg.ReadOnlyRoots)
	assert.Contains(t, cfg.AllowedPrograms, "zig")
	assert.Equal(t, []string{"go test"}, cfg.AuthorizedCommands)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AddRoots(false, "/docs")
			cfg.AuthorizeCommand("go test")
			cfg.Shell.Timeout = Duration(45 * time.Second)

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path, "")
			require.NoError(t, err)
			assert.Equal(t, cfg.ReadOnlyRoots, loaded.ReadOnlyRoots)
			assert.Equal(t, cfg.AuthorizedCommands, loaded.AuthorizedCommands)
			assert.Equal(t, cfg.AllowedPrograms, loaded.AllowedPrograms)
			assert.Equal(t, cfg.Shell.Timeout, loaded.Shell.Timeout)
		})
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	require.NoError(t, d.UnmarshalText([]byte("15")))
	assert.Equal(t, 15*time.Second, time.Duration(d))

	assert.Error(t, d.UnmarshalText([]byte("later")))

	text, err := Duration(2 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(text))
}
