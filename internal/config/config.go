// Package config loads toolgate settings from layered sources: built-in
// defaults, the user config file, a project file in the workspace, the
// environment and finally command-line flags (applied by the caller).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/codefionn/toolgate/internal/consts"
)

const appName = "toolgate"

// ProjectFiles are looked up in the workspace, first match wins.
var ProjectFiles = []string{".toolgate.toml", ".toolgate.yaml", ".toolgate.yml", ".toolgate.json"}

// DefaultAllowedPrograms is the shell allow-list used when none is configured.
var DefaultAllowedPrograms = []string{
	"cat", "head", "tail", "less", "wc", "ls", "tree", "find", "grep", "rg", "sort", "uniq",
	"diff", "echo", "printf", "pwd", "which", "file", "stat", "du", "date",
	"git", "go", "gofmt", "make", "npm", "node", "python3", "pytest", "cargo",
	"mkdir", "touch", "cp", "mv", "rm", "sed", "awk", "tr", "cut", "xargs",
}

// ShellConfig tunes the shell tool.
type ShellConfig struct {
	// Timeout is the default per-command timeout, e.g. "30s".
	Timeout    Duration `json:"timeout" toml:"timeout" yaml:"timeout"`
	MaxTimeout Duration `json:"max_timeout" toml:"max_timeout" yaml:"max_timeout"`
	// Confine runs commands under a landlock ruleset derived from the roots.
	Confine bool `json:"confine" toml:"confine" yaml:"confine"`
}

// Config is the merged configuration.
type Config struct {
	// AllowedRoots are granted read-write; the workspace always is.
	AllowedRoots  []string `json:"allowed_roots,omitempty" toml:"allowed_roots,omitempty" yaml:"allowed_roots,omitempty"`
	ReadOnlyRoots []string `json:"read_only_roots,omitempty" toml:"read_only_roots,omitempty" yaml:"read_only_roots,omitempty"`

	AllowedPrograms []string `json:"allowed_programs" toml:"allowed_programs" yaml:"allowed_programs"`
	// Approval is "mutating", "always" or "never".
	Approval string `json:"approval" toml:"approval" yaml:"approval"`

	// AuthorizedCommands are command prefixes approved permanently.
	AuthorizedCommands []string `json:"authorized_commands,omitempty" toml:"authorized_commands,omitempty" yaml:"authorized_commands,omitempty"`

	Shell ShellConfig `json:"shell" toml:"shell" yaml:"shell"`

	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"log_path,omitempty" toml:"log_path,omitempty" yaml:"log_path,omitempty"`

	// Sources lists the files that were merged, in order.
	Sources []string `json:"-" toml:"-" yaml:"-"`
}

// Duration is a time.Duration that reads and writes strings like "30s".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Duration converts d to a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. A bare number is read
// as seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// UnmarshalYAML accepts both "30s" and 30.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML writes the string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

// GetConfigPath returns the user config file path.
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.toml")
}

// DefaultLogPath is where logs go when no path is configured.
func DefaultLogPath() string {
	return filepath.Join(defaultStateDir(), appName+".log")
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	cfg := &Config{
		AllowedPrograms: append([]string(nil), DefaultAllowedPrograms...),
		Approval:        "mutating",
		Shell: ShellConfig{
			Timeout:    Duration(consts.DefaultShellTimeout),
			MaxTimeout: Duration(consts.MaxShellTimeout),
		},
		LogLevel: "info",
	}
	cfg.normalize()
	return cfg
}

// Load merges the user config file at path (ignored when missing) and the
// first project file found in workspace over the defaults, then applies
// environment overrides. An empty workspace skips the project file.
func Load(path, workspace string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if workspace != "" {
		for _, name := range ProjectFiles {
			p := filepath.Join(workspace, name)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := cfg.mergeFile(p); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.normalize()
	return cfg, nil
}

// mergeFile decodes path over c. Fields absent from the file keep their
// current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		err = toml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Sources = append(c.Sources, path)
	return nil
}

// ApplyEnv applies TOOLGATE_* overrides using lookup (os.LookupEnv in
// production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TOOLGATE_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("TOOLGATE_LOG_PATH"); ok && v != "" {
		c.LogPath = v
	}
	if v, ok := lookup("TOOLGATE_ALLOWED_ROOTS"); ok && v != "" {
		c.AllowedRoots = append(c.AllowedRoots, filepath.SplitList(v)...)
	}
	if v, ok := lookup("TOOLGATE_APPROVAL"); ok && v != "" {
		c.Approval = v
	}
}

// AddRoots grants extra directories, as the --root flag does.
func (c *Config) AddRoots(readWrite bool, roots ...string) {
	if readWrite {
		c.AllowedRoots = append(c.AllowedRoots, roots...)
	} else {
		c.ReadOnlyRoots = append(c.ReadOnlyRoots, roots...)
	}
	c.normalize()
}

// AllowPrograms extends the shell allow-list.
func (c *Config) AllowPrograms(programs ...string) {
	c.AllowedPrograms = append(c.AllowedPrograms, programs...)
	c.normalize()
}

// AuthorizeCommand adds a command prefix to the permanently authorized list
func (c *Config) AuthorizeCommand(commandPrefix string) {
	c.AuthorizedCommands = append(c.AuthorizedCommands, strings.TrimSpace(commandPrefix))
	c.normalize()
}

func (c *Config) normalize() {
	c.AllowedRoots = dedupe(c.AllowedRoots, false)
	c.ReadOnlyRoots = dedupe(c.ReadOnlyRoots, false)
	c.AllowedPrograms = dedupe(c.AllowedPrograms, true)
	c.AuthorizedCommands = dedupe(c.AuthorizedCommands, true)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Approval == "" {
		c.Approval = "mutating"
	}
}

// dedupe drops blanks and duplicates, keeping first occurrences.
func dedupe(values []string, sorted bool) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if sorted {
		sort.Strings(out)
	}
	return out
}

// Save writes the configuration atomically. The format follows the file
// extension; TOML is the default.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}
