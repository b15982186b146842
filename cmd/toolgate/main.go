package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/config"
	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
	"github.com/codefionn/toolgate/internal/tools"
)

var (
	configFile    string
	workspaceDir  string
	rootsFlag     []string
	readRootsFlag []string
	allowFlag     []string
	logLevelFlag  string
	approvalFlag  string
	jsonOutput    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Guard file and shell tool calls made by coding agents",
	Long: `Toolgate checks the tool calls an agent wants to make before they run:

- Paths must resolve, after following symlinks, inside the allowed roots
- Shell commands must only use allow-listed programs and no substitutions
- Commands that may modify state are flagged for approval
- Edits are located with whitespace-tolerant matching and must be unambiguous

Use 'toolgate help <command>' for more information on a specific command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func main() {
	defer func() { _ = logger.Global().Close() }()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRefused) && !errors.Is(err, errToolFailed) && !isExitStatus(err) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		}
		_ = logger.Global().Close()
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Configuration file (TOML, YAML or JSON; default: user config dir)")
	pf.StringVarP(&workspaceDir, "workspace", "C", "", "Workspace directory (default: current directory)")
	pf.StringArrayVar(&rootsFlag, "root", nil, "Additional read-write root (repeatable)")
	pf.StringArrayVar(&readRootsFlag, "read-root", nil, "Additional read-only root (repeatable)")
	pf.StringArrayVar(&allowFlag, "allow", nil, "Additional allowed shell program (repeatable)")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error, none")
	pf.StringVar(&approvalFlag, "approval", "", "Shell approval mode: mutating, always, never")
	pf.BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")
}

// loadConfig merges files, environment and flags.
func loadConfig() (*config.Config, string, error) {
	workspace := workspaceDir
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("determine working directory: %w", err)
		}
		workspace = wd
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, "", err
	}

	path := configFile
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path, workspace)
	if err != nil {
		return nil, "", err
	}

	cfg.AddRoots(true, rootsFlag...)
	cfg.AddRoots(false, readRootsFlag...)
	cfg.AllowPrograms(allowFlag...)
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if approvalFlag != "" {
		cfg.Approval = approvalFlag
	}
	return cfg, workspace, nil
}

func initLogging() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logPath := cfg.LogPath
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), logPath); err != nil {
		return err
	}
	slog.SetDefault(logger.Slog(logger.Global().WithPrefix("toolgate")))
	slog.Debug("configuration loaded", "sources", cfg.Sources)
	return nil
}

// app holds the wired runtime for commands that execute tools.
type app struct {
	cfg       *config.Config
	workspace string
	sandbox   *sandbox.Manager
	fs        fs.FileSystem
	session   *session.Session
	registry  *tools.Registry
}

func newApp() (*app, error) {
	cfg, workspace, err := loadConfig()
	if err != nil {
		return nil, err
	}
	approval, err := tools.ParseApprovalMode(cfg.Approval)
	if err != nil {
		return nil, err
	}

	mgr := sandbox.NewManager(workspace, &sandbox.SandboxConfig{
		AdditionalReadWritePaths: cfg.AllowedRoots,
		AdditionalReadOnlyPaths:  cfg.ReadOnlyRoots,
	})
	sess := session.NewSession("", workspace)
	for _, prefix := range cfg.AuthorizedCommands {
		sess.AuthorizeCommand(prefix)
	}

	shellOpts := tools.ShellOptions{
		AllowedPrograms: cfg.AllowedPrograms,
		DefaultTimeout:  cfg.Shell.Timeout.Duration(),
		MaxTimeout:      cfg.Shell.MaxTimeout.Duration(),
	}
	if cfg.Shell.Confine {
		if !sandbox.ConfineAvailable {
			return nil, sandbox.ErrConfinementUnsupported
		}
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate toolgate binary for confinement: %w", err)
		}
		shellOpts.Confine = true
		shellOpts.ConfineHelper = []string{self, confineCmd.Name()}
	}

	filesystem := fs.NewOSFS()
	return &app{
		cfg:       cfg,
		workspace: workspace,
		sandbox:   mgr,
		fs:        filesystem,
		session:   sess,
		registry: tools.NewBuiltinRegistry(mgr, filesystem, sess, tools.Options{
			Approval: approval,
			Shell:    shellOpts,
		}),
	}, nil
}
