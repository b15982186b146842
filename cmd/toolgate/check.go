package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/safety"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/toolerr"
)

var (
	mustExistFlag bool
	writeFlag     bool
)

var checkPathCmd = &cobra.Command{
	Use:   "check-path <path>",
	Short: "Check whether a path resolves inside the allowed roots",
	Long: `Resolve a path the way the file tools do: relative to the workspace, with ~
expanded and symlinks followed. The path is accepted only if its real location
lies inside an allowed root.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckPath,
}

var checkCommandCmd = &cobra.Command{
	Use:   "check-command <command>",
	Short: "Validate a shell command and report whether it may modify state",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckCommand,
}

func init() {
	checkPathCmd.Flags().BoolVar(&mustExistFlag, "must-exist", false, "Fail when the path does not exist")
	checkPathCmd.Flags().BoolVar(&writeFlag, "write", false, "Check against the read-write roots only")
	rootCmd.AddCommand(checkPathCmd, checkCommandCmd)
}

type pathReport struct {
	Path     string `json:"path"`
	Access   string `json:"access"`
	Allowed  bool   `json:"allowed"`
	Resolved string `json:"resolved,omitempty"`
	Exists   bool   `json:"exists"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

func runCheckPath(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	access := sandbox.AccessReadOnly
	if writeFlag {
		access = sandbox.AccessReadWrite
	}

	report := pathReport{Path: args[0], Access: access.String()}
	resolved, err := a.sandbox.Resolve(cmd.Context(), args[0], access, sandbox.Options{RequireExistence: mustExistFlag})
	if err != nil {
		report.Error = err.Error()
		report.Code = string(toolerr.CodeOf(err))
	} else {
		report.Allowed = true
		report.Resolved = resolved.Path
		report.Exists = resolved.Exists
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else if report.Allowed {
		fmt.Fprintln(out, okStyle.Render("allowed"))
		printField(out, "resolved", report.Resolved)
		printField(out, "exists", fmt.Sprint(report.Exists))
	} else {
		fmt.Fprintln(out, errorStyle.Render("refused")+" "+codeStyle.Render(report.Code))
		printField(out, "reason", report.Error)
	}

	if !report.Allowed {
		return errRefused
	}
	return nil
}

type commandReport struct {
	Command  string   `json:"command"`
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
	Mutating bool     `json:"mutating"`
	Reason   string   `json:"reason,omitempty"`
	Programs []string `json:"programs,omitempty"`
}

func runCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	command := strings.Join(args, " ")
	c := safety.Classify(command, cfg.AllowedPrograms)

	report := commandReport{
		Command:  command,
		Valid:    c.Valid(),
		Mutating: c.Mutating,
		Reason:   c.Reason,
	}
	if c.Err != nil {
		report.Error = c.Err.Error()
		report.Code = string(toolerr.CodeOf(c.Err))
	}
	for _, seg := range c.Segments {
		if seg.Program != "" {
			report.Programs = append(report.Programs, seg.Program)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		if report.Valid {
			fmt.Fprintln(out, okStyle.Render("valid"))
		} else {
			fmt.Fprintln(out, errorStyle.Render("invalid")+" "+codeStyle.Render(report.Code))
			printField(out, "reason", report.Error)
		}
		if report.Mutating {
			printField(out, "mutating", warnStyle.Render("yes")+" ("+report.Reason+")")
		} else {
			printField(out, "mutating", "no")
		}
		if len(report.Programs) > 0 {
			printField(out, "programs", strings.Join(report.Programs, ", "))
		}
	}

	if !report.Valid {
		return errRefused
	}
	return nil
}
