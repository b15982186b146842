package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/sandbox"
)

var (
	confineRO     []string
	confineRW     []string
	confineStrict bool
)

// confineCmd is started by the shell tool when confinement is enabled. It
// restricts itself with Landlock and then runs the command after "--", which
// inherits the restriction.
var confineCmd = &cobra.Command{
	Use:    "confine [--ro path]... [--rw path]... -- <program> [args...]",
	Short:  "Run a program restricted to the given paths",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE:   runConfine,
}

func init() {
	confineCmd.Flags().StringArrayVar(&confineRO, "ro", nil, "Read-only path (repeatable)")
	confineCmd.Flags().StringArrayVar(&confineRW, "rw", nil, "Read-write path (repeatable)")
	confineCmd.Flags().BoolVar(&confineStrict, "strict", false, "Fail when the kernel lacks full Landlock support")
	rootCmd.AddCommand(confineCmd)
}

// exitStatus carries a child's exit code through cobra without printing.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func runConfine(cmd *cobra.Command, args []string) error {
	c := sandbox.Confinement{
		ReadOnly:   confineRO,
		ReadWrite:  confineRW,
		BestEffort: !confineStrict,
	}
	if err := sandbox.Confine(c); err != nil {
		return err
	}

	child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitStatus(exitErr.ExitCode())
		}
		return err
	}
	return nil
}
