package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/codefionn/toolgate/internal/toolerr"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	diffAddStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	diffDelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	diffHunk     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Exit codes: 1 for unexpected failures, 2 for refusals by the sandbox, the
// command classifier or the edit matcher.
const (
	exitFailure = 1
	exitRefused = 2
)

// errRefused marks a refusal that was already printed.
var errRefused = errors.New("refused")

func exitCodeFor(err error) int {
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	if errors.Is(err, errRefused) || toolerr.CodeOf(err) != "" {
		return exitRefused
	}
	return exitFailure
}

func isExitStatus(err error) bool {
	var status exitStatus
	return errors.As(err, &status)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
}

// colorDiff styles a unified diff line by line.
func colorDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = headerStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = diffHunk.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = diffDelStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
