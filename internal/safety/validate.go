package safety

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/syntax"
	"github.com/codefionn/toolgate/internal/toolerr"
)

// substitutionPatterns are rejected anywhere in a command, quoted or not:
// their output becomes part of the command line and cannot be checked
// against the allow-list beforehand.
var substitutionPatterns = []struct {
	token string
	what  string
}{
	{"$(", "command substitution $(...)"},
	{"`", "backtick command substitution"},
	{"<(", "process substitution <(...)"},
	{">(", "process substitution >(...)"},
}

// Validate checks command against the allow-list of program names. It
// returns nil when every segment of the command runs an allowed program, or
// an EmptyCommand, DangerousPattern or DisallowedCommand error for the first
// problem found.
//
// Program names are compared exactly: "ls" allows "ls" but not "/bin/ls" or
// "./ls"; list the path explicitly to allow a path-qualified program.
func Validate(command string, allowed []string) error {
	if strings.TrimSpace(command) == "" {
		return toolerr.New(toolerr.CodeEmptyCommand, "", "command is empty")
	}

	for _, p := range substitutionPatterns {
		if strings.Contains(command, p.token) {
			return dangerous(command, "%s is not allowed", p.what)
		}
	}

	segments, err := Split(command)
	if err != nil {
		return err
	}

	allow := newAllowSet(allowed)
	for _, seg := range segments {
		if err := allow.check(command, seg); err != nil {
			logger.Debug("safety: rejected %q: %v", command, err)
			return err
		}
	}

	return crossCheck(command, allow)
}

// crossCheck parses the command with tree-sitter and rejects it when the
// parser sees a syntax error or a command the tokenizer did not.
func crossCheck(command string, allow allowSet) error {
	parsed, err := syntax.ParseShell(command)
	if errors.Is(err, syntax.ErrUnsupported) {
		return nil
	}
	if err != nil {
		return toolerr.Wrap(toolerr.CodeDangerousPattern, command, err, "command could not be parsed")
	}
	if parsed.HasError {
		msg := "shell syntax error"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Message
		}
		return dangerous(command, "%s", msg)
	}
	if parsed.Substitutions > 0 {
		return dangerous(command, "command substitution is not allowed")
	}
	for _, name := range parsed.Commands {
		if !allow.permits(name) {
			return allow.disallowed(command, name)
		}
	}
	return nil
}

type allowSet struct {
	names map[string]struct{}
	list  []string
}

func newAllowSet(allowed []string) allowSet {
	s := allowSet{names: make(map[string]struct{}, len(allowed))}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := s.names[a]; dup {
			continue
		}
		s.names[a] = struct{}{}
		s.list = append(s.list, a)
	}
	sort.Strings(s.list)
	return s
}

func (s allowSet) permits(program string) bool {
	_, ok := s.names[program]
	return ok
}

func (s allowSet) check(command string, seg Segment) error {
	if seg.Program == "" {
		if len(seg.Redirects) > 0 {
			return dangerous(command, "redirection without a command (%s)", strings.Join(seg.Redirects, " "))
		}
		return dangerous(command, "variable assignment without a command (%s)", strings.Join(seg.Assignments, " "))
	}
	if seg.Wrapper != "" && !s.permits(seg.Wrapper) {
		return s.disallowed(command, seg.Wrapper)
	}
	if !s.permits(seg.Program) {
		return s.disallowed(command, seg.Program)
	}
	return nil
}

func (s allowSet) disallowed(command, program string) error {
	msg := fmt.Sprintf("program %q is not in the allowed list", program)
	if len(s.list) == 0 {
		msg += " (no programs are allowed)"
	} else if hint := s.suggest(program); hint != "" {
		msg += fmt.Sprintf("; did you mean %q?", hint)
	}
	return toolerr.New(toolerr.CodeDisallowedCommand, command, "%s", msg)
}

func (s allowSet) suggest(program string) string {
	matches := fuzzy.Find(program, s.list)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
