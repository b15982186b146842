package safety

import (
	"strings"

	"github.com/codefionn/toolgate/internal/toolerr"
)

// Segment is one simple command extracted from a compound command line.
type Segment struct {
	// Raw is the source text of the segment without its separator.
	Raw string
	// Program is the command word, after leading variable assignments and an
	// optional env wrapper. Empty when the segment has no command word.
	Program string
	// Wrapper is "env" when Program runs under env. It must be allowed too.
	Wrapper string
	// Args are the words following Program, with quoting removed.
	Args []string
	// Assignments are leading NAME=value words.
	Assignments []string
	// Redirects are redirection operators joined with their target, e.g.
	// ">out.txt" or "2>&1".
	Redirects []string
	// Separator is the operator that ended the segment: "&&", "||", ";",
	// "|", "|&", "&", "\n", or "" at the end of input.
	Separator string
}

// Split breaks command into segments on unquoted "&&", "||", ";", "|", "|&",
// "&" and newlines. Redirections stay inside their segment. Unterminated
// quotes, subshell parentheses and operators with a missing operand are
// reported as DangerousPattern.
func Split(command string) ([]Segment, error) {
	s := &splitter{src: []rune(command)}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.segs, nil
}

type splitter struct {
	src  []rune
	segs []Segment

	words     []string
	redirects []string
	word      strings.Builder
	inWord    bool
	pending   string // redirect operator waiting for its target
	rawStart  int
	prevSep   string
}

func (s *splitter) run() error {
	inSingle, inDouble := false, false

	for i := 0; i < len(s.src); i++ {
		ch := s.src[i]

		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				s.word.WriteRune(ch)
			}
			continue
		case inDouble:
			switch {
			case ch == '"':
				inDouble = false
			case ch == '\\' && i+1 < len(s.src) && strings.ContainsRune("\"\\$`\n", s.src[i+1]):
				i++
				if s.src[i] != '\n' {
					s.word.WriteRune(s.src[i])
				}
			default:
				s.word.WriteRune(ch)
			}
			continue
		}

		switch ch {
		case '\'':
			inSingle = true
			s.inWord = true
		case '"':
			inDouble = true
			s.inWord = true
		case '\\':
			if i+1 < len(s.src) {
				i++
				if s.src[i] != '\n' {
					s.word.WriteRune(s.src[i])
					s.inWord = true
				}
			}
		case ' ', '\t', '\r':
			s.endWord()
		case '(', ')':
			return dangerous(string(s.src), "subshells and command grouping are not supported")
		case '\n':
			if err := s.endSegment(i, "\n"); err != nil {
				return err
			}
		case ';':
			if err := s.endSegment(i, ";"); err != nil {
				return err
			}
		case '|':
			sep := "|"
			if s.peek(i+1) == '|' {
				sep = "||"
			} else if s.peek(i+1) == '&' {
				sep = "|&"
			}
			if err := s.endSegment(i, sep); err != nil {
				return err
			}
			i += len(sep) - 1
		case '&':
			if s.peek(i+1) == '&' {
				if err := s.endSegment(i, "&&"); err != nil {
					return err
				}
				i++
				continue
			}
			if s.peek(i+1) == '>' {
				next, err := s.readRedirect(i)
				if err != nil {
					return err
				}
				i = next
				continue
			}
			if err := s.endSegment(i, "&"); err != nil {
				return err
			}
		case '>', '<':
			next, err := s.readRedirect(i)
			if err != nil {
				return err
			}
			i = next
		default:
			s.word.WriteRune(ch)
			s.inWord = true
		}
	}

	if inSingle || inDouble {
		return dangerous(string(s.src), "unterminated quote")
	}
	return s.endSegment(len(s.src), "")
}

func (s *splitter) peek(i int) rune {
	if i < len(s.src) {
		return s.src[i]
	}
	return 0
}

// readRedirect consumes a redirection operator starting at i and returns the
// index of its last rune. A word made only of digits directly before the
// operator is its file descriptor.
func (s *splitter) readRedirect(i int) (int, error) {
	prefix := ""
	if s.inWord && isDigits(s.word.String()) {
		prefix = s.word.String()
		s.word.Reset()
		s.inWord = false
	} else {
		s.endWord()
	}
	if s.pending != "" {
		return i, dangerous(string(s.src), "redirection %q has no target", s.pending)
	}

	j := i
	var op strings.Builder
	for j < len(s.src) && strings.ContainsRune("<>&|", s.src[j]) {
		if s.src[j] == '|' && op.Len() > 0 && op.String() != ">" {
			break
		}
		if s.src[j] == '&' && op.Len() > 0 {
			op.WriteRune('&')
			j++
			// ">&1", "<&0", ">&-": the descriptor is the target.
			start := j
			for j < len(s.src) && (isDigitRune(s.src[j]) || s.src[j] == '-') {
				j++
			}
			if j > start {
				s.redirects = append(s.redirects, prefix+op.String()+string(s.src[start:j]))
				return j - 1, nil
			}
			continue
		}
		op.WriteRune(s.src[j])
		j++
		if op.Len() >= 3 {
			break
		}
	}
	s.pending = prefix + op.String()
	return j - 1, nil
}

func (s *splitter) endWord() {
	if !s.inWord {
		return
	}
	w := s.word.String()
	s.word.Reset()
	s.inWord = false
	if s.pending != "" {
		s.redirects = append(s.redirects, s.pending+w)
		s.pending = ""
		return
	}
	s.words = append(s.words, w)
}

func (s *splitter) endSegment(end int, sep string) error {
	s.endWord()
	if s.pending != "" {
		return dangerous(string(s.src), "redirection %q has no target", s.pending)
	}

	raw := strings.TrimSpace(string(s.src[s.rawStart:end]))
	s.rawStart = end + len([]rune(sep))
	if sep == "" {
		s.rawStart = end
	}

	if len(s.words) == 0 && len(s.redirects) == 0 {
		switch {
		case sep == "\n":
			return nil
		case sep == "":
			if needsOperand(s.prevSep) {
				return dangerous(string(s.src), "command line ends with %q", s.prevSep)
			}
			return nil
		default:
			return dangerous(string(s.src), "%q has no command before it", sep)
		}
	}

	seg, err := buildSegment(raw, s.words, s.redirects, sep)
	if err != nil {
		return err
	}
	s.segs = append(s.segs, seg)
	s.words = nil
	s.redirects = nil
	s.prevSep = sep
	return nil
}

func needsOperand(sep string) bool {
	switch sep {
	case "&&", "||", "|", "|&":
		return true
	default:
		return false
	}
}

// Variables that change which program runs or what it loads.
var hijackVariables = map[string]bool{
	"PATH":            true,
	"LD_PRELOAD":      true,
	"LD_LIBRARY_PATH": true,
	"LD_AUDIT":        true,
	"BASH_ENV":        true,
	"ENV":             true,
	"IFS":             true,
	"SHELLOPTS":       true,
	"PROMPT_COMMAND":  true,
}

func buildSegment(raw string, words, redirects []string, sep string) (Segment, error) {
	seg := Segment{Raw: raw, Redirects: redirects, Separator: sep}

	i := 0
	for ; i < len(words) && isAssignment(words[i]); i++ {
		seg.Assignments = append(seg.Assignments, words[i])
	}

	wrapped := false
	if i < len(words) && words[i] == "env" {
		wrapped = true
		j := i + 1
	envArgs:
		for j < len(words) {
			w := words[j]
			short := strings.HasPrefix(w, "-") && !strings.HasPrefix(w, "--")
			switch {
			case strings.HasPrefix(w, "--split-string") || short && strings.ContainsRune(w, 'S'):
				return Segment{}, dangerous(raw, "env -S is not supported")
			case strings.HasPrefix(w, "--chdir") || short && strings.ContainsRune(w, 'C'):
				// The shell tool checks working_dir against the sandbox; env
				// must not move the command somewhere else.
				return Segment{}, dangerous(raw, "env --chdir is not allowed")
			case w == "-u" || w == "--unset":
				j += 2
				continue
			case strings.HasPrefix(w, "-"):
				j++
				continue
			case isAssignment(w):
				seg.Assignments = append(seg.Assignments, w)
				j++
				continue
			}
			break envArgs
		}
		i = min(j, len(words))
	}

	for _, a := range seg.Assignments {
		name := a[:strings.IndexByte(a, '=')]
		if hijackVariables[name] || strings.HasPrefix(name, "DYLD_") {
			return Segment{}, dangerous(raw, "setting %s before a command is not allowed", name)
		}
	}

	switch {
	case i < len(words):
		seg.Program = words[i]
		seg.Args = append([]string(nil), words[i+1:]...)
		if wrapped {
			seg.Wrapper = "env"
		}
	case wrapped:
		seg.Program = "env"
	}
	return seg, nil
}

func isAssignment(w string) bool {
	eq := strings.IndexByte(w, '=')
	if eq <= 0 {
		return false
	}
	for k, r := range w[:eq] {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (k > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigitRune(r) {
			return false
		}
	}
	return true
}

func isDigitRune(r rune) bool {
	return r >= '0' && r <= '9'
}

func dangerous(command, format string, args ...any) error {
	return toolerr.New(toolerr.CodeDangerousPattern, command, format, args...)
}
