package safety

import (
	"path/filepath"
	"strings"
)

// IsMutating reports whether command may modify files or repository state.
// It is a conservative heuristic: commands it cannot parse count as
// mutating, and so does any command containing a keyword such as "create"
// or "delete", even when the keyword is only an argument.
func IsMutating(command string) bool {
	mutating, _ := MutationReason(command)
	return mutating
}

// MutationReason is IsMutating that also says which rule fired.
func MutationReason(command string) (bool, string) {
	// Checked on the raw text, so "echo '>'" counts as a redirect too.
	if strings.Contains(command, ">") {
		return true, "output redirection"
	}

	segments, err := Split(command)
	if err != nil {
		return true, "command could not be parsed"
	}

	for _, seg := range segments {
		if seg.Program == "" {
			continue
		}
		if reason := mutatingCall(seg.Program, seg.Args, 0); reason != "" {
			return true, reason
		}
	}

	lower := strings.ToLower(command)
	for _, kw := range mutatingKeywords {
		if strings.Contains(lower, kw) {
			return true, "keyword " + kw
		}
	}
	return false, ""
}

var mutatingPrograms = map[string]bool{
	"rm": true, "rmdir": true, "unlink": true, "shred": true,
	"mv": true, "cp": true, "ln": true, "install": true,
	"mkdir": true, "mkfifo": true, "touch": true,
	"chmod": true, "chown": true, "chgrp": true,
	"truncate": true, "dd": true, "tee": true, "patch": true, "rsync": true,
}

// Programs that run the rest of their arguments as another command.
var wrapperPrograms = map[string]bool{
	"xargs": true, "sudo": true, "doas": true, "nice": true, "nohup": true,
	"time": true, "timeout": true, "command": true, "env": true, "exec": true,
}

var mutatingKeywords = []string{
	"create", "delete", "remove", "destroy", "drop",
	"write", "overwrite", "truncate",
	"install", "uninstall", "update", "upgrade",
}

// Subcommands that change state, per tool. Commands sharing a table are
// listed together.
var (
	gitSubcommands = set(
		"add", "am", "apply", "branch", "checkout", "cherry-pick", "clean",
		"clone", "commit", "fetch", "gc", "init", "merge", "mv", "prune",
		"pull", "push", "rebase", "reset", "restore", "revert", "rm",
		"stash", "submodule", "switch", "tag", "worktree",
	)
	hgSubcommands = set(
		"add", "addremove", "backout", "branch", "clone", "commit", "graft",
		"import", "init", "merge", "pull", "push", "remove", "rename", "revert",
		"rm", "strip", "tag", "update", "up",
	)
	svnSubcommands = set(
		"add", "checkout", "co", "cleanup", "commit", "ci", "copy", "cp",
		"delete", "del", "import", "lock", "merge", "mkdir", "move", "mv",
		"propset", "relocate", "remove", "resolve", "revert", "switch",
		"unlock", "update", "up",
	)
	jsSubcommands = set(
		"add", "ci", "create", "dedupe", "i", "init", "install", "link",
		"prune", "publish", "remove", "rm", "un", "uninstall", "unlink",
		"up", "update", "upgrade",
	)
	pySubcommands = set(
		"add", "download", "init", "install", "lock", "new", "remove",
		"sync", "uninstall", "update", "upgrade", "venv",
	)
	cargoSubcommands = set(
		"add", "clean", "fix", "init", "install", "new", "publish", "remove",
		"uninstall", "update",
	)
	goSubcommands     = set("clean", "fmt", "generate", "get", "install")
	goModSubcommands  = set("edit", "init", "tidy", "vendor", "download")
	systemSubcommands = set(
		"add", "autoremove", "del", "dist-upgrade", "install", "link",
		"purge", "reinstall", "remove", "tap", "uninstall", "unlink",
		"update", "upgrade",
	)
	gemSubcommands      = set("install", "uninstall", "update", "cleanup")
	composerSubcommands = set("create-project", "install", "remove", "require", "update")
)

var subcommandTables = map[string]map[string]bool{
	"git":      gitSubcommands,
	"hg":       hgSubcommands,
	"svn":      svnSubcommands,
	"npm":      jsSubcommands,
	"pnpm":     jsSubcommands,
	"yarn":     jsSubcommands,
	"bun":      jsSubcommands,
	"pip":      pySubcommands,
	"pip3":     pySubcommands,
	"pipx":     pySubcommands,
	"uv":       pySubcommands,
	"poetry":   pySubcommands,
	"cargo":    cargoSubcommands,
	"go":       goSubcommands,
	"gem":      gemSubcommands,
	"composer": composerSubcommands,
	"brew":     systemSubcommands,
	"apt":      systemSubcommands,
	"apt-get":  systemSubcommands,
	"dnf":      systemSubcommands,
	"yum":      systemSubcommands,
	"apk":      systemSubcommands,
}

const maxWrapperDepth = 8

// mutatingCall returns a non-empty reason when running program with args
// changes state.
func mutatingCall(program string, args []string, depth int) string {
	if depth > maxWrapperDepth {
		return "too many nested command wrappers"
	}
	name := filepath.Base(program)

	if mutatingPrograms[name] {
		return name + " modifies files"
	}

	switch name {
	case "sed", "perl":
		for _, a := range args {
			if inPlaceFlag(name, a) {
				return name + " edits files in place"
			}
		}
		return ""
	case "gofmt", "goimports":
		for _, a := range args {
			if a == "-w" {
				return name + " -w rewrites files"
			}
		}
		return ""
	case "find":
		return mutatingFind(args, depth)
	}

	if wrapperPrograms[name] {
		inner := unwrap(name, args)
		if len(inner) == 0 {
			return ""
		}
		return mutatingCall(inner[0], inner[1:], depth+1)
	}

	table, ok := subcommandTables[name]
	if !ok {
		return ""
	}
	sub, rest := subcommand(name, args)
	if sub == "" {
		return ""
	}
	switch {
	case name == "git" && sub == "remote":
		if len(rest) > 0 && (rest[0] == "add" || rest[0] == "remove" || rest[0] == "rm" || rest[0] == "rename" || rest[0] == "set-url") {
			return "git remote " + rest[0]
		}
		return ""
	case name == "go" && sub == "mod":
		if len(rest) > 0 && goModSubcommands[rest[0]] {
			return "go mod " + rest[0]
		}
		return ""
	case name == "go" && sub == "work":
		if len(rest) > 0 && rest[0] != "help" {
			return "go work " + rest[0]
		}
		return ""
	case name == "uv" && sub == "pip":
		if len(rest) > 0 && pySubcommands[rest[0]] {
			return "uv pip " + rest[0]
		}
		return ""
	}
	if table[sub] {
		return name + " " + sub
	}
	return ""
}

// inPlaceFlag matches sed's -i, -i.bak and --in-place, and perl switch
// clusters such as -pi or -i.bak that precede any -e.
func inPlaceFlag(program, arg string) bool {
	if strings.HasPrefix(arg, "--in-place") {
		return true
	}
	if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
		return false
	}
	if program == "sed" {
		return strings.HasPrefix(arg, "-i")
	}
	for _, r := range arg[1:] {
		switch r {
		case 'i':
			return true
		case 'p', 'n', 'l', 'a', 'w', 's':
			continue
		default:
			return false
		}
	}
	return false
}

// subcommand returns the first non-option argument after the global options
// a tool accepts before its subcommand.
func subcommand(program string, args []string) (string, []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return a, args[i+1:]
		}
		if program == "git" && (a == "-C" || a == "-c") {
			i++
		}
		if program == "npm" && (a == "--prefix" || a == "-C") {
			i++
		}
	}
	return "", nil
}

func mutatingFind(args []string, depth int) string {
	for i, a := range args {
		switch a {
		case "-delete":
			return "find -delete"
		case "-exec", "-execdir", "-ok", "-okdir":
			var inner []string
			for _, w := range args[i+1:] {
				if w == ";" || w == "+" {
					break
				}
				inner = append(inner, w)
			}
			if len(inner) == 0 {
				continue
			}
			if reason := mutatingCall(inner[0], inner[1:], depth+1); reason != "" {
				return "find " + a + " " + reason
			}
		case "-fprint", "-fprint0", "-fprintf", "-fls":
			return "find " + a + " writes a file"
		}
	}
	return ""
}

// unwrap drops a wrapper's own options and returns the wrapped command.
func unwrap(wrapper string, args []string) []string {
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case wrapper == "timeout" && (a == "-s" || a == "-k"):
			i += 2
		case wrapper == "timeout" && !strings.HasPrefix(a, "-"):
			// the duration
			return args[min(i+1, len(args)):]
		case wrapper == "env" && isAssignment(a):
			i++
		case wrapper == "nice" && (a == "-n"):
			i += 2
		case wrapper == "sudo" && (a == "-u" || a == "-g" || a == "-C"):
			i += 2
		case wrapper == "xargs" && (a == "-n" || a == "-I" || a == "-P" || a == "-L" || a == "-d" || a == "-s" || a == "-E"):
			i += 2
		case strings.HasPrefix(a, "-"):
			i++
		default:
			return args[i:]
		}
	}
	return nil
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
