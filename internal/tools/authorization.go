package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/safety"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
	"github.com/codefionn/toolgate/internal/toolerr"
)

// AuthorizationDecision captures the result of an authorization check.
type AuthorizationDecision struct {
	Allowed           bool
	Reason            string
	Code              string // toolerr code for hard denials
	RequiresUserInput bool   // If true, the caller should prompt the user for approval

	// SuggestedCommandPrefix is what the caller may remember with
	// session.AuthorizeCommand once the user approves.
	SuggestedCommandPrefix string
}

// Authorizer defines the contract for authorizing tool calls before execution.
type Authorizer interface {
	Authorize(ctx context.Context, toolName string, params map[string]interface{}) (*AuthorizationDecision, error)
}

// ApprovalMode decides which shell commands need user approval.
type ApprovalMode string

const (
	// ApprovalMutating asks before commands that may modify state.
	ApprovalMutating ApprovalMode = "mutating"
	// ApprovalAlways asks before every command.
	ApprovalAlways ApprovalMode = "always"
	// ApprovalNever runs every valid command without asking.
	ApprovalNever ApprovalMode = "never"
)

// ParseApprovalMode parses an approval mode; "" means ApprovalMutating.
func ParseApprovalMode(s string) (ApprovalMode, error) {
	switch ApprovalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ApprovalMutating:
		return ApprovalMutating, nil
	case ApprovalAlways:
		return ApprovalAlways, nil
	case ApprovalNever:
		return ApprovalNever, nil
	default:
		return "", fmt.Errorf("unknown approval mode %q (want mutating, always or never)", s)
	}
}

// GuardOptions configure a GuardAuthorizer.
type GuardOptions struct {
	AllowedPrograms []string
	Approval        ApprovalMode
}

// GuardAuthorizer applies the sandbox, the command allow-list and the
// read-before-write policy before a tool runs. Hard violations are denied;
// mutating commands and writes to unread files ask the user.
type GuardAuthorizer struct {
	sandbox *sandbox.Manager
	fs      fs.FileSystem
	session *session.Session
	opts    GuardOptions
}

// NewGuardAuthorizer constructs a GuardAuthorizer.
func NewGuardAuthorizer(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session, opts GuardOptions) *GuardAuthorizer {
	if opts.Approval == "" {
		opts.Approval = ApprovalMutating
	}
	return &GuardAuthorizer{sandbox: mgr, fs: filesystem, session: sess, opts: opts}
}

func (a *GuardAuthorizer) Authorize(ctx context.Context, toolName string, params map[string]interface{}) (*AuthorizationDecision, error) {
	switch toolName {
	case ToolNameReadFile:
		return a.authorizePath(ctx, params, sandbox.AccessReadOnly, true)
	case ToolNameCreateFile:
		return a.authorizeCreateFile(ctx, params)
	case ToolNameEditFile:
		return a.authorizeEditFile(ctx, params)
	case ToolNameApplyPatch:
		return a.authorizeApplyPatch(ctx, params)
	case ToolNameShell:
		return a.authorizeShell(ctx, params)
	default:
		return &AuthorizationDecision{Allowed: true}, nil
	}
}

func deny(err error) *AuthorizationDecision {
	return &AuthorizationDecision{Allowed: false, Reason: err.Error(), Code: string(toolerr.CodeOf(err))}
}

func (a *GuardAuthorizer) authorizePath(ctx context.Context, params map[string]interface{}, access sandbox.AccessLevel, mustExist bool) (*AuthorizationDecision, error) {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return &AuthorizationDecision{Allowed: false, Reason: "path is required"}, nil
	}
	if _, err := resolvePath(ctx, a.sandbox, path, access, mustExist); err != nil {
		return deny(err), nil
	}
	return &AuthorizationDecision{Allowed: true}, nil
}

// authorizeCreateFile refuses to replace an existing file unless overwrite
// is set, and asks before overwriting a file that was never read.
func (a *GuardAuthorizer) authorizeCreateFile(ctx context.Context, params map[string]interface{}) (*AuthorizationDecision, error) {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return &AuthorizationDecision{Allowed: false, Reason: "path is required"}, nil
	}
	resolved, err := resolvePath(ctx, a.sandbox, path, sandbox.AccessReadWrite, false)
	if err != nil {
		return deny(err), nil
	}

	exists, err := a.fs.Exists(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("authorization failed while checking file existence: %w", err)
	}
	if !exists {
		return &AuthorizationDecision{Allowed: true}, nil
	}
	if !GetBoolParam(params, "overwrite", false) {
		return &AuthorizationDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("file %s already exists; use edit_file to change it or set overwrite", path),
		}, nil
	}
	if a.session != nil && !a.session.WasFileRead(resolved) {
		return &AuthorizationDecision{
			Allowed:           false,
			Reason:            fmt.Sprintf("file %s would be overwritten but was not read in this session", path),
			RequiresUserInput: true,
		}, nil
	}
	return &AuthorizationDecision{Allowed: true}, nil
}

// authorizeEditFile enforces the read-before-write policy for existing files.
func (a *GuardAuthorizer) authorizeEditFile(ctx context.Context, params map[string]interface{}) (*AuthorizationDecision, error) {
	path := GetStringParam(params, "path", "")
	if path == "" {
		return &AuthorizationDecision{Allowed: false, Reason: "path is required"}, nil
	}
	resolved, err := resolvePath(ctx, a.sandbox, path, sandbox.AccessReadWrite, true)
	if err != nil {
		return deny(err), nil
	}
	if a.session != nil && !a.session.WasFileRead(resolved) {
		return &AuthorizationDecision{
			Allowed:           false,
			Reason:            fmt.Sprintf("file %s exists but was not read in this session", path),
			RequiresUserInput: true,
		}, nil
	}
	return &AuthorizationDecision{Allowed: true}, nil
}

func (a *GuardAuthorizer) authorizeApplyPatch(ctx context.Context, params map[string]interface{}) (*AuthorizationDecision, error) {
	patch := GetStringParam(params, "patch", "")
	if strings.TrimSpace(patch) == "" {
		return &AuthorizationDecision{Allowed: false, Reason: "patch is required"}, nil
	}
	files, err := parsePatch(patch)
	if err != nil {
		return deny(err), nil
	}

	var unread []string
	for _, f := range files {
		if f.isNew() || f.isRename() {
			if _, err := resolvePath(ctx, a.sandbox, f.path(), sandbox.AccessReadWrite, false); err != nil {
				return deny(err), nil
			}
		}
		if f.isNew() {
			continue
		}
		resolved, err := resolvePath(ctx, a.sandbox, f.origPath(), sandbox.AccessReadWrite, true)
		if err != nil {
			return deny(err), nil
		}
		if a.session != nil && !a.session.WasFileRead(resolved) {
			unread = append(unread, f.origPath())
		}
	}
	if len(unread) > 0 {
		return &AuthorizationDecision{
			Allowed:           false,
			Reason:            fmt.Sprintf("patch changes files not read in this session: %s", strings.Join(unread, ", ")),
			RequiresUserInput: true,
		}, nil
	}
	return &AuthorizationDecision{Allowed: true}, nil
}

func (a *GuardAuthorizer) authorizeShell(ctx context.Context, params map[string]interface{}) (*AuthorizationDecision, error) {
	command := GetStringParam(params, "command", "")
	if err := safety.Validate(command, a.opts.AllowedPrograms); err != nil {
		return deny(err), nil
	}

	mutating, why := safety.MutationReason(command)
	access := sandbox.AccessReadOnly
	if mutating {
		access = sandbox.AccessReadWrite
	}
	if dir := GetStringParam(params, "working_dir", ""); dir != "" {
		if _, err := resolvePath(ctx, a.sandbox, dir, access, true); err != nil {
			return deny(err), nil
		}
	}

	switch {
	case a.opts.Approval == ApprovalNever:
		return &AuthorizationDecision{Allowed: true}, nil
	case a.commandAuthorized(command):
		return &AuthorizationDecision{Allowed: true}, nil
	case a.opts.Approval == ApprovalAlways:
		return &AuthorizationDecision{
			Allowed:                false,
			Reason:                 fmt.Sprintf("command requires authorization: %s", command),
			RequiresUserInput:      true,
			SuggestedCommandPrefix: suggestCommandPrefix(command),
		}, nil
	case mutating:
		return &AuthorizationDecision{
			Allowed:                false,
			Reason:                 fmt.Sprintf("command may modify files (%s): %s", why, command),
			RequiresUserInput:      true,
			SuggestedCommandPrefix: suggestCommandPrefix(command),
		}, nil
	default:
		return &AuthorizationDecision{Allowed: true}, nil
	}
}

// commandAuthorized reports whether every segment of command starts with a
// prefix the user approved earlier in the session.
func (a *GuardAuthorizer) commandAuthorized(command string) bool {
	if a.session == nil {
		return false
	}
	segments, err := safety.Split(command)
	if err != nil || len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if !a.session.IsCommandAuthorized(seg.Raw) {
			return false
		}
	}
	return true
}

// suggestCommandPrefix proposes the program plus its subcommand, e.g.
// "git commit" for "git commit -m x", for every segment of command. The
// prefixes are joined with newlines when there is more than one.
func suggestCommandPrefix(command string) string {
	segments, err := safety.Split(command)
	if err != nil {
		return ""
	}
	seen := make(map[string]bool)
	var prefixes []string
	for _, seg := range segments {
		prefix := seg.Program
		if len(seg.Args) > 0 && !strings.HasPrefix(seg.Args[0], "-") && !strings.ContainsAny(seg.Args[0], "/.") {
			prefix += " " + seg.Args[0]
		}
		if prefix == "" || seen[prefix] {
			continue
		}
		seen[prefix] = true
		prefixes = append(prefixes, prefix)
	}
	return strings.Join(prefixes, "\n")
}
