package tools

import (
	"github.com/codefionn/toolgate/internal/fs"
	"github.com/codefionn/toolgate/internal/sandbox"
	"github.com/codefionn/toolgate/internal/session"
)

// Options bundle what NewBuiltinRegistry needs besides the runtime deps.
type Options struct {
	Approval ApprovalMode
	Shell    ShellOptions
}

// NewBuiltinRegistry builds a registry with every built-in tool, guarded
// by a GuardAuthorizer over the same sandbox and session.
func NewBuiltinRegistry(mgr *sandbox.Manager, filesystem fs.FileSystem, sess *session.Session, opts Options) *Registry {
	auth := NewGuardAuthorizer(mgr, filesystem, sess, GuardOptions{
		AllowedPrograms: opts.Shell.AllowedPrograms,
		Approval:        opts.Approval,
	})
	reg := NewRegistry(auth)
	reg.RegisterSpec(&ReadFileToolSpec{}, NewReadFileToolFactory(mgr, filesystem, sess))
	reg.RegisterSpec(&CreateFileToolSpec{}, NewCreateFileToolFactory(mgr, filesystem, sess))
	reg.RegisterSpec(&EditFileToolSpec{}, NewEditFileToolFactory(mgr, filesystem, sess))
	reg.RegisterSpec(&ApplyPatchToolSpec{}, NewApplyPatchToolFactory(mgr, filesystem, sess))
	reg.RegisterSpec(&ShellToolSpec{}, NewShellToolFactory(mgr, opts.Shell))
	return reg
}
