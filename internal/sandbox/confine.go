package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrConfinementUnsupported is returned by Confine where Landlock is not
// available.
var ErrConfinementUnsupported = errors.New("landlock confinement is only supported on linux")

// Confinement lists the paths a confined child process may use. Everything
// else on the filesystem is denied by the kernel.
type Confinement struct {
	ReadOnly  []string
	ReadWrite []string
	// BestEffort downgrades to the strongest Landlock ABI the kernel
	// supports instead of failing.
	BestEffort bool
}

// systemReadOnly are directories a shell needs to find and load programs.
var systemReadOnly = []string{"/bin", "/sbin", "/usr", "/lib", "/lib32", "/lib64", "/etc", "/opt", "/nix/store"}

// systemReadWrite are device and scratch paths most commands expect.
var systemReadWrite = []string{"/dev", "/tmp"}

// Confinement returns the kernel-level counterpart of the manager's roots:
// read-write roots, read-only roots, and the system directories needed to
// run programs. Paths that do not exist are left out.
func (m *Manager) Confinement() Confinement {
	c := Confinement{BestEffort: true}
	seen := make(map[string]bool)
	add := func(list *[]string, p string) {
		p, err := expandHome(p)
		if err != nil {
			return
		}
		p = filepath.Clean(p)
		if seen[p] {
			return
		}
		if _, err := os.Stat(p); err != nil {
			return
		}
		seen[p] = true
		*list = append(*list, p)
	}

	for _, p := range m.Roots(AccessReadWrite) {
		add(&c.ReadWrite, p)
	}
	for _, p := range systemReadWrite {
		add(&c.ReadWrite, p)
	}
	for _, p := range m.Roots(AccessReadOnly) {
		add(&c.ReadOnly, p)
	}
	for _, p := range systemReadOnly {
		add(&c.ReadOnly, p)
	}
	return c
}

// Args encodes the confinement as command-line flags for a helper process.
func (c Confinement) Args() []string {
	args := make([]string, 0, 2*(len(c.ReadOnly)+len(c.ReadWrite))+1)
	for _, p := range c.ReadOnly {
		args = append(args, "--ro", p)
	}
	for _, p := range c.ReadWrite {
		args = append(args, "--rw", p)
	}
	if !c.BestEffort {
		args = append(args, "--strict")
	}
	return args
}

func (c Confinement) String() string {
	return "ro=[" + strings.Join(c.ReadOnly, ",") + "] rw=[" + strings.Join(c.ReadWrite, ",") + "]"
}
