package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/codefionn/toolgate/internal/consts"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/safety"
	"github.com/codefionn/toolgate/internal/sandbox"
)

// ShellOptions configure a ShellTool.
type ShellOptions struct {
	AllowedPrograms []string
	DefaultTimeout  time.Duration
	MaxTimeout      time.Duration

	// Confine runs every command under the sandbox's landlock ruleset.
	// ConfineHelper is the argv prefix that applies it, for example
	// {"/usr/bin/toolgate", "confine"}; the ruleset flags and "--" sh -c
	// command are appended.
	Confine       bool
	ConfineHelper []string
}

// ShellToolSpec is the static specification for the shell tool
type ShellToolSpec struct{}

func (s *ShellToolSpec) Name() string {
	return ToolNameShell
}

func (s *ShellToolSpec) Description() string {
	return `Run a shell command with sh -c and return its output and exit code.
Only programs on the allow-list may run; command substitution, backticks and process substitution are rejected. Pipes, && and || and ; are fine.
Commands that may modify files can require user approval. Use working_dir instead of cd.`
}

func (s *ShellToolSpec) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The command line to run",
			},
			"working_dir": map[string]interface{}{
				"type":        "string",
				"description": "Directory to run in (defaults to the workspace)",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (default 30, max 300)",
			},
		},
		"required": []string{"command"},
	}
}

// ShellTool runs validated commands.
type ShellTool struct {
	sandbox *sandbox.Manager
	opts    ShellOptions
}

func NewShellTool(mgr *sandbox.Manager, opts ShellOptions) *ShellTool {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = consts.DefaultShellTimeout
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = consts.MaxShellTimeout
	}
	return &ShellTool{sandbox: mgr, opts: opts}
}

// NewShellToolFactory creates a factory for ShellTool
func NewShellToolFactory(mgr *sandbox.Manager, opts ShellOptions) ToolFactory {
	return func(reg *Registry) ToolExecutor {
		return NewShellTool(mgr, opts)
	}
}

func (t *ShellTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	meta := newMetadata(ToolNameShell)

	command := GetStringParam(params, "command", "")
	meta.Command = command
	if err := safety.Validate(command, t.opts.AllowedPrograms); err != nil {
		logger.Warn("shell: rejected command: %v", err)
		return errorResult(err, meta)
	}
	mutating, _ := safety.MutationReason(command)

	workingDir := t.sandbox.WorkspaceDir()
	if dir := GetStringParam(params, "working_dir", ""); dir != "" {
		access := sandbox.AccessReadOnly
		if mutating {
			access = sandbox.AccessReadWrite
		}
		resolved, err := resolvePath(ctx, t.sandbox, dir, access, true)
		if err != nil {
			return errorResult(err, meta)
		}
		workingDir = resolved
	}
	meta.WorkingDir = workingDir

	timeout := t.opts.DefaultTimeout
	if secs := GetIntParam(params, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > t.opts.MaxTimeout {
		timeout = t.opts.MaxTimeout
	}
	meta.TimeoutSeconds = int(timeout / time.Second)

	argv := []string{"sh", "-c", command}
	if t.opts.Confine {
		if len(t.opts.ConfineHelper) == 0 {
			return errorResult(fmt.Errorf("confinement is enabled but no helper is configured"), meta)
		}
		argv = append(append(append([]string{}, t.opts.ConfineHelper...), t.sandbox.Confinement().Args()...), append([]string{"--"}, argv...)...)
		meta.Confined = true
	}

	logger.Debug("shell: command='%s', working_dir=%s, timeout=%s, confined=%t", command, workingDir, timeout, t.opts.Confine)

	runner := newShellCommandRunner(argv, workingDir, timeout)
	return runner.run(ctx, meta)
}

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.buf)
	if room > len(p) {
		room = len(p)
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	b.dropped += len(p) - room
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped == 0 {
		return string(b.buf)
	}
	return fmt.Sprintf("%s\n[... %d bytes truncated]", b.buf, b.dropped)
}

func (b *cappedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) + b.dropped
}

type shellCommandRunner struct {
	argv       []string
	workingDir string
	timeout    time.Duration
	stdout     *cappedBuffer
	stderr     *cappedBuffer
	wg         sync.WaitGroup
}

func newShellCommandRunner(argv []string, workingDir string, timeout time.Duration) *shellCommandRunner {
	return &shellCommandRunner{
		argv:       argv,
		workingDir: workingDir,
		timeout:    timeout,
		stdout:     &cappedBuffer{limit: consts.MaxShellStreamBytes},
		stderr:     &cappedBuffer{limit: consts.MaxShellStreamBytes},
	}
}

func (r *shellCommandRunner) run(ctx context.Context, meta *ExecutionMetadata) *ToolResult {
	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	cmd.Dir = r.workingDir
	cmd.Env = os.Environ()
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("shell: failed to create stdout pipe: %v", err)
		return errorResult(fmt.Errorf("failed to create stdout pipe: %w", err), meta)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		logger.Error("shell: failed to create stderr pipe: %v", err)
		return errorResult(fmt.Errorf("failed to create stderr pipe: %w", err), meta)
	}

	if err := cmd.Start(); err != nil {
		logger.Error("shell: failed to start command: %v", err)
		return errorResult(fmt.Errorf("failed to start command: %w", err), meta)
	}
	meta.PID = cmd.Process.Pid

	r.copyStream(stdout, r.stdout)
	r.copyStream(stderr, r.stderr)

	done := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait closes them.
		r.wg.Wait()
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	timedOut := false
	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		logger.Warn("shell: killing process (pid=%d) due to context cancellation: %s", cmd.Process.Pid, ctx.Err())
		r.kill(cmd)
		<-done
		return errorResult(ctx.Err(), meta)
	case <-timer.C:
		timedOut = true
		logger.Warn("shell: killing process (pid=%d) due to timeout after %s", cmd.Process.Pid, r.timeout)
		r.kill(cmd)
		waitErr = <-done
	}

	return r.buildResult(waitErr, timedOut, meta)
}

func (r *shellCommandRunner) copyStream(src io.Reader, dst *cappedBuffer) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := io.Copy(dst, src); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Debug("shell: stream read error: %v", err)
		}
	}()
}

// kill terminates the whole process group so children started by sh die
// with it.
func (r *shellCommandRunner) kill(cmd *exec.Cmd) {
	if pgid := getProcessGroupID(cmd); pgid > 0 {
		if err := signalProcessGroup(pgid, syscall.SIGKILL); err == nil {
			return
		}
	}
	_ = cmd.Process.Kill()
}

func (r *shellCommandRunner) buildResult(err error, timedOut bool, meta *ExecutionMetadata) *ToolResult {
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
			if timedOut {
				logger.Warn("shell: command timed out after %s", r.timeout)
			} else {
				logger.Warn("shell: command exited with code %d", exitCode)
			}
		default:
			logger.Error("shell: failed to execute command: %v", err)
			return errorResult(fmt.Errorf("failed to execute command: %w", err), meta)
		}
	} else {
		logger.Info("shell: command completed successfully (output_bytes=%d)", r.stdout.Len())
	}

	stdout := r.stdout.String()
	stderr := r.stderr.String()

	meta.ExitCode = exitCode
	meta.WasTimedOut = timedOut
	meta.OutputSizeBytes, meta.OutputLineCount = CalculateOutputStats(stdout)
	meta.HasStderr = strings.TrimSpace(stderr) != ""
	meta.StderrSizeBytes = r.stderr.Len()

	return NewToolResultWithMetadata("", map[string]interface{}{
		"stdout":    stdout,
		"stderr":    stderr,
		"exit_code": exitCode,
		"timeout":   timedOut,
	}, nil, meta)
}
