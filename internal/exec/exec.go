// Package exec provides a small abstraction over os/exec so commands that
// shell out (patch, the host toolchain) can be stubbed in tests.
package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	osexec "os/exec"
	"syscall"
	"time"
)

// GracePeriod is the duration to wait between SIGINT and SIGKILL when a
// command's context is cancelled or times out.
const GracePeriod = 3 * time.Second

// RunOpts configures a single command invocation.
type RunOpts struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the full environment. Nil inherits the parent environment.
	Env []string
}

// CmdResult captures the outcome of a completed command.
type CmdResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner runs external commands.
type CommandRunner interface {
	// Run executes name with args and waits for completion.
	// A non-zero exit is reported via CmdResult.ExitCode, not as an error.
	// Errors are reserved for failures to start the process or context
	// cancellation (ctx.Err() is returned in that case).
	Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error)

	// LookPath searches PATH for an executable.
	LookPath(file string) (string, error)
}

// RealRunner is the os/exec backed CommandRunner.
type RealRunner struct{}

// NewRealRunner returns a CommandRunner that executes real processes.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// LookPath implements CommandRunner.LookPath.
func (r *RealRunner) LookPath(file string) (string, error) {
	return osexec.LookPath(file)
}

// Run implements CommandRunner.Run.
//
// The child runs in its own process group. On cancellation the group gets
// SIGINT, then SIGKILL after GracePeriod.
func (r *RealRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	cmd := osexec.Command(name, args...)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return CmdResult{}, err
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
	case <-ctx.Done():
		killProcessGroup(cmd.Process.Pid)
		<-waitDone
		return CmdResult{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, ctx.Err()
	}

	result := CmdResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if runErr != nil {
		var exitErr *osexec.ExitError
		if !stderrors.As(runErr, &exitErr) {
			return result, runErr
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// killProcessGroup sends SIGINT to the process group, waits GracePeriod,
// then sends SIGKILL.
func killProcessGroup(pgid int) {
	_ = syscall.Kill(-pgid, syscall.SIGINT)
	time.Sleep(GracePeriod)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
