// Package patchtool drives the host patch(1) binary: non-mutating dry runs,
// real application, and detection of patches that are already applied.
package patchtool

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/exec"
)

// DefaultBinary is the patch executable looked up on PATH.
const DefaultBinary = "patch"

// Default per-call timeouts.
const (
	DefaultDryRunTimeout = 2 * time.Minute
	DefaultApplyTimeout  = 5 * time.Minute
)

// RetryConfig bounds retries of transient spawn failures. Non-zero exit
// codes are never retried.
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
}

// DefaultRetry is used when Tool.Retry is zero.
var DefaultRetry = RetryConfig{Attempts: 3, InitialDelay: 500 * time.Millisecond}

// Result is the outcome of a dry run or apply.
type Result struct {
	Patch     string
	SourceDir string
	Strip     int
	DryRun    bool

	Applicable bool
	// AlreadyApplied is set when the forward run reported a previously
	// applied patch and the reverse check confirmed it.
	AlreadyApplied bool
	TimedOut       bool

	// Reason is the first meaningful line of tool output, verbatim.
	// Empty when Applicable.
	Reason string

	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Output returns stderr, or stdout when stderr is empty.
func (r Result) Output() string {
	if strings.TrimSpace(r.Stderr) != "" {
		return r.Stderr
	}
	return r.Stdout
}

// Err converts a failed result into a BuildError. Returns nil when the
// patch was applicable.
func (r Result) Err() error {
	if r.Applicable {
		return nil
	}
	op := "apply"
	code := errors.EApplyFailed
	if r.DryRun {
		op = "dry-run"
		code = errors.EDryRunFailed
	}
	if r.TimedOut {
		code = errors.EApplyTimeout
	}
	return errors.NewWithDetails(code, r.Reason, map[string]string{
		"op":          op,
		"patch":       r.Patch,
		"source_dir":  r.SourceDir,
		"strip":       strconv.Itoa(r.Strip),
		"exit_code":   strconv.Itoa(r.ExitCode),
		"duration_ms": strconv.FormatInt(r.Duration.Milliseconds(), 10),
		"timed_out":   strconv.FormatBool(r.TimedOut),
		"stderr":      r.Output(),
	})
}

// Tool runs patch(1). The zero value is not usable; Runner must be set.
type Tool struct {
	Runner exec.CommandRunner
	Binary string

	// DryRunTimeout and ApplyTimeout bound each call, retries included.
	// Zero selects the package default.
	DryRunTimeout time.Duration
	ApplyTimeout  time.Duration

	Retry  RetryConfig
	Logger *slog.Logger
}

// New returns a Tool with default binary and retry settings.
func New(runner exec.CommandRunner, logger *slog.Logger) *Tool {
	return &Tool{Runner: runner, Binary: DefaultBinary, Retry: DefaultRetry, Logger: logger}
}

// Args returns the patch(1) arguments for one invocation.
func Args(patchPath string, strip int, dryRun, reverse bool) []string {
	args := []string{"-p" + strconv.Itoa(strip), "--batch"}
	if reverse {
		args = append(args, "--reverse")
	} else {
		args = append(args, "--forward")
	}
	if dryRun {
		args = append(args, "--dry-run")
	}
	return append(args, "-i", patchPath)
}

// DryRun checks whether patchPath applies to sourceDir without modifying it.
// Errors are returned only when patch could not be run at all.
func (t *Tool) DryRun(ctx context.Context, patchPath, sourceDir string, strip int) (Result, error) {
	return t.check(ctx, patchPath, sourceDir, strip, timeoutOr(t.DryRunTimeout, DefaultDryRunTimeout))
}

// Apply applies patchPath to sourceDir. A patch that is already applied is
// detected by a dry run first and left alone.
func (t *Tool) Apply(ctx context.Context, patchPath, sourceDir string, strip int) (Result, error) {
	timeout := timeoutOr(t.ApplyTimeout, DefaultApplyTimeout)

	pre, err := t.check(ctx, patchPath, sourceDir, strip, timeout)
	if err != nil {
		return pre, err
	}
	pre.DryRun = false
	if !pre.Applicable || pre.AlreadyApplied {
		return pre, nil
	}

	res, err := t.invoke(ctx, patchPath, sourceDir, strip, false, false, timeout)
	if err != nil {
		return res, err
	}
	res.Applicable = res.ExitCode == 0 && !res.TimedOut
	if !res.Applicable && res.Reason == "" {
		res.Reason = FirstMeaningfulLine(res.Stderr, res.Stdout)
	}
	t.logger().Info("patch applied",
		"patch", patchPath, "applicable", res.Applicable, "exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}

// check runs a forward dry run and, when patch reports the patch as
// previously applied, a reverse dry run to confirm.
func (t *Tool) check(ctx context.Context, patchPath, sourceDir string, strip int, timeout time.Duration) (Result, error) {
	res, err := t.invoke(ctx, patchPath, sourceDir, strip, true, false, timeout)
	if err != nil || res.TimedOut {
		return res, err
	}
	if res.ExitCode == 0 {
		res.Applicable = true
		t.logger().Debug("dry-run ok", "patch", patchPath, "duration", res.Duration)
		return res, nil
	}

	if previouslyApplied(res.Stdout + res.Stderr) {
		rev, err := t.invoke(ctx, patchPath, sourceDir, strip, true, true, timeout)
		if err != nil {
			return rev, err
		}
		if rev.ExitCode == 0 && !rev.TimedOut {
			res.Applicable = true
			res.AlreadyApplied = true
			res.Duration += rev.Duration
			t.logger().Info("patch already applied", "patch", patchPath)
			return res, nil
		}
	}

	res.Reason = FirstMeaningfulLine(res.Stderr, res.Stdout)
	t.logger().Debug("dry-run rejected patch", "patch", patchPath, "exit_code", res.ExitCode, "reason", res.Reason)
	return res, nil
}

func (t *Tool) invoke(ctx context.Context, patchPath, sourceDir string, strip int, dryRun, reverse bool, timeout time.Duration) (Result, error) {
	res := Result{Patch: patchPath, SourceDir: sourceDir, Strip: strip, DryRun: dryRun}
	args := Args(patchPath, strip, dryRun, reverse)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := t.run(runCtx, args, sourceDir)
	res.Duration = time.Since(start)
	res.ExitCode = out.ExitCode
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.TimedOut = true
			res.Reason = fmt.Sprintf("timed out after %s", timeout)
			t.logger().Warn("patch timed out", "patch", patchPath, "timeout", timeout)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("run %s %s: %w", t.binary(), strings.Join(args, " "), err)
	}
	return res, nil
}

// run executes one invocation, retrying transient spawn failures.
func (t *Tool) run(ctx context.Context, args []string, dir string) (exec.CmdResult, error) {
	var (
		last    exec.CmdResult
		lastErr error
	)
	attempt := 0
	op := func(ctx context.Context) (exec.CmdResult, error) {
		attempt++
		last, lastErr = t.Runner.Run(ctx, t.binary(), args, exec.RunOpts{Dir: dir})
		if lastErr != nil && attempt > 1 {
			t.logger().Debug("patch spawn retry", "attempt", attempt, "error", lastErr)
		}
		return last, lastErr
	}

	cfg := t.Retry
	if cfg.Attempts == 0 {
		cfg = DefaultRetry
	}
	if cfg.Attempts <= 1 {
		return op(ctx)
	}

	r := retry.New[exec.CmdResult](retry.Config{
		MaxAttempts:   cfg.Attempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      8 * cfg.InitialDelay,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   IsTransient,
	})
	_, doErr := r.Do(ctx, op)
	if attempt == 0 {
		// Cancelled before the first attempt.
		if doErr == nil {
			doErr = ctx.Err()
		}
		if doErr == nil {
			doErr = fmt.Errorf("%s was not started", t.binary())
		}
		return exec.CmdResult{ExitCode: -1}, doErr
	}
	return last, lastErr
}

// IsTransient reports whether a spawn error is worth retrying. Missing
// binaries and context errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if stderrors.Is(err, os.ErrNotExist) || stderrors.Is(err, os.ErrPermission) {
		return false
	}
	return stderrors.Is(err, syscall.EAGAIN) ||
		stderrors.Is(err, syscall.ETXTBSY) ||
		stderrors.Is(err, syscall.EMFILE) ||
		stderrors.Is(err, syscall.ENFILE) ||
		stderrors.Is(err, syscall.ENOMEM)
}

// CheckInstalled verifies the patch binary is on PATH and runs. It returns
// the first line of `patch --version`.
func (t *Tool) CheckInstalled(ctx context.Context) (string, error) {
	path, err := t.Runner.LookPath(t.binary())
	if err != nil {
		return "", errors.WrapWithDetails(errors.EPatchToolNotInstalled,
			fmt.Sprintf("%s not found on PATH", t.binary()), err,
			map[string]string{"hint": "install GNU patch (e.g. apt-get install patch, brew install gpatch)"})
	}

	out, err := t.Runner.Run(ctx, path, []string{"--version"}, exec.RunOpts{})
	if err != nil {
		return "", errors.Wrap(errors.EPatchToolNotInstalled, fmt.Sprintf("failed to run %s --version", path), err)
	}
	if out.ExitCode != 0 {
		return "", errors.NewWithDetails(errors.EPatchToolNotInstalled,
			fmt.Sprintf("%s --version exited %d", path, out.ExitCode),
			map[string]string{"stderr": out.Stderr})
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out.Stdout), "\n")
	return strings.TrimSpace(line), nil
}

func (t *Tool) binary() string {
	if t.Binary == "" {
		return DefaultBinary
	}
	return t.Binary
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (t *Tool) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger
}

func previouslyApplied(output string) bool {
	return strings.Contains(strings.ToLower(output), "previously applied")
}

// progressPrefixes are patch(1) status lines that carry no diagnosis.
var progressPrefixes = []string{"checking file ", "patching file "}

// FirstMeaningfulLine returns the first non-progress line of stderr, or of
// stdout when stderr is empty. If every line is progress, the first
// non-blank line is returned.
func FirstMeaningfulLine(stderr, stdout string) string {
	text := stderr
	if strings.TrimSpace(text) == "" {
		text = stdout
	}

	first := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		if !hasProgressPrefix(line) {
			return line
		}
	}
	return first
}

func hasProgressPrefix(line string) bool {
	for _, p := range progressPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
