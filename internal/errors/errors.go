// Package errors defines the stable error code system for nodebuild.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract: scripts and CI match on these.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Build configuration
	ENoBuildConfig      Code = "E_NO_BUILD_CONFIG"
	EInvalidBuildConfig Code = "E_INVALID_BUILD_CONFIG"

	// Patch validation
	EPatchUnreadable Code = "E_PATCH_UNREADABLE" // patch file missing or not readable
	EPatchMalformed  Code = "E_PATCH_MALFORMED"  // structural violation in the unified diff
	EVersionMismatch Code = "E_VERSION_MISMATCH" // patch declares a different target version
	EPatchConflict   Code = "E_PATCH_CONFLICT"   // error-severity overlap between two patches

	// Patch tool
	EPatchToolNotInstalled Code = "E_PATCH_TOOL_NOT_INSTALLED"
	EDryRunFailed          Code = "E_DRY_RUN_FAILED" // patch --dry-run rejected the patch
	EApplyFailed           Code = "E_APPLY_FAILED"   // real apply exited non-zero
	EApplyTimeout          Code = "E_APPLY_TIMEOUT"  // dry-run or apply exceeded its timeout
	EVerifyFailed          Code = "E_VERIFY_FAILED"  // patched tree is missing expected modifications

	// Build directory state
	ECheckpointWriteFailed Code = "E_CHECKPOINT_WRITE_FAILED"
	EUnsafePath            Code = "E_UNSAFE_PATH" // clean target escaped the build directory
	EPreflightFailed       Code = "E_PREFLIGHT_FAILED"

	// Interaction
	ENotInteractive Code = "E_NOT_INTERACTIVE" // confirmation needed but stdin/stderr are not TTYs
	EAborted        Code = "E_ABORTED"         // user declined a confirmation prompt
)

// BuildError is the standard error type for nodebuild errors.
type BuildError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// New creates a new BuildError with the given code and message.
func New(code Code, msg string) error {
	return &BuildError{Code: code, Msg: msg}
}

// NewWithDetails creates a new BuildError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &BuildError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new BuildError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &BuildError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new BuildError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &BuildError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a BuildError.
func GetCode(err error) Code {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// AsBuildError returns (*BuildError, true) if err is or wraps a BuildError.
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var be *BuildError
	if errors.As(err, &be) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", be.Code)
		_, _ = fmt.Fprintln(w, be.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
