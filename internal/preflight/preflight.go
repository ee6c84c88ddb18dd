// Package preflight checks the host before a multi-hour Node.js build:
// free disk in the build directory, available memory, CPU count, and the
// patch tool.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
)

// Check names.
const (
	CheckDisk      = "disk"
	CheckMemory    = "memory"
	CheckCPU       = "cpu"
	CheckPatchTool = "patch"
)

// Resources reads host resources.
type Resources interface {
	DiskFree(ctx context.Context, path string) (uint64, error)
	MemoryAvailable(ctx context.Context) (uint64, error)
	CPUCount(ctx context.Context) (int, error)
}

// Installer reports whether an external tool is usable.
type Installer interface {
	CheckInstalled(ctx context.Context) (string, error)
}

// Options configures the thresholds.
type Options struct {
	BuildDir       string
	MinDiskBytes   uint64
	MinMemoryBytes uint64
}

// Check is one preflight result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report is the full preflight result.
type Report struct {
	Checks []Check
	OK     bool
}

// Failed returns the checks that did not pass.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// Err returns E_PREFLIGHT_FAILED describing the failed checks, or nil.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	details := map[string]string{"op": "preflight"}
	for i, c := range failed {
		names[i] = c.Name
		details["check_"+c.Name] = c.Detail
	}
	details["hint"] = "run `nodebuild doctor` for the full report"
	return errors.NewWithDetails(errors.EPreflightFailed,
		"preflight failed: "+strings.Join(names, ", "), details)
}

// Run performs every check. Resource errors fail the check they belong to;
// CPU count is informational and only fails when it cannot be read.
// tool may be nil to skip the patch tool check.
func Run(ctx context.Context, res Resources, tool Installer, opts Options) Report {
	var r Report

	if free, err := res.DiskFree(ctx, opts.BuildDir); err != nil {
		r.Checks = append(r.Checks, Check{Name: CheckDisk, Detail: "cannot read disk usage: " + err.Error()})
	} else {
		r.Checks = append(r.Checks, Check{
			Name:   CheckDisk,
			OK:     free >= opts.MinDiskBytes,
			Detail: fmt.Sprintf("%s free in %s (need %s)", FormatBytes(free), opts.BuildDir, FormatBytes(opts.MinDiskBytes)),
		})
	}

	if avail, err := res.MemoryAvailable(ctx); err != nil {
		r.Checks = append(r.Checks, Check{Name: CheckMemory, Detail: "cannot read memory: " + err.Error()})
	} else {
		r.Checks = append(r.Checks, Check{
			Name:   CheckMemory,
			OK:     avail >= opts.MinMemoryBytes,
			Detail: fmt.Sprintf("%s available (need %s)", FormatBytes(avail), FormatBytes(opts.MinMemoryBytes)),
		})
	}

	if n, err := res.CPUCount(ctx); err != nil {
		r.Checks = append(r.Checks, Check{Name: CheckCPU, Detail: "cannot read cpu count: " + err.Error()})
	} else {
		r.Checks = append(r.Checks, Check{Name: CheckCPU, OK: n > 0, Detail: fmt.Sprintf("%d logical cpus", n)})
	}

	if tool != nil {
		if v, err := tool.CheckInstalled(ctx); err != nil {
			r.Checks = append(r.Checks, Check{Name: CheckPatchTool, Detail: errorMessage(err)})
		} else {
			r.Checks = append(r.Checks, Check{Name: CheckPatchTool, OK: true, Detail: v})
		}
	}

	r.OK = len(r.Failed()) == 0
	return r
}

func errorMessage(err error) string {
	if be, ok := errors.AsBuildError(err); ok {
		return be.Msg
	}
	return err.Error()
}

// FormatBytes renders n in GiB with one decimal, or MiB below 1 GiB.
func FormatBytes(n uint64) string {
	const mib = 1 << 20
	const gib = 1 << 30
	if n >= gib {
		return fmt.Sprintf("%.1f GB", float64(n)/gib)
	}
	return fmt.Sprintf("%.0f MB", float64(n)/mib)
}

// HostResources reads the real host via gopsutil.
type HostResources struct{}

// DiskFree returns the free bytes on the filesystem holding path. A path
// that does not exist yet is measured at its nearest existing parent.
func (HostResources) DiskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, existingParent(path))
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// MemoryAvailable returns the bytes available for new allocations.
func (HostResources) MemoryAvailable(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// CPUCount returns the number of logical CPUs.
func (HostResources) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func existingParent(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
