// Package config handles loading and validation of nodebuild.yaml build
// configuration files.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// FileName is the default config file name, looked up in the working directory.
const FileName = "nodebuild.yaml"

// Defaults and bounds.
const (
	DefaultDryRunTimeout = 2 * time.Minute
	DefaultApplyTimeout  = 5 * time.Minute
	MinTimeout           = 1 * time.Second
	MaxTimeout           = 1 * time.Hour

	DefaultRetryAttempts     = 3
	DefaultRetryInitialDelay = 500 * time.Millisecond
	MaxRetryAttempts         = 10
	MaxRetryInitialDelay     = 1 * time.Minute

	DefaultStrip = 1
	MaxStrip     = 16

	DefaultMinDiskGB   = 10
	DefaultMinMemoryGB = 4
)

const gib = 1 << 30

// BuildConfig is the parsed, validated and resolved nodebuild.yaml.
// All paths are absolute.
type BuildConfig struct {
	// Path is the config file the values were loaded from.
	Path string

	NodeVersion string
	SourceDir   string
	BuildDir    string
	Patches     []Patch

	DryRunTimeout time.Duration
	ApplyTimeout  time.Duration

	RetryAttempts     int
	RetryInitialDelay time.Duration

	Conflicts conflict.Policy

	MinDiskBytes   uint64
	MinMemoryBytes uint64
}

// Patch is one configured patch file.
type Patch struct {
	Path  string
	Strip int
}

// PatchPaths returns the configured patch paths in order.
func (c BuildConfig) PatchPaths() []string {
	paths := make([]string, len(c.Patches))
	for i, p := range c.Patches {
		paths[i] = p.Path
	}
	return paths
}

// fileConfig mirrors the YAML document. Pointers distinguish absent from zero.
type fileConfig struct {
	Version     *int          `yaml:"version"`
	NodeVersion string        `yaml:"node_version"`
	SourceDir   string        `yaml:"source_dir"`
	BuildDir    string        `yaml:"build_dir"`
	Patches     []filePatch   `yaml:"patches"`
	Timeouts    fileTimeouts  `yaml:"timeouts"`
	Retry       fileRetry     `yaml:"retry"`
	Conflicts   fileConflicts `yaml:"conflicts"`
	Preflight   filePreflight `yaml:"preflight"`
}

type filePatch struct {
	Path  string `yaml:"path"`
	Strip *int   `yaml:"strip"`
}

type fileTimeouts struct {
	DryRun string `yaml:"dry_run"`
	Apply  string `yaml:"apply"`
}

type fileRetry struct {
	Attempts     *int   `yaml:"attempts"`
	InitialDelay string `yaml:"initial_delay"`
}

type fileConflicts struct {
	SameFile string `yaml:"same_file"`
	Overlap  string `yaml:"overlap"`
}

type filePreflight struct {
	MinDiskGB   *float64 `yaml:"min_disk_gb"`
	MinMemoryGB *float64 `yaml:"min_memory_gb"`
}

// UnmarshalYAML accepts either a bare path or a {path, strip} mapping.
// Mapping keys are checked here because Node.Decode does not inherit the
// decoder's KnownFields setting.
func (p *filePatch) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Path = node.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch key := node.Content[i].Value; key {
			case "path", "strip":
			default:
				return fmt.Errorf("line %d: field %s not found in patch entry", node.Content[i].Line, key)
			}
		}
		type plain filePatch
		return node.Decode((*plain)(p))
	default:
		return fmt.Errorf("line %d: patch entry must be a path or a mapping", node.Line)
	}
}

// Load reads and parses the config file at path.
// Returns E_NO_BUILD_CONFIG if the file does not exist and
// E_INVALID_BUILD_CONFIG if it is not valid YAML or fails validation.
func Load(filesystem fs.FS, path string) (BuildConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return BuildConfig{}, errors.Wrap(errors.EInternal, "failed to resolve config path", err)
	}

	data, err := filesystem.ReadFile(abs)
	if err != nil {
		details := map[string]string{"config": abs}
		if os.IsNotExist(err) {
			return BuildConfig{}, errors.NewWithDetails(errors.ENoBuildConfig, FileName+" not found", details)
		}
		return BuildConfig{}, errors.WrapWithDetails(errors.ENoBuildConfig, "failed to read "+FileName, err, details)
	}

	raw, err := decode(data)
	if err != nil {
		return BuildConfig{}, errors.NewWithDetails(errors.EInvalidBuildConfig, "invalid yaml: "+err.Error(),
			map[string]string{"config": abs})
	}

	cfg, err := resolve(raw, filepath.Dir(abs))
	if err != nil {
		return BuildConfig{}, errors.NewWithDetails(errors.EInvalidBuildConfig, err.Error(),
			map[string]string{"config": abs})
	}
	cfg.Path = abs
	return cfg, nil
}

func decode(data []byte) (fileConfig, error) {
	var raw fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if stderrors.Is(err, io.EOF) {
			return raw, stderrors.New("empty document")
		}
		return raw, err
	}
	return raw, nil
}
