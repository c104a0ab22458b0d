// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the settings for one call graph run.
//
// Settings come from three layers, later layers winning: Default(), an
// optional YAML file (Load), and command-line flags applied by the caller.
// Validate must be called on the merged result before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/callflow/services/flow/graph"
)

// Sentinel errors for configuration problems. All are fatal and reported
// before any source file is read.
var (
	// ErrInvalidConfig wraps struct-level validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSubsetRequiresTarget is returned when a depth is given without a target.
	ErrSubsetRequiresTarget = errors.New("subset depth requires a target function")

	// ErrSubsetRequiresDepth is returned when a target is given without any
	// positive depth.
	ErrSubsetRequiresDepth = errors.New("target function requires an upstream or downstream depth")

	// ErrNegativeDepth is returned for a depth below zero.
	ErrNegativeDepth = errors.New("subset depth must be >= 0")

	// ErrVerboseQuiet is returned when both verbose and quiet logging are requested.
	ErrVerboseQuiet = errors.New("verbose and quiet are mutually exclusive")

	// ErrInvalidOutput is returned when the output path has no supported suffix.
	ErrInvalidOutput = errors.New("unsupported output file type")
)

// Output suffixes.
var (
	// ImageExtensions are rendered by Graphviz from an intermediate .gv file.
	ImageExtensions = []string{"png", "svg"}

	// TextExtensions are written directly.
	TextExtensions = []string{"dot", "gv", "json", "mmd"}
)

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name"`

	// TraceExporter is one of "otlp", "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// MetricExporter is one of "prometheus", "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`

	// OTLPEndpoint is the collector address for the otlp exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Config holds the settings for one run.
type Config struct {
	// Sources are files and directories to analyze.
	Sources []string `yaml:"sources" validate:"required,min=1,dive,required"`

	// Output is the output file path. Its suffix selects the format.
	Output string `yaml:"output" validate:"required,outputext"`

	// Language selects the front end ("py" or "python"). Empty means detect
	// it from the first source file with a known suffix.
	Language string `yaml:"language" validate:"omitempty,oneof=py python"`

	ExcludeNamespaces     []string `yaml:"exclude_namespaces"`
	ExcludeFunctions      []string `yaml:"exclude_functions"`
	IncludeOnlyNamespaces []string `yaml:"include_only_namespaces"`
	IncludeOnlyFunctions  []string `yaml:"include_only_functions"`

	// NoGrouping lets functions float instead of clustering them by namespace.
	NoGrouping bool `yaml:"no_grouping"`

	// NoTrimming keeps functions that connect to nothing.
	NoTrimming bool `yaml:"no_trimming"`

	// HideLegend omits the legend block from DOT output.
	HideLegend bool `yaml:"hide_legend"`

	// SkipParseErrors logs and skips files that fail to parse instead of
	// aborting the run.
	SkipParseErrors bool `yaml:"skip_parse_errors"`

	// TargetFunction centers the output on one function.
	TargetFunction  string `yaml:"target_function"`
	UpstreamDepth   int    `yaml:"upstream_depth" validate:"gte=0"`
	DownstreamDepth int    `yaml:"downstream_depth" validate:"gte=0"`

	// MaxFileSize is the largest source file parsed, in bytes. 0 uses the
	// front end's default.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gte=0"`

	// ParseWorkers bounds parallel parsing. 0 uses runtime.NumCPU().
	ParseWorkers int `yaml:"parse_workers" validate:"gte=0"`

	// RespectGitignore skips files matched by .gitignore in source directories.
	RespectGitignore bool `yaml:"respect_gitignore"`

	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Output:           "out.png",
		RespectGitignore: true,
		Telemetry: TelemetryConfig{
			ServiceName:    "callflow",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// Load reads a YAML file over Default(). Unknown keys are rejected.
//
// Inputs:
//   - path: Path to the YAML file.
//
// Outputs:
//   - Config: Defaults overlaid with the file's values. Not yet validated.
//   - error: Read or decode failure.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over Default(). Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	return cfg, nil
}

// configValidate is the validator instance for Config.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("outputext", validateOutputExt)
}

// validateOutputExt accepts output paths ending in a supported suffix.
func validateOutputExt(fl validator.FieldLevel) bool {
	_, err := OutputExtension(fl.Field().String())
	return err == nil
}

// Validate checks the merged configuration.
//
// Description:
//
//	Checks run in the order a user would fix them: logging flags, subset
//	flags, the output suffix, then struct tags.
//
// Outputs:
//   - error: One of the package's sentinel errors, wrapped with detail.
func (c *Config) Validate() error {
	if c.Verbose && c.Quiet {
		return ErrVerboseQuiet
	}
	if _, err := c.Subset(); err != nil {
		return err
	}
	if _, err := OutputExtension(c.Output); err != nil {
		return err
	}
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Subset returns the subset parameters, or nil when no target is set.
func (c *Config) Subset() (*graph.SubsetParams, error) {
	return NewSubsetParams(c.TargetFunction, c.UpstreamDepth, c.DownstreamDepth)
}

// NewSubsetParams validates subset flags.
//
// Description:
//
//	A depth without a target is an error. No target means no subset and
//	returns nil. A target needs at least one non-zero depth, and neither
//	depth may be negative.
func NewSubsetParams(target string, upstream, downstream int) (*graph.SubsetParams, error) {
	if upstream != 0 && target == "" {
		return nil, fmt.Errorf("%w: --upstream-depth requires --target-function", ErrSubsetRequiresTarget)
	}
	if downstream != 0 && target == "" {
		return nil, fmt.Errorf("%w: --downstream-depth requires --target-function", ErrSubsetRequiresTarget)
	}
	if target == "" {
		return nil, nil
	}
	if upstream == 0 && downstream == 0 {
		return nil, ErrSubsetRequiresDepth
	}
	if upstream < 0 {
		return nil, fmt.Errorf("%w: --upstream-depth is %d", ErrNegativeDepth, upstream)
	}
	if downstream < 0 {
		return nil, fmt.Errorf("%w: --downstream-depth is %d", ErrNegativeDepth, downstream)
	}
	return &graph.SubsetParams{
		Target:          target,
		UpstreamDepth:   upstream,
		DownstreamDepth: downstream,
	}, nil
}

// OutputExtension returns the suffix of an output path after checking it
// is supported.
func OutputExtension(path string) (string, error) {
	dot := strings.LastIndex(path, ".")
	if dot < 0 || dot == len(path)-1 {
		return "", fmt.Errorf("%w: %q must end in one of %s", ErrInvalidOutput, path, supportedList())
	}
	ext := path[dot+1:]
	if !IsImageExtension(ext) && !contains(TextExtensions, ext) {
		return "", fmt.Errorf("%w: %q must end in one of %s", ErrInvalidOutput, path, supportedList())
	}
	return ext, nil
}

// IsImageExtension reports whether ext must be rendered by Graphviz.
func IsImageExtension(ext string) bool {
	return contains(ImageExtensions, ext)
}

// SplitList parses a comma-delimited flag value, trimming whitespace and
// dropping empty entries.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func supportedList() string {
	all := append(append([]string{}, ImageExtensions...), TextExtensions...)
	return strings.Join(all, ", ")
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
