// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow runs the call graph pipeline end to end: discover sources,
// parse them in parallel, build and link the graph, apply the scope
// transforms and render the result. The CLI, the watcher and the HTTP
// handlers are all thin wrappers over Engine.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/callflow/services/flow/ast"
	"github.com/AleutianAI/callflow/services/flow/config"
	"github.com/AleutianAI/callflow/services/flow/discover"
	"github.com/AleutianAI/callflow/services/flow/graph"
	"github.com/AleutianAI/callflow/services/flow/visualization"
)

// ServiceVersion is reported by the health endpoint and the version command.
var ServiceVersion = "dev"

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the base logger. Every run adds a run_id attribute.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry fixes the front end registry. Without it a registry is built
// per run so the configured max file size applies.
func WithRegistry(registry *ast.FrontendRegistry) EngineOption {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithGraphvizLocator replaces the lookup of the dot executable.
func WithGraphvizLocator(locate func() (*visualization.Graphviz, error)) EngineOption {
	return func(e *Engine) {
		if locate != nil {
			e.locateGraphviz = locate
		}
	}
}

// Engine runs the pipeline.
//
// Thread Safety:
//
//	Safe for concurrent use. Each run builds its own graph; nothing is
//	shared between runs.
type Engine struct {
	logger         *slog.Logger
	registry       *ast.FrontendRegistry
	locateGraphviz func() (*visualization.Graphviz, error)
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:         slog.Default(),
		locateGraphviz: visualization.FindGraphviz,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analysis is an assembled and transformed graph, not yet rendered.
type Analysis struct {
	// RunID correlates the log records of one run.
	RunID string

	// Sources are the files that were considered, sorted.
	Sources []string

	// Language is the front end's canonical language name.
	Language string

	// Result holds the graph, ambiguous calls, file errors and stats.
	Result *graph.BuildResult

	// Target is the subset target, or graph.NoNode when no subset was requested.
	Target graph.NodeID

	// Warnings are non-fatal problems reported to the user.
	Warnings []string

	// Duration is the wall time of the analysis.
	Duration time.Duration
}

// Graph returns the analysed graph.
func (a *Analysis) Graph() *graph.Graph {
	return a.Result.Graph
}

// RunResult is the outcome of Run.
type RunResult struct {
	*Analysis

	// Format is the text format written.
	Format visualization.OutputFormat

	// TextPath is the text file written (the .gv file for image outputs).
	TextPath string

	// ImagePath is the rendered image, empty for text outputs or when
	// Graphviz failed.
	ImagePath string
}

// Analyze discovers, parses, builds and transforms, without rendering.
//
// Description:
//
//	Stages run strictly in order:
//
//	  1. Discovery and language selection
//	  2. Parallel parsing, joined in source order
//	  3. Graph build (namespace tree, inheritance, bindings, linking)
//	  4. Namespace then function filters
//	  5. Trimming of unconnected nodes, unless disabled
//	  6. Subset around the target function, if requested
//
// Inputs:
//
//	ctx - Context for cancellation of discovery, parsing and building.
//	cfg - Run configuration. Only the subset rules are re-checked here.
//
// Outputs:
//
//	*Analysis - The transformed graph and diagnostics.
//	error - Discovery, parse (unless skipped), build or subset failure.
func (e *Engine) Analyze(ctx context.Context, cfg config.Config) (*Analysis, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := e.logger.With(slog.String("run_id", runID))

	subset, err := cfg.Subset()
	if err != nil {
		return nil, err
	}

	registry := e.registry
	if registry == nil {
		registry = registryFor(cfg)
	}

	found, err := discover.Discover(ctx, cfg.Sources, registry, discover.Options{
		Language:         cfg.Language,
		RespectGitignore: cfg.RespectGitignore,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	if err := found.Frontend.CheckEnvironment(); err != nil {
		return nil, fmt.Errorf("%s front end unavailable: %w", found.Frontend.Language(), err)
	}

	trees, fileErrors, err := parseSources(ctx, found.Frontend, found.Sources, cfg.ParseWorkers, cfg.SkipParseErrors, logger)
	if err != nil {
		return nil, err
	}

	result, err := graph.NewBuilder(found.Frontend, graph.WithLogger(logger)).Build(ctx, trees)
	if err != nil {
		return nil, err
	}
	result.FileErrors = append(result.FileErrors, fileErrors...)
	result.Stats.FilesFailed = len(fileErrors)

	analysis := &Analysis{
		RunID:    runID,
		Sources:  found.Sources,
		Language: found.Frontend.Language(),
		Result:   result,
		Target:   graph.NoNode,
	}
	warn := func(msg string, attrs ...any) {
		logger.Warn(msg, attrs...)
		analysis.Warnings = append(analysis.Warnings, msg)
	}

	g := result.Graph
	if len(cfg.ExcludeNamespaces) > 0 || len(cfg.IncludeOnlyNamespaces) > 0 {
		for _, name := range g.LimitNamespaces(ctx, cfg.ExcludeNamespaces, cfg.IncludeOnlyNamespaces) {
			warn(fmt.Sprintf("could not exclude namespace %q because it was not found", name))
		}
	}
	if len(cfg.ExcludeFunctions) > 0 || len(cfg.IncludeOnlyFunctions) > 0 {
		for _, name := range g.LimitFunctions(ctx, cfg.ExcludeFunctions, cfg.IncludeOnlyFunctions) {
			warn(fmt.Sprintf("could not exclude function %q because it was not found", name))
		}
	}

	if !cfg.NoTrimming {
		removed := g.Trim(ctx)
		logger.Debug("trimmed unconnected functions", slog.Int("removed", removed))
	}

	if subset != nil {
		target, err := g.Subset(ctx, *subset)
		if err != nil {
			return nil, err
		}
		analysis.Target = target
	}

	if g.NodeCount() == 0 {
		warn("no functions found; try including more files or turning off trimming")
	}

	analysis.Duration = time.Since(start)
	logger.Info("analysis complete",
		slog.Int("files", result.Stats.FilesProcessed),
		slog.Int("files_failed", result.Stats.FilesFailed),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("ambiguous_calls", result.Stats.AmbiguousCalls),
		slog.Duration("duration", analysis.Duration))

	return analysis, nil
}

// Run validates cfg, analyses the sources and writes the output file.
//
// Description:
//
//	Text outputs (.dot, .gv, .json, .mmd) are written directly. Image
//	outputs (.png, .svg) write a sibling .gv file and render it with
//	Graphviz. A missing Graphviz is a configuration error reported before
//	any source is read. A Graphviz failure only produces a warning, since
//	the .gv file is still usable.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Sources = []string{"./src"}
//	cfg.Output = "out.svg"
//	res, err := flow.NewEngine().Run(ctx, cfg)
func (e *Engine) Run(ctx context.Context, cfg config.Config) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ext, err := config.OutputExtension(cfg.Output)
	if err != nil {
		return nil, err
	}
	format, err := visualization.FormatForExtension(ext)
	if err != nil {
		return nil, err
	}

	var graphviz *visualization.Graphviz
	if config.IsImageExtension(ext) {
		if graphviz, err = e.locateGraphviz(); err != nil {
			return nil, err
		}
	}

	analysis, err := e.Analyze(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With(slog.String("run_id", analysis.RunID))

	renderer := visualization.NewGraphRenderer(&visualization.RenderOptions{
		NoGrouping: cfg.NoGrouping,
		HideLegend: cfg.HideLegend,
	})
	res := &RunResult{Analysis: analysis, Format: format, TextPath: cfg.Output}
	if graphviz != nil {
		res.TextPath = strings.TrimSuffix(cfg.Output, "."+ext) + ".gv"
	}

	logger.Info("writing output", slog.String("file", res.TextPath))
	if err := writeOutput(ctx, renderer, analysis.Graph(), format, res.TextPath); err != nil {
		return nil, err
	}

	if graphviz != nil {
		logger.Info("running graphviz to make the image", slog.String("binary", graphviz.Binary()))
		start := time.Now()
		if err := graphviz.Render(ctx, res.TextPath, ext, cfg.Output); err != nil {
			logger.Warn("graphviz failed", slog.String("error", err.Error()))
			res.Warnings = append(res.Warnings, err.Error())
		} else {
			res.ImagePath = cfg.Output
			logger.Info("completed your flowchart", slog.String("file", cfg.Output),
				slog.Duration("graphviz_duration", time.Since(start)))
		}
	}

	return res, nil
}

// writeOutput renders g straight into the file at path.
func writeOutput(
	ctx context.Context,
	renderer *visualization.GraphRenderer,
	g *graph.Graph,
	format visualization.OutputFormat,
	path string,
) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("writing %s: %w", path, cerr)
		}
	}()

	if err := renderer.Write(ctx, f, g, format); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// registryFor builds the front end registry for one run.
func registryFor(cfg config.Config) *ast.FrontendRegistry {
	if cfg.MaxFileSize <= 0 {
		return ast.DefaultRegistry()
	}
	r := ast.NewFrontendRegistry()
	r.Register(ast.NewPythonFrontend(ast.WithPythonMaxFileSize(cfg.MaxFileSize)))
	return r
}
