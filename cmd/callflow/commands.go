// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/callflow/services/flow"
	"github.com/AleutianAI/callflow/services/flow/config"
	"github.com/AleutianAI/callflow/services/flow/telemetry"
)

// cliOptions holds raw flag values. Only flags the user set override the
// config file.
type cliOptions struct {
	configPath string

	output          string
	language        string
	targetFunction  string
	upstreamDepth   int
	downstreamDepth int

	excludeFunctions      string
	excludeNamespaces     string
	includeOnlyFunctions  string
	includeOnlyNamespaces string

	noGrouping      bool
	noTrimming      bool
	hideLegend      bool
	skipParseErrors bool
	noGitignore     bool

	parseWorkers int
	maxFileSize  int64

	quiet   bool
	verbose bool

	traceExporter  string
	metricExporter string

	addr string
	root string
}

// app is the state shared by the commands of one invocation.
type app struct {
	opts     cliOptions
	cfg      config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	return newCommand(&app{})
}

// newCommand builds the command tree around a.
func newCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callflow [flags] SOURCES...",
		Short: "Generate a call graph for a code base",
		Long: `Generate a flowchart of the calls between the functions of a code base.

Sources are files or directories. Files are always included; directories
are searched for files of the selected language. The output suffix picks
the format: .dot/.gv (Graphviz text), .json, .mmd (Mermaid), or .png/.svg
(rendered with Graphviz, which must be installed).

Examples:
  callflow ./app
  callflow app.py lib/ -o graph.svg --no-trimming
  callflow ./app --target-function Server.handle --upstream-depth 2 -o handle.json
  callflow ./app --exclude-namespaces tests,migrations --hide-legend`,
		Args:              cobra.ArbitraryArgs,
		Version:           flow.ServiceVersion,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
		RunE: a.runRender,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", "", "YAML config file; flags override its values")
	pf.BoolVarP(&a.opts.quiet, "quiet", "q", false, "Suppress most logging")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Add more logging")
	pf.StringVar(&a.opts.traceExporter, "trace-exporter", "", "Trace exporter: otlp, stdout, none")
	pf.StringVar(&a.opts.metricExporter, "metric-exporter", "", "Metric exporter: prometheus, stdout, none")

	pf.StringVarP(&a.opts.output, "output", "o", "out.png",
		"Output file; the suffix (dot, gv, json, mmd, png, svg) selects the format")
	pf.StringVar(&a.opts.language, "language", "", "Process this language and ignore all other files (py)")
	pf.StringVar(&a.opts.targetFunction, "target-function", "",
		"Output a subset of the graph centered on this function; \"Class.func\" or \"file::Class.func\" disambiguates")
	pf.IntVar(&a.opts.upstreamDepth, "upstream-depth", 0, "Include this many levels of callers of the target function")
	pf.IntVar(&a.opts.downstreamDepth, "downstream-depth", 0, "Include this many levels of callees of the target function")
	pf.StringVar(&a.opts.excludeFunctions, "exclude-functions", "", "Exclude these comma-delimited functions")
	pf.StringVar(&a.opts.excludeNamespaces, "exclude-namespaces", "", "Exclude these comma-delimited namespaces")
	pf.StringVar(&a.opts.includeOnlyFunctions, "include-only-functions", "", "Include only these comma-delimited functions")
	pf.StringVar(&a.opts.includeOnlyNamespaces, "include-only-namespaces", "", "Include only these comma-delimited namespaces")
	pf.BoolVar(&a.opts.noGrouping, "no-grouping", false, "Don't group functions into namespaces in the output")
	pf.BoolVar(&a.opts.noTrimming, "no-trimming", false, "Show all functions and namespaces whether or not they connect to anything")
	pf.BoolVar(&a.opts.hideLegend, "hide-legend", false, "Omit the legend from the output")
	pf.BoolVar(&a.opts.skipParseErrors, "skip-parse-errors", false, "Skip files that fail to parse instead of failing")
	pf.BoolVar(&a.opts.noGitignore, "no-gitignore", false, "Include files matched by .gitignore")
	pf.IntVar(&a.opts.parseWorkers, "parse-workers", 0, "Parallel parse workers (0 = number of CPUs)")
	pf.Int64Var(&a.opts.maxFileSize, "max-file-size", 0, "Largest source file parsed, in bytes (0 = front end default)")

	rootCmd.AddCommand(newWatchCmd(a), newServeCmd(a), newVersionCmd())
	return rootCmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [flags] SOURCES...",
		Short: "Regenerate the call graph whenever a source file changes",
		Long: `Generate the call graph, then watch the sources and regenerate it
after every change. Accepts the same flags as the root command.

Examples:
  callflow watch ./app -o graph.svg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := flow.NewEngine(flow.WithLogger(a.logger))
			watcher, err := flow.NewWatcher(engine, a.cfg, nil)
			if err != nil {
				return err
			}
			a.logger.Info("watching sources; press Ctrl-C to stop", slog.Any("sources", a.cfg.Sources))
			return watcher.Run(cmd.Context())
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the call graph API over HTTP",
		Long: `Serve POST /v1/flow/graph and GET /v1/flow/health. Request sources are
resolved under --root and may not escape it. /metrics is served when the
prometheus metric exporter is selected.

Examples:
  callflow serve --addr :8080 --root ./repos --metric-exporter prometheus`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := flow.NewEngine(flow.WithLogger(a.logger))
			server := &http.Server{
				Addr:              a.opts.addr,
				Handler:           flow.NewRouter(flow.NewHandlers(engine, a.opts.root)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("serving", slog.String("addr", a.opts.addr), slog.String("root", a.opts.root))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.logger.Info("shutting down")
				return server.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&a.opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&a.opts.root, "root", ".", "Directory request sources are resolved under")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "callflow", flow.ServiceVersion)
		},
	}
}

// setup loads configuration, then builds the logger and telemetry.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Verbose && cfg.Quiet {
		return config.ErrVerboseQuiet
	}
	a.cfg = cfg
	a.logger = telemetry.NewLogger(os.Stderr, telemetry.LevelFor(cfg.Verbose, cfg.Quiet))
	slog.SetDefault(a.logger)

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = flow.ServiceVersion
	if cfg.Telemetry.ServiceName != "" {
		tcfg.ServiceName = cfg.Telemetry.ServiceName
	}
	if cfg.Telemetry.TraceExporter != "" {
		tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}

	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}

// runRender generates the graph once.
func (a *app) runRender(cmd *cobra.Command, _ []string) error {
	if len(a.cfg.Sources) == 0 {
		return fmt.Errorf("%w: no sources given", config.ErrInvalidConfig)
	}
	res, err := flow.NewEngine(flow.WithLogger(a.logger)).Run(cmd.Context(), a.cfg)
	if err != nil {
		return err
	}
	out := res.TextPath
	if res.ImagePath != "" {
		out = res.ImagePath
	}
	a.logger.Info("done", slog.String("output", out), slog.Duration("duration", res.Duration))
	return nil
}
