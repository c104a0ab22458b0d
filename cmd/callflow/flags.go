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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/callflow/services/flow/config"
)

// loadConfig layers defaults, the optional config file and set flags.
func (a *app) loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()
	if a.opts.configPath != "" {
		loaded, err := config.Load(a.opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Sources = args
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	o := a.opts

	set("output", func() { cfg.Output = o.output })
	set("language", func() { cfg.Language = o.language })
	set("target-function", func() { cfg.TargetFunction = o.targetFunction })
	set("upstream-depth", func() { cfg.UpstreamDepth = o.upstreamDepth })
	set("downstream-depth", func() { cfg.DownstreamDepth = o.downstreamDepth })
	set("exclude-functions", func() { cfg.ExcludeFunctions = config.SplitList(o.excludeFunctions) })
	set("exclude-namespaces", func() { cfg.ExcludeNamespaces = config.SplitList(o.excludeNamespaces) })
	set("include-only-functions", func() { cfg.IncludeOnlyFunctions = config.SplitList(o.includeOnlyFunctions) })
	set("include-only-namespaces", func() { cfg.IncludeOnlyNamespaces = config.SplitList(o.includeOnlyNamespaces) })
	set("no-grouping", func() { cfg.NoGrouping = o.noGrouping })
	set("no-trimming", func() { cfg.NoTrimming = o.noTrimming })
	set("hide-legend", func() { cfg.HideLegend = o.hideLegend })
	set("skip-parse-errors", func() { cfg.SkipParseErrors = o.skipParseErrors })
	set("no-gitignore", func() { cfg.RespectGitignore = !o.noGitignore })
	set("parse-workers", func() { cfg.ParseWorkers = o.parseWorkers })
	set("max-file-size", func() { cfg.MaxFileSize = o.maxFileSize })
	set("quiet", func() { cfg.Quiet = o.quiet })
	set("verbose", func() { cfg.Verbose = o.verbose })
	set("trace-exporter", func() { cfg.Telemetry.TraceExporter = o.traceExporter })
	set("metric-exporter", func() { cfg.Telemetry.MetricExporter = o.metricExporter })

	return cfg, nil
}
