// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"github.com/AleutianAI/callflow/services/flow/graph"
	"github.com/AleutianAI/callflow/services/flow/visualization"
)

// GraphRequest is the body of POST /v1/flow/graph.
type GraphRequest struct {
	// Sources are files and directories, relative to the server root or
	// absolute paths inside it.
	Sources []string `json:"sources" binding:"required,min=1,dive,required"`

	// Language is a language name or suffix. Empty means detect it.
	Language string `json:"language,omitempty"`

	// Format is "json" (default), "dot" or "mermaid".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=json dot mermaid"`

	ExcludeNamespaces     []string `json:"exclude_namespaces,omitempty"`
	ExcludeFunctions      []string `json:"exclude_functions,omitempty"`
	IncludeOnlyNamespaces []string `json:"include_only_namespaces,omitempty"`
	IncludeOnlyFunctions  []string `json:"include_only_functions,omitempty"`

	NoGrouping      bool `json:"no_grouping,omitempty"`
	NoTrimming      bool `json:"no_trimming,omitempty"`
	HideLegend      bool `json:"hide_legend,omitempty"`
	SkipParseErrors bool `json:"skip_parse_errors,omitempty"`

	TargetFunction  string `json:"target_function,omitempty"`
	UpstreamDepth   int    `json:"upstream_depth,omitempty" binding:"gte=0"`
	DownstreamDepth int    `json:"downstream_depth,omitempty" binding:"gte=0"`
}

// GraphResponse is the body of a successful POST /v1/flow/graph.
type GraphResponse struct {
	// RunID correlates the response with server logs.
	RunID string `json:"run_id"`

	// Language is the language the sources were analysed as.
	Language string `json:"language"`

	// Sources are the files analysed.
	Sources []string `json:"sources"`

	// Format is the format of Graph or Content.
	Format string `json:"format"`

	// Graph is set for the json format.
	Graph *visualization.JSONGraph `json:"graph,omitempty"`

	// Content is set for the dot and mermaid formats.
	Content string `json:"content,omitempty"`

	// Stats are the build statistics.
	Stats graph.BuildStats `json:"stats"`

	// FileErrors lists files skipped because they failed to parse.
	FileErrors []string `json:"file_errors,omitempty"`

	// AmbiguousCalls lists calls left unlinked because of several candidates.
	AmbiguousCalls []string `json:"ambiguous_calls,omitempty"`

	// Warnings are non-fatal problems.
	Warnings []string `json:"warnings,omitempty"`

	// DurationMs is the server-side processing time.
	DurationMs int64 `json:"duration_ms"`
}

// HealthResponse is the body of GET /v1/flow/health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Languages []string `json:"languages"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}
