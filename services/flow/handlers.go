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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/callflow/services/flow/ast"
	"github.com/AleutianAI/callflow/services/flow/config"
	"github.com/AleutianAI/callflow/services/flow/discover"
	"github.com/AleutianAI/callflow/services/flow/graph"
	"github.com/AleutianAI/callflow/services/flow/visualization"
)

// ErrPathOutsideRoot is returned for a request source outside the server root.
var ErrPathOutsideRoot = errors.New("source path is outside the server root")

// Handlers serves the HTTP API over an Engine.
type Handlers struct {
	engine *Engine
	root   string
}

// NewHandlers creates handlers that only read sources under root.
func NewHandlers(engine *Engine, root string) *Handlers {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &Handlers{engine: engine, root: abs}
}

// HandleGraph handles POST /v1/flow/graph.
//
// Description:
//
//	Analyses the requested sources and returns the graph as a JSON
//	document, DOT text or a Mermaid flowchart. Nothing is written to disk.
//
// Request Body:
//
//	GraphRequest
//
// Response:
//
//	200 OK: GraphResponse
//	400 Bad Request: Validation, path or subset error
//	404 Not Found: Subset target not found
//	422 Unprocessable Entity: A source failed to parse
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleGraph(c *gin.Context) {
	logger := h.engine.logger.With(slog.String("handler", "HandleGraph"))

	var req GraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	sources, err := h.resolveSources(req.Sources)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PATH"})
		return
	}

	cfg := config.Default()
	cfg.Sources = sources
	cfg.Language = req.Language
	cfg.ExcludeNamespaces = req.ExcludeNamespaces
	cfg.ExcludeFunctions = req.ExcludeFunctions
	cfg.IncludeOnlyNamespaces = req.IncludeOnlyNamespaces
	cfg.IncludeOnlyFunctions = req.IncludeOnlyFunctions
	cfg.NoTrimming = req.NoTrimming
	cfg.SkipParseErrors = req.SkipParseErrors
	cfg.TargetFunction = req.TargetFunction
	cfg.UpstreamDepth = req.UpstreamDepth
	cfg.DownstreamDepth = req.DownstreamDepth

	start := time.Now()
	analysis, err := h.engine.Analyze(c.Request.Context(), cfg)
	if err != nil {
		status, code := classifyError(err)
		logger.Error("analysis failed", slog.String("error", err.Error()), slog.String("code", code))
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	format := visualization.FormatJSON
	if req.Format != "" {
		format = visualization.OutputFormat(req.Format)
	}

	resp := GraphResponse{
		RunID:          analysis.RunID,
		Language:       analysis.Language,
		Sources:        h.relativize(analysis.Sources),
		Format:         string(format),
		Stats:          analysis.Result.Stats,
		AmbiguousCalls: analysis.Result.AmbiguousCallStrings(),
		Warnings:       analysis.Warnings,
	}
	for _, fe := range analysis.Result.FileErrors {
		resp.FileErrors = append(resp.FileErrors, fe.Error())
	}

	if format == visualization.FormatJSON {
		doc := visualization.BuildJSONDocument(analysis.Graph())
		resp.Graph = &doc.Graph
	} else {
		renderer := visualization.NewGraphRenderer(&visualization.RenderOptions{
			NoGrouping: req.NoGrouping,
			HideLegend: req.HideLegend,
		})
		content, err := renderer.Render(c.Request.Context(), analysis.Graph(), format)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RENDER_FAILED"})
			return
		}
		resp.Content = content
	}
	resp.DurationMs = time.Since(start).Milliseconds()

	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/flow/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	registry := h.engine.registry
	if registry == nil {
		registry = ast.DefaultRegistry()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   ServiceVersion,
		Languages: registry.Extensions(),
	})
}

// resolveSources makes request paths absolute under the root and rejects
// any that escape it.
func (h *Handlers) resolveSources(sources []string) ([]string, error) {
	out := make([]string, 0, len(sources))
	for _, source := range sources {
		path := source
		if !filepath.IsAbs(path) {
			path = filepath.Join(h.root, path)
		}
		path = filepath.Clean(path)

		rel, err := filepath.Rel(h.root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%w: %s", ErrPathOutsideRoot, source)
		}
		out = append(out, path)
	}
	return out, nil
}

// relativize reports paths relative to the root so responses do not leak
// the server's directory layout.
func (h *Handlers) relativize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(h.root, p); err == nil {
			p = filepath.ToSlash(rel)
		}
		out = append(out, p)
	}
	return out
}

// classifyError maps pipeline errors to an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrTargetNotFound):
		return http.StatusNotFound, "TARGET_NOT_FOUND"
	case errors.Is(err, graph.ErrAmbiguousTarget):
		return http.StatusBadRequest, "AMBIGUOUS_TARGET"
	case errors.Is(err, config.ErrSubsetRequiresTarget),
		errors.Is(err, config.ErrSubsetRequiresDepth),
		errors.Is(err, config.ErrNegativeDepth),
		errors.Is(err, graph.ErrInvalidDepth):
		return http.StatusBadRequest, "INVALID_SUBSET"
	case errors.Is(err, discover.ErrNoSources),
		errors.Is(err, discover.ErrNoMatchingSources),
		errors.Is(err, discover.ErrLanguageUndetected),
		errors.Is(err, discover.ErrUnknownLanguage),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest, "NO_SOURCES"
	case ast.IsParseFailed(err), errors.Is(err, ast.ErrFileTooLarge), errors.Is(err, ast.ErrInvalidContent):
		return http.StatusUnprocessableEntity, "PARSE_FAILED"
	default:
		return http.StatusInternalServerError, "ANALYSIS_FAILED"
	}
}
