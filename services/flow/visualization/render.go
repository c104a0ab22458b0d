// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package visualization renders an assembled call graph as DOT, JSON or
// Mermaid text and drives Graphviz for image output.
package visualization

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/callflow/services/flow/graph"
)

// OutputFormat specifies the text format a graph is rendered to.
type OutputFormat string

const (
	FormatDOT     OutputFormat = "dot"
	FormatJSON    OutputFormat = "json"
	FormatMermaid OutputFormat = "mermaid"
)

// ErrUnsupportedFormat is returned for an output format or suffix with no renderer.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Fill colours shared by DOT and Mermaid output.
const (
	NodeColor  = "#cccccc"
	TrunkColor = "#966F33"
	LeafColor  = "#6db33f"
)

// EdgeColors is the palette edges are coloured from, indexed by a hash of
// the caller's UID so every edge out of one node shares a colour.
var EdgeColors = []string{
	"#000000", "#E69F00", "#56B4E9", "#009E73",
	"#F0E442", "#0072B2", "#D55E00", "#CC79A7",
}

// polylineThreshold is the edge count from which DOT output switches from
// orthogonal to polyline splines. Orthogonal routing is too slow above it.
const polylineThreshold = 500

// FormatForExtension maps an output suffix to the text format written for it.
// Image suffixes map to FormatDOT, which Graphviz then renders.
func FormatForExtension(ext string) (OutputFormat, error) {
	switch strings.ToLower(ext) {
	case "dot", "gv", "png", "svg":
		return FormatDOT, nil
	case "json":
		return FormatJSON, nil
	case "mmd":
		return FormatMermaid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// RenderOptions configures rendering.
type RenderOptions struct {
	// NoGrouping omits namespace clusters.
	// Default: false
	NoGrouping bool

	// HideLegend omits the DOT legend.
	// Default: false
	HideLegend bool

	// Direction is the Mermaid flowchart direction (TB, LR, BT, RL).
	// Default: "LR"
	Direction string
}

// DefaultRenderOptions returns the options used when none are given.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Direction: "LR"}
}

// GraphRenderer renders call graphs.
//
// # Description
//
// Output is deterministic: files are emitted sorted by label, nodes by
// name and edges by caller then callee name.
//
// # Thread Safety
//
// Safe for concurrent use as long as each graph is not being mutated.
type GraphRenderer struct {
	options RenderOptions
}

// NewGraphRenderer creates a renderer. A nil opts uses DefaultRenderOptions.
func NewGraphRenderer(opts *RenderOptions) *GraphRenderer {
	if opts == nil {
		defaults := DefaultRenderOptions()
		opts = &defaults
	}
	r := &GraphRenderer{options: *opts}
	if r.options.Direction == "" {
		r.options.Direction = "LR"
	}
	return r
}

// Render returns the graph in the requested format.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - g: The assembled graph.
//   - format: The output format.
//
// # Outputs
//
//   - string: The rendered document.
//   - error: Non-nil on an unsupported format or cancellation.
func (r *GraphRenderer) Render(ctx context.Context, g *graph.Graph, format OutputFormat) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if g == nil {
		return "", fmt.Errorf("graph is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatDOT:
		return r.generateDOT(g), nil
	case FormatJSON:
		return r.generateJSON(g)
	case FormatMermaid:
		return r.generateMermaid(g), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Write renders the graph and writes it to w.
func (r *GraphRenderer) Write(ctx context.Context, w io.Writer, g *graph.Graph, format OutputFormat) error {
	content, err := r.Render(ctx, g, format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, content)
	return err
}

// edgeColor picks the palette entry for edges leaving the node with uid.
func edgeColor(uid string) string {
	return EdgeColors[graph.UIDHash(uid)%uint64(len(EdgeColors))]
}

// fillColor returns the fill for a node. Trunk wins over leaf for nodes
// with no edges at all.
func fillColor(n *graph.Node) string {
	switch {
	case n.IsTrunk:
		return TrunkColor
	case n.IsLeaf:
		return LeafColor
	default:
		return NodeColor
	}
}
