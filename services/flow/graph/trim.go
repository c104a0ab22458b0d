// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"time"
)

// Trim removes every node with no incident edge, then prunes the groups and
// files left empty. Running Trim twice has the same effect as running it once.
//
// Outputs:
//
//	int - The number of nodes removed.
func (g *Graph) Trim(ctx context.Context) int {
	ctx, span := startTransformSpan(ctx, "Graph.Trim", g.NodeCount())
	defer span.End()
	start := time.Now()

	connected := make(map[NodeID]bool, 2*len(g.edges))
	for _, e := range g.edges {
		connected[e.Caller] = true
		connected[e.Callee] = true
	}

	var remove []NodeID
	for _, nid := range g.AllNodes() {
		if !connected[nid] {
			remove = append(remove, nid)
		}
	}

	removed := g.removeNodes(remove)
	recordTransformMetrics(ctx, "trim", time.Since(start), removed)
	return removed
}
