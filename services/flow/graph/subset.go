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
	"fmt"
	"strings"
	"time"
)

// SubsetParams selects a bounded neighbourhood around one target node.
type SubsetParams struct {
	// Target names the node as "func", "Class.func" or "file::Class.func".
	Target string

	// UpstreamDepth is how many caller hops to include. 0 means none.
	UpstreamDepth int

	// DownstreamDepth is how many callee hops to include. 0 means none.
	DownstreamDepth int
}

// Validate checks that both depths are non-negative and at least one is positive.
func (p SubsetParams) Validate() error {
	if p.UpstreamDepth < 0 || p.DownstreamDepth < 0 {
		return fmt.Errorf("%w: upstream %d, downstream %d must be >= 0",
			ErrInvalidDepth, p.UpstreamDepth, p.DownstreamDepth)
	}
	if p.UpstreamDepth == 0 && p.DownstreamDepth == 0 {
		return fmt.Errorf("%w: upstream or downstream depth must be positive", ErrInvalidDepth)
	}
	return nil
}

// FindTarget returns the single live node matching target by token,
// "Owner.token" or "file::Owner.token".
//
// Outputs:
//
//	NodeID - The matching node.
//	error - ErrTargetNotFound, or ErrAmbiguousTarget listing the matches.
func (g *Graph) FindTarget(target string) (NodeID, error) {
	var matches []NodeID
	for _, nid := range g.AllNodes() {
		if g.Node(nid).Token == target || g.TokenWithOwnership(nid) == target || g.Name(nid) == target {
			matches = append(matches, nid)
		}
	}

	switch len(matches) {
	case 0:
		return NoNode, fmt.Errorf("%w: %q", ErrTargetNotFound, target)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, nid := range matches {
			names = append(names, g.Name(nid))
		}
		return NoNode, fmt.Errorf("%w: %q matches %s; try \"Class.func\" or \"file::Class.func\"",
			ErrAmbiguousTarget, target, strings.Join(names, ", "))
	}
}

// Subset keeps only the target node and the nodes within the given number
// of hops downstream (callees) and upstream (callers) of it.
//
// Description:
//
//	The two directions are expanded independently by breadth-first search
//	from the target. Edges survive only when both ends do, and groups left
//	empty are pruned as in Trim.
//
// Inputs:
//
//	ctx - Context for tracing.
//	params - The target and depths. Validated before anything is removed.
//
// Outputs:
//
//	NodeID - The target node.
//	error - ErrInvalidDepth, ErrTargetNotFound or ErrAmbiguousTarget. The
//	        graph is unchanged on error.
func (g *Graph) Subset(ctx context.Context, params SubsetParams) (NodeID, error) {
	ctx, span := startTransformSpan(ctx, "Graph.Subset", g.NodeCount())
	defer span.End()
	start := time.Now()

	if err := params.Validate(); err != nil {
		span.RecordError(err)
		return NoNode, err
	}

	target, err := g.FindTarget(params.Target)
	if err != nil {
		span.RecordError(err)
		return NoNode, err
	}

	downstream := make(map[NodeID][]NodeID)
	upstream := make(map[NodeID][]NodeID)
	for _, e := range g.edges {
		downstream[e.Caller] = append(downstream[e.Caller], e.Callee)
		upstream[e.Callee] = append(upstream[e.Callee], e.Caller)
	}

	keep := map[NodeID]bool{target: true}
	expand(target, params.DownstreamDepth, downstream, keep)
	expand(target, params.UpstreamDepth, upstream, keep)

	var remove []NodeID
	for _, nid := range g.AllNodes() {
		if !keep[nid] {
			remove = append(remove, nid)
		}
	}

	removed := g.removeNodes(remove)
	recordTransformMetrics(ctx, "subset", time.Since(start), removed)
	return target, nil
}

// expand adds to keep every node reachable from start in at most depth hops.
func expand(start NodeID, depth int, adjacency map[NodeID][]NodeID, keep map[NodeID]bool) {
	frontier := []NodeID{start}
	visited := map[NodeID]bool{start: true}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []NodeID
		for _, nid := range frontier {
			for _, adj := range adjacency[nid] {
				keep[adj] = true
				if !visited[adj] {
					visited[adj] = true
					next = append(next, adj)
				}
			}
		}
		frontier = next
	}
}
