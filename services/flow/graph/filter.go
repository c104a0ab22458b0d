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

// LimitNamespaces removes nodes by the name of the groups that own them.
//
// Description:
//
//	A node is removed when its group, or any ancestor group, is in exclude.
//	When includeOnly is non-empty, the direct nodes of every group that is
//	not included and has no included ancestor are removed as well. Emptied
//	groups are pruned afterwards, cascading up to the file.
//
// Inputs:
//
//	ctx - Context for tracing.
//	exclude - Group tokens to remove.
//	includeOnly - Group tokens to keep. Empty means keep everything.
//
// Outputs:
//
//	[]string - Entries of exclude that matched no group, in input order.
func (g *Graph) LimitNamespaces(ctx context.Context, exclude, includeOnly []string) []string {
	if len(exclude) == 0 && len(includeOnly) == 0 {
		return nil
	}

	ctx, span := startTransformSpan(ctx, "Graph.LimitNamespaces", g.NodeCount())
	defer span.End()
	start := time.Now()

	excluded := toSet(exclude)
	included := toSet(includeOnly)
	found := make(map[string]bool, len(exclude))

	var remove []NodeID
	for _, gid := range g.AllGroups() {
		grp := g.Group(gid)
		if excluded[grp.Token] {
			found[grp.Token] = true
			remove = append(remove, g.NodesUnder(gid)...)
			continue
		}
		if len(included) > 0 && !g.groupOrAncestorIn(gid, included) {
			remove = append(remove, grp.Nodes...)
		}
	}

	removed := g.removeNodes(remove)
	recordTransformMetrics(ctx, "limit_namespaces", time.Since(start), removed)

	return missing(exclude, found)
}

// LimitFunctions removes nodes by their own token.
//
// Description:
//
//	A node is removed when its token is in exclude, or when includeOnly is
//	non-empty and does not contain it. Emptied groups are pruned.
//
// Outputs:
//
//	[]string - Entries of exclude that matched no node, in input order.
func (g *Graph) LimitFunctions(ctx context.Context, exclude, includeOnly []string) []string {
	if len(exclude) == 0 && len(includeOnly) == 0 {
		return nil
	}

	ctx, span := startTransformSpan(ctx, "Graph.LimitFunctions", g.NodeCount())
	defer span.End()
	start := time.Now()

	excluded := toSet(exclude)
	included := toSet(includeOnly)
	found := make(map[string]bool, len(exclude))

	var remove []NodeID
	for _, nid := range g.AllNodes() {
		token := g.Node(nid).Token
		if excluded[token] {
			found[token] = true
			remove = append(remove, nid)
			continue
		}
		if len(included) > 0 && !included[token] {
			remove = append(remove, nid)
		}
	}

	removed := g.removeNodes(remove)
	recordTransformMetrics(ctx, "limit_functions", time.Since(start), removed)

	return missing(exclude, found)
}

// groupOrAncestorIn reports whether gid or any group above it has a token in set.
func (g *Graph) groupOrAncestorIn(gid GroupID, set map[string]bool) bool {
	for ; gid != NoGroup; gid = g.groups[gid].Parent {
		if set[g.groups[gid].Token] {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func missing(requested []string, found map[string]bool) []string {
	var out []string
	for _, r := range requested {
		if !found[r] {
			out = append(out, r)
		}
	}
	return out
}
