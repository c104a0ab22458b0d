// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visualization

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/callflow/services/flow/graph"
)

// legendDOT is the legend block explaining node fills and arrows.
var legendDOT = fmt.Sprintf(`subgraph legend{
    rank = min;
    label = "legend";
    Legend [shape=none, margin=0, label = <
        <table cellspacing="0" cellpadding="0" border="1"><tr><td>Legend</td></tr><tr><td>
        <table cellspacing="0">
        <tr><td>Regular function</td><td width="50px" bgcolor='%s'></td></tr>
        <tr><td>Trunk function (nothing calls this)</td><td bgcolor='%s'></td></tr>
        <tr><td>Leaf function (this calls nothing else)</td><td bgcolor='%s'></td></tr>
        <tr><td>Function call</td><td><font color='black'>&#8594;</font></td></tr>
        </table></td></tr></table>
        >];
}
`, NodeColor, TrunkColor, LeafColor)

// generateDOT creates a Graphviz digraph.
func (r *GraphRenderer) generateDOT(g *graph.Graph) string {
	var sb strings.Builder

	splines := "ortho"
	if g.EdgeCount() >= polylineThreshold {
		splines = "polyline"
	}

	sb.WriteString("digraph G {\n")
	sb.WriteString("concentrate=true;\n")
	sb.WriteString(fmt.Sprintf("splines=%q;\n", splines))
	sb.WriteString("rankdir=\"LR\";\n")
	if !r.options.HideLegend {
		sb.WriteString(legendDOT)
	}

	for _, id := range g.SortedNodes() {
		n := g.Node(id)
		sb.WriteString(fmt.Sprintf("%s [label=\"%s\" name=\"%s\" shape=\"rect\" style=\"rounded,filled\" fillcolor=\"%s\" ];\n",
			n.UID, escapeDOTLabel(n.Label()), escapeDOTLabel(g.Name(id)), fillColor(n)))
	}

	for _, e := range g.SortedEdges() {
		caller := g.Node(e.Caller)
		callee := g.Node(e.Callee)
		sb.WriteString(fmt.Sprintf("%s -> %s [color=\"%s\" penwidth=\"2\"];\n",
			caller.UID, callee.UID, edgeColor(caller.UID)))
	}

	if !r.options.NoGrouping {
		for _, fid := range g.SortedFiles() {
			writeGroupDOT(&sb, g, fid, "")
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// writeGroupDOT writes one cluster and, nested inside it, its subgroups.
func writeGroupDOT(sb *strings.Builder, g *graph.Graph, gid graph.GroupID, indent string) {
	grp := g.Group(gid)
	if grp == nil || grp.Removed() {
		return
	}

	sb.WriteString(indent + "subgraph " + grp.UID + " {\n")
	if len(grp.Nodes) > 0 {
		uids := make([]string, 0, len(grp.Nodes))
		for _, id := range grp.Nodes {
			uids = append(uids, g.Node(id).UID)
		}
		sb.WriteString(indent + "    " + strings.Join(uids, " ") + ";\n")
	}
	sb.WriteString(fmt.Sprintf("%s    label=\"%s\";\n", indent, escapeDOTLabel(grp.Label())))
	sb.WriteString(fmt.Sprintf("%s    name=\"%s\";\n", indent, escapeDOTLabel(grp.Token)))
	sb.WriteString(indent + "    style=\"filled\";\n")
	sb.WriteString(indent + "    graph[style=dotted];\n")
	for _, sub := range grp.Subgroups {
		writeGroupDOT(sb, g, sub, indent+"    ")
	}
	sb.WriteString(indent + "};\n")
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}
