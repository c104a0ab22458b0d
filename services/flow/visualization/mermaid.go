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

// generateMermaid creates a Mermaid flowchart diagram.
func (r *GraphRenderer) generateMermaid(g *graph.Graph) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("flowchart %s\n", r.options.Direction))

	if r.options.NoGrouping {
		for _, id := range g.SortedNodes() {
			writeNodeMermaid(&sb, g, id, "    ")
		}
	} else {
		for _, fid := range g.SortedFiles() {
			writeGroupMermaid(&sb, g, fid, "    ")
		}
	}

	sb.WriteString("\n")
	for _, e := range g.SortedEdges() {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n",
			sanitizeMermaidID(g.Node(e.Caller).UID), sanitizeMermaidID(g.Node(e.Callee).UID)))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("    classDef regular fill:%s,stroke:#333\n", NodeColor))
	sb.WriteString(fmt.Sprintf("    classDef trunk fill:%s,stroke:#333,color:#fff\n", TrunkColor))
	sb.WriteString(fmt.Sprintf("    classDef leaf fill:%s,stroke:#333\n", LeafColor))

	return sb.String()
}

func writeGroupMermaid(sb *strings.Builder, g *graph.Graph, gid graph.GroupID, indent string) {
	grp := g.Group(gid)
	if grp == nil || grp.Removed() {
		return
	}

	sb.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s\"]\n", indent, sanitizeMermaidID(grp.UID), escapeMermaidLabel(grp.Label())))
	for _, id := range grp.Nodes {
		writeNodeMermaid(sb, g, id, indent+"    ")
	}
	for _, sub := range grp.Subgroups {
		writeGroupMermaid(sb, g, sub, indent+"    ")
	}
	sb.WriteString(indent + "end\n")
}

func writeNodeMermaid(sb *strings.Builder, g *graph.Graph, id graph.NodeID, indent string) {
	n := g.Node(id)
	class := "regular"
	switch {
	case n.IsTrunk:
		class = "trunk"
	case n.IsLeaf:
		class = "leaf"
	}
	sb.WriteString(fmt.Sprintf("%s%s[\"%s\"]:::%s\n", indent, sanitizeMermaidID(n.UID), escapeMermaidLabel(n.Label()), class))
}

func sanitizeMermaidID(s string) string {
	replacer := strings.NewReplacer(
		":", "_",
		"/", "_",
		".", "_",
		"-", "_",
		" ", "_",
	)
	result := replacer.Replace(s)
	if len(result) > 0 && (result[0] >= '0' && result[0] <= '9') {
		result = "n" + result
	}
	return result
}

func escapeMermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
