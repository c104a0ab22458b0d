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
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/callflow/services/flow/graph"
)

// JSONNode is one node of the JSON graph document.
type JSONNode struct {
	UID   string `json:"uid"`
	Label string `json:"label"`
	Name  string `json:"name"`
}

// JSONEdge is one edge of the JSON graph document.
type JSONEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Directed bool   `json:"directed"`
}

// JSONGraph is the body of the JSON graph document. Nodes are keyed by UID.
type JSONGraph struct {
	Directed bool                `json:"directed"`
	Nodes    map[string]JSONNode `json:"nodes"`
	Edges    []JSONEdge          `json:"edges"`
}

// JSONDocument is the top-level JSON output: {"graph": {...}}.
type JSONDocument struct {
	Graph JSONGraph `json:"graph"`
}

// BuildJSONDocument converts a graph into its JSON document form.
func BuildJSONDocument(g *graph.Graph) JSONDocument {
	doc := JSONDocument{Graph: JSONGraph{
		Directed: true,
		Nodes:    make(map[string]JSONNode),
		Edges:    make([]JSONEdge, 0, g.EdgeCount()),
	}}

	for _, id := range g.SortedNodes() {
		n := g.Node(id)
		doc.Graph.Nodes[n.UID] = JSONNode{
			UID:   n.UID,
			Label: n.Label(),
			Name:  g.Name(id),
		}
	}
	for _, e := range g.SortedEdges() {
		doc.Graph.Edges = append(doc.Graph.Edges, JSONEdge{
			Source:   g.Node(e.Caller).UID,
			Target:   g.Node(e.Callee).UID,
			Directed: true,
		})
	}
	return doc
}

// generateJSON creates the JSON graph document.
func (r *GraphRenderer) generateJSON(g *graph.Graph) (string, error) {
	data, err := json.Marshal(BuildJSONDocument(g))
	if err != nil {
		return "", fmt.Errorf("marshaling graph: %w", err)
	}
	return string(data), nil
}
