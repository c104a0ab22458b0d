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

// ResolveInheritance links each group's base tokens to the member nodes of
// the groups carrying those tokens, and gives every node of the subclass a
// binding to each inherited node.
//
// Description:
//
//	Builds a token -> nodes map over every group (files included). Groups
//	sharing a token are merged into one entry; their tokens are returned so
//	the caller can warn about the collision. Base tokens with no entry are
//	dropped.
//
//	Each inherited binding is named after the base node's token and stamped
//	with the base node's own definition line, not the subclass's. A subclass
//	override defined above the base method can therefore lose precedence to
//	the inherited binding.
//
// Outputs:
//
//	[]string - Group tokens seen more than once, in discovery order.
func ResolveInheritance(g *Graph) []string {
	groups := g.AllGroups()

	byToken := make(map[string][]NodeID, len(groups))
	var duplicates []string
	for _, gid := range groups {
		grp := g.Group(gid)
		if _, seen := byToken[grp.Token]; seen {
			duplicates = append(duplicates, grp.Token)
		}
		byToken[grp.Token] = append(byToken[grp.Token], grp.Nodes...)
	}

	for _, gid := range groups {
		grp := g.Group(gid)
		grp.Inherits = nil
		for _, token := range grp.InheritTokens {
			bases := byToken[token]
			if len(bases) == 0 {
				continue
			}
			grp.Inherits = append(grp.Inherits, bases)
			for _, nid := range grp.Nodes {
				n := g.Node(nid)
				for _, base := range bases {
					b := g.Node(base)
					n.Variables = append(n.Variables, Variable{
						Token:  b.Token,
						Line:   b.Line,
						Target: NodeTarget(base),
					})
				}
			}
		}
	}
	return duplicates
}
