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
	"sort"
	"strings"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// LinkStatus is the outcome of linking one call site.
type LinkStatus int

const (
	// LinkDropped means no candidate was found; the call is likely external
	// or dynamic and is silently ignored.
	LinkDropped LinkStatus = iota

	// LinkResolved means the call links to exactly one node.
	LinkResolved

	// LinkExternal means a binding proved the callee lives outside the
	// analyzed corpus. No edge and no ambiguity report.
	LinkExternal

	// LinkAmbiguous means several nodes are equally plausible. The call is
	// reported and not linked.
	LinkAmbiguous
)

// linkStatusNames maps LinkStatus values to their string representations.
var linkStatusNames = map[LinkStatus]string{
	LinkDropped:   "dropped",
	LinkResolved:  "resolved",
	LinkExternal:  "external",
	LinkAmbiguous: "ambiguous",
}

// String returns the string representation of the LinkStatus.
func (s LinkStatus) String() string {
	if name, ok := linkStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Link is the outcome of linking one call site.
type Link struct {
	Status LinkStatus

	// Target is the callee when Status is LinkResolved, otherwise NoNode.
	Target NodeID

	// Candidates lists the competing nodes when Status is LinkAmbiguous.
	Candidates []NodeID
}

// VisibleVariables returns the bindings a call on line can see from inside
// node id, in lookup priority order.
//
// Description:
//
//	The node's own variables defined at or before line come first, most
//	recent first. Then, walking up the ownership chain, each enclosing
//	group contributes its root node's variables plus one binding per
//	subgroup and per non-root node, again most recent first. Groups with
//	no root node contribute nothing.
func (g *Graph) VisibleVariables(id NodeID, line int) []Variable {
	n := g.Node(id)
	if n == nil {
		return nil
	}

	visible := make([]Variable, 0, len(n.Variables))
	for _, v := range n.Variables {
		if v.Line <= line {
			visible = append(visible, v)
		}
	}
	sortByLineDesc(visible)

	for gid := n.Parent; gid != NoGroup; gid = g.groups[gid].Parent {
		visible = append(visible, g.groupVariables(gid)...)
	}
	return visible
}

// groupVariables returns the bindings a group exposes to code nested in it.
func (g *Graph) groupVariables(gid GroupID) []Variable {
	grp := g.groups[gid]
	if grp.Root == NoNode {
		return nil
	}

	root := g.nodes[grp.Root]
	vars := make([]Variable, 0, len(root.Variables)+len(grp.Subgroups)+len(grp.Nodes))
	vars = append(vars, root.Variables...)
	for _, sub := range grp.Subgroups {
		sg := g.groups[sub]
		vars = append(vars, Variable{Token: sg.Token, Line: sg.Line, Target: GroupTarget(sub)})
	}
	for _, nid := range grp.Nodes {
		if nid == grp.Root {
			continue
		}
		member := g.nodes[nid]
		vars = append(vars, Variable{Token: member.Token, Line: member.Line, Target: NodeTarget(nid)})
	}
	sortByLineDesc(vars)
	return vars
}

// sortByLineDesc orders variables most recent first, keeping source order
// among equal lines. All-zero lines are left as they are.
func sortByLineDesc(vars []Variable) {
	for _, v := range vars {
		if v.Line != 0 {
			sort.SliceStable(vars, func(i, j int) bool {
				return vars[i].Line > vars[j].Line
			})
			return
		}
	}
}

// variableMatch is the outcome of testing one call against one variable.
type variableMatch int

const (
	matchNone variableMatch = iota
	matchNode
	matchExternal
)

// matchVariable tests whether call can be resolved through v.
func (g *Graph) matchVariable(call ast.Call, v Variable) (variableMatch, NodeID) {
	if call.IsAttr() {
		if call.OwnerToken == v.Token {
			switch v.Target.Kind {
			case TargetGroup:
				grp := g.groups[v.Target.Group]
				for _, nid := range grp.Nodes {
					if g.nodes[nid].Token == call.Token {
						return matchNode, nid
					}
				}
				for _, bases := range grp.Inherits {
					for _, nid := range bases {
						if g.nodes[nid].Token == call.Token {
							return matchNode, nid
						}
					}
				}
			case TargetUnknownModule:
				return matchExternal, NoNode
			case TargetName, TargetCall, TargetNode, TargetUnknownVariable:
			}
		}

		if v.Target.Kind == TargetGroup && g.groups[v.Target.Group].Kind == ast.NamespaceGeneric {
			parts := strings.Split(call.OwnerToken, ".")
			if len(parts) != 2 || parts[0] != v.Token {
				return matchNone, NoNode
			}
			for _, nid := range g.NodesUnder(v.Target.Group) {
				if g.NamespaceOwnership(nid) == parts[1] && g.nodes[nid].Token == call.Token {
					return matchNode, nid
				}
			}
		}
		return matchNone, NoNode
	}

	if call.Token != v.Token {
		return matchNone, NoNode
	}
	switch v.Target.Kind {
	case TargetNode:
		return matchNode, v.Target.Node
	case TargetGroup:
		if ctor := g.Constructor(v.Target.Group); ctor != NoNode {
			return matchNode, ctor
		}
	case TargetName, TargetCall, TargetUnknownModule, TargetUnknownVariable:
	}
	return matchNone, NoNode
}

// LinkCall resolves one call site made from inside node caller.
//
// Description:
//
//	First the visible variables are tried in priority order; the first
//	match wins. A match on an UnknownModule binding ends the search as
//	external. UnknownVariable bindings never match.
//
//	Otherwise every node in the graph is a candidate when it shares the
//	callee token and:
//	  - for attribute calls, is not owned directly by the caller's file;
//	  - for bare calls, is a free function owned by a file, or is a
//	    constructor of a group whose token is the callee token.
//
//	One candidate links; several are ambiguous; none drops the call.
func (g *Graph) LinkCall(caller NodeID, call ast.Call) Link {
	for _, v := range g.VisibleVariables(caller, call.Line) {
		switch match, target := g.matchVariable(call, v); match {
		case matchNode:
			return Link{Status: LinkResolved, Target: target}
		case matchExternal:
			return Link{Status: LinkExternal, Target: NoNode}
		case matchNone:
		}
	}

	callerFile := g.FileOf(caller)
	var candidates []NodeID
	for _, nid := range g.AllNodes() {
		n := g.nodes[nid]
		parent := g.groups[n.Parent]
		if call.IsAttr() {
			if n.Token == call.Token && n.Parent != callerFile {
				candidates = append(candidates, nid)
			}
			continue
		}
		if n.Token == call.Token && parent.Kind == ast.NamespaceFile {
			candidates = append(candidates, nid)
		} else if parent.Token == call.Token && n.IsConstructor {
			candidates = append(candidates, nid)
		}
	}

	switch len(candidates) {
	case 0:
		return Link{Status: LinkDropped, Target: NoNode}
	case 1:
		return Link{Status: LinkResolved, Target: candidates[0]}
	default:
		return Link{Status: LinkAmbiguous, Target: NoNode, Candidates: candidates}
	}
}

// AssemblyReport summarizes a linking pass.
type AssemblyReport struct {
	// Ambiguous lists every call site left unlinked for having several candidates.
	Ambiguous []AmbiguousCall

	// External counts call sites resolved to an external module.
	External int

	// Dropped counts call sites with no candidate.
	Dropped int
}

// Assemble links every call site of every node, adding one edge per
// resolved call site. Duplicate caller/callee pairs from distinct call
// sites are kept.
func Assemble(g *Graph) AssemblyReport {
	var report AssemblyReport
	for _, caller := range g.AllNodes() {
		for _, call := range g.nodes[caller].Calls {
			link := g.LinkCall(caller, call)
			switch link.Status {
			case LinkResolved:
				g.AddEdge(caller, link.Target, call)
			case LinkAmbiguous:
				report.Ambiguous = append(report.Ambiguous, AmbiguousCall{
					Caller:     caller,
					Call:       call,
					Candidates: link.Candidates,
				})
			case LinkExternal:
				report.External++
			case LinkDropped:
				report.Dropped++
			}
		}
	}
	return report
}
