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

// Graph is the arena holding every Group, Node and Edge of one analysis.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use.
type Graph struct {
	nodes  []*Node
	groups []*Group
	files  []GroupID
	edges  []Edge
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make([]*Node, 0, 64),
		groups: make([]*Group, 0, 16),
		files:  make([]GroupID, 0, 8),
		edges:  make([]Edge, 0, 64),
	}
}

// Node returns the Node for id, or nil if id is out of range.
// Removed nodes are still returned; check Removed().
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Group returns the Group for id, or nil if id is out of range.
// Removed groups are still returned; check Removed().
func (g *Graph) Group(id GroupID) *Group {
	if id < 0 || int(id) >= len(g.groups) {
		return nil
	}
	return g.groups[id]
}

// Files returns the live File groups in insertion order.
func (g *Graph) Files() []GroupID {
	out := make([]GroupID, len(g.files))
	copy(out, g.files)
	return out
}

// Edges returns a copy of the edge list in creation order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	count := 0
	for _, n := range g.nodes {
		if !n.removed {
			count++
		}
	}
	return count
}

// AllNodes returns every live node in creation order, which is file order
// and, within a file, owner-before-children order.
func (g *Graph) AllNodes() []NodeID {
	out := make([]NodeID, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.removed {
			out = append(out, n.ID)
		}
	}
	return out
}

// AllGroups returns every live group, each file followed by its subgroups
// in pre-order.
func (g *Graph) AllGroups() []GroupID {
	var out []GroupID
	for _, fid := range g.files {
		out = append(out, g.Descendants(fid)...)
	}
	return out
}

// Descendants returns gid and all of its live subgroups in pre-order.
func (g *Graph) Descendants(gid GroupID) []GroupID {
	grp := g.Group(gid)
	if grp == nil || grp.removed {
		return nil
	}
	out := []GroupID{gid}
	for _, sub := range grp.Subgroups {
		out = append(out, g.Descendants(sub)...)
	}
	return out
}

// NodesUnder returns the live nodes owned by gid or any of its subgroups.
func (g *Graph) NodesUnder(gid GroupID) []NodeID {
	var out []NodeID
	for _, id := range g.Descendants(gid) {
		out = append(out, g.groups[id].Nodes...)
	}
	return out
}

// addFile creates a File group. File groups have no parent.
func (g *Graph) addFile(token, filePath string, importTokens []string) GroupID {
	id := GroupID(len(g.groups))
	g.groups = append(g.groups, &Group{
		ID:           id,
		UID:          stableUID("cluster_", filePath, 0, int(id)),
		Token:        token,
		Kind:         ast.NamespaceFile,
		DisplayType:  "File",
		FilePath:     filePath,
		Root:         NoNode,
		Parent:       NoGroup,
		ImportTokens: importTokens,
	})
	g.files = append(g.files, id)
	return id
}

// addGroup creates a namespace group owned by parent.
func (g *Graph) addGroup(parent GroupID, ns ast.Namespace) GroupID {
	owner := g.groups[parent]
	id := GroupID(len(g.groups))
	g.groups = append(g.groups, &Group{
		ID:            id,
		UID:           stableUID("cluster_", owner.Token+"."+ns.Token, ns.Line, int(id)),
		Token:         ns.Token,
		Kind:          ns.Kind,
		DisplayType:   ns.DisplayType,
		Line:          ns.Line,
		FilePath:      owner.FilePath,
		Root:          NoNode,
		Parent:        parent,
		ImportTokens:  ns.ImportTokens,
		InheritTokens: ns.Inherits,
	})
	owner.Subgroups = append(owner.Subgroups, id)
	return id
}

// addNode creates a node owned by parent, converting raw bindings into
// Variables. Owner bindings (`self`) resolve directly to parent.
func (g *Graph) addNode(parent GroupID, c ast.Callable) NodeID {
	owner := g.groups[parent]
	id := NodeID(len(g.nodes))

	variables := make([]Variable, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		v := Variable{Token: b.Token, Line: b.Line}
		switch b.Kind {
		case ast.BindingName:
			v.Target = NameTarget(b.Name)
		case ast.BindingCall:
			if b.Call == nil {
				v.Target = UnknownVariable()
			} else {
				v.Target = CallTarget(*b.Call)
			}
		case ast.BindingOwner:
			v.Target = GroupTarget(parent)
		default:
			v.Target = UnknownVariable()
		}
		variables = append(variables, v)
	}

	g.nodes = append(g.nodes, &Node{
		ID:            id,
		UID:           stableUID("node_", owner.FilePath+"::"+owner.Token+"."+c.Token, c.Line, int(id)),
		Token:         c.Token,
		Line:          c.Line,
		Calls:         c.Calls,
		Variables:     variables,
		Parent:        parent,
		ImportTokens:  c.ImportTokens,
		IsConstructor: c.IsConstructor,
		IsLeaf:        true,
		IsTrunk:       true,
	})
	owner.Nodes = append(owner.Nodes, id)
	return id
}

// FileOf returns the File group that ultimately owns a node.
func (g *Graph) FileOf(id NodeID) GroupID {
	n := g.Node(id)
	if n == nil {
		return NoGroup
	}
	gid := n.Parent
	for {
		grp := g.groups[gid]
		if grp.Parent == NoGroup {
			return gid
		}
		gid = grp.Parent
	}
}

// TokenWithOwnership returns "Owner.token" for nodes owned by a class or
// namespace and the bare token otherwise.
func (g *Graph) TokenWithOwnership(id NodeID) string {
	n := g.Node(id)
	if n == nil {
		return ""
	}
	parent := g.groups[n.Parent]
	if parent.Kind == ast.NamespaceClass || parent.Kind == ast.NamespaceGeneric {
		return parent.Token + "." + n.Token
	}
	return n.Token
}

// NamespaceOwnership returns the dotted chain of enclosing class tokens,
// outermost first. Empty for free functions.
func (g *Graph) NamespaceOwnership(id NodeID) string {
	n := g.Node(id)
	if n == nil {
		return ""
	}
	var parts []string
	for gid := n.Parent; gid != NoGroup; gid = g.groups[gid].Parent {
		grp := g.groups[gid]
		if grp.Kind != ast.NamespaceClass {
			break
		}
		parts = append([]string{grp.Token}, parts...)
	}
	return strings.Join(parts, ".")
}

// Name returns the fully qualified "file::Owner.token" name of a node.
func (g *Graph) Name(id NodeID) string {
	fid := g.FileOf(id)
	if fid == NoGroup {
		return ""
	}
	return g.groups[fid].Token + "::" + g.TokenWithOwnership(id)
}

// Constructor returns the first constructor node of a class group, or NoNode.
func (g *Graph) Constructor(gid GroupID) NodeID {
	grp := g.Group(gid)
	if grp == nil || grp.Kind != ast.NamespaceClass {
		return NoNode
	}
	for _, id := range grp.Nodes {
		if g.nodes[id].IsConstructor {
			return id
		}
	}
	return NoNode
}

// AddEdge records that caller's call site links to callee and updates the
// classification flags of both ends.
func (g *Graph) AddEdge(caller, callee NodeID, call ast.Call) {
	g.edges = append(g.edges, Edge{Caller: caller, Callee: callee, Call: call})
	g.nodes[caller].IsLeaf = false
	g.nodes[callee].IsTrunk = false
}

// Reclassify recomputes IsLeaf and IsTrunk from the current edge set.
func (g *Graph) Reclassify() {
	for _, n := range g.nodes {
		n.IsLeaf = true
		n.IsTrunk = true
	}
	for _, e := range g.edges {
		g.nodes[e.Caller].IsLeaf = false
		g.nodes[e.Callee].IsTrunk = false
	}
}

// RemoveNode detaches a node from its owning group.
func (g *Graph) RemoveNode(id NodeID) {
	n := g.Node(id)
	if n == nil || n.removed {
		return
	}
	n.removed = true

	owner := g.groups[n.Parent]
	owner.Nodes = removeID(owner.Nodes, id)
	if owner.Root == id {
		owner.Root = NoNode
	}
}

// RemoveGroup detaches a group (or file) from its parent. Everything it
// owns is marked removed with it.
func (g *Graph) RemoveGroup(id GroupID) {
	grp := g.Group(id)
	if grp == nil || grp.removed {
		return
	}

	if grp.Parent == NoGroup {
		g.files = removeID(g.files, id)
	} else {
		parent := g.groups[grp.Parent]
		parent.Subgroups = removeID(parent.Subgroups, id)
	}
	g.markRemoved(id)
}

func (g *Graph) markRemoved(id GroupID) {
	grp := g.groups[id]
	grp.removed = true
	for _, nid := range grp.Nodes {
		g.nodes[nid].removed = true
	}
	for _, sub := range grp.Subgroups {
		g.markRemoved(sub)
	}
}

// PruneEmptyGroups removes every group, files included, that no longer owns
// a node directly or through its subgroups. Returns the number removed.
func (g *Graph) PruneEmptyGroups() int {
	pruned := 0
	for _, fid := range g.Files() {
		pruned += g.pruneGroup(fid)
	}
	return pruned
}

// pruneGroup prunes bottom-up so a parent emptied by its children's removal
// is pruned as well.
func (g *Graph) pruneGroup(id GroupID) int {
	grp := g.groups[id]
	pruned := 0
	subs := make([]GroupID, len(grp.Subgroups))
	copy(subs, grp.Subgroups)
	for _, sub := range subs {
		pruned += g.pruneGroup(sub)
	}
	if len(grp.Nodes) == 0 && len(grp.Subgroups) == 0 {
		g.RemoveGroup(id)
		pruned++
	}
	return pruned
}

// dropDetachedEdges removes edges with a removed endpoint.
func (g *Graph) dropDetachedEdges() int {
	kept := g.edges[:0]
	for _, e := range g.edges {
		if g.nodes[e.Caller].removed || g.nodes[e.Callee].removed {
			continue
		}
		kept = append(kept, e)
	}
	dropped := len(g.edges) - len(kept)
	g.edges = kept
	return dropped
}

// removeNodes removes the given nodes and restores the graph invariants:
// edges only join live nodes, no group is empty and flags match the edges.
func (g *Graph) removeNodes(ids []NodeID) int {
	removed := 0
	for _, id := range ids {
		if n := g.Node(id); n != nil && !n.removed {
			g.RemoveNode(id)
			removed++
		}
	}
	g.dropDetachedEdges()
	g.PruneEmptyGroups()
	g.Reclassify()
	return removed
}

// SortedFiles returns the live File groups ordered by label.
func (g *Graph) SortedFiles() []GroupID {
	files := g.Files()
	sort.SliceStable(files, func(i, j int) bool {
		return g.groups[files[i]].Label() < g.groups[files[j]].Label()
	})
	return files
}

// SortedNodes returns the live nodes ordered by fully qualified name.
func (g *Graph) SortedNodes() []NodeID {
	nodes := g.AllNodes()
	names := g.names(nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return names[nodes[i]] < names[nodes[j]]
	})
	return nodes
}

// SortedEdges returns the edges ordered by caller name, then callee name.
func (g *Graph) SortedEdges() []Edge {
	edges := g.Edges()
	ids := make([]NodeID, 0, 2*len(edges))
	for _, e := range edges {
		ids = append(ids, e.Caller, e.Callee)
	}
	names := g.names(ids)
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if names[a.Caller] != names[b.Caller] {
			return names[a.Caller] < names[b.Caller]
		}
		return names[a.Callee] < names[b.Callee]
	})
	return edges
}

func (g *Graph) names(ids []NodeID) map[NodeID]string {
	names := make(map[NodeID]string, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = g.Name(id)
		}
	}
	return names
}

// removeID returns ids without the first occurrence of id, preserving order.
func removeID[T comparable](ids []T, id T) []T {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
