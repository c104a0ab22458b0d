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
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// NodeID addresses a Node in its Graph arena.
type NodeID int

// GroupID addresses a Group in its Graph arena.
type GroupID int

const (
	// NoNode marks an absent Node reference (e.g. a Group without a root).
	NoNode NodeID = -1

	// NoGroup marks an absent Group reference (the parent of a File group).
	NoGroup GroupID = -1
)

// TargetKind identifies what a Variable currently points to.
type TargetKind int

const (
	// TargetName is an unresolved import path such as "pkg.mod.func".
	TargetName TargetKind = iota

	// TargetCall is the unresolved result of a call (`x = Foo()`).
	TargetCall

	// TargetNode is a resolved Node.
	TargetNode

	// TargetGroup is a resolved Group.
	TargetGroup

	// TargetUnknownModule marks a binding to something outside the analyzed
	// corpus, such as a third-party import.
	TargetUnknownModule

	// TargetUnknownVariable marks a binding that could not be classified.
	TargetUnknownVariable
)

// targetKindNames maps TargetKind values to their string representations.
var targetKindNames = map[TargetKind]string{
	TargetName:            "name",
	TargetCall:            "call",
	TargetNode:            "node",
	TargetGroup:           "group",
	TargetUnknownModule:   "UNKNOWN_MODULE",
	TargetUnknownVariable: "UNKNOWN_VARIABLE",
}

// String returns the string representation of the TargetKind.
func (k TargetKind) String() string {
	if name, ok := targetKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsResolved reports whether the kind is terminal: a Node, a Group or a sentinel.
func (k TargetKind) IsResolved() bool {
	switch k {
	case TargetNode, TargetGroup, TargetUnknownModule, TargetUnknownVariable:
		return true
	default:
		return false
	}
}

// IsSentinel reports whether the kind is one of the two unresolved markers.
func (k TargetKind) IsSentinel() bool {
	return k == TargetUnknownModule || k == TargetUnknownVariable
}

// Target is what a Variable is bound to.
//
// Description:
//
//	A tagged union selected by Kind. Only the field matching Kind is
//	meaningful: Name for TargetName, Call for TargetCall, Node for
//	TargetNode and Group for TargetGroup. Sentinels carry no payload.
//
// Resolution is monotonic: a Target starts as TargetName or TargetCall and
// is rewritten at most once into a resolved kind.
type Target struct {
	Kind  TargetKind
	Name  string
	Call  *ast.Call
	Node  NodeID
	Group GroupID
}

// NameTarget returns an unresolved import-path target.
func NameTarget(name string) Target {
	return Target{Kind: TargetName, Name: name, Node: NoNode, Group: NoGroup}
}

// CallTarget returns an unresolved call-result target.
func CallTarget(call ast.Call) Target {
	return Target{Kind: TargetCall, Call: &call, Node: NoNode, Group: NoGroup}
}

// NodeTarget returns a target resolved to a Node.
func NodeTarget(id NodeID) Target {
	return Target{Kind: TargetNode, Node: id, Group: NoGroup}
}

// GroupTarget returns a target resolved to a Group.
func GroupTarget(id GroupID) Target {
	return Target{Kind: TargetGroup, Node: NoNode, Group: id}
}

// UnknownModule returns the external-binding sentinel.
func UnknownModule() Target {
	return Target{Kind: TargetUnknownModule, Node: NoNode, Group: NoGroup}
}

// UnknownVariable returns the unclassifiable-binding sentinel.
func UnknownVariable() Target {
	return Target{Kind: TargetUnknownVariable, Node: NoNode, Group: NoGroup}
}

// Variable binds a name, visible from Line onward, to a Target.
type Variable struct {
	Token  string
	Line   int
	Target Target
}

// Node is a callable unit: a function, method or a synthetic root holding
// namespace-level code.
//
// IsLeaf and IsTrunk start true. AddEdge clears IsLeaf on the caller and
// IsTrunk on the callee.
type Node struct {
	ID            NodeID
	UID           string
	Token         string
	Line          int
	Calls         []ast.Call
	Variables     []Variable
	Parent        GroupID
	ImportTokens  []string
	IsConstructor bool
	IsLeaf        bool
	IsTrunk       bool

	removed bool
}

// Label renders the node the way it is displayed: "12: token()".
func (n *Node) Label() string {
	return fmt.Sprintf("%d: %s()", n.Line, n.Token)
}

// Removed reports whether a transform has detached the node.
func (n *Node) Removed() bool {
	return n.removed
}

// Group is a namespace: a file, a class or a generic namespace.
//
// Inherits holds, for each base token in InheritTokens that resolved, the
// member Nodes of the Group(s) carrying that token. It is filled in by
// ResolveInheritance and never owns the Nodes it lists.
type Group struct {
	ID            GroupID
	UID           string
	Token         string
	Kind          ast.NamespaceKind
	DisplayType   string
	Line          int
	FilePath      string
	Nodes         []NodeID
	Root          NodeID
	Subgroups     []GroupID
	Parent        GroupID
	ImportTokens  []string
	InheritTokens []string
	Inherits      [][]NodeID

	removed bool
}

// Label renders the group the way it is displayed: "Class: Foo".
func (g *Group) Label() string {
	return g.DisplayType + ": " + g.Token
}

// Removed reports whether a transform has detached the group.
func (g *Group) Removed() bool {
	return g.removed
}

// Edge is a resolved call: the caller contains Call, which links to Callee.
type Edge struct {
	Caller NodeID
	Callee NodeID
	Call   ast.Call
}

// stableUID derives a short identifier from the entity's identity, so the
// same input produces the same output file.
func stableUID(prefix, name string, line int, id int) string {
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name+"\x00"+strconv.Itoa(line)+"\x00"+strconv.Itoa(id)))
	return prefix + sum.String()[:8]
}

// UIDHash returns the numeric hash embedded in a node UID, used to pick a
// stable edge colour. Returns 0 for malformed UIDs.
func UIDHash(uid string) uint64 {
	for i := len(uid) - 1; i >= 0; i-- {
		if uid[i] == '_' {
			v, err := strconv.ParseUint(uid[i+1:], 16, 64)
			if err != nil {
				return 0
			}
			return v
		}
	}
	return 0
}
