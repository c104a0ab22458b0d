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

// ResolveBindings rewrites every unresolved Variable target.
//
// Description:
//
//	TargetName (an import path) resolves to the first node, then the first
//	group, whose import tokens contain it, searching file by file. With no
//	match it becomes UnknownModule.
//
//	TargetCall resolves to the last group whose token equals the callee
//	(`x = Foo()` binds x to class Foo). Attribute calls that are not
//	provable constructors, and calls naming no group, become
//	UnknownVariable.
//
//	Resolved targets pass through unchanged, so after this runs every
//	target is a Node, a Group or a sentinel.
func ResolveBindings(g *Graph) {
	r := newBindingResolver(g)
	for _, id := range g.AllNodes() {
		n := g.Node(id)
		for i := range n.Variables {
			n.Variables[i].Target = r.resolve(n.Variables[i].Target)
		}
	}
}

// bindingResolver holds the lookup order used while resolving.
type bindingResolver struct {
	g     *Graph
	files []GroupID
}

func newBindingResolver(g *Graph) *bindingResolver {
	return &bindingResolver{g: g, files: g.Files()}
}

func (r *bindingResolver) resolve(t Target) Target {
	switch t.Kind {
	case TargetName:
		return r.resolveName(t.Name)
	case TargetCall:
		if t.Call == nil {
			return UnknownVariable()
		}
		if t.Call.IsAttr() && !t.Call.DefiniteConstructor {
			return UnknownVariable()
		}
		return r.resolveConstructor(t.Call.Token)
	case TargetNode, TargetGroup, TargetUnknownModule, TargetUnknownVariable:
		return t
	default:
		return UnknownVariable()
	}
}

func (r *bindingResolver) resolveName(name string) Target {
	for _, fid := range r.files {
		for _, nid := range r.g.NodesUnder(fid) {
			if containsString(r.g.Node(nid).ImportTokens, name) {
				return NodeTarget(nid)
			}
		}
		for _, gid := range r.g.Descendants(fid) {
			if containsString(r.g.Group(gid).ImportTokens, name) {
				return GroupTarget(gid)
			}
		}
	}
	return UnknownModule()
}

func (r *bindingResolver) resolveConstructor(token string) Target {
	found := NoGroup
	for _, fid := range r.files {
		for _, gid := range r.g.Descendants(fid) {
			if r.g.Group(gid).Token == token {
				found = gid
			}
		}
	}
	if found == NoGroup {
		return UnknownVariable()
	}
	return GroupTarget(found)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
