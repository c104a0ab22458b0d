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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// buildPython parses the given files with the Python front end and builds
// a graph from them in path order.
func buildPython(t *testing.T, files map[string]string) *BuildResult {
	t.Helper()

	frontend := ast.NewPythonFrontend()
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	trees := make([]*ast.SyntaxTree, 0, len(paths))
	for _, path := range paths {
		tree, err := frontend.Parse(context.Background(), []byte(files[path]), path)
		require.NoError(t, err, "parsing %s", path)
		trees = append(trees, tree)
	}

	result, err := NewBuilder(frontend).Build(context.Background(), trees)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// nodeNamed returns the live node with the given fully qualified name.
func nodeNamed(t *testing.T, g *Graph, name string) *Node {
	t.Helper()
	for _, id := range g.AllNodes() {
		if g.Name(id) == name {
			return g.Node(id)
		}
	}
	t.Fatalf("node %q not found", name)
	return nil
}

// groupNamed returns the live group with the given token.
func groupNamed(t *testing.T, g *Graph, token string) *Group {
	t.Helper()
	for _, id := range g.AllGroups() {
		if g.Group(id).Token == token {
			return g.Group(id)
		}
	}
	t.Fatalf("group %q not found", token)
	return nil
}

// edgeNames renders edges as "caller -> callee" in sorted order.
func edgeNames(g *Graph) []string {
	edges := g.SortedEdges()
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, g.Name(e.Caller)+" -> "+g.Name(e.Callee))
	}
	return out
}

// nodeNames renders live nodes by name in sorted order.
func nodeNames(g *Graph) []string {
	nodes := g.SortedNodes()
	out := make([]string, 0, len(nodes))
	for _, id := range nodes {
		out = append(out, g.Name(id))
	}
	return out
}

// assertClassification checks flags against the current edge set.
func assertClassification(t *testing.T, g *Graph) {
	t.Helper()
	callers := make(map[NodeID]bool)
	callees := make(map[NodeID]bool)
	for _, e := range g.Edges() {
		callers[e.Caller] = true
		callees[e.Callee] = true
	}
	for _, id := range g.AllNodes() {
		n := g.Node(id)
		require.Equal(t, !callers[id], n.IsLeaf, "IsLeaf of %s", g.Name(id))
		require.Equal(t, !callees[id], n.IsTrunk, "IsTrunk of %s", g.Name(id))
	}
}

// assertOwnership checks that every live node and group has exactly one
// live owner that lists it, and that ownership is acyclic.
func assertOwnership(t *testing.T, g *Graph) {
	t.Helper()
	for _, id := range g.AllNodes() {
		n := g.Node(id)
		owner := g.Group(n.Parent)
		require.NotNil(t, owner)
		require.False(t, owner.Removed(), "owner of %s removed", g.Name(id))
		count := 0
		for _, nid := range owner.Nodes {
			if nid == id {
				count++
			}
		}
		require.Equal(t, 1, count, "node %s listed %d times", g.Name(id), count)
	}

	for _, id := range g.AllGroups() {
		grp := g.Group(id)
		steps := 0
		for gid := grp.Parent; gid != NoGroup; gid = g.Group(gid).Parent {
			steps++
			require.LessOrEqual(t, steps, len(g.groups), "ownership cycle at %s", grp.Token)
		}
		if grp.Kind == ast.NamespaceFile {
			require.Equal(t, NoGroup, grp.Parent)
			continue
		}
		require.NotEqual(t, NoGroup, grp.Parent, "group %s has no parent", grp.Token)
		require.Contains(t, g.Group(grp.Parent).Subgroups, id)
	}
}

// fakeNamespace is a hand-built namespace for the fake front end.
type fakeNamespace struct {
	header    ast.Namespace
	callables []ast.Callable
	root      *ast.Callable
	children  []*fakeNamespace
}

func (f *fakeNamespace) Line() int { return f.header.Line }

type fakeCallable struct{ c ast.Callable }

func (f *fakeCallable) Line() int { return f.c.Line }

type fakeRoot struct{ c ast.Callable }

func (f *fakeRoot) Line() int { return 0 }

// fakeFrontend replays fakeNamespace trees, for shapes Python cannot
// produce such as generic namespaces.
type fakeFrontend struct{}

func (fakeFrontend) Language() string        { return "fake" }
func (fakeFrontend) Extensions() []string    { return []string{"fake"} }
func (fakeFrontend) CheckEnvironment() error { return nil }

func (fakeFrontend) Parse(context.Context, []byte, string) (*ast.SyntaxTree, error) {
	return nil, ast.ErrUnsupportedLanguage
}

func (fakeFrontend) SplitNamespaces(fragment ast.Fragment) (namespaces, callables, body []ast.Fragment) {
	ns, ok := fragment.(*fakeNamespace)
	if !ok {
		return nil, nil, nil
	}
	for _, child := range ns.children {
		namespaces = append(namespaces, child)
	}
	for _, c := range ns.callables {
		callables = append(callables, &fakeCallable{c: c})
	}
	if ns.root != nil {
		body = append(body, &fakeRoot{c: *ns.root})
	}
	return namespaces, callables, body
}

func (fakeFrontend) MakeCallables(fragment ast.Fragment, _ ast.Scope) []ast.Callable {
	if c, ok := fragment.(*fakeCallable); ok {
		return []ast.Callable{c.c}
	}
	return nil
}

func (fakeFrontend) MakeRoot(body []ast.Fragment, _ ast.Scope) (ast.Callable, bool) {
	for _, frag := range body {
		if r, ok := frag.(*fakeRoot); ok {
			return r.c, true
		}
	}
	return ast.Callable{}, false
}

func (fakeFrontend) MakeNamespace(fragment ast.Fragment, _ ast.Scope) (ast.Namespace, error) {
	ns, ok := fragment.(*fakeNamespace)
	if !ok {
		return ast.Namespace{}, ast.ErrInvalidFragment
	}
	return ns.header, nil
}

func (fakeFrontend) ImportTokens(filePath string) []string {
	return []string{ast.FileToken(filePath)}
}
