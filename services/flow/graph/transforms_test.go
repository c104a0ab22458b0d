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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainSource = `def f():
    g()

def g():
    k()

def k():
    pass

def h():
    f()
`

func TestLimitNamespaces_ExcludeClass(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": classSource})
	g := result.Graph
	c := groupNamed(t, g, "C")
	file := g.Group(c.Parent)

	missing := g.LimitNamespaces(context.Background(), []string{"C", "Nope"}, nil)

	assert.Equal(t, []string{"Nope"}, missing)
	assert.True(t, c.Removed())
	assert.Empty(t, file.Subgroups)
	assert.NotContains(t, nodeNames(g), "app::C.m")
	assert.NotContains(t, nodeNames(g), "app::C.__init__")
	assert.Contains(t, nodeNames(g), "app::main")
	assert.Zero(t, g.EdgeCount(), "edges into C are dropped")
	assertClassification(t, g)
	assertOwnership(t, g)
}

func TestLimitNamespaces_IncludeOnly(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py":   classSource,
		"other.py": "def lonely():\n    pass\n",
	})
	g := result.Graph

	missing := g.LimitNamespaces(context.Background(), nil, []string{"C"})

	assert.Empty(t, missing)
	assert.Equal(t, []string{"app::C.__init__", "app::C.m"}, nodeNames(g))
	require.Len(t, g.Files(), 1, "other.py is emptied and pruned")
	assertOwnership(t, g)
}

func TestLimitNamespaces_IncludeAncestorKeepsNested(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `class Outer:
    class Inner:
        def deep(self):
            pass

    def shallow(self):
        pass
`,
	})
	g := result.Graph

	g.LimitNamespaces(context.Background(), nil, []string{"Outer"})

	assert.Equal(t, []string{"app::Inner.deep", "app::Outer.shallow"}, nodeNames(g))
}

func TestLimitFunctions(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": chainSource})
	g := result.Graph

	missing := g.LimitFunctions(context.Background(), []string{"k", "zzz"}, nil)

	assert.Equal(t, []string{"zzz"}, missing)
	assert.NotContains(t, nodeNames(g), "app::k")
	assert.Equal(t, []string{"app::f -> app::g", "app::h -> app::f"}, edgeNames(g))
	assert.True(t, nodeNamed(t, g, "app::g").IsLeaf, "g no longer calls anything")
	assertClassification(t, g)

	g.LimitFunctions(context.Background(), nil, []string{"f", "g"})
	assert.Equal(t, []string{"app::f", "app::g"}, nodeNames(g))
}

func TestTrim(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py":   twoFunctionsSource,
		"other.py": "def lonely():\n    pass\n",
	})
	g := result.Graph

	removed := g.Trim(context.Background())

	assert.Equal(t, 3, removed, "both roots and lonely")
	assert.Equal(t, []string{"app::a", "app::b"}, nodeNames(g))
	require.Len(t, g.Files(), 1)
	assertOwnership(t, g)
	assertClassification(t, g)
}

func TestTrim_Idempotent(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": classSource + "\ndef unused():\n    pass\n"})
	g := result.Graph

	g.Trim(context.Background())
	nodes := nodeNames(g)
	edges := edgeNames(g)
	groups := len(g.AllGroups())

	assert.Zero(t, g.Trim(context.Background()))
	assert.Equal(t, nodes, nodeNames(g))
	assert.Equal(t, edges, edgeNames(g))
	assert.Equal(t, groups, len(g.AllGroups()))
}

func TestSubset_Downstream(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": chainSource})
	g := result.Graph

	target, err := g.Subset(context.Background(), SubsetParams{Target: "f", DownstreamDepth: 1})
	require.NoError(t, err)

	assert.Equal(t, "app::f", g.Name(target))
	assert.Equal(t, []string{"app::f", "app::g"}, nodeNames(g))
	assert.Equal(t, []string{"app::f -> app::g"}, edgeNames(g))
	assert.True(t, g.Node(target).IsTrunk, "h was removed")
	assertClassification(t, g)
	assertOwnership(t, g)
}

func TestSubset_Upstream(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": chainSource})
	g := result.Graph

	_, err := g.Subset(context.Background(), SubsetParams{Target: "app::g", UpstreamDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"app::f", "app::g", "app::h"}, nodeNames(g))
	assert.Equal(t, []string{"app::f -> app::g", "app::h -> app::f"}, edgeNames(g))
}

func TestSubset_BothDirections(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": chainSource})
	g := result.Graph

	_, err := g.Subset(context.Background(), SubsetParams{Target: "g", UpstreamDepth: 1, DownstreamDepth: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"app::f", "app::g", "app::k"}, nodeNames(g))
}

func TestSubset_Errors(t *testing.T) {
	tests := []struct {
		name    string
		params  SubsetParams
		wantErr error
	}{
		{"both depths zero", SubsetParams{Target: "f"}, ErrInvalidDepth},
		{"negative upstream", SubsetParams{Target: "f", UpstreamDepth: -1, DownstreamDepth: 1}, ErrInvalidDepth},
		{"negative downstream", SubsetParams{Target: "f", DownstreamDepth: -2}, ErrInvalidDepth},
		{"missing target", SubsetParams{Target: "nope", DownstreamDepth: 1}, ErrTargetNotFound},
		{"ambiguous target", SubsetParams{Target: "helper", DownstreamDepth: 1}, ErrAmbiguousTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildPython(t, map[string]string{
				"app.py":   chainSource,
				"a.py":     "def helper():\n    pass\n",
				"b.py":     "def helper():\n    pass\n",
				"other.py": "class K:\n    def helper(self):\n        pass\n",
			})
			g := result.Graph
			before := nodeNames(g)

			_, err := g.Subset(context.Background(), tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, before, nodeNames(g), "graph unchanged on error")
		})
	}
}

func TestFindTarget_Qualified(t *testing.T) {
	result := buildPython(t, map[string]string{
		"a.py":     "def helper():\n    pass\n",
		"other.py": "class K:\n    def helper(self):\n        pass\n",
	})
	g := result.Graph

	_, err := g.FindTarget("helper")
	assert.True(t, errors.Is(err, ErrAmbiguousTarget))

	id, err := g.FindTarget("K.helper")
	require.NoError(t, err)
	assert.Equal(t, "other::K.helper", g.Name(id))

	id, err = g.FindTarget("a::helper")
	require.NoError(t, err)
	assert.Equal(t, "a::helper", g.Name(id))
}

func TestTransforms_EmptyResult(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": "def lonely():\n    pass\n"})
	g := result.Graph

	g.Trim(context.Background())

	assert.Zero(t, g.NodeCount())
	assert.Empty(t, g.Files())
	assert.Empty(t, g.SortedEdges())
}
