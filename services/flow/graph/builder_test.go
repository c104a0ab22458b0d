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

	"github.com/AleutianAI/callflow/services/flow/ast"
)

const twoFunctionsSource = `def a():
    b()

def b():
    pass
`

const classSource = `class C:
    def __init__(self):
        pass

    def m(self):
        pass

def main():
    x = C()
    x.m()
`

func TestBuild_TwoFunctions(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": twoFunctionsSource})
	g := result.Graph

	assert.Equal(t, []string{"app::a -> app::b"}, edgeNames(g))

	a := nodeNamed(t, g, "app::a")
	b := nodeNamed(t, g, "app::b")
	assert.True(t, a.IsTrunk)
	assert.False(t, a.IsLeaf)
	assert.False(t, b.IsTrunk)
	assert.True(t, b.IsLeaf)

	assert.Equal(t, 1, result.Stats.FilesProcessed)
	assert.Equal(t, 3, result.Stats.NodesCreated, "a, b and (global)")
	assert.Equal(t, 1, result.Stats.EdgesCreated)
	assertClassification(t, g)
	assertOwnership(t, g)
}

func TestBuild_NamespaceTree(t *testing.T) {
	result := buildPython(t, map[string]string{"pkg/app.py": classSource})
	g := result.Graph

	files := g.Files()
	require.Len(t, files, 1)
	file := g.Group(files[0])
	assert.Equal(t, "app", file.Token)
	assert.Equal(t, "File: app", file.Label())
	assert.Equal(t, "pkg/app.py", file.FilePath)
	assert.Equal(t, []string{"app"}, file.ImportTokens)
	require.NotEqual(t, NoNode, file.Root)
	assert.Equal(t, ast.RootToken, g.Node(file.Root).Token)
	assert.Equal(t, 0, g.Node(file.Root).Line)

	c := groupNamed(t, g, "C")
	assert.Equal(t, ast.NamespaceClass, c.Kind)
	assert.Equal(t, "Class: C", c.Label())
	assert.Equal(t, file.ID, c.Parent)
	assert.Equal(t, NoNode, c.Root, "classes have no root node")
	assert.Equal(t, []string{"app.C"}, c.ImportTokens)

	ctor := g.Constructor(c.ID)
	require.NotEqual(t, NoNode, ctor)
	assert.Equal(t, "__init__", g.Node(ctor).Token)
	assert.Equal(t, "C.m", g.TokenWithOwnership(nodeNamed(t, g, "app::C.m").ID))
	assert.Equal(t, "2: __init__()", g.Node(ctor).Label())

	assertOwnership(t, g)
}

func TestBuild_ConstructorBinding(t *testing.T) {
	result := buildPython(t, map[string]string{"app.py": classSource})
	g := result.Graph

	main := nodeNamed(t, g, "app::main")
	var x *Variable
	for i := range main.Variables {
		if main.Variables[i].Token == "x" {
			x = &main.Variables[i]
		}
	}
	require.NotNil(t, x, "expected binding for x")
	require.Equal(t, TargetGroup, x.Target.Kind)
	assert.Equal(t, "C", g.Group(x.Target.Group).Token)
	assert.Equal(t, "x->C", g.DescribeVariable(*x))

	assert.Equal(t, []string{
		"app::main -> app::C.__init__",
		"app::main -> app::C.m",
	}, edgeNames(g))
	assertClassification(t, g)
}

func TestBuild_ImportResolution(t *testing.T) {
	result := buildPython(t, map[string]string{
		"util.py": `def helper():
    pass
`,
		"main.py": `from util import helper
import util
import os

def main():
    helper()
    util.helper()
    os.getcwd()
`,
	})
	g := result.Graph

	root := g.Node(g.Group(groupNamed(t, g, "main").ID).Root)
	targets := make(map[string]TargetKind)
	for _, v := range root.Variables {
		targets[v.Token] = v.Target.Kind
	}
	assert.Equal(t, TargetNode, targets["helper"])
	assert.Equal(t, TargetGroup, targets["util"])
	assert.Equal(t, TargetUnknownModule, targets["os"])

	// two call sites, two edges
	assert.Equal(t, []string{
		"main::main -> util::helper",
		"main::main -> util::helper",
	}, edgeNames(g))
	assert.Equal(t, 1, result.Stats.ExternalCalls)
	assert.Empty(t, result.Ambiguous)
}

func TestBuild_AmbiguousCall(t *testing.T) {
	result := buildPython(t, map[string]string{
		"a.py":    "def helper():\n    pass\n",
		"b.py":    "def helper():\n    pass\n",
		"main.py": "def main():\n    helper()\n",
	})
	g := result.Graph

	assert.Zero(t, g.EdgeCount())
	require.Len(t, result.Ambiguous, 1)
	assert.Len(t, result.Ambiguous[0].Candidates, 2)
	assert.Equal(t, "main::main", g.Name(result.Ambiguous[0].Caller))
	assert.Equal(t, []string{"helper()"}, result.AmbiguousCallStrings())
	assert.Equal(t, 1, result.Stats.AmbiguousCalls)
}

func TestBuild_BindingTotality(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `import requests
from .local import thing

class Widget:
    def __init__(self):
        pass

def f():
    a = Widget()
    b = Missing()
    c = obj.build()
    d = requests.get()
`,
	})
	g := result.Graph

	for _, id := range g.AllNodes() {
		for _, v := range g.Node(id).Variables {
			assert.True(t, v.Target.Kind.IsResolved(), "%s in %s is %s", v.Token, g.Name(id), v.Target.Kind)
		}
	}

	f := nodeNamed(t, g, "app::f")
	kinds := make(map[string]TargetKind)
	for _, v := range f.Variables {
		kinds[v.Token] = v.Target.Kind
	}
	assert.Equal(t, TargetGroup, kinds["a"])
	assert.Equal(t, TargetUnknownVariable, kinds["b"])
	assert.Equal(t, TargetUnknownVariable, kinds["c"])
	assert.Equal(t, TargetUnknownVariable, kinds["d"])
}

func TestBuild_Determinism(t *testing.T) {
	files := map[string]string{
		"a.py":    "def helper():\n    pass\n\ndef run():\n    helper()\n",
		"b.py":    "def helper():\n    pass\n",
		"main.py": "import a\n\ndef main():\n    a.run()\n    helper()\n",
	}

	first := buildPython(t, files)
	second := buildPython(t, files)

	assert.Equal(t, edgeNames(first.Graph), edgeNames(second.Graph))
	assert.Equal(t, first.AmbiguousCallStrings(), second.AmbiguousCallStrings())

	for _, id := range first.Graph.AllNodes() {
		assert.Equal(t, first.Graph.Node(id).UID, second.Graph.Node(id).UID)
	}
}

func TestBuild_InheritedMethods(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `class Base:
    def run(self):
        pass

    def helper(self):
        pass

class Child(Base):
    def go(self):
        self.run()
        helper()
`,
	})
	g := result.Graph

	child := groupNamed(t, g, "Child")
	require.Len(t, child.Inherits, 1)
	assert.Len(t, child.Inherits[0], 2)

	assert.Equal(t, []string{
		"app::Child.go -> app::Base.helper",
		"app::Child.go -> app::Base.run",
	}, edgeNames(g))
}

// Inherited bindings carry the base method's line. When the base class is
// defined below the call, the bare call cannot see the binding and is
// dropped, while the attribute call still resolves through the class.
func TestResolveInheritance_LineStampFromBaseDefinition(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `class Child(Base):
    def go(self):
        helper()
        self.helper()

class Base:
    def helper(self):
        pass
`,
	})
	g := result.Graph

	goNode := nodeNamed(t, g, "app::Child.go")
	var inherited *Variable
	for i := range goNode.Variables {
		if goNode.Variables[i].Token == "helper" {
			inherited = &goNode.Variables[i]
		}
	}
	require.NotNil(t, inherited)
	assert.Equal(t, 7, inherited.Line, "stamped with Base.helper's definition line")
	assert.Equal(t, TargetNode, inherited.Target.Kind)

	assert.Equal(t, []string{"app::Child.go -> app::Base.helper"}, edgeNames(g))
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, 4, g.Edges()[0].Call.Line, "only self.helper() on line 4 links")
}

func TestResolveInheritance_DuplicateGroupNames(t *testing.T) {
	result := buildPython(t, map[string]string{
		"a.py": "class Shared:\n    def x(self):\n        pass\n",
		"b.py": "class Shared:\n    def y(self):\n        pass\n",
	})
	assert.Equal(t, 1, result.Stats.DuplicateGroupNames)
}

func TestBuild_GenericNamespaceMember(t *testing.T) {
	inner := &fakeNamespace{
		header: ast.Namespace{Token: "Inner", Kind: ast.NamespaceClass, DisplayType: "Class", Line: 3},
		callables: []ast.Callable{
			{Token: "run", Line: 4},
		},
	}
	pkg := &fakeNamespace{
		header: ast.Namespace{
			Token: "pkg", Kind: ast.NamespaceGeneric, DisplayType: "Namespace", Line: 2,
			ImportTokens: []string{"main.pkg"},
		},
		children: []*fakeNamespace{inner},
	}
	file := &fakeNamespace{
		root: &ast.Callable{
			Token: ast.RootToken,
			Bindings: []ast.Binding{
				{Token: "p", Line: 1, Kind: ast.BindingName, Name: "main.pkg"},
			},
		},
		callables: []ast.Callable{
			{Token: "main", Line: 10, Calls: []ast.Call{{Token: "run", OwnerToken: "p.Inner", Line: 11}}},
		},
		children: []*fakeNamespace{pkg},
	}

	builder := NewBuilder(fakeFrontend{})
	result, err := builder.Build(context.Background(), []*ast.SyntaxTree{
		{FilePath: "main.fake", Language: "fake", Root: file},
	})
	require.NoError(t, err)

	g := result.Graph
	assert.Equal(t, "Inner", g.NamespaceOwnership(nodeNamed(t, g, "main::Inner.run").ID))
	assert.Equal(t, []string{"main::main -> main::Inner.run"}, edgeNames(g))
}

func TestBuild_Errors(t *testing.T) {
	builder := NewBuilder(ast.NewPythonFrontend())

	t.Run("nil tree", func(t *testing.T) {
		_, err := builder.Build(context.Background(), []*ast.SyntaxTree{nil})
		assert.True(t, errors.Is(err, ErrNilFragment))
	})

	t.Run("language mismatch", func(t *testing.T) {
		_, err := builder.Build(context.Background(), []*ast.SyntaxTree{
			{FilePath: "x.fake", Language: "fake", Root: &fakeNamespace{}},
		})
		assert.True(t, errors.Is(err, ErrLanguageMismatch))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := builder.Build(ctx, []*ast.SyntaxTree{
			{FilePath: "x.py", Language: "python", Root: &fakeNamespace{}},
		})
		assert.True(t, errors.Is(err, ErrBuildCancelled))
	})
}

func TestBuild_EmptyInput(t *testing.T) {
	result, err := NewBuilder(ast.NewPythonFrontend()).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Graph.NodeCount())
	assert.Zero(t, result.Stats.FilesProcessed)
}
