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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

func TestVisibleVariables_Order(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `import os

def helper():
    pass

def f():
    a = make()
    b = make()
    later()
    c = make()
`,
	})
	g := result.Graph
	f := nodeNamed(t, g, "app::f")

	var tokens []string
	for _, v := range g.VisibleVariables(f.ID, 9) {
		tokens = append(tokens, v.Token)
	}

	// own bindings up to line 9, most recent first, then the file scope
	assert.Equal(t, []string{"b", "a", "f", "helper", "os"}, tokens)
}

func TestVisibleVariables_ShadowingPrefersLatest(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `class A:
    def __init__(self):
        pass
    def go(self):
        pass

class B:
    def __init__(self):
        pass
    def go(self):
        pass

def main():
    x = A()
    x.go()
    x = B()
    x.go()
`,
	})
	g := result.Graph

	var callees []string
	for _, e := range g.Edges() {
		if e.Call.Token == "go" {
			callees = append(callees, g.Name(e.Callee))
		}
	}
	assert.Equal(t, []string{"app::A.go", "app::B.go"}, callees)
}

func TestLinkCall_AttrFallbackSkipsOwnFile(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `def save():
    pass

def main(db):
    db.save()
`,
		"store.py": `class Store:
    def save(self):
        pass
`,
	})
	g := result.Graph

	assert.Equal(t, []string{"app::main -> store::Store.save"}, edgeNames(g))
}

func TestLinkCall_ConstructorFallback(t *testing.T) {
	result := buildPython(t, map[string]string{
		"main.py": "def main():\n    Widget()\n",
		"widget.py": `class Widget:
    def __init__(self):
        pass
`,
	})
	g := result.Graph

	assert.Equal(t, []string{"main::main -> widget::Widget.__init__"}, edgeNames(g))
}

func TestLinkCall_Statuses(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": `import os

def known():
    pass

def main():
    known()
    os.getcwd()
    nowhere()
`,
	})
	g := result.Graph
	main := nodeNamed(t, g, "app::main")
	require.Len(t, main.Calls, 3)

	resolved := g.LinkCall(main.ID, main.Calls[0])
	assert.Equal(t, LinkResolved, resolved.Status)
	assert.Equal(t, "app::known", g.Name(resolved.Target))

	external := g.LinkCall(main.ID, main.Calls[1])
	assert.Equal(t, LinkExternal, external.Status)
	assert.Equal(t, NoNode, external.Target)

	dropped := g.LinkCall(main.ID, main.Calls[2])
	assert.Equal(t, LinkDropped, dropped.Status)

	assert.Equal(t, 1, result.Stats.ExternalCalls)
	assert.Equal(t, 1, result.Stats.DroppedCalls)
	assert.Equal(t, "external", LinkExternal.String())
}

func TestLinkCall_UnknownVariableFallsThrough(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": "def main():\n    conn = pool.get()\n    conn.close()\n",
		"db.py":  "class Conn:\n    def close(self):\n        pass\n",
	})
	g := result.Graph

	// conn is unclassifiable, so the unique close() elsewhere is used
	assert.Equal(t, []string{"app::main -> db::Conn.close"}, edgeNames(g))
}

func TestMatchVariable_BareCallOnClassWithoutConstructor(t *testing.T) {
	result := buildPython(t, map[string]string{
		"app.py": "class Plain:\n    def m(self):\n        pass\n",
	})
	g := result.Graph
	plain := groupNamed(t, g, "Plain")

	match, _ := g.matchVariable(ast.Call{Token: "Plain", Line: 9}, Variable{Token: "Plain", Target: GroupTarget(plain.ID)})
	assert.Equal(t, matchNone, match)
}
