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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Logger receives build progress and diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Logger: slog.Default(),
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Builder assembles parsed files into a linked call graph.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new Graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates on its
//	own Graph; the front end's extraction methods are pure.
type Builder struct {
	frontend ast.Frontend
	options  BuilderOptions
}

// NewBuilder creates a Builder for syntax trees produced by frontend.
//
// Example:
//
//	builder := NewBuilder(ast.NewPythonFrontend(), WithLogger(logger))
//	result, err := builder.Build(ctx, trees)
func NewBuilder(frontend ast.Frontend, opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{
		frontend: frontend,
		options:  options,
	}
}

// Build constructs a linked graph from parsed syntax trees.
//
// Description:
//
//	Runs the analysis stages strictly in order, each over the whole graph:
//
//	  1. NAMESPACE TREE: one File group per tree, nested groups and nodes
//	  2. INHERITANCE: base tokens resolved, inherited bindings added
//	  3. BINDINGS: import paths and constructor calls resolved
//	  4. LINKING: every call site linked, edges and flags produced
//
// Inputs:
//
//	ctx - Context for cancellation, checked between files.
//	trees - Parsed files in the order they should appear. Must all come
//	        from the builder's front end.
//
// Outputs:
//
//	*BuildResult - The graph, ambiguous calls and statistics.
//	error - ErrNilFragment, ErrLanguageMismatch, a namespace extraction
//	        error, or ErrBuildCancelled.
//
// Thread Safety: This method is safe for concurrent use.
func (b *Builder) Build(ctx context.Context, trees []*ast.SyntaxTree) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, len(trees))
	defer span.End()

	start := time.Now()
	logger := b.options.Logger

	g := NewGraph()
	result := &BuildResult{Graph: g}

	// Phase 1: namespace tree
	for _, tree := range trees {
		if err := ctx.Err(); err != nil {
			recordBuildMetrics(ctx, time.Since(start), result.Stats, false)
			return nil, fmt.Errorf("%w: %v", ErrBuildCancelled, err)
		}
		if _, err := b.BuildFile(g, tree); err != nil {
			recordBuildMetrics(ctx, time.Since(start), result.Stats, false)
			return nil, err
		}
		result.Stats.FilesProcessed++
	}

	// Phase 2: inheritance
	duplicates := ResolveInheritance(g)
	for _, token := range duplicates {
		logger.Warn("duplicate group name, naming collision possible",
			slog.String("group", token))
	}
	result.Stats.DuplicateGroupNames = len(duplicates)

	// Phase 3: bindings
	ResolveBindings(g)
	b.logFound(g)

	// Phase 4: linking
	report := Assemble(g)
	result.Ambiguous = report.Ambiguous

	if ambiguous := result.AmbiguousCallStrings(); len(ambiguous) > 0 {
		logger.Info("skipped calls linked to multiple function definitions",
			slog.Any("calls", ambiguous))
	}

	for _, id := range g.AllNodes() {
		n := g.Node(id)
		result.Stats.CallsFound += len(n.Calls)
		result.Stats.VariablesFound += len(n.Variables)
	}
	result.Stats.GroupsCreated = len(g.AllGroups())
	result.Stats.NodesCreated = g.NodeCount()
	result.Stats.EdgesCreated = g.EdgeCount()
	result.Stats.AmbiguousCalls = len(report.Ambiguous)
	result.Stats.ExternalCalls = report.External
	result.Stats.DroppedCalls = report.Dropped

	duration := time.Since(start)
	result.Stats.DurationMilli = duration.Milliseconds()
	result.Stats.DurationMicro = duration.Microseconds()

	setBuildSpanResult(span, result.Stats)
	recordBuildMetrics(ctx, duration, result.Stats, true)

	return result, nil
}

// BuildFile adds one File group for tree to g, with its nested namespaces
// and nodes. Nothing is resolved here; calls and bindings stay raw.
//
// Inputs:
//
//	g - The graph to add to.
//	tree - A syntax tree produced by the builder's front end.
//
// Outputs:
//
//	GroupID - The new File group.
//	error - ErrNilFragment, ErrLanguageMismatch or a namespace extraction error.
func (b *Builder) BuildFile(g *Graph, tree *ast.SyntaxTree) (GroupID, error) {
	if tree == nil || tree.Root == nil {
		return NoGroup, ErrNilFragment
	}
	if tree.Language != b.frontend.Language() {
		return NoGroup, fmt.Errorf("%w: %s is %q, front end is %q",
			ErrLanguageMismatch, tree.FilePath, tree.Language, b.frontend.Language())
	}

	fid := g.addFile(ast.FileToken(tree.FilePath), tree.FilePath, b.frontend.ImportTokens(tree.FilePath))
	if err := b.populate(g, fid, tree.Root); err != nil {
		return NoGroup, fmt.Errorf("building %s: %w", tree.FilePath, err)
	}
	return fid, nil
}

// populate splits fragment and fills gid with its nodes, its root node and,
// recursively, its nested groups.
func (b *Builder) populate(g *Graph, gid GroupID, fragment ast.Fragment) error {
	grp := g.Group(gid)
	scope := ast.Scope{Kind: grp.Kind, Token: grp.Token}

	namespaces, callables, body := b.frontend.SplitNamespaces(fragment)

	for _, frag := range callables {
		for _, callable := range b.frontend.MakeCallables(frag, scope) {
			g.addNode(gid, callable)
		}
	}

	if root, ok := b.frontend.MakeRoot(body, scope); ok {
		grp.Root = g.addNode(gid, root)
	}

	for _, frag := range namespaces {
		ns, err := b.frontend.MakeNamespace(frag, scope)
		if err != nil {
			return err
		}
		sub := g.addGroup(gid, ns)
		if err := b.populate(g, sub, frag); err != nil {
			return err
		}
	}
	return nil
}

// logFound reports what the build discovered at debug level.
func (b *Builder) logFound(g *Graph) {
	logger := b.options.Logger
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	groups := g.AllGroups()
	labels := make([]string, 0, len(groups))
	for _, id := range groups {
		labels = append(labels, g.Group(id).Label())
	}

	nodes := g.AllNodes()
	owned := uniqueSorted(len(nodes), func(i int) string {
		return g.TokenWithOwnership(nodes[i])
	})

	var calls, variables []string
	for _, id := range nodes {
		n := g.Node(id)
		for _, c := range n.Calls {
			calls = append(calls, c.String())
		}
		for _, v := range n.Variables {
			variables = append(variables, g.DescribeVariable(v))
		}
	}

	logger.Debug("found groups", slog.Any("groups", labels))
	logger.Debug("found nodes", slog.Any("nodes", owned))
	logger.Debug("found calls", slog.Any("calls", uniqueSorted(len(calls), func(i int) string { return calls[i] })))
	logger.Debug("found variables", slog.Any("variables", uniqueSorted(len(variables), func(i int) string { return variables[i] })))
}

// DescribeVariable renders a variable as "token->target".
func (g *Graph) DescribeVariable(v Variable) string {
	var target string
	switch v.Target.Kind {
	case TargetName:
		target = v.Target.Name
	case TargetCall:
		target = v.Target.Call.String()
	case TargetNode:
		target = g.Node(v.Target.Node).Token
	case TargetGroup:
		target = g.Group(v.Target.Group).Token
	default:
		target = v.Target.Kind.String()
	}
	return v.Token + "->" + target
}

// uniqueSorted collects n strings, de-duplicates and sorts them.
func uniqueSorted(n int, at func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := at(i)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
