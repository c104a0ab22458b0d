// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds and transforms call graphs.
//
// The graph package turns the language-neutral fragments produced by an
// ast.Frontend into a tree of namespaces (Groups) owning callables (Nodes),
// resolves variable bindings, links call sites to callee Nodes and applies
// scope-limiting transforms before rendering.
//
// # Ownership Model
//
// All entities live in a Graph arena and are addressed by NodeID and
// GroupID. Parents are stored as IDs and children as ID slices. Removing
// an entity detaches it from its parent and marks it removed; IDs are never
// reused, so an ID held by a Variable or Edge never dangles.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use. Every stage (build, resolve, link,
// transform) runs single-threaded over the whole arena, and the mutation
// order is significant for edge and classification results.
//
// # Lifecycle
//
// A typical lifecycle:
//  1. Parse files with an ast.Frontend (may run in parallel)
//  2. Builder.Build assembles, resolves and links them into a Graph
//  3. LimitNamespaces / LimitFunctions / Trim / Subset narrow the graph
//  4. SortedFiles / SortedNodes / SortedEdges feed the renderers
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrTargetNotFound is returned when a subset target matches no Node.
	ErrTargetNotFound = errors.New("target node not found")

	// ErrAmbiguousTarget is returned when a subset target matches more than
	// one Node. Use "Class.func" or "file::Class.func" to disambiguate.
	ErrAmbiguousTarget = errors.New("target matches multiple nodes")

	// ErrInvalidDepth is returned for a negative subset depth, or when
	// neither depth is positive.
	ErrInvalidDepth = errors.New("invalid subset depth")

	// ErrNilFragment is returned when a syntax tree or fragment is nil.
	ErrNilFragment = errors.New("nil syntax tree or fragment")

	// ErrLanguageMismatch is returned when a syntax tree was produced by a
	// different front end than the one building the graph.
	ErrLanguageMismatch = errors.New("syntax tree language does not match front end")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")
)
