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

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// FileError represents a failure to process a single file.
type FileError struct {
	// FilePath is the path to the file that failed.
	FilePath string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e FileError) Unwrap() error {
	return e.Err
}

// AmbiguousCall is a call site that matched several equally plausible
// callees and was therefore not linked.
type AmbiguousCall struct {
	// Caller is the node containing the call site.
	Caller NodeID

	// Call is the call site.
	Call ast.Call

	// Candidates are the nodes the call could refer to, in creation order.
	Candidates []NodeID
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// FilesProcessed is the number of files assembled into the graph.
	FilesProcessed int

	// FilesFailed is the number of files skipped because they failed to parse.
	FilesFailed int

	// GroupsCreated counts File groups and nested namespaces.
	GroupsCreated int

	// NodesCreated counts callables, root nodes included.
	NodesCreated int

	// CallsFound is the number of call sites across all nodes.
	CallsFound int

	// VariablesFound is the number of bindings across all nodes, inherited
	// bindings included.
	VariablesFound int

	// EdgesCreated is the number of call sites linked to a callee.
	EdgesCreated int

	// AmbiguousCalls is the number of call sites with several candidates.
	AmbiguousCalls int

	// ExternalCalls is the number of call sites resolved to an external module.
	ExternalCalls int

	// DroppedCalls is the number of call sites with no candidate at all.
	DroppedCalls int

	// DuplicateGroupNames counts namespace tokens seen more than once while
	// resolving inheritance.
	DuplicateGroupNames int

	// DurationMilli is the total build time in milliseconds.
	DurationMilli int64

	// DurationMicro is the total build time in microseconds.
	DurationMicro int64
}

// BuildResult contains the result of a graph build.
type BuildResult struct {
	// Graph is the constructed graph.
	Graph *Graph

	// FileErrors contains files that were skipped because they failed to
	// parse. Only populated when parse errors are tolerated.
	FileErrors []FileError

	// Ambiguous lists call sites that were not linked because they had
	// several candidates.
	Ambiguous []AmbiguousCall

	// Stats contains build statistics.
	Stats BuildStats
}

// HasErrors returns true if any file was skipped.
func (r *BuildResult) HasErrors() bool {
	return len(r.FileErrors) > 0
}

// AmbiguousCallStrings renders the ambiguous calls as sorted, de-duplicated
// source snippets such as "a.run()".
func (r *BuildResult) AmbiguousCallStrings() []string {
	return uniqueSorted(len(r.Ambiguous), func(i int) string {
		return r.Ambiguous[i].Call.String()
	})
}
