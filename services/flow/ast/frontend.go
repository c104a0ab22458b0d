// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sort"
	"sync"
)

// Frontend defines the contract for a language-specific front end.
//
// Description:
//
//	A Frontend turns one source file into fragments the graph builder can
//	assemble: nested namespaces, callables and the remaining top-level body.
//	The builder is language-agnostic; everything syntax-specific lives behind
//	this interface.
//
// Limitations:
//
//   - No type inference; calls and bindings are extracted syntactically.
//   - Dynamically constructed call targets are not represented.
//
// Thread Safety:
//
//	Implementations must allow concurrent Parse calls. Splitting and
//	extraction are only ever called from the single-threaded build phase.
type Frontend interface {
	// Language returns the canonical language name (e.g. "python").
	Language() string

	// Extensions returns the suffixes this front end handles, without the dot.
	Extensions() []string

	// CheckEnvironment verifies that language dependencies are available.
	CheckEnvironment() error

	// Parse builds a syntax tree for one file.
	//
	// Returns a *ParseError (wrapping ErrParseFailed) when the source does
	// not parse cleanly.
	Parse(ctx context.Context, content []byte, filePath string) (*SyntaxTree, error)

	// SplitNamespaces separates a module or namespace fragment into nested
	// namespace fragments, callable fragments and remaining body fragments.
	SplitNamespaces(fragment Fragment) (namespaces, callables, body []Fragment)

	// MakeCallables extracts callables (with raw calls and bindings) from a
	// callable fragment owned by the given scope.
	MakeCallables(fragment Fragment, owner Scope) []Callable

	// MakeRoot builds the synthetic root callable from body fragments.
	// Returns false when the scope has no executable body of its own.
	MakeRoot(body []Fragment, owner Scope) (Callable, bool)

	// MakeNamespace extracts a nested namespace header.
	MakeNamespace(fragment Fragment, owner Scope) (Namespace, error)

	// ImportTokens returns the tokens other files use to import this file.
	ImportTokens(filePath string) []string
}

// FrontendRegistry manages front ends by language and file extension.
//
// Thread Safety:
//
//	FrontendRegistry is fully thread-safe. Registration uses write locks,
//	lookups use read locks.
type FrontendRegistry struct {
	mu sync.RWMutex

	// byLanguage maps language names to front ends.
	byLanguage map[string]Frontend

	// byExtension maps file suffixes (without dot) to front ends.
	byExtension map[string]Frontend
}

// NewFrontendRegistry creates a new empty FrontendRegistry.
func NewFrontendRegistry() *FrontendRegistry {
	return &FrontendRegistry{
		byLanguage:  make(map[string]Frontend),
		byExtension: make(map[string]Frontend),
	}
}

// DefaultRegistry returns a registry with every built-in front end registered.
func DefaultRegistry() *FrontendRegistry {
	r := NewFrontendRegistry()
	r.Register(NewPythonFrontend())
	return r
}

// Register adds a front end under its Language() name and all its Extensions().
//
// Existing registrations for the same language or extension are overwritten.
//
// Thread Safety: This method is safe for concurrent use.
func (r *FrontendRegistry) Register(frontend Frontend) {
	if frontend == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[frontend.Language()] = frontend
	for _, ext := range frontend.Extensions() {
		r.byExtension[ext] = frontend
	}
}

// GetByLanguage returns the front end for a language name.
func (r *FrontendRegistry) GetByLanguage(language string) (Frontend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frontend, ok := r.byLanguage[language]
	return frontend, ok
}

// GetByExtension returns the front end for a file suffix such as "py".
func (r *FrontendRegistry) GetByExtension(ext string) (Frontend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frontend, ok := r.byExtension[ext]
	return frontend, ok
}

// Lookup resolves a language selector that may be either a language name
// ("python") or a file suffix ("py").
func (r *FrontendRegistry) Lookup(selector string) (Frontend, bool) {
	if frontend, ok := r.GetByExtension(selector); ok {
		return frontend, true
	}
	return r.GetByLanguage(selector)
}

// Extensions returns all registered file suffixes, sorted.
func (r *FrontendRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
