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

import "fmt"

// NamespaceKind identifies what kind of namespace a fragment or group models.
type NamespaceKind int

const (
	// NamespaceFile is a source file. File namespaces have no parent.
	NamespaceFile NamespaceKind = iota

	// NamespaceClass is a class-like block that may carry a constructor.
	NamespaceClass

	// NamespaceGeneric is a generic namespace (modules, packages, traits).
	NamespaceGeneric
)

// namespaceKindNames maps NamespaceKind values to their string representations.
var namespaceKindNames = map[NamespaceKind]string{
	NamespaceFile:    "file",
	NamespaceClass:   "class",
	NamespaceGeneric: "namespace",
}

// String returns the string representation of the NamespaceKind.
func (k NamespaceKind) String() string {
	if name, ok := namespaceKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// UnknownVarOwner is the owner token given to attribute calls whose object
// expression has no name (for example `f().g()`).
const UnknownVarOwner = "UNKNOWN_VAR"

// RootToken is the token of the synthetic node that holds module-level code.
const RootToken = "(global)"

// Call is a single call site found inside a callable.
//
// A Call is immutable once created. OwnerToken is empty for bare calls
// (`f()`) and holds the dotted object chain for attribute calls (`a.b.f()`
// has OwnerToken "a.b").
type Call struct {
	// Token is the callee name.
	Token string `json:"token"`

	// OwnerToken is the object the callee is looked up on. Empty for bare calls.
	OwnerToken string `json:"owner_token,omitempty"`

	// Line is the 1-indexed line of the call expression.
	Line int `json:"line"`

	// DefiniteConstructor is true when the front end can prove the call
	// instantiates a class. It gates binding inference for attribute calls.
	DefiniteConstructor bool `json:"definite_constructor,omitempty"`
}

// IsAttr reports whether the call is attribute-style (`owner.token()`).
func (c Call) IsAttr() bool {
	return c.OwnerToken != ""
}

// String renders the call the way it appears in source.
func (c Call) String() string {
	if c.IsAttr() {
		return fmt.Sprintf("%s.%s()", c.OwnerToken, c.Token)
	}
	return c.Token + "()"
}

// BindingKind tells the graph builder what an unresolved binding refers to.
type BindingKind int

const (
	// BindingName binds a token to an import path such as "pkg.module.func".
	BindingName BindingKind = iota

	// BindingCall binds a token to the result of a call (`x = Foo()`).
	BindingCall

	// BindingOwner binds a token to the namespace that owns the callable
	// (`self` inside a Python method).
	BindingOwner
)

// Binding is a raw variable assignment extracted by a front end.
//
// Exactly one of Name or Call is meaningful, selected by Kind. BindingOwner
// uses neither.
type Binding struct {
	// Token is the bound name.
	Token string

	// Line is the line from which the binding is visible.
	Line int

	// Kind selects which target field is populated.
	Kind BindingKind

	// Name is the import path for BindingName.
	Name string

	// Call is the call whose result is bound, for BindingCall.
	Call *Call
}

// Scope describes the namespace a fragment is being built inside.
type Scope struct {
	// Kind is the kind of the enclosing namespace.
	Kind NamespaceKind

	// Token is the name of the enclosing namespace.
	Token string
}

// Callable is the language-neutral description of one callable unit.
type Callable struct {
	Token         string
	Line          int
	Calls         []Call
	Bindings      []Binding
	ImportTokens  []string
	IsConstructor bool
}

// Namespace is the language-neutral description of a nested namespace header.
// Its members are obtained by splitting the same fragment again.
type Namespace struct {
	Token        string
	Kind         NamespaceKind
	DisplayType  string
	Line         int
	ImportTokens []string

	// Inherits holds base namespace names exactly as written in source.
	Inherits []string
}

// Fragment is an opaque piece of a front end's syntax tree.
//
// The graph builder never inspects fragments; it only hands them back to the
// front end that produced them.
type Fragment interface {
	// Line returns the 1-indexed line the fragment starts on.
	Line() int
}

// SyntaxTree is a parsed source file.
type SyntaxTree struct {
	// FilePath is the path the tree was parsed from.
	FilePath string

	// Language is the canonical language name of the front end that parsed it.
	Language string

	// Root is the module-level fragment.
	Root Fragment
}
