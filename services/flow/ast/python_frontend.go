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
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	// DefaultMaxFileSize is the largest source file a front end accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1024 * 1024

	pythonLanguage = "python"
)

// PythonFrontendOption configures a PythonFrontend instance.
type PythonFrontendOption func(*PythonFrontend)

// WithPythonMaxFileSize sets the maximum file size the front end will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
func WithPythonMaxFileSize(bytes int64) PythonFrontendOption {
	return func(p *PythonFrontend) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonFrontend implements Frontend for Python source code.
//
// Description:
//
//	Uses tree-sitter to parse Python files. Functions (sync, async and
//	decorated) become callables, classes become namespaces and every other
//	top-level statement becomes part of the module's root callable.
//	Definitions hidden inside if/for/while/try/with/match blocks are found
//	as if they were written at the enclosing level.
//
// Thread Safety:
//
//	Parse is safe for concurrent use; each call creates its own tree-sitter
//	parser. The remaining methods are pure functions of their inputs.
type PythonFrontend struct {
	maxFileSize int64
}

// NewPythonFrontend creates a PythonFrontend with the given options.
func NewPythonFrontend(opts ...PythonFrontendOption) *PythonFrontend {
	p := &PythonFrontend{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pyFragment is a Python syntax node paired with the source it indexes into.
type pyFragment struct {
	node *sitter.Node
	src  []byte
}

// Line returns the 1-indexed start line of the fragment.
func (f *pyFragment) Line() int {
	if f == nil || f.node == nil {
		return 0
	}
	return pyLine(f.node)
}

// Language returns "python".
func (p *PythonFrontend) Language() string {
	return pythonLanguage
}

// Extensions returns the suffixes handled by this front end.
func (p *PythonFrontend) Extensions() []string {
	return []string{"py"}
}

// CheckEnvironment verifies the compiled-in Python grammar is available.
func (p *PythonFrontend) CheckEnvironment() error {
	if python.GetLanguage() == nil {
		return fmt.Errorf("%w: python grammar not linked", ErrUnsupportedLanguage)
	}
	return nil
}

// Parse parses Python source into a SyntaxTree.
//
// Description:
//
//	Validates size and encoding, runs tree-sitter and rejects trees that
//	contain syntax errors. The error points at the first ERROR or MISSING
//	node so the user can find it.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw Python source bytes.
//   - filePath: Path used for error reporting.
//
// Outputs:
//   - *SyntaxTree: The parsed tree. Never nil on success.
//   - error: *ParseError wrapping ErrFileTooLarge, ErrInvalidContent or
//     ErrParseFailed, or a context error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PythonFrontend) Parse(ctx context.Context, content []byte, filePath string) (*SyntaxTree, error) {
	ctx, span := startParseSpan(ctx, pythonLanguage, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, 0, 0,
			fmt.Sprintf("size %d exceeds limit %d", len(content), p.maxFileSize), ErrFileTooLarge)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, 0, 0, "content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, 0, 0, "tree-sitter parse failed", err)
	}

	root := tree.RootNode()
	if root == nil {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, 0, 0, "tree-sitter returned nil root node", ErrParseFailed)
	}

	if root.HasError() {
		line, col := 0, 0
		if bad := pyFirstErrorNode(root); bad != nil {
			line = pyLine(bad)
			col = int(bad.StartPoint().Column)
		}
		setParseSpanResult(span, 0, true)
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, line, col, "syntax error", ErrParseFailed)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, pythonLanguage, time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	fragmentCount := int(root.NamedChildCount())
	setParseSpanResult(span, fragmentCount, false)
	recordParseMetrics(ctx, pythonLanguage, time.Since(start), fragmentCount, true)

	return &SyntaxTree{
		FilePath: filePath,
		Language: pythonLanguage,
		Root:     &pyFragment{node: root, src: content},
	}, nil
}

// SplitNamespaces separates a module or class fragment into nested class
// fragments, function fragments and the remaining body statements.
func (p *PythonFrontend) SplitNamespaces(fragment Fragment) (namespaces, callables, body []Fragment) {
	f, ok := fragment.(*pyFragment)
	if !ok || f.node == nil {
		return nil, nil, nil
	}

	container := pyUnwrapDecorated(f.node)
	if container.Type() == pyNodeClassDefinition {
		container = container.ChildByFieldName(pyFieldBody)
	}
	if container == nil {
		return nil, nil, nil
	}

	p.split(container, f.src, &namespaces, &callables, &body)
	return namespaces, callables, body
}

// split sorts the statements of one container into the three buckets,
// recursing into the blocks of compound statements.
func (p *PythonFrontend) split(container *sitter.Node, src []byte, namespaces, callables, body *[]Fragment) {
	for i := 0; i < int(container.NamedChildCount()); i++ {
		child := container.NamedChild(i)
		if child == nil || child.Type() == pyNodeComment {
			continue
		}

		def := pyUnwrapDecorated(child)
		switch def.Type() {
		case pyNodeFunctionDefinition, pyNodeAsyncFunctionDefinition:
			*callables = append(*callables, &pyFragment{node: def, src: src})
		case pyNodeClassDefinition:
			*namespaces = append(*namespaces, &pyFragment{node: def, src: src})
		default:
			if pyCompoundStatements[child.Type()] {
				for _, block := range pyCompoundBlocks(child) {
					p.split(block, src, namespaces, callables, body)
				}
				continue
			}
			*body = append(*body, &pyFragment{node: child, src: src})
		}
	}
}

// MakeCallables builds the callable for one function definition.
func (p *PythonFrontend) MakeCallables(fragment Fragment, owner Scope) []Callable {
	f, ok := fragment.(*pyFragment)
	if !ok || f.node == nil {
		return nil
	}

	def := pyUnwrapDecorated(f.node)
	nameNode := def.ChildByFieldName(pyFieldName)
	if nameNode == nil {
		return nil
	}
	token := nameNode.Content(f.src)

	var lines []*sitter.Node
	if bodyNode := def.ChildByFieldName(pyFieldBody); bodyNode != nil {
		lines = pyStatements(bodyNode)
	}

	var importTokens []string
	if owner.Kind == NamespaceFile {
		importTokens = []string{owner.Token + "." + token}
	}

	return []Callable{{
		Token:         token,
		Line:          pyLine(def),
		Calls:         pyMakeCalls(lines, f.src),
		Bindings:      pyMakeBindings(lines, f.src, owner),
		ImportTokens:  importTokens,
		IsConstructor: owner.Kind == NamespaceClass && pyConstructorNames[token],
	}}
}

// MakeRoot builds the "(global)" callable for module-level code.
//
// Class bodies do not get a root: their statements run once at definition
// time and never hold bindings that methods can see unqualified.
func (p *PythonFrontend) MakeRoot(body []Fragment, owner Scope) (Callable, bool) {
	if owner.Kind == NamespaceClass {
		return Callable{}, false
	}

	var lines []*sitter.Node
	var src []byte
	for _, frag := range body {
		f, ok := frag.(*pyFragment)
		if !ok || f.node == nil {
			continue
		}
		lines = append(lines, f.node)
		src = f.src
	}

	return Callable{
		Token:    RootToken,
		Line:     0,
		Calls:    pyMakeCalls(lines, src),
		Bindings: pyMakeBindings(lines, src, owner),
	}, true
}

// MakeNamespace extracts a class header: name, line, import token and the
// bare-name base classes.
func (p *PythonFrontend) MakeNamespace(fragment Fragment, owner Scope) (Namespace, error) {
	f, ok := fragment.(*pyFragment)
	if !ok || f.node == nil {
		return Namespace{}, fmt.Errorf("%w: not a python fragment", ErrInvalidFragment)
	}

	def := pyUnwrapDecorated(f.node)
	if def.Type() != pyNodeClassDefinition {
		return Namespace{}, fmt.Errorf("%w: expected %s, got %s", ErrInvalidFragment, pyNodeClassDefinition, def.Type())
	}

	nameNode := def.ChildByFieldName(pyFieldName)
	if nameNode == nil {
		return Namespace{}, fmt.Errorf("%w: class without name at line %d", ErrInvalidFragment, pyLine(def))
	}
	token := nameNode.Content(f.src)

	var inherits []string
	if bases := def.ChildByFieldName(pyFieldSuperclasses); bases != nil {
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			base := bases.NamedChild(i)
			if base != nil && base.Type() == pyNodeIdentifier {
				inherits = append(inherits, base.Content(f.src))
			}
		}
	}

	return Namespace{
		Token:        token,
		Kind:         NamespaceClass,
		DisplayType:  "Class",
		Line:         pyLine(def),
		ImportTokens: []string{owner.Token + "." + token},
		Inherits:     inherits,
	}, nil
}

// ImportTokens returns the module name other files use to import filePath.
func (p *PythonFrontend) ImportTokens(filePath string) []string {
	return []string{FileToken(filePath)}
}

// FileToken returns the base name of a path without its extension.
func FileToken(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pyMakeCalls collects every call site below the given statements,
// including calls inside nested functions and lambdas.
func pyMakeCalls(lines []*sitter.Node, src []byte) []Call {
	var calls []Call
	for _, line := range lines {
		pyWalk(line, func(n *sitter.Node) bool {
			if n.Type() == pyNodeCall {
				if call, ok := pyCallFromFunc(n.ChildByFieldName(pyFieldFunction), src); ok {
					calls = append(calls, call)
				}
			}
			return true
		})
	}
	return calls
}

// pyMakeBindings collects `x = f()` assignments and imports below the given
// statements. Methods also bind `self` to their class.
func pyMakeBindings(lines []*sitter.Node, src []byte, owner Scope) []Binding {
	var bindings []Binding
	for _, line := range lines {
		pyWalk(line, func(n *sitter.Node) bool {
			switch n.Type() {
			case pyNodeAssignment:
				bindings = append(bindings, pyAssignmentBindings(n, src)...)
				// Chained targets were handled by the outermost assignment.
				return false
			case pyNodeImportStatement, pyNodeImportFromStatement:
				bindings = append(bindings, pyImportBindings(n, src)...)
				return false
			}
			return true
		})
	}

	if owner.Kind == NamespaceClass && len(lines) > 0 {
		bindings = append(bindings, Binding{
			Token: "self",
			Line:  pyLine(lines[0]),
			Kind:  BindingOwner,
		})
	}
	return bindings
}

// pyCallFromFunc converts the `function` child of a call node into a Call.
//
// Only identifiers and attribute chains produce calls; subscripts, calls of
// calls and other expressions are dynamic and are skipped.
func pyCallFromFunc(fn *sitter.Node, src []byte) (Call, bool) {
	if fn == nil {
		return Call{}, false
	}

	switch fn.Type() {
	case pyNodeIdentifier:
		return Call{Token: fn.Content(src), Line: pyLine(fn)}, true
	case pyNodeAttribute:
		attr := fn.ChildByFieldName(pyFieldAttribute)
		if attr == nil {
			return Call{}, false
		}
		owner := pyOwnerChain(fn.ChildByFieldName(pyFieldObject), src)
		if owner == "" {
			owner = UnknownVarOwner
		}
		return Call{Token: attr.Content(src), OwnerToken: owner, Line: pyLine(fn)}, true
	default:
		return Call{}, false
	}
}

// pyOwnerChain renders the dotted name an attribute is looked up on.
// Subscripts are looked through (`a[0].f()` has owner "a"); anything else
// ends the chain.
func pyOwnerChain(val *sitter.Node, src []byte) string {
	var parts []string
	for val != nil {
		switch val.Type() {
		case pyNodeAttribute:
			if attr := val.ChildByFieldName(pyFieldAttribute); attr != nil {
				parts = append(parts, attr.Content(src))
			}
			val = val.ChildByFieldName(pyFieldObject)
		case pyNodeIdentifier:
			parts = append(parts, val.Content(src))
			val = nil
		case pyNodeSubscript:
			val = val.ChildByFieldName(pyFieldValue)
		default:
			val = nil
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// pyAssignmentBindings handles `a = b = f()`: every identifier target is
// bound to the call on the far right.
func pyAssignmentBindings(n *sitter.Node, src []byte) []Binding {
	var targets []*sitter.Node
	cur := n
	for cur != nil && cur.Type() == pyNodeAssignment {
		targets = append(targets, cur.ChildByFieldName(pyFieldLeft))
		cur = cur.ChildByFieldName(pyFieldRight)
	}
	if cur == nil || cur.Type() != pyNodeCall {
		return nil
	}

	call, ok := pyCallFromFunc(cur.ChildByFieldName(pyFieldFunction), src)
	if !ok {
		return nil
	}

	var bindings []Binding
	for _, target := range targets {
		if target == nil || target.Type() != pyNodeIdentifier {
			continue
		}
		bound := call
		bindings = append(bindings, Binding{
			Token: target.Content(src),
			Line:  pyLine(n),
			Kind:  BindingCall,
			Call:  &bound,
		})
	}
	return bindings
}

// pyImportBindings binds each imported alias to its dotted import path.
//
//	import a.b          -> a.b  => "a.b"
//	import a as x       -> x    => "a"
//	from m import f     -> f    => "m.f"
//	from . import f     -> f    => "f"
//	from ..u import f   -> f    => "u.f"
func pyImportBindings(n *sitter.Node, src []byte) []Binding {
	line := pyLine(n)
	var bindings []Binding

	add := func(module, name, alias string) {
		if name == "" {
			return
		}
		token := name
		if alias != "" {
			token = alias
		}
		rhs := name
		if module != "" {
			rhs = module + "." + name
		}
		bindings = append(bindings, Binding{Token: token, Line: line, Kind: BindingName, Name: rhs})
	}

	if n.Type() == pyNodeImportStatement {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			name, alias := pyImportedName(child, src)
			add("", name, alias)
		}
		return bindings
	}

	var module string
	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == pyKeywordImport {
			sawImport = true
			continue
		}
		if !sawImport {
			switch child.Type() {
			case pyNodeDottedName:
				module = child.Content(src)
			case pyNodeRelativeImport:
				for j := 0; j < int(child.NamedChildCount()); j++ {
					if gc := child.NamedChild(j); gc != nil && gc.Type() == pyNodeDottedName {
						module = gc.Content(src)
					}
				}
			}
			continue
		}
		if child.Type() == pyNodeWildcardImport {
			continue
		}
		name, alias := pyImportedName(child, src)
		add(module, name, alias)
	}
	return bindings
}

// pyImportedName returns the name and optional alias of one import item.
func pyImportedName(n *sitter.Node, src []byte) (name, alias string) {
	if n == nil {
		return "", ""
	}
	switch n.Type() {
	case pyNodeDottedName:
		return n.Content(src), ""
	case pyNodeAliasedImport:
		if nameNode := n.ChildByFieldName(pyFieldName); nameNode != nil {
			name = nameNode.Content(src)
		}
		if aliasNode := n.ChildByFieldName(pyFieldAlias); aliasNode != nil {
			alias = aliasNode.Content(src)
		}
		return name, alias
	}
	return "", ""
}

// pyWalk visits n and its named descendants in document order. Returning
// false from visit skips the node's children.
func pyWalk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		pyWalk(n.NamedChild(i), visit)
	}
}

// pyStatements returns the non-comment statements of a block.
func pyStatements(block *sitter.Node) []*sitter.Node {
	var lines []*sitter.Node
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child == nil || child.Type() == pyNodeComment {
			continue
		}
		lines = append(lines, child)
	}
	return lines
}

// pyCompoundBlocks returns the blocks of a compound statement, including
// those of its elif/else/except/finally/case clauses.
func pyCompoundBlocks(n *sitter.Node) []*sitter.Node {
	var blocks []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == pyNodeBlock {
			blocks = append(blocks, child)
			continue
		}
		blocks = append(blocks, pyCompoundBlocks(child)...)
	}
	return blocks
}

// pyUnwrapDecorated returns the definition inside a decorated_definition.
func pyUnwrapDecorated(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == pyNodeDecoratedDefinition {
		if def := n.ChildByFieldName(pyFieldDefinition); def != nil {
			return def
		}
	}
	return n
}

// pyFirstErrorNode finds the first ERROR or MISSING node in document order.
func pyFirstErrorNode(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == pyNodeError || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := pyFirstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// pyLine returns the 1-indexed start line of a node.
func pyLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
