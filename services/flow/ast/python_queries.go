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

// Python Tree-sitter Node Types
//
// Node types used by PythonFrontend. The front end walks nodes directly
// rather than using tree-sitter queries.
//
// Reference: https://github.com/tree-sitter/tree-sitter-python/blob/master/src/grammar.json
const (
	// Top-level nodes
	pyNodeModule  = "module"
	pyNodeBlock   = "block"
	pyNodeError   = "ERROR"
	pyNodeComment = "comment"

	// Import-related nodes
	pyNodeImportStatement     = "import_statement"
	pyNodeImportFromStatement = "import_from_statement"
	pyNodeDottedName          = "dotted_name"
	pyNodeAliasedImport       = "aliased_import"
	pyNodeRelativeImport      = "relative_import"
	pyNodeWildcardImport      = "wildcard_import"
	pyKeywordImport           = "import"

	// Definitions
	pyNodeFunctionDefinition      = "function_definition"
	pyNodeAsyncFunctionDefinition = "async_function_definition"
	pyNodeClassDefinition         = "class_definition"
	pyNodeDecoratedDefinition     = "decorated_definition"

	// Compound statements searched for nested definitions
	pyNodeIfStatement    = "if_statement"
	pyNodeForStatement   = "for_statement"
	pyNodeWhileStatement = "while_statement"
	pyNodeTryStatement   = "try_statement"
	pyNodeWithStatement  = "with_statement"
	pyNodeMatchStatement = "match_statement"
	pyNodeCaseClause     = "case_clause"

	// Assignment and expressions
	pyNodeAssignment = "assignment"
	pyNodeIdentifier = "identifier"
	pyNodeAttribute  = "attribute"
	pyNodeSubscript  = "subscript"
	pyNodeCall       = "call"
)

// Field names used by the Python grammar.
const (
	pyFieldName         = "name"
	pyFieldBody         = "body"
	pyFieldDefinition   = "definition"
	pyFieldSuperclasses = "superclasses"
	pyFieldFunction     = "function"
	pyFieldObject       = "object"
	pyFieldAttribute    = "attribute"
	pyFieldValue        = "value"
	pyFieldLeft         = "left"
	pyFieldRight        = "right"
	pyFieldAlias        = "alias"
)

// pyCompoundStatements are statements whose blocks may hide definitions,
// e.g. functions declared under `if TYPE_CHECKING:` or inside `try:`.
// The body of a match_statement is a block of case_clause nodes, so the
// clauses are listed too.
var pyCompoundStatements = map[string]bool{
	pyNodeIfStatement:    true,
	pyNodeForStatement:   true,
	pyNodeWhileStatement: true,
	pyNodeTryStatement:   true,
	pyNodeWithStatement:  true,
	pyNodeMatchStatement: true,
	pyNodeCaseClause:     true,
}

// pyConstructorNames are method names treated as class constructors.
var pyConstructorNames = map[string]bool{
	"__init__": true,
	"__new__":  true,
}

// Python AST Structure Reference
//
// module
// ├── import_statement
// │   ├── dotted_name
// │   └── aliased_import (name: dotted_name, alias: identifier)
// ├── import_from_statement
// │   ├── relative_import | dotted_name     (module)
// │   └── dotted_name | aliased_import+     (names, after "import")
// ├── function_definition (name, parameters, body: block)
// ├── decorated_definition
// │   ├── decorator+
// │   └── function_definition | class_definition (definition)
// ├── class_definition (name, superclasses: argument_list, body: block)
// ├── if_statement / for_statement / try_statement ... (blocks searched)
// ├── match_statement (subject, body: block)
// │   └── case_clause (case_pattern, consequence: block)
// └── expression_statement
//     ├── assignment (left, right)
//     └── call (function: identifier | attribute | subscript | call, arguments)
