// Package java extracts Graphviz diagrams from Java source files.
//
// # Overview
//
// Source is parsed with tree-sitter (github.com/tree-sitter/tree-sitter-java).
// Every method and constructor becomes one diagram, in source order. A file
// without any becomes a single diagram of its type declarations, so every
// parsed file yields at least one diagram.
//
// # Edgers
//
// The "edgerNames" option selects which relationships are drawn:
//
//   - control-flow: statement-to-statement flow, with branches for
//     if/switch/try and back edges for loops (the default)
//   - ast: containment edges from each statement to its enclosing statement
//
// Both may be combined ("control-flow,ast"); AST edges are then dashed.
//
// # Node filtering
//
// With enableKeepNodeFilter=true, nodes are kept or dropped by type:
//
//	defaultKeepNode=true
//	keepNode=-expressionStatement -block
//
// Dropped nodes are bypassed: their predecessors are connected to their
// successors, so the flow stays connected. A statement preceded by a
// "// gv" comment is always kept, and "// gv: text" also sets its label.
//
// # Output
//
// Output is deterministic. Node identifiers are assigned in traversal
// order and nodes and edges are written in that order, so regenerating
// an unchanged source gives byte-identical files.
package java
