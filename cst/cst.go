// Package cst defines the narrow interface LSF expects from "the
// concrete incremental parser" that spec §1 names as an external
// collaborator and deliberately does not re-specify. The teacher
// (grame-cncm-faustlsp) imports tree_sitter.Node/Tree/Parser directly
// throughout server/ and parser/ instead of behind an interface; LSF
// generalizes that into this package so translator, ast and symtab
// never import a concrete parser, and tsparser supplies the one real
// implementation, over go-tree-sitter.
package cst

// Point is a zero-based (row, column) position in a CST, matching
// tree-sitter's convention (column counted in bytes, not runes).
type Point struct {
	Row    uint32
	Column uint32
}

// Range is a CST node's half-open byte/point span.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

// Node is a read-only view onto one CST node. Implementations must be
// cheap to copy; tsparser.node wraps a *tree_sitter.Node value.
type Node interface {
	Kind() string
	GrammarName() string
	IsNamed() bool
	IsError() bool
	IsMissing() bool
	Range() Range
	// Utf8Text returns this node's source text, given the full source
	// buffer the node was parsed from.
	Utf8Text(source []byte) string
	ChildCount() uint32
	Child(i uint32) (Node, bool)
	// FieldNameForChild returns the field name the parent rule assigns
	// to child index i, or "" if none (spec §4.1 Field(f) queries).
	FieldNameForChild(i uint32) string
	Parent() (Node, bool)
}

// Edit describes one incremental edit to apply to a Tree before
// reparsing, in the byte+point-delta shape tree-sitter's incremental
// API expects (spec §4.5 File.update).
type Edit struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32

	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Tree is one parse result. Close releases any off-heap resources the
// underlying parser allocated for it.
type Tree interface {
	RootNode() Node
	// Edit records an incremental edit so a subsequent Parser.Parse call
	// can reuse unaffected subtrees.
	Edit(e Edit)
	Close()
}

// Parser produces Trees from source bytes, optionally reusing an old
// Tree for incremental reparse.
type Parser interface {
	Parse(source []byte, old Tree) (Tree, error)
	Close()
}

// QueryMatch is one capture from a tree-sitter query: the capture name
// declared in the query (e.g. "@error") and the matched node.
type QueryMatch struct {
	Capture string
	Node    Node
}

// QueryRunner evaluates a tree-sitter query string against a Tree or a
// single subtree, returning every capture. tsparser implements it;
// translator and features do not use it, since they walk Node children
// directly (spec §4.2, §4.7).
type QueryRunner interface {
	Query(query string, source []byte, root Node) ([]QueryMatch, error)
}
