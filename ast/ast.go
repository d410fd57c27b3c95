// Package ast implements the AST data model and Visitor of spec §3/§4.3:
// an arena of Nodes produced by translator.RulesTranslator, read-only
// traversal, and the symbol-directive/highlight-hint/linked-symbol
// metadata the symtab builder and feature ops consume. Grounded on the
// teacher's tree-walking style in server/symbols.go (ParseASTNode's
// recursive tree_sitter.Node switch becomes, here, a generic arena the
// translator builds once and everyone else only reads).
package ast

import (
	"sort"

	"github.com/lsfproject/lsf/transport"
)

// NodeID indexes into an AST's arena. The zero value never denotes a
// real node; arenas start numbering at 1 so a zero NodeID reliably
// means "absent".
type NodeID uint32

// NodeKindTag is the tagged-variant discriminant of NodeKind (spec §3).
type NodeKindTag int

const (
	Named NodeKindTag = iota
	Error
)

// NodeKind is `Named(string) | Error(optional string)`.
type NodeKind struct {
	Tag          NodeKindTag
	Name         string // valid when Tag == Named
	ErrorMessage string // valid when Tag == Error; may be empty
}

// SymbolDirectiveTag mirrors langdef.SymbolDirectiveKind on the built
// node rather than the rule that produced it.
type SymbolDirectiveTag int

const (
	DirectiveNone SymbolDirectiveTag = iota
	DirectiveDefine
	DirectiveUse
)

type SymbolDirective struct {
	Tag       SymbolDirectiveTag
	Kind      string // valid when Tag == DirectiveDefine
	NameChild string // valid when Tag == DirectiveDefine
	TypeChild string // valid when Tag == DirectiveDefine; empty if the rule names none
}

// SymbolRef identifies a Symbol anywhere in the workspace by a
// (file, symbol) index pair — never an owning handle (spec §9).
type SymbolRef struct {
	FileID   uint32
	SymbolID uint64
}

// Node is one AST node: kind, range, verbatim source text, the symbol
// directive carried by the rule that produced it, an optional
// highlight hint, and the symbol link installed by the symtab builder
// or the file graph's cross-file pass.
type Node struct {
	ID       NodeID
	Kind     NodeKind
	Range    transport.Range
	Content  string
	Symbol   SymbolDirective
	Highlight *transport.SemanticTokenKindName
	Linked   *SymbolRef

	Parent   NodeID
	Children []NodeID
}

// IsError reports whether this node is an Error node. Error nodes never
// carry a symbol directive other than None (spec §3 invariant).
func (n *Node) IsError() bool { return n.Kind.Tag == Error }

// AST is an arena of Nodes rooted at Root. Built once per
// RulesTranslator.Translate call and replaced wholesale on every
// rebuild (spec §4.3 rebuild policy: the AST is never patched
// in-place).
type AST struct {
	nodes []Node
	Root  NodeID
}

// New returns an empty arena ready for translator to populate via
// NewNode/SetChildren.
func New() *AST {
	return &AST{nodes: []Node{{}}} // index 0 reserved as "no node"
}

// NewNode appends a node to the arena and returns its id. Children must
// be attached afterward with SetChildren once all of them exist,
// because child ids are only known after their own NewNode calls.
func (a *AST) NewNode(kind NodeKind, rng transport.Range, content string, symbol SymbolDirective, highlight *transport.SemanticTokenKindName) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, Node{ID: id, Kind: kind, Range: rng, Content: content, Symbol: symbol, Highlight: highlight})
	return id
}

// SetChildren attaches children to a parent, sorting them by range
// start as spec §3 requires ("children order reflects source order
// after a stable sort by range.start").
func (a *AST) SetChildren(parent NodeID, children []NodeID) {
	sort.SliceStable(children, func(i, j int) bool {
		return rangeLess(a.Node(children[i]).Range.Start, a.Node(children[j]).Range.Start)
	})
	a.nodes[parent].Children = children
	for _, c := range children {
		a.nodes[c].Parent = parent
	}
}

func rangeLess(a, b transport.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// Node returns the node at id. Panics on an out-of-range id — arena
// ids are only ever handed out by this AST, so an invalid id is a
// programming error, not recoverable input.
func (a *AST) Node(id NodeID) *Node {
	return &a.nodes[id]
}

// Len returns the number of live nodes (excluding the reserved zero
// slot).
func (a *AST) Len() int { return len(a.nodes) - 1 }

// Children returns the direct children of id, in source order.
func (a *AST) Children(id NodeID) []NodeID {
	return a.nodes[id].Children
}

// Descendants returns every node beneath id (not including id itself),
// in a pre-order, source-ordered walk.
func (a *AST) Descendants(id NodeID) []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(n NodeID) {
		for _, c := range a.nodes[n].Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// FirstChildOfKind returns the first direct child whose kind is
// Named(name), if any.
func (a *AST) FirstChildOfKind(id NodeID, name string) (NodeID, bool) {
	for _, c := range a.nodes[id].Children {
		n := &a.nodes[c]
		if n.Kind.Tag == Named && n.Kind.Name == name {
			return c, true
		}
	}
	return 0, false
}

// Subscopes returns the direct children whose kind is in the language
// definition's scope set, via the isScope predicate supplied by the
// caller (translator/symtab own the langdef dependency; ast does not,
// to keep this package's import graph a leaf).
func (a *AST) Subscopes(id NodeID, isScope func(kindName string) bool) []NodeID {
	var out []NodeID
	for _, c := range a.nodes[id].Children {
		n := &a.nodes[c]
		if n.Kind.Tag == Named && isScope(n.Kind.Name) {
			out = append(out, c)
		}
	}
	return out
}

// NodeAt returns the deepest node whose range contains P, descending
// into the unique containing child at each level and preferring the
// first in source order on a tie (spec §4.3).
func (a *AST) NodeAt(pos transport.Position) NodeID {
	current := a.Root
	for {
		next, ok := NodeID(0), false
		for _, c := range a.nodes[current].Children {
			if rangeContains(a.nodes[c].Range, pos) {
				next, ok = c, true
				break
			}
		}
		if !ok {
			return current
		}
		current = next
	}
}

func rangeContains(r transport.Range, p transport.Position) bool {
	if rangeLess(p, r.Start) {
		return false
	}
	if rangeLess(r.End, p) {
		return false
	}
	return true
}

// Encloses reports whether outer's range encloses inner's range
// (non-strict), the invariant §8 checks between a node and its
// children.
func Encloses(outer, inner transport.Range) bool {
	if rangeLess(outer.Start, inner.Start) || outer.Start == inner.Start {
		if rangeLess(inner.End, outer.End) || inner.End == outer.End {
			return true
		}
	}
	return false
}
