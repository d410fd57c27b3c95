// Package tsparser is the one concrete cst.Parser implementation LSF
// ships, backed by github.com/tree-sitter/go-tree-sitter. It is adapted
// from the teacher's parser/parser.go: same mutex-guarded single
// *tree_sitter.Parser, same Reset-after-Parse reuse pattern, but the
// grammar is now a caller-supplied tree_sitter.Language instead of a
// hardcoded import of khiner/tree-sitter-faust/bindings/go — LSF is a
// language-agnostic core, so the Faust grammar can no longer live here.
package tsparser

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/lsfproject/lsf/cst"
)

// Parser wraps a tree-sitter parser for one injected grammar. Safe for
// concurrent use: Parse serializes on an internal mutex the way the
// teacher's package-global tsParser did, since a single
// *tree_sitter.Parser is not safe to drive from multiple goroutines at
// once.
type Parser struct {
	language *tree_sitter.Language
	mu       sync.Mutex
	inner    *tree_sitter.Parser
}

// New builds a Parser for the given tree-sitter grammar. Callers supply
// their own generated grammar binding (e.g. tree-sitter-faust,
// tree-sitter-json, ...); LSF has no opinion on which language it
// serves.
func New(language *tree_sitter.Language) (*Parser, error) {
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(language); err != nil {
		return nil, err
	}
	return &Parser{language: language, inner: p}, nil
}

func (p *Parser) Parse(source []byte, old cst.Tree) (cst.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var oldTree *tree_sitter.Tree
	if t, ok := old.(*tree); ok && t != nil {
		oldTree = t.t
	}

	tr := p.inner.Parse(source, oldTree)
	p.inner.Reset()
	return &tree{t: tr}, nil
}

func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inner.Close()
}

// Query evaluates a tree-sitter query string against root, returning
// every capture across every match, adapted from the teacher's
// GetQueryMatches. translator and features do not call it: translator
// matches ChildSpecs by walking CST children, and features walks the
// CST directly for keyword leaves.
func (p *Parser) Query(query string, source []byte, root cst.Node) ([]cst.QueryMatch, error) {
	n, ok := root.(*node)
	if !ok {
		return nil, nil
	}

	q, qerr := tree_sitter.NewQuery(p.language, query)
	if qerr != nil {
		return nil, qerr
	}
	defer q.Close()

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(q, n.n, source)
	var results []cst.QueryMatch
	for m := matches.Next(); m != nil; m = matches.Next() {
		for _, capture := range m.Captures {
			name := q.CaptureNames()[capture.Index]
			c := capture.Node
			results = append(results, cst.QueryMatch{Capture: name, Node: &node{n: &c}})
		}
	}
	return results, nil
}

type tree struct {
	t *tree_sitter.Tree
}

func (t *tree) RootNode() cst.Node {
	n := t.t.RootNode()
	return &node{n: n}
}

func (t *tree) Edit(e cst.Edit) {
	t.t.Edit(&tree_sitter.InputEdit{
		StartByte:   e.StartByte,
		OldEndByte:  e.OldEndByte,
		NewEndByte:  e.NewEndByte,
		StartPosition: tree_sitter.Point{Row: e.StartPoint.Row, Column: e.StartPoint.Column},
		OldEndPosition: tree_sitter.Point{Row: e.OldEndPoint.Row, Column: e.OldEndPoint.Column},
		NewEndPosition: tree_sitter.Point{Row: e.NewEndPoint.Row, Column: e.NewEndPoint.Column},
	})
}

func (t *tree) Close() {
	t.t.Close()
}

type node struct {
	n *tree_sitter.Node
}

func (n *node) Kind() string        { return n.n.Kind() }
func (n *node) GrammarName() string { return n.n.GrammarName() }
func (n *node) IsNamed() bool       { return n.n.IsNamed() }
func (n *node) IsError() bool       { return n.n.IsError() }
func (n *node) IsMissing() bool     { return n.n.IsMissing() }

func (n *node) Range() cst.Range {
	start := n.n.StartPosition()
	end := n.n.EndPosition()
	return cst.Range{
		StartByte:  n.n.StartByte(),
		EndByte:    n.n.EndByte(),
		StartPoint: cst.Point{Row: start.Row, Column: start.Column},
		EndPoint:   cst.Point{Row: end.Row, Column: end.Column},
	}
}

func (n *node) Utf8Text(source []byte) string {
	return n.n.Utf8Text(source)
}

func (n *node) ChildCount() uint32 {
	return uint32(n.n.ChildCount())
}

func (n *node) Child(i uint32) (cst.Node, bool) {
	c := n.n.Child(uint(i))
	if c == nil {
		return nil, false
	}
	return &node{n: c}, true
}

func (n *node) FieldNameForChild(i uint32) string {
	name := n.n.FieldNameForChild(uint(i))
	return name
}

func (n *node) Parent() (cst.Node, bool) {
	p := n.n.Parent()
	if p == nil {
		return nil, false
	}
	return &node{n: p}, true
}
