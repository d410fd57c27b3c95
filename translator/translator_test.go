package translator_test

import (
	"testing"

	"github.com/lsfproject/lsf/ast"
	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/translator"
	"github.com/stretchr/testify/require"
)

// fakeNode is an in-memory cst.Node good enough to drive the
// translator without a real tree-sitter grammar.
type fakeNode struct {
	kind     string
	named    bool
	isError  bool
	isMissing bool
	startRow, startCol uint32
	endRow, endCol     uint32
	text     string
	fields   map[uint32]string
	children []*fakeNode
	parent   *fakeNode
}

func (n *fakeNode) Kind() string        { return n.kind }
func (n *fakeNode) GrammarName() string { return n.kind }
func (n *fakeNode) IsNamed() bool       { return n.named }
func (n *fakeNode) IsError() bool       { return n.isError }
func (n *fakeNode) IsMissing() bool     { return n.isMissing }
func (n *fakeNode) Range() cst.Range {
	return cst.Range{
		StartPoint: cst.Point{Row: n.startRow, Column: n.startCol},
		EndPoint:   cst.Point{Row: n.endRow, Column: n.endCol},
	}
}
func (n *fakeNode) Utf8Text(source []byte) string { return n.text }
func (n *fakeNode) ChildCount() uint32            { return uint32(len(n.children)) }
func (n *fakeNode) Child(i uint32) (cst.Node, bool) {
	if int(i) >= len(n.children) {
		return nil, false
	}
	return n.children[i], true
}
func (n *fakeNode) FieldNameForChild(i uint32) string {
	if n.fields == nil {
		return ""
	}
	return n.fields[i]
}
func (n *fakeNode) Parent() (cst.Node, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func namedLeaf(kind, text string, row, startCol, endCol uint32) *fakeNode {
	return &fakeNode{kind: kind, named: true, text: text, startRow: row, startCol: startCol, endRow: row, endCol: endCol}
}

const doc = `
keywords: []
symbol_types:
  - name: constant
    completion_kind: 6
    semantic_token_kind: variable
ast_rules:
  - name: Root
    is_scope: true
    children:
      - multiplicity: many
        child:
          query: {kind: constant_dec}
          target: {rule: ConstantDec}
  - name: ConstantDec
    symbol:
      define: {type: constant, name_child: Name}
    children:
      - multiplicity: one
        child:
          query: {field: name}
          target: {rule: Name}
  - name: Name
    symbol:
      use: true
`

func buildLangDef(t *testing.T) *langdef.LanguageDefinition {
	t.Helper()
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	return ld
}

func TestTranslateProducesDefineAndUseDirectives(t *testing.T) {
	ld := buildLangDef(t)

	name := namedLeaf("identifier", "X", 0, 10, 11)
	constDec := &fakeNode{
		kind: "constant_dec", named: true,
		text:     "const int X = 1;",
		startRow: 0, startCol: 0, endRow: 0, endCol: 17,
		children: []*fakeNode{name},
		fields:   map[uint32]string{0: "name"},
	}
	name.parent = constDec

	root := &fakeNode{
		kind: "program", named: true,
		text:     "const int X = 1;",
		startRow: 0, startCol: 0, endRow: 1, endCol: 0,
		children: []*fakeNode{constDec},
	}
	constDec.parent = root

	tr := translator.New(ld)
	tree, err := tr.Translate(root, []byte("const int X = 1;\n"))
	require.NoError(t, err)

	rootNode := tree.Node(tree.Root)
	require.Equal(t, "Root", rootNode.Kind.Name)
	require.Len(t, tree.Children(tree.Root), 1)

	decID := tree.Children(tree.Root)[0]
	decNode := tree.Node(decID)
	require.Equal(t, ast.DirectiveDefine, decNode.Symbol.Tag)
	require.Equal(t, "constant", decNode.Symbol.Kind)
	require.Equal(t, "Name", decNode.Symbol.NameChild)

	require.Len(t, tree.Children(decID), 1)
	nameID := tree.Children(decID)[0]
	nameNode := tree.Node(nameID)
	require.Equal(t, "Name", nameNode.Kind.Name)
	require.Equal(t, ast.DirectiveUse, nameNode.Symbol.Tag)
	require.Equal(t, "X", nameNode.Content)
}

func TestTranslateEmitsErrorNodeForCstError(t *testing.T) {
	ld := buildLangDef(t)

	errChild := &fakeNode{kind: "ERROR", isError: true, text: "?", startRow: 0, startCol: 0, endRow: 0, endCol: 1}
	root := &fakeNode{
		kind: "program", named: true,
		text:     "?",
		startRow: 0, startCol: 0, endRow: 1, endCol: 0,
		children: []*fakeNode{errChild},
	}
	errChild.parent = root

	tr := translator.New(ld)
	tree, err := tr.Translate(root, []byte("?\n"))
	require.NoError(t, err)

	children := tree.Children(tree.Root)
	require.Len(t, children, 1)
	require.True(t, tree.Node(children[0]).IsError())
}
