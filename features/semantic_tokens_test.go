package features_test

import (
	"strings"
	"testing"

	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/features"
	"github.com/lsfproject/lsf/file"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/util"
	"github.com/stretchr/testify/require"
)

// Same fake-CST shape as the file package's own tests, extended with an
// explicit "const" keyword leaf so keyword highlighting has something
// to find: each non-blank line is "const NAME = VALUE;".

type fakeNode struct {
	kind               string
	named              bool
	isError            bool
	startRow, startCol uint32
	endRow, endCol     uint32
	text               string
	fields             map[uint32]string
	children           []*fakeNode
	parent             *fakeNode
}

func (n *fakeNode) Kind() string        { return n.kind }
func (n *fakeNode) GrammarName() string { return n.kind }
func (n *fakeNode) IsNamed() bool       { return n.named }
func (n *fakeNode) IsError() bool       { return n.isError }
func (n *fakeNode) IsMissing() bool     { return false }
func (n *fakeNode) Range() cst.Range {
	return cst.Range{
		StartByte:  n.startCol,
		EndByte:    n.endCol,
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

type fakeTree struct{ root *fakeNode }

func (t *fakeTree) RootNode() cst.Node { return t.root }
func (t *fakeTree) Edit(cst.Edit)      {}
func (t *fakeTree) Close()             {}

type fakeParser struct{}

func (fakeParser) Close() {}

func (fakeParser) Parse(source []byte, old cst.Tree) (cst.Tree, error) {
	lines := strings.Split(string(source), "\n")
	root := &fakeNode{kind: "program", named: true, text: string(source), endRow: uint32(len(lines))}
	for row, line := range lines {
		if line == "" {
			continue
		}
		dec := parseLine(uint32(row), line)
		dec.parent = root
		root.children = append(root.children, dec)
	}
	return &fakeTree{root: root}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

// parseLine builds a constant_dec whose first child is the "const"
// keyword leaf (unnamed, at field index none), followed by the name
// field and optional value field — so the keyword walk, the symbol
// walk, and the AST-hint walk (DefName carries a highlight) all have
// something to find in one fixture.
func parseLine(row uint32, line string) *fakeNode {
	const prefix = "const "
	eq := strings.Index(line, " = ")
	semi := strings.Index(line, ";")
	if !strings.HasPrefix(line, prefix) || eq < len(prefix) || semi < eq {
		return &fakeNode{kind: "ERROR", isError: true, startRow: row, endRow: row, startCol: 0, endCol: uint32(len(line)), text: line}
	}
	name := line[len(prefix):eq]
	value := line[eq+3 : semi]

	kwNode := &fakeNode{kind: "const", named: false, startRow: row, endRow: row, startCol: 0, endCol: uint32(len("const")), text: "const"}

	nameCol := uint32(len(prefix))
	nameNode := &fakeNode{kind: "identifier", named: true, startRow: row, endRow: row, startCol: nameCol, endCol: nameCol + uint32(len(name)), text: name}

	dec := &fakeNode{
		kind: "constant_dec", named: true, startRow: row, endRow: row, startCol: 0, endCol: uint32(len(line)), text: line,
		children: []*fakeNode{kwNode, nameNode},
		fields:   map[uint32]string{1: "name"},
	}
	kwNode.parent = dec
	nameNode.parent = dec

	if isIdentifier(value) {
		valueCol := uint32(eq + 3)
		valueNode := &fakeNode{kind: "identifier", named: true, startRow: row, endRow: row, startCol: valueCol, endCol: valueCol + uint32(len(value)), text: value, parent: dec}
		dec.children = append(dec.children, valueNode)
		dec.fields[2] = "value"
	}
	return dec
}

const doc = `
keywords: [const]
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
      define: {type: constant, name_child: DefName}
    children:
      - multiplicity: one
        child:
          query: {field: name}
          target: {direct: DefName}
          highlight: comment
      - multiplicity: maybe
        child:
          query: {field: value}
          target: {rule: Name}
  - name: Name
    symbol:
      use: true
`

func newFixture(t *testing.T, content string) *file.File {
	t.Helper()
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)

	f, err := file.New(util.FromPath("/tmp/fixture.lang"), []byte(content), fakeParser{}, ld, transport.UTF16)
	require.NoError(t, err)
	return f
}

func TestSemanticTokensLegendReservesKeywordSlotZero(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)

	legend := ld.SemanticTokenLegend()
	require.Equal(t, transport.SemanticTokenKindName("keyword"), legend[0])
	require.Equal(t, transport.SemanticTokenKindName("variable"), legend[1])
	require.Equal(t, transport.SemanticTokenKindName("comment"), legend[2])
}

func TestSemanticTokensEmitsKeywordSymbolAndHintTokens(t *testing.T) {
	f := newFixture(t, "const X = 1;\n")
	toks := features.SemanticTokens(f.CSTRoot(), f.Content(), f.AST(), f.SymbolTable(), f.LanguageDefinition())

	// Two tokens expected from three candidates: "const" keyword, the DefName highlight hint
	// on "X", and the symbol-occurrence token also on "X"'s definition
	// range — but both candidates share X's range, so the AST hint
	// (later source) wins and only one token is emitted for it.
	// data quintuples: [deltaLine, deltaStart, length, type, mods]
	require.Len(t, toks.Data, 10)

	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	kwIdx := uint32(ld.KeywordTokenIndex())
	hintIdx := uint32(ld.SemanticTokenIndexForKind("comment"))

	// First token: "const" at (0,0), length 5.
	require.Equal(t, []uint32{0, 0, 5, kwIdx, 0}, toks.Data[0:5])
	// Second token: "X" at (0,6), length 1, AST-hint kind wins over the
	// symbol-occurrence kind since both claim the same range.
	require.Equal(t, []uint32{0, 6, 1, hintIdx, 0}, toks.Data[5:10])
}

func TestSemanticTokensOmitsKeywordsWhenNoneDeclared(t *testing.T) {
	noKeywordDoc := strings.Replace(doc, "keywords: [const]", "keywords: []", 1)
	ld, err := langdef.Parse([]byte(noKeywordDoc))
	require.NoError(t, err)
	require.Equal(t, -1, ld.KeywordTokenIndex())

	f, err := file.New(util.FromPath("/tmp/fixture2.lang"), []byte("const X = 1;\n"), fakeParser{}, ld, transport.UTF16)
	require.NoError(t, err)

	toks := features.SemanticTokens(f.CSTRoot(), f.Content(), f.AST(), f.SymbolTable(), f.LanguageDefinition())
	// Only the AST-hint token on "X" remains; "const" is no longer a
	// recognized keyword so the keyword source contributes nothing.
	require.Len(t, toks.Data, 5)
}

func TestSemanticTokensSortsByLineThenCharacterAcrossLines(t *testing.T) {
	f := newFixture(t, "const X = 1;\nconst Y = X;\n")
	toks := features.SemanticTokens(f.CSTRoot(), f.Content(), f.AST(), f.SymbolTable(), f.LanguageDefinition())

	// Each line contributes a keyword token and an AST-hint token on the
	// def name (X, Y); line 1 additionally has a symbol-occurrence token
	// on its usage of X, which does not collide with anything else: 5
	// tokens total.
	require.Len(t, toks.Data, 25)

	// Walk the stream back to absolute (line, start) pairs and confirm
	// monotonic, non-decreasing order.
	var line, lastStartOnLine uint32
	first := true
	for i := 0; i < len(toks.Data); i += 5 {
		deltaLine, deltaStart := toks.Data[i], toks.Data[i+1]
		if deltaLine > 0 || first {
			line += deltaLine
			lastStartOnLine = 0
			first = false
		}
		start := lastStartOnLine + deltaStart
		require.GreaterOrEqual(t, start, lastStartOnLine)
		lastStartOnLine = start
		_ = line
	}
}
