package symtab_test

import (
	"testing"

	"github.com/lsfproject/lsf/ast"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/symtab"
	"github.com/lsfproject/lsf/transport"
	"github.com/stretchr/testify/require"
)

func pos(l, c uint32) transport.Position { return transport.Position{Line: l, Character: c} }
func rng(sl, sc, el, ec uint32) transport.Range {
	return transport.Range{Start: pos(sl, sc), End: pos(el, ec)}
}

// doc mirrors spec §8's literal scenario setup: Root admits ConstantDec
// children with Define{kind:"constant", name_child:"Name"}, and Name
// itself carries a Use directive — so a defining occurrence is also
// fed through Pass 2's resolution (and, unable to resolve to a
// not-yet-visible copy of itself, lands in Undefined; only true
// references are expected to resolve).
const doc = `
keywords: []
symbol_types:
  - name: constant
    completion_kind: 6
    semantic_token_kind: variable
ast_rules:
  - name: Root
    is_scope: true
  - name: ConstantDec
    symbol:
      define: {type: constant, name_child: Name}
  - name: Name
    symbol:
      use: true
`

// buildTwoConstantsTree builds the AST for spec §8 scenario 1's buffer:
// "const int X = 1;\nconst int Y = X;\n"
func buildTwoConstantsTree(t *testing.T) *ast.AST {
	t.Helper()
	tree := ast.New()
	root := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "Root"}, rng(0, 0, 2, 0), "", ast.SymbolDirective{}, nil)
	tree.Root = root

	xName := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "Name"}, rng(0, 10, 0, 11), "X",
		ast.SymbolDirective{Tag: ast.DirectiveUse}, nil)
	xDec := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "ConstantDec"}, rng(0, 0, 0, 17), "const int X = 1;",
		ast.SymbolDirective{Tag: ast.DirectiveDefine, Kind: "constant", NameChild: "Name"}, nil)
	tree.SetChildren(xDec, []ast.NodeID{xName})

	yName := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "Name"}, rng(1, 10, 1, 11), "Y",
		ast.SymbolDirective{Tag: ast.DirectiveUse}, nil)
	rhsX := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "Name"}, rng(1, 14, 1, 15), "X",
		ast.SymbolDirective{Tag: ast.DirectiveUse}, nil)
	yDec := tree.NewNode(ast.NodeKind{Tag: ast.Named, Name: "ConstantDec"}, rng(1, 0, 1, 16), "const int Y = X;",
		ast.SymbolDirective{Tag: ast.DirectiveDefine, Kind: "constant", NameChild: "Name"}, nil)
	tree.SetChildren(yDec, []ast.NodeID{yName, rhsX})

	tree.SetChildren(root, []ast.NodeID{xDec, yDec})
	return tree
}

func TestBuildResolvesRhsUsageToEarlierDefinition(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)

	tree := buildTwoConstantsTree(t)
	st := symtab.Build(tree, ld, 7)

	// rhsX ("X" used inside Y's declaration) must resolve to X's definition.
	rhsXID := tree.Children(tree.Children(tree.Root)[1])[1]
	linked := tree.Node(rhsXID).Linked
	require.NotNil(t, linked)

	xDefID := tree.Children(tree.Children(tree.Root)[0])[0]
	xSym, ok := st.FindByName(pos(1, 15), "X")
	require.True(t, ok)
	require.Equal(t, xSym.ID, linked.SymbolID)
	require.Equal(t, uint32(7), linked.FileID, "an intra-file Linked ref must still carry the owning FileID")
	require.Equal(t, tree.Node(xDefID).Range, xSym.DefRange)
}

func TestDefiningOccurrenceCannotResolveToItself(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	tree := buildTwoConstantsTree(t)
	st := symtab.Build(tree, ld, 7)

	// X's own name token, at its own definition site, is a Use node too
	// (the language definition tags every Name occurrence); it cannot
	// resolve to a not-yet-complete definition of itself.
	xDefID := tree.Children(tree.Children(tree.Root)[0])[0]
	require.Nil(t, tree.Node(xDefID).Linked)
	require.Contains(t, st.Undefined, rng(0, 10, 0, 11))
}

func TestSymbolsInScopeExcludesNotYetVisibleDefinitions(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	tree := buildTwoConstantsTree(t)
	st := symtab.Build(tree, ld, 7)

	// At line 1, char 5 (inside Y's declaration but before Y's own name
	// token, which is what fixes Y's DefRange), only X should be visible
	// — spec §8 scenario 1.
	visible := st.SymbolsInScope(pos(1, 5))
	names := []string{}
	for _, syms := range visible {
		for _, s := range syms {
			names = append(names, s.Name)
		}
	}
	require.Contains(t, names, "X")
	require.NotContains(t, names, "Y")
}

func TestFindByNameHonorsDefinitionBeforeUse(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	tree := buildTwoConstantsTree(t)
	st := symtab.Build(tree, ld, 7)

	sym, ok := st.FindByName(pos(1, 15), "X")
	require.True(t, ok)
	require.Equal(t, "X", sym.Name)

	_, ok = st.FindByName(pos(0, 10), "X")
	require.False(t, ok, "X is not visible at or before its own definition site")
}

func TestRenamePreservesRangesAndUpdatesName(t *testing.T) {
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	tree := buildTwoConstantsTree(t)
	st := symtab.Build(tree, ld, 7)

	sym, ok := st.FindByName(pos(1, 15), "X")
	require.True(t, ok)
	originalDef := sym.DefRange
	originalUsages := append([]transport.Range{}, sym.Usages...)

	require.True(t, st.Rename(sym.ID, "Z"))
	renamed, ok := st.SymbolByID(sym.ID)
	require.True(t, ok)
	require.Equal(t, "Z", renamed.Name)
	require.Equal(t, originalDef, renamed.DefRange)
	require.Equal(t, originalUsages, renamed.Usages)
}
