package langdef_test

import (
	"testing"

	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/transport"
	"github.com/stretchr/testify/require"
)

// The singleton forbids re-initialization (spec §9), so this file loads
// it exactly once for the whole package and asserts everything in one
// test rather than one Load call per case.
const minimalDoc = `
keywords: [const, type]
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
          target: {direct: Name}
  - name: Name
    symbol:
      use: true
`

func TestLoadAndDerivedTables(t *testing.T) {
	require.NoError(t, langdef.Load([]byte(minimalDoc)))

	ld := langdef.Get()
	require.True(t, ld.IsScopeRule("Root"))
	require.False(t, ld.IsScopeRule("ConstantDec"))
	require.True(t, ld.IsKeyword("const"))
	require.False(t, ld.IsKeyword("unknown"))
	require.Equal(t, []transport.SemanticTokenKindName{"keyword", "variable"}, ld.SemanticTokenLegend())

	rule, ok := ld.RuleWithName("ConstantDec")
	require.True(t, ok)
	require.Equal(t, langdef.DirectiveDefine, rule.Symbol.Variant)
	require.Equal(t, "constant", rule.Symbol.Kind)
	require.Equal(t, "Name", rule.Symbol.NameChild)

	require.True(t, langdef.Loaded())
}
