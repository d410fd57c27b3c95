// Package features implements the query logic spec §4.7 and the
// module map describe as shared between File and the LSP layer.
// Semantic-token assembly is the one feature op broken out here rather
// than living directly on File: it is the only one that needs the raw
// CST alongside the AST and SymbolTable, mirroring the Rust original's
// dedicated features/semantic_tokens.rs (the sole feature the original
// itself does not fold into file.rs).
package features

import (
	"sort"

	"github.com/lsfproject/lsf/ast"
	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/symtab"
	"github.com/lsfproject/lsf/transport"
)

// rawToken is one candidate token before delta-encoding: an absolute
// (line, start, length) span plus its legend index.
type rawToken struct {
	line, start, length, tokenType uint32
}

// rangeKey identifies candidates that "share a range" for spec §4.7's
// overlap rule.
type rangeKey struct {
	line, start, length uint32
}

// SemanticTokens assembles the LSP semantic-tokens data array for one
// file from its three sources, in priority order, and delta-encodes the
// result (spec §4.7). Grounded on the Rust original's get_tokens,
// generalized from tower_lsp's SemanticToken struct slice into the
// flat uint32 quintuple stream transport.SemanticTokens carries.
func SemanticTokens(root cst.Node, content []byte, tree *ast.AST, st *symtab.SymbolTable, ld *langdef.LanguageDefinition) transport.SemanticTokens {
	byRange := map[rangeKey]rawToken{}

	apply := func(t rawToken) {
		byRange[rangeKey{t.line, t.start, t.length}] = t
	}

	for _, t := range keywordTokens(root, content, ld) {
		apply(t)
	}
	for _, t := range symbolTokens(st, ld) {
		apply(t)
	}
	for _, t := range astHintTokens(tree, ld) {
		apply(t)
	}

	tokens := make([]rawToken, 0, len(byRange))
	for _, t := range byRange {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].line != tokens[j].line {
			return tokens[i].line < tokens[j].line
		}
		return tokens[i].start < tokens[j].start
	})

	return transport.SemanticTokens{Data: encode(tokens)}
}

// keywordTokens walks the CST for unnamed leaves whose text is a
// declared keyword (spec §4.7 source 1).
func keywordTokens(root cst.Node, content []byte, ld *langdef.LanguageDefinition) []rawToken {
	idx := ld.KeywordTokenIndex()
	if idx < 0 {
		return nil
	}

	var out []rawToken
	var walk func(n cst.Node)
	walk = func(n cst.Node) {
		if n.ChildCount() == 0 {
			if !n.IsNamed() && ld.IsKeyword(n.Utf8Text(content)) {
				r := n.Range()
				out = append(out, rawToken{
					line:      r.StartPoint.Row,
					start:     r.StartPoint.Column,
					length:    r.EndByte - r.StartByte,
					tokenType: uint32(idx),
				})
			}
			return
		}
		for i := uint32(0); i < n.ChildCount(); i++ {
			if c, ok := n.Child(i); ok {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

// symbolTokens emits one token per symbol definition and usage (spec
// §4.7 source 2).
func symbolTokens(st *symtab.SymbolTable, ld *langdef.LanguageDefinition) []rawToken {
	var out []rawToken
	for _, ks := range st.AllSymbols() {
		idx := ld.SemanticTokenKindIndex(ks.Kind)
		if idx < 0 {
			continue
		}
		emit := func(rng transport.Range) {
			out = append(out, rawToken{
				line:      rng.Start.Line,
				start:     rng.Start.Character,
				length:    rng.End.Character - rng.Start.Character,
				tokenType: uint32(idx),
			})
		}
		emit(ks.Symbol.DefRange)
		for _, u := range ks.Symbol.Usages {
			emit(u)
		}
	}
	return out
}

// astHintTokens emits one token per AST node carrying a highlight hint
// (spec §4.7 source 3).
func astHintTokens(tree *ast.AST, ld *langdef.LanguageDefinition) []rawToken {
	var out []rawToken
	for _, id := range tree.Descendants(tree.Root) {
		n := tree.Node(id)
		if n.Highlight == nil {
			continue
		}
		idx := ld.SemanticTokenIndexForKind(*n.Highlight)
		if idx < 0 {
			continue
		}
		out = append(out, rawToken{
			line:      n.Range.Start.Line,
			start:     n.Range.Start.Character,
			length:    n.Range.End.Character - n.Range.Start.Character,
			tokenType: uint32(idx),
		})
	}
	return out
}

// encode delta-encodes sorted tokens into the flat (deltaLine,
// deltaStart, length, tokenType, tokenModifiers) stream (spec §4.7):
// the first token on a line carries the line delta from the previous
// line, later tokens on the same line carry deltaLine=0 and deltaStart
// relative to the previous token's start on that line.
func encode(tokens []rawToken) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)

	var prevLine, prevStart uint32
	first := true
	for _, t := range tokens {
		var deltaLine, deltaStart uint32
		if first {
			deltaLine = t.line
			deltaStart = t.start
		} else if t.line == prevLine {
			deltaStart = t.start - prevStart
		} else {
			deltaLine = t.line - prevLine
			deltaStart = t.start
		}
		data = append(data, deltaLine, deltaStart, t.length, t.tokenType, 0)
		prevLine = t.line
		prevStart = t.start
		first = false
	}
	return data
}
