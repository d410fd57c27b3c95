// Package symtab implements the SymbolTable data model and the
// two-pass builder of spec §4.4: scope/definition discovery over a
// freshly built AST, then usage resolution against the scope chain,
// including the dotted qualified lookup completion relies on.
// Grounded on the teacher's server/symbols.go (Scope, FindSymbol*,
// RangeContains, FindLowestScopeContainingRange) and the Rust
// original's metadata/symbol_table.rs, in particular
// get_symbols_in_scope's ancestor-merge-with-per-scope-visibility
// behavior (SPEC_FULL "SUPPLEMENTED FEATURES").
package symtab

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/lsfproject/lsf/ast"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/transport"
)

// symbolIDCounter is the process-wide monotonic symbol-id source spec
// §5/§9 names explicitly. Shared across every file in the workspace so
// SymbolRefs are unambiguous workspace-wide.
var symbolIDCounter uint64

func nextSymbolID() uint64 {
	return atomic.AddUint64(&symbolIDCounter, 1)
}

// Field is a named sub-entity of a Symbol (spec §3): its own range,
// usages and optional type reference, used for qualified (dotted)
// lookup and field-typed hover.
type Field struct {
	Name     string
	Range    transport.Range
	Usages   []transport.Range
	TypeRef  *ast.SymbolRef
}

// Symbol is one defined name: a stable process-unique id, its
// definition range, the ranges of every resolved usage, and an
// optional type reference and Fields list for struct-shaped languages.
type Symbol struct {
	ID       uint64
	Name     string
	DefRange transport.Range
	Usages   []transport.Range
	TypeRef  *ast.SymbolRef
	Fields   []Field
}

// ScopeID indexes into a SymbolTable's scope arena.
type ScopeID uint32

// ScopeSymbolTable is one lexical scope: its range, and symbols bucketed
// by kind name (the value a rule's Define{kind} directive used).
type ScopeSymbolTable struct {
	ID       ScopeID
	Range    transport.Range
	Buckets  map[string][]*Symbol
	// order preserves definition order across all buckets, needed for
	// "first match wins" name resolution regardless of bucket (spec §9
	// "ambiguity between symbol buckets" — pinned as: scan in definition
	// order, ignore bucket).
	order    []*Symbol
	Parent   ScopeID
	Children []ScopeID
}

// allSymbols returns every symbol in this scope in definition order.
func (s *ScopeSymbolTable) allSymbols() []*Symbol { return s.order }

// SymbolTable is the arena of ScopeSymbolTables built from one File's
// AST, plus the list of usage ranges Pass 2 could not resolve.
type SymbolTable struct {
	scopes    []ScopeSymbolTable
	Root      ScopeID
	Undefined []transport.Range
}

// Scope returns the scope at id.
func (st *SymbolTable) Scope(id ScopeID) *ScopeSymbolTable { return &st.scopes[id] }

// Build runs both passes of spec §4.4 over tree, using ld's scope set
// and Define/Use directives already attached to the AST by translator.
// fileID is stamped onto every Linked SymbolRef this pass creates, so a
// ref pointing at a symbol defined in this same file still carries the
// owning FileID a cross-file Resolver needs (spec §4.6) — not just refs
// that cross a file boundary.
func Build(tree *ast.AST, ld *langdef.LanguageDefinition, fileID uint32) *SymbolTable {
	st := &SymbolTable{scopes: []ScopeSymbolTable{{}}} // reserve index 0
	root := st.newScope(tree.Node(tree.Root).Range, 0)
	st.Root = root

	b := &builder{tree: tree, ld: ld, st: st, fileID: fileID}
	b.walkDefine(tree.Root, root)
	b.walkUse(tree.Root, root)

	// A symbol's type_child (if the defining rule names one) is itself a
	// Use node resolved by walkUse above; its TypeRef can only be read
	// off that node's Linked ref once Pass 2 has run.
	for _, p := range b.typeRefs {
		p.sym.TypeRef = b.tree.Node(p.typeChild).Linked
	}

	return st
}

func (st *SymbolTable) newScope(rng transport.Range, parent ScopeID) ScopeID {
	id := ScopeID(len(st.scopes))
	st.scopes = append(st.scopes, ScopeSymbolTable{ID: id, Range: rng, Buckets: map[string][]*Symbol{}, Parent: parent})
	if id != 0 {
		st.scopes[parent].Children = append(st.scopes[parent].Children, id)
	}
	return id
}

type builder struct {
	tree   *ast.AST
	ld     *langdef.LanguageDefinition
	st     *SymbolTable
	fileID uint32

	// typeRefs defers Define's type_child wiring until after Pass 2, since
	// the type child's own Use resolution (its Linked ref) doesn't exist
	// until walkUse has visited it.
	typeRefs []pendingTypeRef
}

type pendingTypeRef struct {
	sym       *Symbol
	typeChild ast.NodeID
}

// walkDefine is Pass 1: depth-first pre-order, opening a scope on
// scope-kind nodes and recording Define directives into the current
// innermost scope.
func (b *builder) walkDefine(id ast.NodeID, scope ScopeID) {
	n := b.tree.Node(id)

	current := scope
	if n.Kind.Tag == ast.Named && b.ld.IsScopeRule(n.Kind.Name) && id != b.tree.Root {
		current = b.st.newScope(n.Range, scope)
	}

	if n.Symbol.Tag == ast.DirectiveDefine {
		if nameChild, ok := b.tree.FirstChildOfKind(id, n.Symbol.NameChild); ok {
			nc := b.tree.Node(nameChild)
			sym := &Symbol{ID: nextSymbolID(), Name: nc.Content, DefRange: nc.Range}
			sc := b.st.Scope(current)
			sc.Buckets[n.Symbol.Kind] = append(sc.Buckets[n.Symbol.Kind], sym)
			sc.order = append(sc.order, sym)

			if n.Symbol.TypeChild != "" {
				if typeChild, ok := b.tree.FirstChildOfKind(id, n.Symbol.TypeChild); ok {
					b.typeRefs = append(b.typeRefs, pendingTypeRef{sym: sym, typeChild: typeChild})
				}
			}
		}
	}

	for _, c := range b.tree.Children(id) {
		b.walkDefine(c, current)
	}
}

// walkUse is Pass 2: for every Use-directive node, resolve its name
// against the scope chain rooted at the innermost scope containing the
// node, honoring definition-before-use visibility.
func (b *builder) walkUse(id ast.NodeID, scope ScopeID) {
	n := b.tree.Node(id)

	current := scope
	if n.Kind.Tag == ast.Named && b.ld.IsScopeRule(n.Kind.Name) && id != b.tree.Root {
		current = b.innermostScopeContaining(current, n.Range)
	}

	if n.Symbol.Tag == ast.DirectiveUse {
		innermost := b.innermostScopeContaining(current, n.Range)
		if sym, found := b.resolve(innermost, n.Content, n.Range); found {
			sym.Usages = append(sym.Usages, n.Range)
			b.tree.Node(id).Linked = &ast.SymbolRef{FileID: b.fileID, SymbolID: sym.ID}
		} else {
			b.st.Undefined = append(b.st.Undefined, n.Range)
		}
	}

	for _, c := range b.tree.Children(id) {
		b.walkUse(c, current)
	}
}

// innermostScopeContaining finds the deepest descendant of start whose
// range strictly contains rng, falling back to start itself.
func (b *builder) innermostScopeContaining(start ScopeID, rng transport.Range) ScopeID {
	current := start
	for {
		advanced := false
		for _, c := range b.st.Scope(current).Children {
			cs := b.st.Scope(c)
			if strictlyContains(cs.Range, rng) {
				current = c
				advanced = true
				break
			}
		}
		if !advanced {
			return current
		}
	}
}

func strictlyContains(outer, inner transport.Range) bool {
	return lessPos(outer.Start, inner.Start) && lessPos(inner.End, outer.End)
}

func lessPos(a, b transport.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

func lessOrEqualPos(a, b transport.Position) bool {
	return a == b || lessPos(a, b)
}

// resolve walks the scope chain from scope up through its ancestors,
// returning the first symbol (any bucket, definition order) with the
// given name whose definition ends strictly before useRange.Start.
func (b *builder) resolve(scope ScopeID, name string, useRange transport.Range) (*Symbol, bool) {
	for s := scope; ; {
		sc := b.st.Scope(s)
		for _, sym := range sc.allSymbols() {
			if sym.Name == name && lessPos(sym.DefRange.End, useRange.Start) {
				return sym, true
			}
		}
		if s == b.st.Root {
			return nil, false
		}
		s = sc.Parent
	}
}

// ScopeAt returns the deepest scope whose range strictly contains pos,
// or the root scope if none does (spec §4.4 "Scope lookup for a
// Position P").
func (st *SymbolTable) ScopeAt(pos transport.Position) ScopeID {
	current := st.Root
	for {
		advanced := false
		for _, c := range st.Scope(current).Children {
			cs := st.Scope(c)
			if lessPos(cs.Range.Start, pos) && lessPos(pos, cs.Range.End) {
				current = c
				advanced = true
				break
			}
		}
		if !advanced {
			return current
		}
	}
}

// SymbolsInScope merges the symbols visible at pos across every
// ancestor scope, filtering each ancestor's symbols by its own
// visibility cutoff independently rather than only the innermost
// scope's — the Rust original's get_symbols_in_scope ancestor-merge
// behavior (SPEC_FULL supplemented feature).
func (st *SymbolTable) SymbolsInScope(pos transport.Position) map[string][]*Symbol {
	path := st.scopePath(pos)
	merged := map[string][]*Symbol{}
	for _, id := range path {
		sc := st.Scope(id)
		for kind, syms := range sc.Buckets {
			for _, sym := range syms {
				if lessPos(sym.DefRange.End, pos) {
					merged[kind] = append(merged[kind], sym)
				}
			}
		}
	}
	return merged
}

// scopePath returns the chain of scopes from root to the innermost
// scope containing pos, root first.
func (st *SymbolTable) scopePath(pos transport.Position) []ScopeID {
	path := []ScopeID{st.Root}
	current := st.Root
	for {
		advanced := false
		for _, c := range st.Scope(current).Children {
			cs := st.Scope(c)
			if lessPos(cs.Range.Start, pos) && lessPos(pos, cs.Range.End) {
				current = c
				path = append(path, c)
				advanced = true
				break
			}
		}
		if !advanced {
			return path
		}
	}
}

// FindByName looks for a symbol visible at pos by name, regardless of
// bucket, using the same resolution rule as Pass 2 (first match in
// definition order, filtered by visibility).
func (st *SymbolTable) FindByName(pos transport.Position, name string) (*Symbol, bool) {
	scope := st.ScopeAt(pos)
	for s := scope; ; {
		sc := st.Scope(s)
		for _, sym := range sc.allSymbols() {
			if sym.Name == name && lessPos(sym.DefRange.End, pos) {
				return sym, true
			}
		}
		if s == st.Root {
			return nil, false
		}
		s = sc.Parent
	}
}

// KindSymbol pairs a Symbol with the bucket kind it was defined under,
// since Symbol itself does not carry its kind (the bucket key does).
type KindSymbol struct {
	Kind   string
	Symbol *Symbol
}

// AllSymbols returns every symbol across every scope, tagged with its
// kind — spec §4.7 source 2 ("for every Symbol, emit tokens..."),
// grounded on the Rust original's SymbolTableQuery::get_all_symbols.
func (st *SymbolTable) AllSymbols() []KindSymbol {
	var out []KindSymbol
	for i := range st.scopes {
		sc := &st.scopes[i]
		for kind, syms := range sc.Buckets {
			for _, sym := range syms {
				out = append(out, KindSymbol{Kind: kind, Symbol: sym})
			}
		}
	}
	return out
}

// FindTopLevel looks up a symbol defined directly in the root scope by
// name, ignoring the definition-before-use visibility cutoff —
// position has no meaning when the lookup originates from another
// file. Used by the FileGraph cross-file resolution pass (spec §4.6),
// ported from the Rust original's get_top_level_symbols.
func (st *SymbolTable) FindTopLevel(name string) (*Symbol, bool) {
	for _, sym := range st.Scope(st.Root).allSymbols() {
		if sym.Name == name {
			return sym, true
		}
	}
	return nil, false
}

// ResolveRef looks up a Symbol given a SymbolRef whose target may live
// in another file; file.File.Completion builds one from the
// file.Resolver it is given (FileGraph-backed under lspserver), while
// in-file-only callers can pass a resolver that only consults
// st.SymbolByID.
type ResolveRef func(ast.SymbolRef) (*Symbol, bool)

// QualifiedLookup resolves a dotted chain "a.b.c" rooted at pos (spec
// §4.4). The first segment resolves through the scope chain; each
// further segment looks up a Field by name on the current Symbol, then
// follows that Field's type reference (if any) to the Symbol it names
// before looking up the next segment. The result is the final symbol's
// Fields (empty if any segment misses or lacks a type reference).
func (st *SymbolTable) QualifiedLookup(pos transport.Position, chain []string, resolve ResolveRef) []Field {
	if len(chain) == 0 {
		return nil
	}
	sym, ok := st.FindByName(pos, chain[0])
	if !ok {
		return nil
	}
	for _, segment := range chain[1:] {
		field, found := fieldByName(sym.Fields, segment)
		if !found || field.TypeRef == nil {
			return nil
		}
		next, ok := resolve(*field.TypeRef)
		if !ok {
			return nil
		}
		sym = next
	}
	return sym.Fields
}

func fieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Rename sets a symbol's name in place (spec §4.4); definition and
// usage ranges are left untouched — the caller turns those ranges into
// the WorkspaceEdit.
func (st *SymbolTable) Rename(id uint64, newName string) bool {
	for i := range st.scopes {
		for _, sym := range st.scopes[i].order {
			if sym.ID == id {
				sym.Name = newName
				return true
			}
		}
	}
	return false
}

// SymbolByID finds a symbol anywhere in the table by id, used by
// goto-definition/hover after a linked_symbol lookup.
func (st *SymbolTable) SymbolByID(id uint64) (*Symbol, bool) {
	for i := range st.scopes {
		for _, sym := range st.scopes[i].order {
			if sym.ID == id {
				return sym, true
			}
		}
	}
	return nil, false
}

// String renders a tabular dump of every scope and symbol, ported from
// the Rust original's `impl fmt::Display for SymbolTable` for debug
// logging (SPEC_FULL supplemented feature).
func (st *SymbolTable) String() string {
	var b strings.Builder
	var walk func(id ScopeID, depth int)
	walk = func(id ScopeID, depth int) {
		sc := st.Scope(id)
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%sscope[%d] %v\n", indent, id, sc.Range)
		for kind, syms := range sc.Buckets {
			for _, sym := range syms {
				fmt.Fprintf(&b, "%s  %s %s #%d def=%v uses=%d\n", indent, kind, sym.Name, sym.ID, sym.DefRange, len(sym.Usages))
			}
		}
		for _, c := range sc.Children {
			walk(c, depth+1)
		}
	}
	walk(st.Root, 0)
	return b.String()
}
