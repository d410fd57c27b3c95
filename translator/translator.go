// Package translator implements RulesTranslator, spec §4.2: the
// CST→AST projection driven by a LanguageDefinition's declarative
// rules. Grounded on the Rust original's metadata/ast/rules_translator.rs
// for the two-phase "match children against queries, then recurse or
// emit a leaf" algorithm, and on the teacher's server/symbols.go
// ParseASTNode for the Go idiom of walking tree_sitter.Node children by
// index and switching on grammar name — here the switch is replaced by
// a lookup into the language definition's rule table.
package translator

import (
	"fmt"

	"github.com/lsfproject/lsf/ast"
	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/lsferr"
	"github.com/lsfproject/lsf/transport"
)

// Translator applies one LanguageDefinition's rules to a CST, producing
// an AST. Stateless across calls other than the RuleCycle guard
// scratch space, which is reset per Translate.
type Translator struct {
	ld *langdef.LanguageDefinition
}

func New(ld *langdef.LanguageDefinition) *Translator {
	return &Translator{ld: ld}
}

// Translate builds an AST arena rooted at the node produced by applying
// the "Root" rule to root. source is the full buffer the CST was parsed
// from, needed for Utf8Text.
func (t *Translator) Translate(root cst.Node, source []byte) (*ast.AST, error) {
	rootRule, ok := t.ld.RuleWithName("Root")
	if !ok {
		return nil, lsferr.New(lsferr.UnknownRule, "language definition has no Root rule")
	}

	tree := ast.New()
	a := &applier{ld: t.ld, source: source, tree: tree, stack: map[string]bool{}}
	rootID, err := a.applyRule(rootRule, root)
	if err != nil {
		return nil, err
	}
	tree.Root = rootID
	return tree, nil
}

type applier struct {
	ld     *langdef.LanguageDefinition
	source []byte
	tree   *ast.AST
	// stack holds the names of the rules on the current application
	// path: a rule reached again beneath itself (directly or through
	// others), whether at the same CST node or a smaller subtree, is a
	// RuleCycle (spec §4.2).
	stack map[string]bool
}

func (a *applier) applyRule(rule *langdef.Rule, node cst.Node) (ast.NodeID, error) {
	key := rule.Name
	if a.stack[key] {
		return 0, lsferr.New(lsferr.RuleCycle, "rule cycle detected at "+rule.Name)
	}
	a.stack[key] = true
	defer delete(a.stack, key)

	symbol := translateDirective(rule.Symbol)
	n := a.tree.NewNode(
		ast.NodeKind{Tag: ast.Named, Name: rule.Name},
		toRange(node),
		node.Utf8Text(a.source),
		symbol,
		nil,
	)

	specs := make([]langdef.MultiplicityChild, 0, len(rule.Children)+len(a.ld.GlobalChildren))
	specs = append(specs, rule.Children...)
	specs = append(specs, a.ld.GlobalChildren...)

	var children []ast.NodeID
	count := node.ChildCount()
	for i := uint32(0); i < count; i++ {
		child, ok := node.Child(i)
		if !ok {
			continue
		}
		for _, spec := range specs {
			target, matched := a.matchQuery(spec.Child.Query, node, child, i)
			if !matched {
				continue
			}
			childID, err := a.applyTarget(spec.Child.Target, target, spec.Child.Highlight)
			if err != nil {
				return 0, err
			}
			if childID != 0 {
				children = append(children, childID)
			}
			break
		}
		if child.IsError() || child.IsMissing() {
			children = append(children, a.tree.NewNode(
				ast.NodeKind{Tag: ast.Error},
				toRange(child),
				child.Utf8Text(a.source),
				ast.SymbolDirective{},
				nil,
			))
		}
	}
	a.tree.SetChildren(n, children)
	return n, nil
}

// applyTarget applies a DirectOrRule target to the matched CST node,
// either emitting a leaf (Direct) or recursing (Rule, spec §4.2 step
// 2). An unknown rule name is fatal; already rejected by langdef.Parse
// (which Load also runs), but checked again here as a defensive guard
// against a LanguageDefinition constructed without Parse.
func (a *applier) applyTarget(target langdef.DirectOrRule, node cst.Node, highlight *transport.SemanticTokenKindName) (ast.NodeID, error) {
	switch target.Variant {
	case langdef.TargetDirect:
		return a.tree.NewNode(
			ast.NodeKind{Tag: ast.Named, Name: target.Direct},
			toRange(node),
			node.Utf8Text(a.source),
			ast.SymbolDirective{},
			highlight,
		), nil
	case langdef.TargetRule:
		rule, ok := a.ld.RuleWithName(target.Rule)
		if !ok {
			return 0, lsferr.New(lsferr.UnknownRule, "unknown rule "+target.Rule)
		}
		return a.applyRule(rule, node)
	default:
		return 0, fmt.Errorf("translator: unreachable DirectOrRule variant")
	}
}

// matchQuery evaluates a CstQuery against a candidate CST child and
// returns the CST node the target should be applied to (spec §4.2:
// Kind/Field match the child itself; Path walks from the child through
// named descendants).
func (a *applier) matchQuery(q langdef.CstQuery, parent, candidate cst.Node, index uint32) (cst.Node, bool) {
	switch q.Variant {
	case langdef.QueryKind:
		if candidate.Kind() == q.Value {
			return candidate, true
		}
		return nil, false
	case langdef.QueryField:
		if parent.FieldNameForChild(index) == q.Value {
			return candidate, true
		}
		return nil, false
	case langdef.QueryPath:
		if len(q.Path) == 0 {
			return nil, false
		}
		head := q.Path[0]
		if !a.matchesSingle(head, candidate) {
			return nil, false
		}
		current := candidate
		for _, step := range q.Path[1:] {
			next, ok := firstNamedChildMatching(current, step)
			if !ok {
				return nil, false
			}
			current = next
		}
		if current == candidate {
			return nil, false // "yields a target CST node distinct from C_i or none"
		}
		return current, true
	default:
		return nil, false
	}
}

// matchesSingle evaluates Kind/Field against a node taken on its own
// (used for the first step of a Path query, which matches the
// candidate itself by kind — Field queries are meaningless without a
// parent index and are rejected as non-matching inside a Path).
func (a *applier) matchesSingle(q langdef.CstQuery, node cst.Node) bool {
	switch q.Variant {
	case langdef.QueryKind:
		return node.Kind() == q.Value
	default:
		return false
	}
}

func firstNamedChildMatching(node cst.Node, q langdef.CstQuery) (cst.Node, bool) {
	count := node.ChildCount()
	for i := uint32(0); i < count; i++ {
		c, ok := node.Child(i)
		if !ok || !c.IsNamed() {
			continue
		}
		if q.Variant == langdef.QueryKind && c.Kind() == q.Value {
			return c, true
		}
	}
	return nil, false
}

func translateDirective(s langdef.SymbolDirective) ast.SymbolDirective {
	switch s.Variant {
	case langdef.DirectiveDefine:
		return ast.SymbolDirective{Tag: ast.DirectiveDefine, Kind: s.Kind, NameChild: s.NameChild, TypeChild: s.TypeChild}
	case langdef.DirectiveUse:
		return ast.SymbolDirective{Tag: ast.DirectiveUse}
	default:
		return ast.SymbolDirective{}
	}
}

func toRange(n cst.Node) transport.Range {
	r := n.Range()
	return transport.Range{
		Start: transport.Position{Line: r.StartPoint.Row, Character: r.StartPoint.Column},
		End:   transport.Position{Line: r.EndPoint.Row, Character: r.EndPoint.Column},
	}
}
