// Package langdef implements the process-wide LanguageDefinition (spec
// §4.1): a declarative grammar of rules, queries and symbol directives
// parsed once from a YAML document and published as an immutable
// singleton, mirroring the teacher's single global TSParser/logging
// singletons and the Rust original's OnceCell-backed LanguageDefinition.
package langdef

import (
	"fmt"
	"sync"

	"github.com/lsfproject/lsf/lsferr"
	"github.com/lsfproject/lsf/transport"
	"gopkg.in/yaml.v3"
)

// Multiplicity is advisory cardinality on a ChildSpec (spec §4.1). The
// translator does not enforce it today; kept so a future rule-cycle or
// arity checker has somewhere to read it from.
type Multiplicity int

const (
	One Multiplicity = iota
	Maybe
	Many
)

func (m *Multiplicity) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "one", "One":
		*m = One
	case "maybe", "Maybe":
		*m = Maybe
	case "many", "Many":
		*m = Many
	default:
		return fmt.Errorf("unknown multiplicity %q", s)
	}
	return nil
}

// CstQueryKind tags the variant of a CstQuery.
type CstQueryKind int

const (
	QueryKind CstQueryKind = iota
	QueryField
	QueryPath
)

// CstQuery is `Kind(string) | Field(string) | Path([]CstQuery)` from
// spec §4.1, decoded from one of three YAML shapes:
//
//	kind: foo
//	field: bar
//	path: [{kind: a}, {field: b}]
type CstQuery struct {
	Variant CstQueryKind
	Value   string
	Path    []CstQuery
}

func (q *CstQuery) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Kind  *string    `yaml:"kind"`
		Field *string    `yaml:"field"`
		Path  []CstQuery `yaml:"path"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Kind != nil:
		q.Variant = QueryKind
		q.Value = *raw.Kind
	case raw.Field != nil:
		q.Variant = QueryField
		q.Value = *raw.Field
	case raw.Path != nil:
		q.Variant = QueryPath
		q.Path = raw.Path
	default:
		return fmt.Errorf("cst query must set one of kind/field/path")
	}
	return nil
}

// DirectOrRuleKind tags the variant of a DirectOrRule.
type DirectOrRuleKind int

const (
	TargetDirect DirectOrRuleKind = iota
	TargetRule
)

// DirectOrRule is `Direct(NodeKind) | Rule(rule_name)` from spec §4.1.
// Direct names a leaf AST node kind (ast.NodeKind's Named variant)
// produced without recursing into another rule; Rule names a rule to
// apply recursively.
type DirectOrRule struct {
	Variant DirectOrRuleKind
	Direct  string
	Rule    string
}

func (d *DirectOrRule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Direct *string `yaml:"direct"`
		Rule   *string `yaml:"rule"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Direct != nil:
		d.Variant = TargetDirect
		d.Direct = *raw.Direct
	case raw.Rule != nil:
		d.Variant = TargetRule
		d.Rule = *raw.Rule
	default:
		return fmt.Errorf("child target must set direct or rule")
	}
	return nil
}

// Child is a ChildSpec: `{query, target, highlight}`.
type Child struct {
	Query     CstQuery                    `yaml:"query"`
	Target    DirectOrRule                `yaml:"target"`
	Highlight *transport.SemanticTokenKindName `yaml:"highlight,omitempty"`
}

// MultiplicityChild pairs a Multiplicity with its Child, the
// `Multiplicity<ChildSpec>` of spec §4.1.
type MultiplicityChild struct {
	Multiplicity Multiplicity `yaml:"multiplicity"`
	Child        Child        `yaml:"child"`
}

// SymbolDirectiveKind tags the variant of a SymbolDirective.
type SymbolDirectiveKind int

const (
	DirectiveNone SymbolDirectiveKind = iota
	DirectiveDefine
	DirectiveUse
)

// SymbolDirective is `None | Define{kind, name_child, type_child} | Use`
// (spec §3). TypeChild is optional: when set, it names the rule/direct
// target (matched the same way NameChild is — via
// ast.AST.FirstChildOfKind) whose own Use resolution becomes this
// symbol's TypeRef (SPEC_FULL "Field-typed hover chains").
type SymbolDirective struct {
	Variant   SymbolDirectiveKind
	Kind      string `yaml:"type"`
	NameChild string `yaml:"name_child"`
	TypeChild string `yaml:"type_child"`
}

func (s *SymbolDirective) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Define *struct {
			Kind      string `yaml:"type"`
			NameChild string `yaml:"name_child"`
			TypeChild string `yaml:"type_child"`
		} `yaml:"define"`
		Use *bool `yaml:"use"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Define != nil:
		s.Variant = DirectiveDefine
		s.Kind = raw.Define.Kind
		s.NameChild = raw.Define.NameChild
		s.TypeChild = raw.Define.TypeChild
	case raw.Use != nil && *raw.Use:
		s.Variant = DirectiveUse
	default:
		s.Variant = DirectiveNone
	}
	return nil
}

// Rule is `{name, symbol, is_scope, children}` (spec §4.1).
type Rule struct {
	Name     string              `yaml:"name"`
	Symbol   SymbolDirective     `yaml:"symbol"`
	IsScope  bool                `yaml:"is_scope"`
	Children []MultiplicityChild `yaml:"children"`
}

// SymbolDef is one `symbol_types` entry: `{name, completion_kind,
// semantic_token_kind}`.
type SymbolDef struct {
	Name             string                             `yaml:"name"`
	CompletionKind   transport.CompletionItemKind        `yaml:"completion_kind"`
	SemanticTokenKind transport.SemanticTokenKindName    `yaml:"semantic_token_kind"`
}

// LanguageDefinition is the process-wide, immutable configuration
// loaded once from a declarative YAML document (spec §4.1).
type LanguageDefinition struct {
	Keywords    []string    `yaml:"keywords"`
	SymbolTypes []SymbolDef `yaml:"symbol_types"`
	AstRules    []Rule      `yaml:"ast_rules"`
	// GlobalChildren are ChildSpecs evaluated against every rule's CST
	// children in addition to that rule's own children (spec §4.2 step 2:
	// "rule.children followed by global child specs declared on the
	// language definition"). Optional; most definitions leave this empty.
	GlobalChildren []MultiplicityChild `yaml:"global_children,omitempty"`

	// Derived tables, computed once at Load.
	scopeRuleNames   map[string]struct{}
	semanticTokenOrder []transport.SemanticTokenKindName
	keywordSet       map[string]struct{}
	rulesByName      map[string]*Rule
}

var (
	mu       sync.Mutex
	instance *LanguageDefinition
)

// Load parses and publishes the singleton LanguageDefinition. Calling
// Load twice is a programming error — the process-wide state documented
// in spec §9 is write-once, read-many.
func Load(doc []byte) error {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return lsferr.New(lsferr.ConfigInvalid, "language definition already loaded")
	}

	ld, err := Parse(doc)
	if err != nil {
		return err
	}

	instance = ld
	return nil
}

// Parse decodes and validates a language-definition document without
// touching the process-wide singleton. Exposed so tests (and any tool
// that wants to lint a language definition offline) can build a
// LanguageDefinition without Load's write-once restriction.
func Parse(doc []byte) (*LanguageDefinition, error) {
	var ld LanguageDefinition
	if err := yaml.Unmarshal(doc, &ld); err != nil {
		return nil, lsferr.Wrap(lsferr.ConfigInvalid, "parsing language definition", err)
	}

	if err := ld.validate(); err != nil {
		return nil, err
	}

	ld.buildDerivedTables()
	return &ld, nil
}

// Get returns the loaded singleton. Panics (as the Rust original's
// `.expect` does) if called before Load — this is a programmer error,
// not a recoverable runtime condition.
func Get() *LanguageDefinition {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		panic("langdef: LanguageDefinition has not been loaded")
	}
	return instance
}

// Loaded reports whether Load has run, for callers that want to check
// without panicking (e.g. server Initialize, before the language
// definition flag has been supplied).
func Loaded() bool {
	mu.Lock()
	defer mu.Unlock()
	return instance != nil
}

// reset clears the singleton. Test-only: production code never calls
// this, since re-initialization is forbidden by spec §9.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
}

func (ld *LanguageDefinition) validate() error {
	seenRoot := false
	names := make(map[string]struct{}, len(ld.AstRules))
	for i := range ld.AstRules {
		r := &ld.AstRules[i]
		if r.Name == "" {
			return lsferr.New(lsferr.ConfigInvalid, "rule missing name")
		}
		if _, dup := names[r.Name]; dup {
			return lsferr.New(lsferr.ConfigInvalid, fmt.Sprintf("duplicate rule name %q", r.Name))
		}
		names[r.Name] = struct{}{}
		if r.Name == "Root" {
			seenRoot = true
		}
	}
	if !seenRoot {
		return lsferr.New(lsferr.ConfigInvalid, "language definition must declare exactly one rule named Root")
	}

	// Unknown rule references are fatal at translator startup (spec §4.2).
	checkRefs := func(owner string, children []MultiplicityChild) error {
		for _, mc := range children {
			if mc.Child.Target.Variant == TargetRule {
				if _, ok := names[mc.Child.Target.Rule]; !ok {
					return lsferr.New(lsferr.UnknownRule, fmt.Sprintf("rule %q references unknown rule %q", owner, mc.Child.Target.Rule))
				}
			}
		}
		return nil
	}
	for i := range ld.AstRules {
		r := &ld.AstRules[i]
		if err := checkRefs(r.Name, r.Children); err != nil {
			return err
		}
	}
	if err := checkRefs("<global>", ld.GlobalChildren); err != nil {
		return err
	}

	if cycle := detectRuleCycle(ld.AstRules); cycle != "" {
		return lsferr.New(lsferr.RuleCycle, "rule cycle detected at "+cycle)
	}

	return nil
}

// detectRuleCycle walks the rule-reference graph with the classic
// white/gray/black DFS coloring; it returns the name of a rule found
// on a cycle, or "" if the rule graph is acyclic.
func detectRuleCycle(rules []Rule) string {
	byName := make(map[string]*Rule, len(rules))
	for i := range rules {
		byName[rules[i].Name] = &rules[i]
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(rules))

	var visit func(name string) string
	visit = func(name string) string {
		switch color[name] {
		case gray:
			return name
		case black:
			return ""
		}
		color[name] = gray
		r, ok := byName[name]
		if ok {
			for _, mc := range r.Children {
				if mc.Child.Target.Variant == TargetRule {
					if cyc := visit(mc.Child.Target.Rule); cyc != "" {
						return cyc
					}
				}
			}
		}
		color[name] = black
		return ""
	}

	for _, r := range rules {
		if cyc := visit(r.Name); cyc != "" {
			return cyc
		}
	}
	return ""
}

func (ld *LanguageDefinition) buildDerivedTables() {
	ld.scopeRuleNames = make(map[string]struct{})
	ld.rulesByName = make(map[string]*Rule, len(ld.AstRules))
	for i := range ld.AstRules {
		r := &ld.AstRules[i]
		ld.rulesByName[r.Name] = r
		if r.IsScope {
			ld.scopeRuleNames[r.Name] = struct{}{}
		}
	}

	ld.keywordSet = make(map[string]struct{}, len(ld.Keywords))
	for _, kw := range ld.Keywords {
		ld.keywordSet[kw] = struct{}{}
	}

	seen := make(map[transport.SemanticTokenKindName]struct{})
	if len(ld.Keywords) > 0 {
		// The Rust original hardcodes keyword tokens to legend index 0
		// (features/semantic_tokens.rs get_keyword_color_data) without
		// reserving that slot, which only worked when a language
		// definition happened to declare a symbol type mapping to
		// "keyword" first. Reserving the slot explicitly here makes the
		// index correct regardless of symbol_types order.
		seen[keywordTokenKind] = struct{}{}
		ld.semanticTokenOrder = append(ld.semanticTokenOrder, keywordTokenKind)
	}
	for _, st := range ld.SymbolTypes {
		if _, ok := seen[st.SemanticTokenKind]; ok {
			continue
		}
		seen[st.SemanticTokenKind] = struct{}{}
		ld.semanticTokenOrder = append(ld.semanticTokenOrder, st.SemanticTokenKind)
	}

	// The Rust original builds the legend from symbol_types alone and
	// expects every ChildSpec.highlight value to already be one of those
	// kinds, panicking (semantic_tokens.rs get_ast_color_data's .unwrap())
	// when a highlight names something new. Folding highlight kinds into
	// the legend here instead lets a language definition introduce
	// highlight-only kinds (e.g. "comment") that no symbol_type uses;
	// SemanticTokenIndexForKind already degrades to -1 (token dropped,
	// not a panic) for any kind that still isn't present.
	addHighlights := func(children []MultiplicityChild) {
		for _, mc := range children {
			h := mc.Child.Highlight
			if h == nil {
				continue
			}
			if _, ok := seen[*h]; ok {
				continue
			}
			seen[*h] = struct{}{}
			ld.semanticTokenOrder = append(ld.semanticTokenOrder, *h)
		}
	}
	for i := range ld.AstRules {
		addHighlights(ld.AstRules[i].Children)
	}
	addHighlights(ld.GlobalChildren)
}

// keywordTokenKind is the semantic-token legend entry reserved for
// keyword tokens (spec §4.7 source 1), distinct from any symbol kind.
const keywordTokenKind transport.SemanticTokenKindName = "keyword"

// KeywordTokenIndex returns the legend index keyword tokens are emitted
// under, or -1 if this language definition declares no keywords.
func (ld *LanguageDefinition) KeywordTokenIndex() int {
	if len(ld.Keywords) == 0 {
		return -1
	}
	return 0
}

// RuleWithName looks up a rule by its node name, mirroring the Rust
// original's `rule_with_name`.
func (ld *LanguageDefinition) RuleWithName(name string) (*Rule, bool) {
	r, ok := ld.rulesByName[name]
	return r, ok
}

// IsScopeRule reports whether a rule's produced AST node opens a new
// lexical scope.
func (ld *LanguageDefinition) IsScopeRule(name string) bool {
	_, ok := ld.scopeRuleNames[name]
	return ok
}

// SemanticTokenLegend returns the unique semantic-token kinds in
// first-seen order — the LSP legend (spec §4.1, §6).
func (ld *LanguageDefinition) SemanticTokenLegend() []transport.SemanticTokenKindName {
	return ld.semanticTokenOrder
}

// IsKeyword reports whether a source token is in the keyword set.
func (ld *LanguageDefinition) IsKeyword(token string) bool {
	_, ok := ld.keywordSet[token]
	return ok
}

// CompletionKindFor maps a symbol's kind name (the bucket it was
// Defined under) to the LSP completion-item kind for it.
func (ld *LanguageDefinition) CompletionKindFor(symbolKind string) (transport.CompletionItemKind, bool) {
	for _, st := range ld.SymbolTypes {
		if st.Name == symbolKind {
			return st.CompletionKind, true
		}
	}
	return 0, false
}

// SemanticTokenKindIndex maps a symbol's kind name to its semantic-token
// legend index, or -1 if unmapped.
func (ld *LanguageDefinition) SemanticTokenKindIndex(symbolKind string) int {
	for _, st := range ld.SymbolTypes {
		if st.Name == symbolKind {
			return ld.SemanticTokenIndexForKind(st.SemanticTokenKind)
		}
	}
	return -1
}

// SemanticTokenIndexForKind returns kind's legend index, or -1 if it
// names no legend entry. Used directly for AST-hint tokens (spec §4.7
// source 3), whose highlight hint is already a SemanticTokenKindName
// rather than a symbol kind needing the SymbolTypes indirection above.
func (ld *LanguageDefinition) SemanticTokenIndexForKind(kind transport.SemanticTokenKindName) int {
	for i, k := range ld.semanticTokenOrder {
		if k == kind {
			return i
		}
	}
	return -1
}
