package langdef

import "testing"

// White-box tests exercise validate()/detectRuleCycle directly so they
// don't collide with the write-once Load singleton exercised by
// langdef_test.go.

func TestValidateRejectsMissingRoot(t *testing.T) {
	ld := LanguageDefinition{AstRules: []Rule{{Name: "NotRoot"}}}
	err := ld.validate()
	if err == nil {
		t.Fatal("expected error for missing Root rule")
	}
}

func TestValidateRejectsUnknownRule(t *testing.T) {
	ld := LanguageDefinition{
		AstRules: []Rule{
			{
				Name: "Root",
				Children: []MultiplicityChild{
					{Child: Child{Target: DirectOrRule{Variant: TargetRule, Rule: "Missing"}}},
				},
			},
		},
	}
	err := ld.validate()
	if err == nil {
		t.Fatal("expected error for unknown rule reference")
	}
}

func TestDetectRuleCycle(t *testing.T) {
	rules := []Rule{
		{Name: "Root", Children: []MultiplicityChild{
			{Child: Child{Target: DirectOrRule{Variant: TargetRule, Rule: "A"}}},
		}},
		{Name: "A", Children: []MultiplicityChild{
			{Child: Child{Target: DirectOrRule{Variant: TargetRule, Rule: "B"}}},
		}},
		{Name: "B", Children: []MultiplicityChild{
			{Child: Child{Target: DirectOrRule{Variant: TargetRule, Rule: "A"}}},
		}},
	}
	if cyc := detectRuleCycle(rules); cyc == "" {
		t.Fatal("expected a cycle to be detected")
	}
}

func TestDetectRuleCycleAcyclic(t *testing.T) {
	rules := []Rule{
		{Name: "Root", Children: []MultiplicityChild{
			{Child: Child{Target: DirectOrRule{Variant: TargetRule, Rule: "A"}}},
		}},
		{Name: "A"},
	}
	if cyc := detectRuleCycle(rules); cyc != "" {
		t.Fatalf("expected no cycle, got %q", cyc)
	}
}
