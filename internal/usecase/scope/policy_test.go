package scope

import "testing"

func enabled() *Policy {
	return New(Config{Enabled: true, DefaultAllow: true})
}

func TestCheck_RuleOrder(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		allowed bool
		rule    Rule
		matched string
	}{
		{"too short", " hi ", false, RuleTooShort, ""},
		{"company keyword", "How do I enroll in your courses?", true, RuleCompany, "your courses"},
		{"company beats restricted", "Can I apply for the music workshop?", true, RuleCompany, "apply"},
		{"restricted", "What is the weather in Pune?", false, RuleRestricted, "weather"},
		{"restricted beats allowed", "Is there a course on cooking?", false, RuleRestricted, "cooking"},
		{"allowed", "What are the fees for the bootcamp?", true, RuleAllowed, "bootcamp"},
		{"default", "Tell me something nice", true, RuleDefault, ""},
	}
	p := enabled()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := p.Check(tc.query)
			if v.Allowed != tc.allowed || v.Rule != tc.rule || v.Matched != tc.matched {
				t.Errorf("Check(%q) = %+v, want allowed=%v rule=%s matched=%q",
					tc.query, v, tc.allowed, tc.rule, tc.matched)
			}
		})
	}
}

func TestCheck_WholeWordsOnly(t *testing.T) {
	p := enabled()
	// "newsletter" must not trip the "news" rule.
	if v := p.Check("Where do I get the newsletter?"); v.Rule == RuleRestricted {
		t.Errorf("unexpected restricted verdict: %+v", v)
	}
}

func TestCheck_CaseInsensitive(t *testing.T) {
	if v := enabled().Check("LATEST POLITICS"); v.Allowed || v.Rule != RuleRestricted {
		t.Errorf("expected restricted, got %+v", v)
	}
}

func TestCheck_DefaultDeny(t *testing.T) {
	p := New(Config{Enabled: true, DefaultAllow: false})
	if v := p.Check("Tell me something nice"); v.Allowed || v.Rule != RuleDefault {
		t.Errorf("expected default deny, got %+v", v)
	}
}

func TestCheck_Disabled(t *testing.T) {
	p := New(Config{})
	for _, q := range []string{"", "weather today"} {
		if v := p.Check(q); !v.Allowed || v.Rule != RuleDisabled {
			t.Errorf("Check(%q) = %+v, want allowed by disabled policy", q, v)
		}
	}
}

func TestCheck_CustomLists(t *testing.T) {
	p := New(Config{
		Enabled:          true,
		CompanyKeywords:  []string{"Acme"},
		RestrictedTopics: []string{},
		AllowedTopics:    []string{"rockets"},
	})

	if v := p.Check("does acme sell anvils"); v.Rule != RuleCompany {
		t.Errorf("expected company rule, got %+v", v)
	}
	if v := p.Check("weather for a launch"); v.Rule != RuleDefault {
		t.Errorf("empty restricted list should disable the rule, got %+v", v)
	}
	if v := p.Check("rockets please"); v.Rule != RuleAllowed {
		t.Errorf("expected allowed rule, got %+v", v)
	}
}
