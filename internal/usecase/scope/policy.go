// Package scope decides whether a query belongs to the assistant's subject area.
package scope

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinQueryLength is the shortest normalized query that can be in scope.
const MinQueryLength = 3

// Rule names the rule that produced a verdict.
type Rule string

// Rules in evaluation order.
const (
	RuleDisabled   Rule = "disabled"
	RuleTooShort   Rule = "too_short"
	RuleCompany    Rule = "company_keyword"
	RuleRestricted Rule = "restricted_topic"
	RuleAllowed    Rule = "allowed_topic"
	RuleDefault    Rule = "default"
)

// DefaultCompanyKeywords mark a query as clearly about the company.
var DefaultCompanyKeywords = []string{
	"your company", "this company", "your courses", "your programs", "your services",
	"your website", "enroll", "register", "sign up", "join", "apply",
}

// DefaultRestrictedTopics mark a query as outside the assistant's subject area.
var DefaultRestrictedTopics = []string{
	"weather", "news", "politics", "sports", "entertainment", "celebrity",
	"movie", "music", "recipe", "cooking", "health", "medical",
	"financial advice", "investment", "stock", "cryptocurrency",
	"programming", "coding", "debug", "hardware", "troubleshoot",
	"relationship", "dating", "marriage", "psychological", "therapy", "counseling", "advice",
	"resume", "interview", "hiring", "recruitment",
	"travel", "hotel", "flight", "vacation", "tourism",
}

// DefaultAllowedTopics mark a query as in scope.
var DefaultAllowedTopics = []string{
	"company", "about us", "mission", "vision", "team", "contact", "location", "office",
	"course", "courses", "program", "programs", "training", "education", "learning",
	"class", "classes", "curriculum", "syllabus", "module", "lesson", "tutorial",
	"workshop", "seminar", "bootcamp",
	"service", "services", "enrollment", "admission", "registration", "fees", "pricing",
	"cost", "payment", "schedule", "duration", "certificate", "certification", "diploma",
	"website", "platform", "portal", "login", "account", "dashboard", "support", "faq",
}

// Config configures a Policy. Nil keyword lists select the defaults; empty non-nil lists disable a rule.
type Config struct {
	Enabled          bool
	DefaultAllow     bool
	CompanyKeywords  []string
	RestrictedTopics []string
	AllowedTopics    []string
}

// Verdict is the outcome of Check.
type Verdict struct {
	Allowed bool
	Rule    Rule
	// Matched is the keyword that fired, empty for the length and default rules.
	Matched string
}

// Policy evaluates ordered scope rules. It is safe for concurrent use.
type Policy struct {
	enabled      bool
	defaultAllow bool
	company      []matcher
	restricted   []matcher
	allowed      []matcher
}

type matcher struct {
	keyword string
	re      *regexp.Regexp
}

// New compiles a Policy.
func New(cfg Config) *Policy {
	return &Policy{
		enabled:      cfg.Enabled,
		defaultAllow: cfg.DefaultAllow,
		company:      compile(cfg.CompanyKeywords, DefaultCompanyKeywords),
		restricted:   compile(cfg.RestrictedTopics, DefaultRestrictedTopics),
		allowed:      compile(cfg.AllowedTopics, DefaultAllowedTopics),
	}
}

// Check returns the verdict of the first matching rule:
// too short, company keyword, restricted topic, allowed topic, then the default.
// Keywords match whole words, case-insensitively.
func (p *Policy) Check(query string) Verdict {
	if !p.enabled {
		return Verdict{Allowed: true, Rule: RuleDisabled}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLength {
		return Verdict{Rule: RuleTooShort}
	}
	if kw, ok := firstMatch(p.company, q); ok {
		return Verdict{Allowed: true, Rule: RuleCompany, Matched: kw}
	}
	if kw, ok := firstMatch(p.restricted, q); ok {
		return Verdict{Rule: RuleRestricted, Matched: kw}
	}
	if kw, ok := firstMatch(p.allowed, q); ok {
		return Verdict{Allowed: true, Rule: RuleAllowed, Matched: kw}
	}
	return Verdict{Allowed: p.defaultAllow, Rule: RuleDefault}
}

func compile(keywords, defaults []string) []matcher {
	if keywords == nil {
		keywords = defaults
	}
	out := make([]matcher, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, matcher{keyword: k, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)})
	}
	return out
}

func firstMatch(ms []matcher, q string) (string, bool) {
	for _, m := range ms {
		if m.re.MatchString(q) {
			return m.keyword, true
		}
	}
	return "", false
}
