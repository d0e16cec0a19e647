// Package fallback produces canned in-scope responses and post-processes generated answers.
package fallback

import (
	"fmt"
	"strings"
	"unicode"
)

// MinAnswerLength is the shortest generated answer that is served as-is.
const MinAnswerLength = 10

// maxExternalIndicators is the indicator count at which a generated answer is considered off-topic.
const maxExternalIndicators = 2

// Category selects the canned response text.
type Category string

// Fallback categories.
const (
	CategoryGeneralKnowledge Category = "general_knowledge"
	CategoryAdvice           Category = "advice"
	CategoryTechnical        Category = "technical"
	CategoryStandard         Category = "standard"
)

var categoryWords = []struct {
	category Category
	words    []string
}{
	{CategoryGeneralKnowledge, []string{"weather", "news", "politics"}},
	{CategoryAdvice, []string{"health", "medical", "advice"}},
	{CategoryTechnical, []string{"programming", "coding", "technical"}},
}

var templates = map[Category]string{
	CategoryStandard: "I'm here to help with questions about %[1]s. " +
		"I focus on accurate information about our company, courses, and services.\n\n" +
		"I can help you with:\n" +
		"• Information about our courses and programs\n" +
		"• Company details and background\n" +
		"• Enrollment and registration\n" +
		"• Website navigation and support\n" +
		"• Pricing and schedules\n\n" +
		"What would you like to know about %[1]s?",
	CategoryGeneralKnowledge: "Thanks for asking! I answer questions about %[1]s rather than general information.\n\n" +
		"Ask me about:\n" +
		"• Our programs and courses\n" +
		"• Company information and services\n" +
		"• Enrollment guidance and support\n\n" +
		"Is there anything about %[1]s I can help you explore today?",
	CategoryAdvice: "I can't give personal advice, but I'm glad to help with anything related to %[1]s.\n\n" +
		"For example:\n" +
		"• Finding the right course for your goals\n" +
		"• Understanding our programs and offerings\n" +
		"• Getting started with enrollment\n" +
		"• Using our learning platform\n\n" +
		"Which opportunities at %[1]s interest you most?",
	CategoryTechnical: "For technical questions I cover the %[1]s platform and services, not general technical support.\n\n" +
		"I can help with:\n" +
		"• Navigating our learning platform\n" +
		"• Course access and technical requirements\n" +
		"• Account setup and login issues\n" +
		"• The %[1]s website\n\n" +
		"Do you need help with our platform or courses?",
}

// topicSuggestions is ordered; the first matching group wins.
var topicSuggestions = []struct {
	name   string
	topics []string
}{
	{"courses", []string{"available courses", "course structure", "enrollment", "prerequisites"}},
	{"technology", []string{"platforms used", "technical requirements", "tools", "software"}},
	{"assessments", []string{"grading", "assignments", "projects", "evaluation"}},
	{"support", []string{"tutoring", "help services", "contact information"}},
}

var externalIndicators = []string{
	"according to", "research shows", "studies indicate", "experts say",
	"it is known that", "generally speaking", "in the real world",
	"outside of", "beyond", "external", "third party",
}

var callToActionPhrases = []string{"let me know", "feel free", "contact", "help you", "questions"}

// Provider renders fallback responses for one company. It never fails and is safe for concurrent use.
type Provider struct {
	company string
}

// New creates a Provider.
func New(companyName string) *Provider {
	return &Provider{company: companyName}
}

// Classify picks the fallback category for query.
func Classify(query string) Category {
	words := wordSet(query)
	for _, c := range categoryWords {
		for _, w := range c.words {
			if words[w] {
				return c.category
			}
		}
	}
	return CategoryStandard
}

// FallbackFor returns the canned response for query.
func (p *Provider) FallbackFor(query string) string {
	return fmt.Sprintf(templates[Classify(query)], p.company)
}

// Suggestions returns follow-up topics related to query.
// Without a related group it returns the first topic of the first three groups.
func (p *Provider) Suggestions(query string) []string {
	q := strings.ToLower(query)
	for _, g := range topicSuggestions {
		if strings.Contains(q, g.name) || containsAny(q, g.topics) {
			return append([]string(nil), g.topics...)
		}
	}

	out := make([]string, 0, 3)
	for _, g := range topicSuggestions[:3] {
		out = append(out, g.topics[0])
	}
	return out
}

// Finish post-processes a generated answer. Answers that are empty, too short, or lean on
// external information are replaced by the fallback for query, and usedFallback is true.
// Other answers get a closing call to action unless they already carry one.
func (p *Provider) Finish(query, answer string) (text string, usedFallback bool) {
	answer = strings.TrimSpace(answer)
	if len([]rune(answer)) < MinAnswerLength || externalCount(answer) >= maxExternalIndicators {
		return p.FallbackFor(query), true
	}

	if containsAny(strings.ToLower(answer), callToActionPhrases) {
		return answer, false
	}
	return answer + "\n\nIs there anything else about " + p.company + " that I can help you with today?", false
}

func externalCount(answer string) int {
	a := strings.ToLower(answer)
	n := 0
	for _, ind := range externalIndicators {
		if strings.Contains(a, ind) {
			n++
		}
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
