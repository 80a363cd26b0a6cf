package classify

import (
	"strings"

	"github.com/tidymail/tidymail/internal/email"
)

// Criteria is the set of optional field predicates a label rule checks.
// Every configured field must match (a conjunction); within a field any
// of the configured values may match (a disjunction). All comparisons
// are case-insensitive; config normalization lowercases the values up
// front.
type Criteria struct {
	From            []string `yaml:"from"`
	FromDomain      []string `yaml:"from_domain"`
	FromName        []string `yaml:"from_name"`
	SubjectContains []string `yaml:"subject_contains"`
	BodyContains    []string `yaml:"body_contains"`
}

// Empty reports whether no criteria fields are configured. An empty set
// matches every email, so config validation rejects such rules.
func (c Criteria) Empty() bool {
	return len(c.From) == 0 &&
		len(c.FromDomain) == 0 &&
		len(c.FromName) == 0 &&
		len(c.SubjectContains) == 0 &&
		len(c.BodyContains) == 0
}

// Rule names a criteria set and records whether matches warrant a
// notification.
type Rule struct {
	Name     string   `yaml:"name"`
	Notify   bool     `yaml:"notify"`
	Criteria Criteria `yaml:"criteria"`
}

// Matches reports whether the email satisfies every configured criteria
// field, short-circuiting on the first failure.
//
// FromName is not an independent predicate. It is only consulted as a
// rescue when From was configured and the exact address comparison
// failed, so a rule carrying both fields does not require the email to
// match twice. A rule configuring FromName without From has no effect.
func Matches(e *email.Email, c Criteria) bool {
	if len(c.From) > 0 && !matchesSender(e, c) {
		return false
	}
	if len(c.FromDomain) > 0 {
		domain := strings.ToLower(e.SenderDomain())
		if !anyDomainSuffix(domain, c.FromDomain) {
			return false
		}
	}
	if len(c.SubjectContains) > 0 && !anySubstring(strings.ToLower(e.Subject), c.SubjectContains) {
		return false
	}
	if len(c.BodyContains) > 0 && !anySubstring(strings.ToLower(e.Body), c.BodyContains) {
		return false
	}
	return true
}

func matchesSender(e *email.Email, c Criteria) bool {
	addr := strings.ToLower(e.SenderAddress())
	for _, want := range c.From {
		if addr == strings.ToLower(want) {
			return true
		}
	}
	// The exact address failed; the display name can still rescue the rule.
	if len(c.FromName) > 0 {
		name := strings.ToLower(e.SenderName())
		for _, want := range c.FromName {
			if want != "" && strings.Contains(name, strings.ToLower(want)) {
				return true
			}
		}
	}
	return false
}

// anyDomainSuffix matches at label boundaries: "company.com" covers
// "company.com" and "sub.company.com" but not "notcompany.com".
func anyDomainSuffix(domain string, suffixes []string) bool {
	for _, s := range suffixes {
		s = strings.ToLower(s)
		if s == "" {
			continue
		}
		if domain == s || strings.HasSuffix(domain, "."+strings.TrimPrefix(s, ".")) {
			return true
		}
	}
	return false
}

func anySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
