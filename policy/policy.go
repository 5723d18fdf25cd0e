package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Rule grants access to every route under Pattern to principals holding
// at least one of RequiredRoles (OR semantics).
type Rule struct {
	Pattern       string
	RequiredRoles []string
}

// Table is the read-only set of route policies consulted by the decision
// engine. Build validates and freezes the rule set; a Table is never
// mutated afterwards, so concurrent lookups need no locking. Reloads are
// done by building a fresh Table and swapping the pointer atomically.
type Table struct {
	rules []Rule
}

// NewTable validates rules and returns an immutable Table. Patterns must
// be non-empty, absolute ("/..."), and unique; every rule needs at least
// one required role — a role-less rule would silently allow nothing or
// everything depending on interpretation, so it is rejected outright.
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	frozen := make([]Rule, 0, len(rules))

	for _, rule := range rules {
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" || !strings.HasPrefix(pattern, "/") {
			return nil, fmt.Errorf("invalid route pattern %q", rule.Pattern)
		}
		if _, dup := seen[pattern]; dup {
			return nil, fmt.Errorf("duplicate route pattern %q", pattern)
		}
		if len(rule.RequiredRoles) == 0 {
			return nil, fmt.Errorf("route pattern %q has no required roles", pattern)
		}
		for _, role := range rule.RequiredRoles {
			if strings.TrimSpace(role) == "" {
				return nil, fmt.Errorf("route pattern %q has an empty required role", pattern)
			}
		}

		seen[pattern] = struct{}{}
		frozen = append(frozen, Rule{
			Pattern:       pattern,
			RequiredRoles: append([]string(nil), rule.RequiredRoles...),
		})
	}

	if len(frozen) == 0 {
		return nil, errors.New("policy table requires at least one rule")
	}

	// Longest patterns first so Match can return the first prefix hit.
	sort.SliceStable(frozen, func(i, j int) bool {
		return len(frozen[i].Pattern) > len(frozen[j].Pattern)
	})

	return &Table{rules: frozen}, nil
}

// Match returns the most specific rule whose pattern is a path prefix of
// route. The boolean is false when no rule matches; callers must treat
// that as deny (fail-closed), never as allow.
func (t *Table) Match(route string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	for _, rule := range t.rules {
		if prefixMatch(route, rule.Pattern) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// prefixMatch matches on path segments: pattern "/api/billing" covers
// "/api/billing" and "/api/billing/invoices" but not "/api/billingx".
func prefixMatch(route, pattern string) bool {
	if pattern == "/" {
		return strings.HasPrefix(route, "/")
	}
	if !strings.HasPrefix(route, pattern) {
		return false
	}
	return len(route) == len(pattern) || route[len(pattern)] == '/'
}
