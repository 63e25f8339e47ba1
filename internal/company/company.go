// Package company derives a company name from free-form title text.
package company

import "strings"

// Rule maps a lowercase substring to a canonical company name.
type Rule struct {
	Match   string
	Company string
}

// DefaultRules is the rule table applied by bookmarklet ingestion; first
// match wins. Extend the table to support more companies, the scan itself
// never changes. This is a heuristic, not a guarantee.
var DefaultRules = []Rule{
	{Match: "google", Company: "Google"},
	{Match: "microsoft", Company: "Microsoft"},
	{Match: "amazon", Company: "Amazon"},
	{Match: "meta", Company: "Meta"},
	{Match: "facebook", Company: "Meta"},
}

// Extract scans title case-insensitively against the rules in order and
// returns the first match, or "" when nothing matches.
func Extract(title string, rules []Rule) string {
	lower := strings.ToLower(title)
	for _, rule := range rules {
		if strings.Contains(lower, rule.Match) {
			return rule.Company
		}
	}
	return ""
}
