package company

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"exact lowercase", "google swe intern application", "Google"},
		{"mixed case", "Microsoft Careers - SDE 2025", "Microsoft"},
		{"substring inside word", "AMAZONIA hiring drive", "Amazon"},
		{"facebook maps to meta", "Facebook University Form", "Meta"},
		{"meta direct", "Meta production engineer", "Meta"},
		{"no match", "Acme Corp backend role", ""},
		{"empty title", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.title, DefaultRules); got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

// When a title matches several rules the earliest rule in the table wins.
func TestExtractFirstMatchWins(t *testing.T) {
	if got := Extract("Google vs Amazon showdown", DefaultRules); got != "Google" {
		t.Errorf("got %q, want Google", got)
	}
	rules := []Rule{{Match: "amazon", Company: "Amazon"}, {Match: "google", Company: "Google"}}
	if got := Extract("Google vs Amazon showdown", rules); got != "Amazon" {
		t.Errorf("reordered rules: got %q, want Amazon", got)
	}
}
