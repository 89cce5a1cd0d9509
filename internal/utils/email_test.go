package utils

import "testing"

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"standard", "sure, it's jane.doe@example.com thanks", "jane.doe@example.com", true},
		{"standard uppercase", "Jane.Doe@Example.COM", "jane.doe@example.com", true},
		{"spoken simple", "jane at example dot com", "jane@example.com", true},
		{"spoken dotted local", "reach me at jane dot doe at example dot com", "jane.doe@example.com", true},
		{"spoken with filler", "yeah so my email is bob at acme dot co dot uk", "bob@acme.co.uk", true},
		{"spoken parens", "it's sam (at) widgets (dot) io", "sam@widgets.io", true},
		{"spoken period variant", "anna at mail period org", "anna@mail.org", true},
		{"spoken uppercase AT", "JOE AT EXAMPLE DOT NET", "joe@example.net", true},
		{"no email", "I just want to check my order status", "", false},
		{"bare at without domain", "we met at the office", "", false},
		{"at with non-domain tail", "I work at acme these days", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractEmail(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("ExtractEmail(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
