package search

import "testing"

func TestBlocklist(t *testing.T) {
	t.Run("default substrings", func(t *testing.T) {
		bl := NewBlocklist(nil, nil)
		cases := []struct {
			host    string
			blocked bool
		}{
			{"www.google.com.br", true},
			{"webcache.googleusercontent.com", true},
			{"pt-br.facebook.com", true},
			{"maps.goo.gl", true},
			{"acme.com.br", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("exact match", func(t *testing.T) {
		bl := NewBlocklist([]string{}, []string{"example.org"})
		if !bl.IsBlocked("Example.org") {
			t.Fatalf("expected example.org to be blocked")
		}
		if bl.IsBlocked("sub.example.org") {
			t.Fatalf("did not expect subdomains to match exact entry")
		}
		if bl.IsBlocked("google.com") {
			t.Fatalf("empty substring list should not block google.com")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		bl := NewBlocklist([]string{}, []string{"*.gov.br", ".ru"})
		cases := []struct {
			host    string
			blocked bool
		}{
			{"receita.gov.br", true},
			{"gov.br", true},
			{"sub.domain.ru", true},
			{"acme.com.br", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("nil blocklist", func(t *testing.T) {
		var bl *Blocklist
		if bl.IsBlocked("anything") {
			t.Fatalf("nil blocklist should never block")
		}
	})
}
