package search

import "strings"

// DefaultBlockedSubstrings drops search-engine and social-network hosts
// from result pages.
var DefaultBlockedSubstrings = []string{
	"google",
	"facebook",
	"youtube",
	"instagram",
	"twitter",
	"linkedin",
	"gstatic",
	"maps.goo.gl",
	"webcache",
}

// Blocklist matches hosts by substring, exact name, or suffix wildcard
// ("*.example.com" or ".example.com").
type Blocklist struct {
	substrings []string
	exact      map[string]struct{}
	suffixes   []string
}

// NewBlocklist builds a blocklist. nil substrings selects
// DefaultBlockedSubstrings; patterns are the configured exact/suffix hosts.
func NewBlocklist(substrings, patterns []string) *Blocklist {
	if substrings == nil {
		substrings = DefaultBlockedSubstrings
	}
	b := &Blocklist{exact: make(map[string]struct{})}
	for _, s := range substrings {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			b.substrings = append(b.substrings, s)
		}
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	return b
}

func (b *Blocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether host is excluded.
func (b *Blocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	for _, s := range b.substrings {
		if strings.Contains(host, s) {
			return true
		}
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
