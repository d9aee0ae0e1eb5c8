package search

import (
	"net/url"
	"strings"
)

// DefaultMaxLinks caps the candidate sites taken from one results page.
const DefaultMaxLinks = 30

// FilterLinks keeps absolute http(s) links whose host is not blocked,
// unwrapping search-engine redirect links first. The result is
// deduplicated, in page order, and at most max long.
func FilterLinks(links []string, blocked *Blocklist, max int) []string {
	if max <= 0 {
		max = DefaultMaxLinks
	}
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, min(len(links), max))
	for _, raw := range links {
		if len(out) >= max {
			break
		}
		u, err := url.Parse(unwrapRedirect(strings.TrimSpace(raw)))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			continue
		}
		if blocked.IsBlocked(u.Hostname()) {
			continue
		}
		u.Fragment = ""
		link := u.String()
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// unwrapRedirect returns the target of a "/url?q=<target>" result link.
func unwrapRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path != "/url" {
		return raw
	}
	for _, key := range []string{"q", "url"} {
		if target := u.Query().Get(key); strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			return target
		}
	}
	return raw
}
