package emails

import "strings"

const minAddressLength = 6

// DefaultBlockedDomains are free-mail, placeholder, and social providers.
var DefaultBlockedDomains = []string{
	"example.com",
	"test.com",
	"gmail.com",
	"hotmail.com",
	"yahoo.com",
	"outlook.com",
	"live.com",
	"icloud.com",
	"support.google.com",
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"linkedin.com",
	"youtube.com",
}

// DefaultBlockedPrefixes are local-part tokens of automated mailboxes.
var DefaultBlockedPrefixes = []string{
	"noreply",
	"no-reply",
	"donotreply",
	"bounce",
	"mailer-daemon",
}

// Filter rejects addresses that are unlikely to reach a business contact.
// The zero value is not usable; build one with NewFilter.
type Filter struct {
	domains  map[string]struct{}
	prefixes []string
}

// NewFilter builds a Filter. Nil lists fall back to the defaults; an empty
// non-nil list disables that rule.
func NewFilter(blockedDomains, blockedPrefixes []string) *Filter {
	if blockedDomains == nil {
		blockedDomains = DefaultBlockedDomains
	}
	if blockedPrefixes == nil {
		blockedPrefixes = DefaultBlockedPrefixes
	}
	f := &Filter{domains: make(map[string]struct{}, len(blockedDomains))}
	for _, d := range blockedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.domains[d] = struct{}{}
		}
	}
	for _, p := range blockedPrefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			f.prefixes = append(f.prefixes, p)
		}
	}
	return f
}

// IsBusinessEmail reports whether email passes every rule.
func (f *Filter) IsBusinessEmail(email string) bool {
	return f.Reason(email) == ""
}

// Reason returns why email is rejected, or "" when it is accepted.
func (f *Filter) Reason(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) < minAddressLength {
		return "too short"
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "missing local part or domain"
	}
	local, domain := email[:at], email[at+1:]
	if !strings.Contains(domain, ".") {
		return "domain has no dot"
	}
	if _, blocked := f.domains[domain]; blocked {
		return "blocked domain"
	}
	for _, p := range f.prefixes {
		if strings.Contains(local, p) {
			return "generic mailbox"
		}
	}
	return ""
}
