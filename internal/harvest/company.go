package harvest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompanyName derives a display name from an address's domain: the first
// label with its first letter upper-cased ("sales@acme.com.br" -> "Acme").
func CompanyName(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	domain := strings.ToLower(email[at+1:])
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

// Domain returns the lowercase part after the last '@', or "" if absent.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// NewContact builds a pending contact for a discovered address.
func NewContact(email, source, keyword string, clock Clock) Contact {
	email = NormalizeEmail(email)
	return Contact{
		Name:        CompanyName(email),
		Email:       email,
		Source:      source,
		Keyword:     keyword,
		CollectedAt: clock.Now().UTC(),
	}
}

// MatchesKeyword reports whether the contact's keyword contains kw, ignoring
// case. An empty kw matches everything.
func (c Contact) MatchesKeyword(kw string) bool {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Keyword), strings.ToLower(kw))
}

// FilterContacts returns the contacts matching kw and, when only is not
// empty, whose email is in only.
func FilterContacts(contacts []Contact, kw string, only []string) []Contact {
	var allow map[string]struct{}
	if len(only) > 0 {
		allow = make(map[string]struct{}, len(only))
		for _, e := range only {
			if key := NormalizeEmail(e); key != "" {
				allow[key] = struct{}{}
			}
		}
	}
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if !c.MatchesKeyword(kw) {
			continue
		}
		if allow != nil {
			if _, ok := allow[c.Key()]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
