// Package fetcher turns rendered HTML into the visible text and outgoing
// links of a harvest.Page. The colly and headless subpackages share it.
package fetcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// hiddenSelectors are elements whose text a reader never sees.
const hiddenSelectors = "script, style, noscript, template, head, svg"

// ParsePage reads an HTML document served from pageURL.
func ParsePage(pageURL string, body io.Reader) (harvest.Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return harvest.Page{}, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return harvest.Page{}, fmt.Errorf("parse page url: %w", err)
	}
	return harvest.Page{
		URL:   pageURL,
		Text:  VisibleText(doc),
		Links: Links(doc, base),
	}, nil
}

// VisibleText returns the whitespace-collapsed text of the body, plus any
// mailto: targets, which browsers render as link text but often hide.
func VisibleText(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	root = root.Clone()
	root.Find(hiddenSelectors).Remove()

	var raw strings.Builder
	writeText(root, &raw)

	var b strings.Builder
	b.WriteString(strings.Join(strings.Fields(raw.String()), " "))
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if addr = strings.TrimSpace(addr); addr != "" {
			b.WriteString(" ")
			b.WriteString(addr)
		}
	})
	return b.String()
}

// blockElements break lines when rendered, so their text never runs into a
// neighbour's.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true,
	"ul": true, "a": true, "button": true,
}

func writeText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(c.Text())
		case blockElements[name]:
			b.WriteString(" ")
			writeText(c, b)
			b.WriteString(" ")
		default:
			writeText(c, b)
		}
	})
}

// Links returns the absolute http(s) targets of every anchor, resolved
// against base, deduplicated in document order.
func Links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := Resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	})
	return out
}

// Resolve makes href absolute against base and drops the fragment. Only
// http and https targets are accepted.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}
