package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(validationCacheTotal.WithLabelValues("hit"))
	ObserveValidationCache(true)
	if got := testutil.ToFloat64(validationCacheTotal.WithLabelValues("hit")); got != before+1 {
		t.Errorf("expected cache hits to grow by 1, got %f -> %f", before, got)
	}

	sent := testutil.ToFloat64(dispatchSendsTotal.WithLabelValues("sent"))
	ObserveSend("sent")
	if got := testutil.ToFloat64(dispatchSendsTotal.WithLabelValues("sent")); got != sent+1 {
		t.Errorf("expected sends to grow by 1, got %f -> %f", sent, got)
	}

	ObserveFetch("https://acme.com/contato", "ok", 120*time.Millisecond)
	if got := testutil.ToFloat64(fetchPagesTotal.WithLabelValues("acme.com", "ok")); got < 1 {
		t.Errorf("expected fetch counter for acme.com, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
