// Package search turns keywords into search-engine queries and the queries
// into candidate site URLs.
//
// A Planner builds queries ("<keyword> em <city>" or "<keyword> <region>"),
// an EngineSearcher renders the results page in a browser tab, and
// FilterLinks reduces the page's anchors to at most max external http(s)
// links, dropping search-engine and social-network hosts.
package search
