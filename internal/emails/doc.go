// Package emails extracts address-shaped tokens from page text and decides
// whether an address looks like a reachable business contact. Every caller
// that needs either check goes through this package.
package emails
