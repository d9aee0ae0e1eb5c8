package harvest

import "errors"

// Error kinds. Callers wrap these with context using fmt.Errorf and %w and
// match them with errors.Is.
var (
	// ErrFetch marks a site that could not be retrieved; the site yields nothing.
	ErrFetch = errors.New("fetch failed")
	// ErrSearch marks a search query that failed; the keyword is skipped.
	ErrSearch = errors.New("search failed")
	// ErrValidation marks a failed deliverability check; the address is invalid.
	ErrValidation = errors.New("validation failed")
	// ErrDispatch marks a transport failure for one recipient.
	ErrDispatch = errors.New("dispatch failed")
	// ErrStorage marks a read or write failure of the contact store.
	ErrStorage = errors.New("storage failed")
	// ErrInitialization marks a fatal setup failure (browser launch, transport).
	ErrInitialization = errors.New("initialization failed")
)
