// Package harvest holds the domain types shared by the collection and
// dispatch pipelines together with the capability interfaces (search,
// fetch, DNS, mail, storage) that concrete adapters implement.
package harvest
