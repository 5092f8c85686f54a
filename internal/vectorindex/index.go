// Package vectorindex defines the vector-index contract named as an
// external collaborator by the specification (§1/§6): the system depends
// only on this interface, never on a concrete embedding/ANN backend. A
// deterministic in-memory implementation is provided for tests and for the
// in-process default; swapping in a production backend (Chroma, pgvector,
// …) means implementing Index, not changing any caller.
package vectorindex

import "context"

// Match is one result of a similarity query: the document's metadata and
// its L2 distance from the query (lower is closer).
type Match struct {
	Metadata    map[string]string
	L2Distance  float64
}

// Index is the read-only-after-population vector search contract.
// Implementations must return matches sorted ascending by L2Distance.
type Index interface {
	// Query returns up to k matches for queryText, optionally filtered by
	// an equality where-clause over document metadata (e.g. {"category":
	// "Bags"}).
	Query(ctx context.Context, queryText string, k int, where map[string]string) ([]Match, error)
}
