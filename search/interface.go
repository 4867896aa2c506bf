// Package search defines the vector search boundary of the pipeline and
// an embedded implementation backed by chromem-go. The pipeline only ever
// reads from the index; ingestion happens elsewhere.
package search

import (
	"context"

	"github.com/quarrylabs/quarry/schema"
)

// Client is the interface for querying an indexed corpus. Search must be
// idempotent and safe for concurrent use; failures surface as errors, and
// callers are expected to isolate them rather than abort a whole
// retrieval strategy.
type Client interface {
	// Search returns up to limit passages relevant to the query, most
	// relevant first, each carrying a raw relevance score in [0, 1].
	Search(ctx context.Context, query string, limit int) ([]schema.Passage, error)
}
