package search

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/quarrylabs/quarry/schema"
)

// Metadata keys used when passages are stored in a chromem collection.
const (
	metaSource     = "source"
	metaChunkIndex = "chunk_index"
)

// ChromemClient implements Client on top of an embedded chromem-go
// collection. The collection's embedding function is supplied by the
// caller (or chromem's default) so this package stays ignorant of how
// embeddings are computed.
type ChromemClient struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemClient opens (or creates) a collection. An empty persistPath
// keeps the index in memory only. embedFunc may be nil, in which case
// chromem's default embedding function is used.
func NewChromemClient(persistPath, collectionName string, embedFunc chromem.EmbeddingFunc) (*ChromemClient, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	return &ChromemClient{db: db, collection: collection}, nil
}

// Add stores passages in the collection so they become searchable. The
// pipeline itself never writes; this exists for the indexing side of the
// boundary and for tests.
func (c *ChromemClient) Add(ctx context.Context, passages []schema.Passage) error {
	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			ID:      p.ID,
			Content: p.Content,
			Metadata: map[string]string{
				metaSource:     p.Source,
				metaChunkIndex: strconv.Itoa(p.ChunkIndex),
			},
		}
	}

	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to limit passages relevant to the query.
func (c *ChromemClient) Search(ctx context.Context, query string, limit int) ([]schema.Passage, error) {
	// chromem rejects result counts above the collection size.
	if count := c.collection.Count(); limit > count {
		limit = count
	}
	if limit <= 0 {
		return nil, nil
	}

	res, err := c.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w: %w", schema.ErrExternalService, err)
	}

	passages := make([]schema.Passage, len(res))
	for i, doc := range res {
		chunkIndex, _ := strconv.Atoi(doc.Metadata[metaChunkIndex])
		passages[i] = schema.Passage{
			ID:           doc.ID,
			Content:      doc.Content,
			Source:       doc.Metadata[metaSource],
			ChunkIndex:   chunkIndex,
			RawRelevance: clampUnit(float64(doc.Similarity)),
		}
	}
	return passages, nil
}

// clampUnit clamps v to [0, 1]. Cosine similarity can go slightly
// negative for unrelated content.
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ensure ChromemClient implements Client.
var _ Client = (*ChromemClient)(nil)
