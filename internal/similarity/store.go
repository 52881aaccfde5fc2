// Package similarity persists note embeddings and answers top-k
// nearest-neighbor queries for duplicate detection and prompt context.
package similarity

import "context"

// Record is one stored note's entry in the index. Similarity is populated
// on query results only, scaled 0-1 (1 = identical).
type Record struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float64
}

// Store is the vector index over persisted notes. IDs are stable note
// identifiers (output filenames); the id-to-file mapping must stay valid for
// the life of the record.
type Store interface {
	// Add indexes a new note. Adding an existing id replaces it.
	Add(ctx context.Context, id, text string, metadata map[string]string) error
	// Query returns up to topK records most similar to text, best first.
	Query(ctx context.Context, text string, topK int) ([]Record, error)
	// Update replaces a record's text and metadata in place, restamping
	// its embedding.
	Update(ctx context.Context, id, text string, metadata map[string]string) error
	// Delete removes a record; deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// Count reports how many records are indexed.
	Count() int
}
