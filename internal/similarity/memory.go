package similarity

import (
	"context"
	"sort"
	"sync"

	"github.com/notedrop/seiri/pkg/utils"
)

// MemoryStore is an in-memory Store for tests. Similarity is word-overlap
// Jaccard rather than an embedding distance, which makes threshold behavior
// easy to stage: identical text scores 1, disjoint text scores 0.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, id, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{ID: id, Text: text, Metadata: metadata}
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, text string, topK int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		r.Similarity = utils.WordOverlap(text, r.Text)
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{ID: id, Text: text, Metadata: metadata}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the stored record for id, for test assertions.
func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}
