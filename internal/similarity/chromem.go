package similarity

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/embedding"
)

// ChromemStore backs the similarity index with an embedded, persistent
// chromem database. Embeddings come from the configured Embedder, not from
// a remote embedding API.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedding.Embedder
	logger     *zap.Logger
}

// ChromemOption configures a ChromemStore.
type ChromemOption func(*ChromemStore)

// WithLogger sets the logger for index diagnostics.
func WithLogger(logger *zap.Logger) ChromemOption {
	return func(s *ChromemStore) {
		s.logger = logger
	}
}

// NewChromemStore opens (or creates) the persistent index at cfg.StorePath.
func NewChromemStore(cfg config.SimilarityConfig, embedder embedding.Embedder, opts ...ChromemOption) (*ChromemStore, error) {
	if err := os.MkdirAll(cfg.StorePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector store dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.StorePath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	s.collection, err = db.GetOrCreateCollection(cfg.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", cfg.Collection, err)
	}
	return s, nil
}

// Add indexes a note under id. An existing id is replaced.
func (s *ChromemStore) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed note %s: %w", id, err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Metadata:  stampCreated(metadata),
		Embedding: vec,
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to index note %s: %w", id, err)
	}

	s.logger.Debug("indexed note", zap.String("id", id), zap.Int("text_len", len(text)))
	return nil
}

// Query returns the topK most similar records, best first. Similarity is
// cosine, clamped to 0-1.
func (s *ChromemStore) Query(ctx context.Context, text string, topK int) ([]Record, error) {
	count := s.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	// chromem rejects nResults above the document count.
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	records := make([]Record, len(results))
	for i, r := range results {
		sim := float64(r.Similarity)
		if sim < 0 {
			sim = 0
		}
		records[i] = Record{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   r.Metadata,
			Similarity: sim,
		}
	}
	return records, nil
}

// Update re-embeds and replaces the record for id, stamping updated_at.
func (s *ChromemStore) Update(ctx context.Context, id, text string, metadata map[string]string) error {
	if err := s.Delete(ctx, id); err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed note %s: %w", id, err)
	}
	doc := chromem.Document{ID: id, Content: text, Metadata: meta, Embedding: vec}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to update note %s: %w", id, err)
	}

	s.logger.Debug("updated indexed note", zap.String("id", id))
	return nil
}

// Delete removes the record for id if present.
func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete note %s from index: %w", id, err)
	}
	return nil
}

// Count reports the number of indexed records.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func stampCreated(metadata map[string]string) map[string]string {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["created_at"]; !ok {
		meta["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	return meta
}
