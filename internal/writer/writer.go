package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/merge"
	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/internal/similarity"
)

const fileTimestampLayout = "20060102_150405"

// Writer persists rendered documents and keeps the similarity index in sync
// with what is on disk.
type Writer struct {
	outputDir string
	store     similarity.Store
	threshold float64
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithClock overrides the time source, for deterministic filenames in tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a writer that saves into cfg.OutputDir. store may be
// nil, in which case every note is saved as new and nothing is indexed.
func NewWriter(cfg config.NotesConfig, threshold float64, store similarity.Store, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	w := &Writer{
		outputDir: cfg.OutputDir,
		store:     store,
		threshold: threshold,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SaveNote persists a single classified note. When the similarity index
// reports an existing note above the merge threshold, the existing file is
// replaced with the merged content instead of creating a duplicate.
func (w *Writer) SaveNote(ctx context.Context, c models.Classification, extractedText, imageName string) (string, bool, error) {
	if target, ok := w.findMergeTarget(ctx, SearchContent(c)); ok {
		path, err := w.mergeInto(ctx, target, c, extractedText)
		if err == nil {
			return path, true, nil
		}
		// Merge problems degrade to a fresh note; the capture is never lost.
		w.logger.Warn("merge failed, saving as new note",
			zap.String("target", target.ID),
			zap.Error(err))
	}

	id := noteID(imageName, w.now())
	path := filepath.Join(w.outputDir, id)
	content := RenderNote(c, extractedText, imageName, w.now())
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", false, fmt.Errorf("failed to write note: %w", err)
	}

	w.index(ctx, id, SearchContent(c), noteMetadata(c))
	w.logger.Info("saved note", zap.String("path", path))
	return path, false, nil
}

// SaveDocument persists one organized batch document and indexes it.
func (w *Writer) SaveDocument(ctx context.Context, doc models.OrganizedDocument) (string, error) {
	id := documentID(doc.Group.Name, w.now())
	path := filepath.Join(w.outputDir, id)
	content := RenderDocument(doc, w.now())
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	w.index(ctx, id, DocumentSearchContent(doc), map[string]string{
		"source": "ocr",
		"topic":  doc.Group.Name,
	})
	w.logger.Info("saved organized document",
		zap.String("path", path),
		zap.Int("notes", len(doc.Notes)),
		zap.Int("wrong_questions", len(doc.WrongQuestions)))
	return path, nil
}

// findMergeTarget asks the index for the single closest note and applies
// the merge threshold: merge iff the best hit clears it.
func (w *Writer) findMergeTarget(ctx context.Context, search string) (similarity.Record, bool) {
	if w.store == nil {
		return similarity.Record{}, false
	}
	records, err := w.store.Query(ctx, search, 1)
	if err != nil {
		w.logger.Warn("duplicate lookup failed", zap.Error(err))
		return similarity.Record{}, false
	}
	if len(records) == 0 || records[0].Similarity < w.threshold {
		return similarity.Record{}, false
	}
	return records[0], true
}

// mergeInto replaces the matched note's file and index record with the
// merged content.
func (w *Writer) mergeInto(ctx context.Context, target similarity.Record, incoming models.Classification, extractedText string) (string, error) {
	path := filepath.Join(w.outputDir, target.ID)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("matched note file missing: %w", err)
	}

	existing, err := classificationFromMetadata(target.Metadata)
	if err != nil {
		return "", err
	}

	merged := merge.Merge(existing, incoming)
	content := RenderNote(merged, extractedText, merged.SourceImage, w.now())
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to rewrite merged note: %w", err)
	}

	if err := w.store.Update(ctx, target.ID, SearchContent(merged), noteMetadata(merged)); err != nil {
		w.logger.Warn("failed to update index after merge",
			zap.String("id", target.ID),
			zap.Error(err))
	}

	w.logger.Info("merged note",
		zap.String("path", path),
		zap.Float64("similarity", target.Similarity))
	return path, nil
}

func (w *Writer) index(ctx context.Context, id, search string, metadata map[string]string) {
	if w.store == nil {
		return
	}
	if err := w.store.Add(ctx, id, search, metadata); err != nil {
		// Indexing is best effort; the note is already on disk.
		w.logger.Warn("failed to index note", zap.String("id", id), zap.Error(err))
	}
}

// noteMetadata flattens the fields needed for context prompts and carries
// the full classification for later merges.
func noteMetadata(c models.Classification) map[string]string {
	meta := map[string]string{
		"source":       "ocr",
		"subject":      c.Subject,
		"content_type": c.ContentType,
	}
	if raw, err := json.Marshal(c); err == nil {
		meta["classification"] = string(raw)
	}
	return meta
}

func classificationFromMetadata(meta map[string]string) (models.Classification, error) {
	raw, ok := meta["classification"]
	if !ok {
		return models.Classification{}, fmt.Errorf("index record has no classification payload")
	}
	var c models.Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Classification{}, fmt.Errorf("index record classification unreadable: %w", err)
	}
	return c, nil
}

func noteID(imageName string, now time.Time) string {
	base := strings.TrimSuffix(imageName, filepath.Ext(imageName))
	return fmt.Sprintf("%s_%s.md", sanitizeName(base), now.Format(fileTimestampLayout))
}

func documentID(groupName string, now time.Time) string {
	name := sanitizeName(groupName)
	if name == "" {
		name = "study_notes"
	}
	return fmt.Sprintf("%s_%s.md", name, now.Format(fileTimestampLayout))
}

// sanitizeName reduces a free-form name to a safe filename fragment.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
