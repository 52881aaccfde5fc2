// Package pipeline orchestrates the per-image processing flow: OCR, quality
// assessment, normalization, classification, note persistence, and batch
// organization of accumulated items.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/classify"
	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/internal/normalize"
	"github.com/notedrop/seiri/internal/organize"
	"github.com/notedrop/seiri/internal/quality"
	"github.com/notedrop/seiri/internal/recognize"
	"github.com/notedrop/seiri/internal/writer"
)

// Recorder persists processing results. Satisfied by history.Store.
type Recorder interface {
	Record(ctx context.Context, result models.ProcessingResult) error
}

// Pipeline wires the processing stages together. Images are processed
// sequentially; every image yields exactly one ProcessingResult.
type Pipeline struct {
	recognizer recognize.Recognizer
	assessor   *quality.Assessor
	classifier *classify.Classifier
	planner    *organize.Planner
	organizer  *organize.Organizer
	writer     *writer.Writer

	buffer    *organize.Buffer
	batchSize int

	history Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithHistory sets the result recorder. Without one, results are returned
// but not persisted.
func WithHistory(history Recorder) Option {
	return func(p *Pipeline) {
		p.history = history
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a pipeline. batchSize is how many classified items accumulate
// before organization runs automatically; zero disables auto-flush.
func New(
	recognizer recognize.Recognizer,
	assessor *quality.Assessor,
	classifier *classify.Classifier,
	planner *organize.Planner,
	organizer *organize.Organizer,
	w *writer.Writer,
	batchSize int,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		recognizer: recognizer,
		assessor:   assessor,
		classifier: classifier,
		planner:    planner,
		organizer:  organizer,
		writer:     w,
		buffer:     organize.NewBuffer(),
		batchSize:  batchSize,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessImage runs one image through the full flow. It never returns an
// error: input defects produce a skipped result, model failures a degraded
// one. The result is recorded in history when a recorder is configured.
func (p *Pipeline) ProcessImage(ctx context.Context, imagePath string) models.ProcessingResult {
	result := p.processOne(ctx, uuid.NewString(), imagePath)
	p.record(ctx, result)
	if p.batchSize > 0 && p.buffer.Len() >= p.batchSize {
		if _, err := p.Flush(ctx); err != nil {
			p.logger.Error("batch flush failed", zap.Error(err))
		}
	}
	return result
}

// ProcessBatch processes images sequentially under one run id, then flushes
// the accumulated batch into organized documents. One failed image never
// stops the rest.
func (p *Pipeline) ProcessBatch(ctx context.Context, imagePaths []string) []models.ProcessingResult {
	runID := uuid.NewString()
	results := make([]models.ProcessingResult, 0, len(imagePaths))
	for _, path := range imagePaths {
		result := p.processOne(ctx, runID, path)
		p.record(ctx, result)
		results = append(results, result)
	}
	if _, err := p.Flush(ctx); err != nil {
		p.logger.Error("batch flush failed", zap.Error(err))
	}
	return results
}

func (p *Pipeline) processOne(ctx context.Context, runID, imagePath string) models.ProcessingResult {
	start := p.now()
	imageName := filepath.Base(imagePath)
	result := models.ProcessingResult{
		RunID:     runID,
		ImagePath: imagePath,
		ImageName: imageName,
		CreatedAt: start,
	}
	result.Quality = p.assessor.AssessImageFile(imagePath)
	result.Orientation = p.assessor.DetectOrientationFile(imagePath)
	if result.Orientation.NeedsRotation {
		p.logger.Info("image appears rotated",
			zap.String("image", imageName),
			zap.Float64("angle", result.Orientation.Angle),
			zap.Float64("recommended_rotation", result.Orientation.RecommendedRotation))
	}

	text, err := p.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		p.logger.Warn("text extraction failed, skipping image",
			zap.String("image", imageName),
			zap.Error(err))
		result.Skipped = true
		result.Reason = "text extraction failed: " + err.Error()
		result.ProcessingTime = p.now().Sub(start)
		return result
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Info("no text extracted, skipping image",
			zap.String("image", imageName))
		result.Skipped = true
		result.Reason = "no text extracted"
		result.ProcessingTime = p.now().Sub(start)
		return result
	}

	report := p.assessor.AssessText(text)
	result.TextQuality = report.Quality
	if report.Quality != models.TextGood {
		p.logger.Warn("extracted text looks degraded",
			zap.String("image", imageName),
			zap.String("text_quality", string(report.Quality)),
			zap.Strings("signals", report.Signals))
	}

	cleaned := normalize.Clean(text)
	result.ExtractedText = cleaned

	classification := p.classifier.Classify(ctx, cleaned, imageName, report.Quality)
	result.Classification = &classification
	result.Degraded = classification.Degraded
	result.Reason = classification.Reason

	notePath, merged, err := p.writer.SaveNote(ctx, classification, cleaned, imageName)
	if err != nil {
		p.logger.Error("failed to save note",
			zap.String("image", imageName),
			zap.Error(err))
		result.Degraded = true
		result.Reason = "failed to save note: " + err.Error()
	} else {
		result.NotePath = notePath
		result.Merged = merged
	}

	p.buffer.Append(models.BatchItem{
		Text:           cleaned,
		Classification: classification,
		Filename:       imageName,
	})

	result.ProcessingTime = p.now().Sub(start)
	return result
}

// Flush drains the accumulated batch, plans an organization strategy, builds
// one document per group, and persists each. Returns the written document
// paths. An empty buffer is a no-op.
func (p *Pipeline) Flush(ctx context.Context) ([]string, error) {
	items := p.buffer.Drain()
	if len(items) == 0 {
		return nil, nil
	}

	p.logger.Info("organizing batch", zap.Int("items", len(items)))
	strategy := p.planner.RecommendStrategy(ctx, items)
	docs := p.organizer.OrganizeByGroups(ctx, items, strategy)

	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		path, err := p.writer.SaveDocument(ctx, doc)
		if err != nil {
			p.logger.Error("failed to save organized document",
				zap.String("group", doc.Group.Name),
				zap.Error(err))
			continue
		}
		paths = append(paths, path)
	}
	p.logger.Info("batch organized",
		zap.String("strategy", string(strategy.Strategy)),
		zap.Int("documents", len(paths)))
	return paths, nil
}

// Pending reports how many classified items await batch organization.
func (p *Pipeline) Pending() int {
	return p.buffer.Len()
}

func (p *Pipeline) record(ctx context.Context, result models.ProcessingResult) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(ctx, result); err != nil {
		p.logger.Error("failed to record processing result",
			zap.String("image", result.ImageName),
			zap.Error(err))
	}
}
