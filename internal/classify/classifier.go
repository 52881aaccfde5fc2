// Package classify turns extracted text into a structured Classification
// via the external completion model, with prior-note context.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/llm"
	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/internal/similarity"
	"github.com/notedrop/seiri/pkg/utils"
)

const contextExcerptLen = 120

const classifyPromptTemplate = `Analyze the following text extracted from a photographed study page and produce a structured classification.

Content types: "notes" for educational content such as formulas, concepts, explanations, or study materials; "wrong_question" for a practice problem answered incorrectly, typically with the mistake and the correct approach.
%s
Text to analyze:
%s

Respond with JSON only, using this structure:
{
    "subject": "the academic subject, e.g. math, physics, english, or general",
    "content_type": "notes" or "wrong_question",
    "confidence": a number between 0 and 1,
    "key_concepts": ["the main concepts covered"],
    "notes": "the content rewritten as clean study notes",
    "summary": "one or two sentence summary"
}`

const corruptedPromptTemplate = `The following text was extracted from a photographed study page, but the extraction is heavily corrupted: many tokens are noise. Reconstruct what you can and produce a structured classification. Keep confidence low to reflect the uncertainty.

Content types: "notes" for educational content; "wrong_question" for a practice problem answered incorrectly.
%s
Corrupted text:
%s

Respond with JSON only, using this structure:
{
    "subject": "the academic subject, or general if unclear",
    "content_type": "notes" or "wrong_question",
    "confidence": a number between 0 and 1,
    "key_concepts": ["concepts you could recover"],
    "notes": "the recoverable content as study notes",
    "summary": "one sentence summary"
}`

// Classifier drives single-item classification calls.
type Classifier struct {
	completer llm.Completer
	store     similarity.Store
	provider  config.ProviderConfig
	topK      int
	logger    *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger for classification diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier builds a classifier. store may be nil, in which case prompts
// carry no prior-note context.
func NewClassifier(completer llm.Completer, store similarity.Store, provider config.ProviderConfig, topK int, opts ...Option) *Classifier {
	c := &Classifier{
		completer: completer,
		store:     store,
		provider:  provider,
		topK:      topK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify sends text to the model and parses the structured reply. It never
// fails: any model, network, or parse problem yields the deterministic
// unknown classification so one outage degrades one item, not the batch.
func (c *Classifier) Classify(ctx context.Context, text, sourceImage string, quality models.TextQuality) models.Classification {
	template := classifyPromptTemplate
	if quality == models.TextCorrupted {
		template = corruptedPromptTemplate
	}
	prompt := fmt.Sprintf(template, c.contextBlock(ctx, text), text)

	reply, err := c.completer.Complete(ctx, prompt, llm.CallSpec{
		Temperature: c.provider.ClassifyTemperature,
		MaxTokens:   c.provider.ClassifyMaxTokens,
		Timeout:     time.Duration(c.provider.ClassifyTimeoutSec) * time.Second,
	})
	if err != nil {
		c.logger.Warn("classification call failed",
			zap.String("source", sourceImage),
			zap.Error(err))
		return models.UnknownClassification(sourceImage, fmt.Sprintf("completion failed: %v", err))
	}

	classification, err := parseReply(reply)
	if err != nil {
		c.logger.Warn("classification reply unusable",
			zap.String("source", sourceImage),
			zap.Error(err))
		return models.UnknownClassification(sourceImage, err.Error())
	}

	classification.SourceImage = sourceImage
	c.logger.Debug("classified item",
		zap.String("source", sourceImage),
		zap.String("subject", classification.Subject),
		zap.String("content_type", classification.ContentType),
		zap.Int("confidence", classification.Confidence))
	return classification
}

// contextBlock renders up to topK similar prior notes as one-line
// annotations, tagged by provenance so the model knows whether a neighbor
// was imported from the user's vault or produced by an earlier scan.
func (c *Classifier) contextBlock(ctx context.Context, text string) string {
	if c.store == nil || c.topK <= 0 {
		return ""
	}
	records, err := c.store.Query(ctx, text, c.topK)
	if err != nil {
		// Context is an enhancement; classification proceeds without it.
		c.logger.Warn("context lookup failed", zap.Error(err))
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nPreviously organized notes that may be related:\n")
	for _, r := range records {
		provenance := "earlier scanned note"
		if r.Metadata["source"] == "imported" {
			provenance = "imported vault note"
		}
		subject := r.Metadata["subject"]
		if subject == "" {
			subject = "unknown subject"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", provenance, subject, utils.Truncate(r.Text, contextExcerptLen))
	}
	return b.String()
}

type replyShape struct {
	Subject     *string  `json:"subject"`
	ContentType *string  `json:"content_type"`
	Confidence  float64  `json:"confidence"`
	KeyConcepts []string `json:"key_concepts"`
	Notes       string   `json:"notes"`
	Summary     string   `json:"summary"`
}

func parseReply(reply string) (models.Classification, error) {
	var zero models.Classification

	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return zero, fmt.Errorf("could not parse model reply: %w", err)
	}
	var shape replyShape
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return zero, fmt.Errorf("could not parse model reply: %w", err)
	}
	if shape.Subject == nil || shape.ContentType == nil || *shape.ContentType == "" {
		return zero, fmt.Errorf("model reply missing required fields")
	}

	subject := *shape.Subject
	if subject == "" {
		subject = "general"
	}
	return models.Classification{
		Subject:     subject,
		ContentType: *shape.ContentType,
		Confidence:  normalizeConfidence(shape.Confidence),
		KeyConcepts: shape.KeyConcepts,
		Notes:       shape.Notes,
		Summary:     shape.Summary,
	}, nil
}

// normalizeConfidence maps model confidence onto the canonical 0-100 scale.
// Values at or below 1 are treated as fractions.
func normalizeConfidence(v float64) int {
	if v <= 1.0 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v + 0.5)
}
