package organize

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

const organizePromptTemplate = `Organize the following study items into one structured document. Identify relationships between notes and wrong questions: which notes explain the concepts behind which wrong questions.

Items in this group ("%s"):
%s
%s
Respond with JSON only:
{
    "summary": "overall summary of the content",
    "notes": [
        {"content": "the note content", "related_wrong_questions": [indices of related wrong questions]}
    ],
    "wrong_questions": [
        {"content": "the wrong question content", "related_notes": [indices of related notes],
         "mistake_explanation": "explanation of the mistake", "correct_approach": "correct approach to solve the problem"}
    ],
    "relationships": "description of how the items relate to each other"
}`

// Organizer issues one organize call per strategy group and assembles the
// resulting documents.
type Organizer struct {
	completer llm.Completer
	store     similarity.Store
	provider  config.ProviderConfig
	topK      int
	logger    *zap.Logger
}

// OrganizerOption configures an Organizer.
type OrganizerOption func(*Organizer)

// WithOrganizerLogger sets the organizer's logger.
func WithOrganizerLogger(logger *zap.Logger) OrganizerOption {
	return func(o *Organizer) {
		o.logger = logger
	}
}

// NewOrganizer builds a batch organizer. store may be nil.
func NewOrganizer(completer llm.Completer, store similarity.Store, provider config.ProviderConfig, topK int, opts ...OrganizerOption) *Organizer {
	o := &Organizer{
		completer: completer,
		store:     store,
		provider:  provider,
		topK:      topK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OrganizeByGroups runs one organize call per strategy group. A failed
// group yields its empty fallback document without disturbing siblings. If
// the grouped pass itself blows up, every item is retried as its own
// singleton group - a stronger degradation reserved for the unexpected.
func (o *Organizer) OrganizeByGroups(ctx context.Context, items []models.BatchItem, strategy models.OrganizationStrategy) (docs []models.OrganizedDocument) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("grouped organize pass failed, retrying items individually",
				zap.Any("panic", r))
			docs = o.organizeSingletons(ctx, items, fmt.Sprintf("grouped pass failed: %v", r))
		}
	}()

	docs = make([]models.OrganizedDocument, 0, len(strategy.Groups))
	for _, group := range strategy.Groups {
		docs = append(docs, o.OrganizeGroup(ctx, items, group))
	}
	return docs
}

// OrganizeGroup organizes the subset of items named by group into one
// structured document. Never fails: parse and network errors produce the
// empty fallback document.
func (o *Organizer) OrganizeGroup(ctx context.Context, items []models.BatchItem, group models.StrategyGroup) models.OrganizedDocument {
	subset, info := selectGroup(items, group)
	if len(subset) == 0 {
		return models.EmptyOrganizedDocument(info, "group has no valid items")
	}

	prompt := fmt.Sprintf(organizePromptTemplate,
		group.Name, describeGroupItems(subset), o.contextBlock(ctx, subset))

	reply, err := o.completer.Complete(ctx, prompt, llm.CallSpec{
		Temperature: o.provider.OrganizeTemperature,
		MaxTokens:   o.provider.OrganizeMaxTokens,
		Timeout:     time.Duration(o.provider.OrganizeTimeoutSec) * time.Second,
	})
	if err != nil {
		o.logger.Warn("organize call failed",
			zap.String("group", group.Name),
			zap.Error(err))
		return models.EmptyOrganizedDocument(info, fmt.Sprintf("completion failed: %v", err))
	}

	doc, err := parseOrganized(reply)
	if err != nil {
		o.logger.Warn("organize reply unusable",
			zap.String("group", group.Name),
			zap.Error(err))
		return models.EmptyOrganizedDocument(info, err.Error())
	}

	doc.Group = info
	o.logger.Debug("organized group",
		zap.String("group", group.Name),
		zap.Int("notes", len(doc.Notes)),
		zap.Int("wrong_questions", len(doc.WrongQuestions)))
	return doc
}

// organizeSingletons is the whole-pass fallback: one document per item.
func (o *Organizer) organizeSingletons(ctx context.Context, items []models.BatchItem, reason string) []models.OrganizedDocument {
	docs := make([]models.OrganizedDocument, 0, len(items))
	for i, item := range items {
		group := models.StrategyGroup{
			Name:        item.Filename,
			ItemIndices: []int{i},
			Rationale:   reason,
		}
		docs = append(docs, o.OrganizeGroup(ctx, items, group))
	}
	return docs
}

// selectGroup resolves group indices into the item subset, dropping
// anything out of range. The strategy producer is an external model; bad
// indices are filtered, not fatal.
func selectGroup(items []models.BatchItem, group models.StrategyGroup) ([]models.BatchItem, models.GroupInfo) {
	info := models.GroupInfo{Name: group.Name, Rationale: group.Rationale}
	var subset []models.BatchItem
	for _, idx := range group.ItemIndices {
		if idx < 0 || idx >= len(items) {
			continue
		}
		subset = append(subset, items[idx])
		info.ItemIndices = append(info.ItemIndices, idx)
		info.SourceFiles = append(info.SourceFiles, items[idx].Filename)
	}
	return subset, info
}

func describeGroupItems(items []models.BatchItem) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "Item %d (type: %s): %s\n",
			i+1, item.Classification.ContentType, utils.Truncate(item.Text, itemExcerptLen))
	}
	return b.String()
}

// contextBlock retrieves prior notes similar to the group's combined text.
func (o *Organizer) contextBlock(ctx context.Context, items []models.BatchItem) string {
	if o.store == nil || o.topK <= 0 {
		return ""
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	records, err := o.store.Query(ctx, strings.Join(texts, "\n"), o.topK)
	if err != nil {
		o.logger.Warn("group context lookup failed", zap.Error(err))
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nPreviously organized notes for context:\n")
	for _, r := range records {
		subject := r.Metadata["subject"]
		if subject == "" {
			subject = "unknown subject"
		}
		fmt.Fprintf(&b, "- %s: %s\n", subject, utils.Truncate(r.Text, itemExcerptLen))
	}
	return b.String()
}

type organizedReply struct {
	Summary        *string                `json:"summary"`
	Notes          []models.DocumentNote  `json:"notes"`
	WrongQuestions []models.WrongQuestion `json:"wrong_questions"`
	Relationships  string                 `json:"relationships"`
}

func parseOrganized(reply string) (models.OrganizedDocument, error) {
	var zero models.OrganizedDocument

	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return zero, fmt.Errorf("could not parse organize reply: %w", err)
	}
	var shape organizedReply
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return zero, fmt.Errorf("could not parse organize reply: %w", err)
	}
	if shape.Summary == nil {
		return zero, fmt.Errorf("organize reply missing summary")
	}

	doc := models.OrganizedDocument{
		Summary:        *shape.Summary,
		Notes:          shape.Notes,
		WrongQuestions: shape.WrongQuestions,
		Relationships:  shape.Relationships,
	}
	if doc.Notes == nil {
		doc.Notes = []models.DocumentNote{}
	}
	if doc.WrongQuestions == nil {
		doc.WrongQuestions = []models.WrongQuestion{}
	}
	return doc, nil
}
