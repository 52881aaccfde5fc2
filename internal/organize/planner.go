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

const itemExcerptLen = 200

const strategyPromptTemplate = `You are organizing a batch of %d study items extracted from photographed pages into output documents.

Items:
%s
%s
Choose exactly one strategy:
- "combine_all": all items belong in one document
- "separate_all": every item gets its own document
- "group_related": cluster related items into named groups

Respond with JSON only:
{
    "strategy": "combine_all" or "separate_all" or "group_related",
    "reasoning": "why this strategy fits",
    "groups": [
        {"name": "group name", "items": [0-based item indices], "rationale": "why these belong together"}
    ],
    "recommendations": {"file_naming": "naming hint", "content_structure": "structure hint"}
}`

// Planner asks the model for one organization strategy per batch and
// repairs the reply into a valid partition of the batch.
type Planner struct {
	completer llm.Completer
	store     similarity.Store
	provider  config.ProviderConfig
	topK      int
	logger    *zap.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerLogger sets the planner's logger.
func WithPlannerLogger(logger *zap.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner builds a strategy planner. store may be nil.
func NewPlanner(completer llm.Completer, store similarity.Store, provider config.ProviderConfig, topK int, opts ...PlannerOption) *Planner {
	p := &Planner{
		completer: completer,
		store:     store,
		provider:  provider,
		topK:      topK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RecommendStrategy chooses how the batch splits into documents. It is
// total: any model, network, or parse failure yields the deterministic
// separate-all fallback, so callers always receive a valid partition.
func (p *Planner) RecommendStrategy(ctx context.Context, items []models.BatchItem) models.OrganizationStrategy {
	if len(items) == 0 {
		return models.FallbackStrategy(0, "empty batch")
	}

	prompt := fmt.Sprintf(strategyPromptTemplate,
		len(items), describeItems(items), p.contextBlock(ctx, items))

	reply, err := p.completer.Complete(ctx, prompt, llm.CallSpec{
		Temperature: p.provider.OrganizeTemperature,
		MaxTokens:   p.provider.StrategyMaxTokens,
		Timeout:     time.Duration(p.provider.StrategyTimeoutSec) * time.Second,
	})
	if err != nil {
		p.logger.Warn("strategy call failed", zap.Int("items", len(items)), zap.Error(err))
		return models.FallbackStrategy(len(items), fmt.Sprintf("completion failed: %v", err))
	}

	strategy, err := parseStrategy(reply, len(items))
	if err != nil {
		p.logger.Warn("strategy reply unusable", zap.Int("items", len(items)), zap.Error(err))
		return models.FallbackStrategy(len(items), err.Error())
	}

	p.logger.Info("batch strategy chosen",
		zap.String("strategy", string(strategy.Strategy)),
		zap.Int("items", len(items)),
		zap.Int("groups", len(strategy.Groups)))
	return strategy
}

func describeItems(items []models.BatchItem) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "Item %d (%s, type: %s, confidence: %d%%, %d chars): %s\n",
			i, item.Filename, item.Classification.ContentType,
			item.Classification.Confidence, len(item.Text),
			utils.Truncate(item.Text, itemExcerptLen))
	}
	return b.String()
}

// contextBlock retrieves prior records similar to the whole batch, keyed on
// the concatenation of all item texts.
func (p *Planner) contextBlock(ctx context.Context, items []models.BatchItem) string {
	if p.store == nil || p.topK <= 0 {
		return ""
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	records, err := p.store.Query(ctx, strings.Join(texts, "\n"), p.topK)
	if err != nil {
		p.logger.Warn("batch context lookup failed", zap.Error(err))
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

type strategyReply struct {
	Strategy        *string                        `json:"strategy"`
	Reasoning       string                         `json:"reasoning"`
	Groups          []models.StrategyGroup         `json:"groups"`
	Recommendations models.StrategyRecommendations `json:"recommendations"`
}

func parseStrategy(reply string, n int) (models.OrganizationStrategy, error) {
	var zero models.OrganizationStrategy

	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return zero, fmt.Errorf("could not parse strategy reply: %w", err)
	}
	var shape strategyReply
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return zero, fmt.Errorf("could not parse strategy reply: %w", err)
	}
	if shape.Strategy == nil {
		return zero, fmt.Errorf("strategy reply missing strategy key")
	}

	strategy := models.OrganizationStrategy{
		Strategy:        models.StrategyKind(*shape.Strategy),
		Reasoning:       shape.Reasoning,
		Recommendations: shape.Recommendations,
	}

	switch strategy.Strategy {
	case models.StrategyCombineAll:
		strategy.Groups = []models.StrategyGroup{combineAllGroup(shape.Groups, n)}
	case models.StrategySeparateAll:
		strategy.Groups = separateAllGroups(shape.Groups, n)
	case models.StrategyGroupRelated:
		groups, err := repairGroups(shape.Groups, n)
		if err != nil {
			return zero, err
		}
		strategy.Groups = groups
	default:
		return zero, fmt.Errorf("unknown strategy %q", *shape.Strategy)
	}
	return strategy, nil
}

// combineAllGroup coerces combine_all to a single group spanning every
// index, whatever the model proposed. Items are never dropped.
func combineAllGroup(proposed []models.StrategyGroup, n int) models.StrategyGroup {
	group := models.StrategyGroup{Name: "Combined Notes", Rationale: "All items combined"}
	if len(proposed) > 0 {
		if proposed[0].Name != "" {
			group.Name = proposed[0].Name
		}
		if proposed[0].Rationale != "" {
			group.Rationale = proposed[0].Rationale
		}
	}
	group.ItemIndices = make([]int, n)
	for i := range group.ItemIndices {
		group.ItemIndices[i] = i
	}
	return group
}

// separateAllGroups assumes one group per item even when the model omitted
// or mangled the groups list, keeping model-provided names when the reply
// happens to be a valid list of singletons.
func separateAllGroups(proposed []models.StrategyGroup, n int) []models.StrategyGroup {
	valid := len(proposed) == n
	for _, g := range proposed {
		if len(g.ItemIndices) != 1 {
			valid = false
			break
		}
	}

	groups := make([]models.StrategyGroup, n)
	for i := range groups {
		groups[i] = models.StrategyGroup{
			Name:        fmt.Sprintf("Item %d", i+1),
			ItemIndices: []int{i},
			Rationale:   "Separate document",
		}
		if valid && proposed[i].Name != "" {
			groups[i].Name = proposed[i].Name
		}
	}
	return groups
}

// repairGroups validates a group_related partition: out-of-range and
// duplicate indices are filtered (the producer is an untrusted model),
// empty groups dropped, and uncovered items collected into a final group so
// nothing is lost. An empty or fully-invalid list is a parse failure.
func repairGroups(proposed []models.StrategyGroup, n int) ([]models.StrategyGroup, error) {
	if len(proposed) == 0 {
		return nil, fmt.Errorf("group_related reply has no groups")
	}

	seen := make(map[int]bool, n)
	var groups []models.StrategyGroup
	for _, g := range proposed {
		var indices []int
		for _, idx := range g.ItemIndices {
			if idx < 0 || idx >= n || seen[idx] {
				continue
			}
			seen[idx] = true
			indices = append(indices, idx)
		}
		if len(indices) == 0 {
			continue
		}
		g.ItemIndices = indices
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("group_related reply has no valid groups")
	}

	var missing []int
	for i := 0; i < n; i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		groups = append(groups, models.StrategyGroup{
			Name:        "Ungrouped",
			ItemIndices: missing,
			Rationale:   "Items the model left unassigned",
		})
	}
	return groups, nil
}
