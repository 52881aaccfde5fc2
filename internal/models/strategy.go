package models

import "strconv"

// StrategyKind is the chosen policy for splitting a batch into documents.
type StrategyKind string

// Organization strategies.
const (
	StrategyCombineAll   StrategyKind = "combine_all"
	StrategySeparateAll  StrategyKind = "separate_all"
	StrategyGroupRelated StrategyKind = "group_related"
)

// StrategyGroup names one output document and the batch positions it covers.
type StrategyGroup struct {
	Name        string `json:"name"`
	ItemIndices []int  `json:"items"` // 0-based positions into the batch
	Rationale   string `json:"rationale"`
}

// StrategyRecommendations carries the model's naming/structure hints.
type StrategyRecommendations struct {
	FileNaming       string `json:"file_naming,omitempty"`
	ContentStructure string `json:"content_structure,omitempty"`
}

// OrganizationStrategy is the validated plan for one batch. Groups always
// partition all item indices of the batch that produced the strategy:
// combine_all has exactly one group spanning every index, separate_all has
// one single-index group per item.
type OrganizationStrategy struct {
	Strategy        StrategyKind            `json:"strategy"`
	Reasoning       string                  `json:"reasoning"`
	Groups          []StrategyGroup         `json:"groups"`
	Recommendations StrategyRecommendations `json:"recommendations"`
	Degraded        bool                    `json:"degraded,omitempty"`
	Reason          string                  `json:"reason,omitempty"`
}

// FallbackStrategy returns the deterministic separate-all plan for n items:
// one group per item in original order with synthetic names. Used whenever
// the model reply is unusable; the planner is total.
func FallbackStrategy(n int, reason string) OrganizationStrategy {
	groups := make([]StrategyGroup, n)
	for i := range groups {
		groups[i] = StrategyGroup{
			Name:        synthGroupName(i),
			ItemIndices: []int{i},
			Rationale:   "Default separation",
		}
	}
	return OrganizationStrategy{
		Strategy:  StrategySeparateAll,
		Reasoning: "Fallback: " + reason,
		Groups:    groups,
		Degraded:  true,
		Reason:    reason,
	}
}

func synthGroupName(i int) string {
	return "Item " + strconv.Itoa(i+1)
}
