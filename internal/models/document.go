package models

// DocumentNote is one study note inside an organized document.
type DocumentNote struct {
	Content               string `json:"content"`
	RelatedWrongQuestions []int  `json:"related_wrong_questions,omitempty"`
}

// WrongQuestion is one incorrectly-answered practice question inside an
// organized document, with its diagnosis.
type WrongQuestion struct {
	Content            string `json:"content"`
	RelatedNotes       []int  `json:"related_notes,omitempty"`
	MistakeExplanation string `json:"mistake_explanation,omitempty"`
	CorrectApproach    string `json:"correct_approach,omitempty"`
}

// GroupInfo identifies the strategy group an organized document came from.
type GroupInfo struct {
	Name        string   `json:"name"`
	Rationale   string   `json:"rationale,omitempty"`
	ItemIndices []int    `json:"item_indices"`
	SourceFiles []string `json:"source_files,omitempty"`
}

// OrganizedDocument is the structured output for one strategy group,
// persisted 1:1 to an output document. Cross references between notes and
// wrong questions are index lists local to the group.
type OrganizedDocument struct {
	Summary        string          `json:"summary"`
	Notes          []DocumentNote  `json:"notes"`
	WrongQuestions []WrongQuestion `json:"wrong_questions"`
	Relationships  string          `json:"relationships"`
	Group          GroupInfo       `json:"group"`
	Degraded       bool            `json:"degraded,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// EmptyOrganizedDocument returns the degraded per-group fallback: empty
// note and wrong-question lists with a failure-explaining summary, so one
// group's failure never aborts its siblings.
func EmptyOrganizedDocument(group GroupInfo, reason string) OrganizedDocument {
	return OrganizedDocument{
		Summary:        "Failed to organize content",
		Notes:          []DocumentNote{},
		WrongQuestions: []WrongQuestion{},
		Relationships:  reason,
		Group:          group,
		Degraded:       true,
		Reason:         reason,
	}
}
