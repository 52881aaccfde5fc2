package organize

import (
	"context"
	"errors"
	"testing"

	"github.com/notedrop/seiri/internal/llm"
	"github.com/notedrop/seiri/internal/models"
)

func TestOrganizeGroupParsesDocument(t *testing.T) {
	mock := llm.NewMockCompleter(`{
		"summary": "Comma usage rules and a related mistake.",
		"notes": [{"content": "Commas separate list elements.", "related_wrong_questions": [0]}],
		"wrong_questions": [{"content": "Picked the wrong comma placement.",
			"related_notes": [0], "mistake_explanation": "Missed the clause boundary.",
			"correct_approach": "Find the independent clauses first."}],
		"relationships": "The note explains the rule behind the wrong question."
	}`)
	o := NewOrganizer(mock, nil, testProvider(), 0)

	items := makeItems(2)
	group := models.StrategyGroup{Name: "Punctuation", ItemIndices: []int{0, 1}, Rationale: "related"}
	doc := o.OrganizeGroup(context.Background(), items, group)

	if doc.Degraded {
		t.Fatalf("unexpected degraded document: %s", doc.Reason)
	}
	if len(doc.Notes) != 1 || len(doc.WrongQuestions) != 1 {
		t.Errorf("notes/wrong_questions = %d/%d", len(doc.Notes), len(doc.WrongQuestions))
	}
	if doc.Group.Name != "Punctuation" || len(doc.Group.SourceFiles) != 2 {
		t.Errorf("group info = %+v", doc.Group)
	}
}

func TestOrganizeGroupFailureYieldsEmptyDocument(t *testing.T) {
	mock := llm.NewFailingCompleter(errors.New("timeout"))
	o := NewOrganizer(mock, nil, testProvider(), 0)

	doc := o.OrganizeGroup(context.Background(), makeItems(1), models.StrategyGroup{Name: "G", ItemIndices: []int{0}})
	if !doc.Degraded {
		t.Fatal("expected degraded document")
	}
	if doc.Summary != "Failed to organize content" {
		t.Errorf("summary = %q", doc.Summary)
	}
	if doc.Notes == nil || doc.WrongQuestions == nil {
		t.Error("fallback document must have non-nil empty lists")
	}
	if len(doc.Notes) != 0 || len(doc.WrongQuestions) != 0 {
		t.Error("fallback document lists should be empty")
	}
}

func TestOrganizeGroupUnparsableReply(t *testing.T) {
	mock := llm.NewMockCompleter("absolutely not json")
	o := NewOrganizer(mock, nil, testProvider(), 0)

	doc := o.OrganizeGroup(context.Background(), makeItems(1), models.StrategyGroup{Name: "G", ItemIndices: []int{0}})
	if !doc.Degraded || doc.Relationships == "" {
		t.Errorf("unparsable reply should degrade with a reason, got %+v", doc)
	}
}

func TestOrganizeGroupFiltersBadIndices(t *testing.T) {
	mock := llm.NewMockCompleter(`{"summary":"s","notes":[],"wrong_questions":[],"relationships":""}`)
	o := NewOrganizer(mock, nil, testProvider(), 0)

	group := models.StrategyGroup{Name: "G", ItemIndices: []int{-1, 0, 99}}
	doc := o.OrganizeGroup(context.Background(), makeItems(1), group)
	if doc.Degraded {
		t.Fatalf("valid subset should organize: %s", doc.Reason)
	}
	if len(doc.Group.ItemIndices) != 1 || doc.Group.ItemIndices[0] != 0 {
		t.Errorf("indices = %v, want [0]", doc.Group.ItemIndices)
	}
}

func TestOrganizeGroupAllIndicesInvalid(t *testing.T) {
	mock := llm.NewMockCompleter(`{"summary":"s"}`)
	o := NewOrganizer(mock, nil, testProvider(), 0)

	doc := o.OrganizeGroup(context.Background(), makeItems(1), models.StrategyGroup{Name: "G", ItemIndices: []int{5}})
	if !doc.Degraded {
		t.Error("group with no valid items should degrade")
	}
	if mock.CallCount() != 0 {
		t.Error("no model call should be made for an empty group")
	}
}

func TestOrganizeByGroupsIsolatesFailures(t *testing.T) {
	// First group gets a good reply, second gets garbage.
	mock := llm.NewMockCompleter(
		`{"summary":"good","notes":[],"wrong_questions":[],"relationships":"r"}`,
		"garbage")
	o := NewOrganizer(mock, nil, testProvider(), 0)

	strategy := models.OrganizationStrategy{
		Strategy: models.StrategyGroupRelated,
		Groups: []models.StrategyGroup{
			{Name: "A", ItemIndices: []int{0}},
			{Name: "B", ItemIndices: []int{1}},
		},
	}
	docs := o.OrganizeByGroups(context.Background(), makeItems(2), strategy)
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].Degraded {
		t.Error("first group should succeed")
	}
	if !docs[1].Degraded {
		t.Error("second group should degrade without affecting the first")
	}
}
