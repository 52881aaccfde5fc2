package writer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/internal/similarity"
)

// stubStore returns a fixed query result so merge threshold behavior can be
// staged precisely.
type stubStore struct {
	result  []similarity.Record
	adds    []string
	updates []string
}

func (s *stubStore) Add(_ context.Context, id, _ string, _ map[string]string) error {
	s.adds = append(s.adds, id)
	return nil
}

func (s *stubStore) Query(context.Context, string, int) ([]similarity.Record, error) {
	return s.result, nil
}

func (s *stubStore) Update(_ context.Context, id, _ string, _ map[string]string) error {
	s.updates = append(s.updates, id)
	return nil
}

func (s *stubStore) Delete(context.Context, string) error { return nil }
func (s *stubStore) Count() int                           { return len(s.result) }

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	return func() time.Time { return t }
}

func testClassification() models.Classification {
	return models.Classification{
		Subject:     "math",
		ContentType: "notes",
		Confidence:  80,
		KeyConcepts: []string{"derivatives"},
		Notes:       "The derivative measures the rate of change.",
		Summary:     "Derivative basics.",
		SourceImage: "calc.jpg",
	}
}

func newTestWriter(t *testing.T, store similarity.Store) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWriter(config.NotesConfig{OutputDir: dir}, 0.8, store, WithClock(fixedClock()))
	if err != nil {
		t.Fatal(err)
	}
	return w, dir
}

func existingRecord(sim float64) similarity.Record {
	existing := models.Classification{
		Subject:     "math",
		ContentType: "notes",
		Confidence:  70,
		Notes:       "Old derivative notes.",
		SourceImage: "old.jpg",
	}
	raw, _ := json.Marshal(existing)
	return similarity.Record{
		ID:         "old_note.md",
		Similarity: sim,
		Metadata: map[string]string{
			"source":         "ocr",
			"subject":        "math",
			"classification": string(raw),
		},
	}
}

func TestSaveNoteCreatesFile(t *testing.T) {
	w, dir := newTestWriter(t, nil)

	path, merged, err := w.SaveNote(context.Background(), testClassification(), "raw extracted text", "calc.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Error("fresh note should not be merged")
	}
	if filepath.Base(path) != "calc_20250314_150926.md" {
		t.Errorf("filename = %q", filepath.Base(path))
	}
	content, err := os.ReadFile(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	for _, want := range []string{
		"# Math - Notes", "**Source:** calc.jpg", "**Confidence:** 80%",
		"## Key Concepts", "## Summary", "## Notes", "## Original Text", "raw extracted text",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered note missing %q", want)
		}
	}
}

func TestRenderNoteSectionOrder(t *testing.T) {
	text := RenderNote(testClassification(), "raw", "calc.jpg", fixedClock()())
	order := []string{"# Math - Notes", "**Source:**", "## Key Concepts", "## Summary", "## Notes", "## Original Text", "---"}
	last := -1
	for _, section := range order {
		idx := strings.Index(text, section)
		if idx < 0 {
			t.Fatalf("missing section %q", section)
		}
		if idx < last {
			t.Errorf("section %q out of order", section)
		}
		last = idx
	}
}

func TestSaveNoteMergesAboveThreshold(t *testing.T) {
	store := &stubStore{result: []similarity.Record{existingRecord(0.85)}}
	w, dir := newTestWriter(t, store)

	// The matched note must exist on disk for a merge to proceed.
	if err := os.WriteFile(filepath.Join(dir, "old_note.md"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	path, merged, err := w.SaveNote(context.Background(), testClassification(), "raw", "calc.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !merged {
		t.Fatal("similarity 0.85 against threshold 0.8 must merge")
	}
	if filepath.Base(path) != "old_note.md" {
		t.Errorf("merge should replace the matched file, wrote %q", filepath.Base(path))
	}
	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "old.jpg, calc.jpg") {
		t.Error("merged note should join both sources")
	}
	if len(store.updates) != 1 || store.updates[0] != "old_note.md" {
		t.Errorf("index update calls = %v", store.updates)
	}
	if len(store.adds) != 0 {
		t.Error("merge must not add a new index record")
	}
}

func TestSaveNoteBelowThresholdCreatesNew(t *testing.T) {
	store := &stubStore{result: []similarity.Record{existingRecord(0.79)}}
	w, _ := newTestWriter(t, store)

	_, merged, err := w.SaveNote(context.Background(), testClassification(), "raw", "calc.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Fatal("similarity 0.79 against threshold 0.8 must not merge")
	}
	if len(store.adds) != 1 {
		t.Errorf("new note should be indexed once, adds = %v", store.adds)
	}
	if len(store.updates) != 0 {
		t.Error("no merge should mean no index update")
	}
}

func TestSaveNoteMergeTargetMissingFallsBack(t *testing.T) {
	// Index says merge, but the matched file is gone: save as new instead.
	store := &stubStore{result: []similarity.Record{existingRecord(0.9)}}
	w, _ := newTestWriter(t, store)

	path, merged, err := w.SaveNote(context.Background(), testClassification(), "raw", "calc.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Error("missing target file should fall back to a fresh note")
	}
	if filepath.Base(path) == "old_note.md" {
		t.Error("fallback should not reuse the stale id")
	}
}

func TestSaveDocument(t *testing.T) {
	store := &stubStore{}
	w, _ := newTestWriter(t, store)

	doc := models.OrganizedDocument{
		Summary: "Comma rules.",
		Notes: []models.DocumentNote{
			{Content: "Commas separate items.", RelatedWrongQuestions: []int{0}},
		},
		WrongQuestions: []models.WrongQuestion{
			{Content: "Misplaced comma.", MistakeExplanation: "Missed the clause.", CorrectApproach: "Find clauses first."},
		},
		Relationships: "The note explains the mistake.",
		Group: models.GroupInfo{
			Name:        "Punctuation Rules",
			SourceFiles: []string{"a.jpg", "b.jpg"},
		},
	}
	path, err := w.SaveDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "punctuation_rules_20250314_150926.md" {
		t.Errorf("filename = %q", filepath.Base(path))
	}
	content, _ := os.ReadFile(path)
	text := string(content)
	for _, want := range []string{
		"# Punctuation Rules", "**Source:** a.jpg, b.jpg", "## Summary",
		"### Note 1", "## Wrong Questions", "**Mistake:**", "**Correct approach:**", "## Relationships",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered document missing %q", want)
		}
	}
	if len(store.adds) != 1 {
		t.Errorf("document should be indexed, adds = %v", store.adds)
	}
}

func TestSearchContent(t *testing.T) {
	got := SearchContent(testClassification())
	want := "Subject: math, Type: notes\nKey concepts: derivatives\nSummary: Derivative basics.\nNotes: The derivative measures the rate of change."
	if got != want {
		t.Errorf("search content = %q, want %q", got, want)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Punctuation Rules":  "punctuation_rules",
		"  Algebra II: 2x! ": "algebra_ii_2x",
		"___":                "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
