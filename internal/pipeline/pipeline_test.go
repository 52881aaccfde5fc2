package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/notedrop/seiri/internal/classify"
	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/llm"
	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/internal/organize"
	"github.com/notedrop/seiri/internal/quality"
	"github.com/notedrop/seiri/internal/recognize"
	"github.com/notedrop/seiri/internal/similarity"
	"github.com/notedrop/seiri/internal/writer"
)

const classifyReply = `{"subject": "math", "content_type": "notes", "confidence": 0.9,
	"key_concepts": ["algebra"], "notes": "Solving linear equations.", "summary": "Linear equations"}`

const strategyReply = `{"strategy": "combine_all", "reasoning": "same topic",
	"groups": [{"name": "Algebra", "items": [0, 1], "rationale": "shared subject"}]}`

const organizeReply = `{"summary": "Algebra session", "notes": [{"content": "Linear equations"}],
	"wrong_questions": [], "relationships": "none"}`

type memRecorder struct {
	results []models.ProcessingResult
}

func (r *memRecorder) Record(_ context.Context, result models.ProcessingResult) error {
	r.results = append(r.results, result)
	return nil
}

func newTestPipeline(t *testing.T, rec recognize.Recognizer, completer llm.Completer, batchSize int) (*Pipeline, *memRecorder, string) {
	t.Helper()
	outputDir := t.TempDir()
	store := similarity.NewMemoryStore()
	provider := config.ProviderConfig{BaseURL: "http://localhost:1234/v1", Model: "test-model"}

	w, err := writer.NewWriter(config.NotesConfig{OutputDir: outputDir}, 0.8, store)
	if err != nil {
		t.Fatal(err)
	}

	recorder := &memRecorder{}
	p := New(
		rec,
		quality.NewAssessor(),
		classify.NewClassifier(completer, store, provider, 3),
		organize.NewPlanner(completer, store, provider, 3),
		organize.NewOrganizer(completer, store, provider, 3),
		w,
		batchSize,
		WithHistory(recorder),
	)
	return p, recorder, outputDir
}

func TestProcessImage(t *testing.T) {
	rec := &recognize.MockRecognizer{Default: "Linear equations describe straight lines in the plane."}
	completer := llm.NewMockCompleter(classifyReply)
	p, recorder, _ := newTestPipeline(t, rec, completer, 0)

	result := p.ProcessImage(context.Background(), "/inbox/algebra.jpg")

	if result.Skipped {
		t.Fatalf("skipped: %s", result.Reason)
	}
	if result.Classification == nil || result.Classification.Subject != "math" {
		t.Errorf("classification = %+v", result.Classification)
	}
	if result.NotePath == "" {
		t.Error("note path not set")
	}
	if _, err := os.Stat(result.NotePath); err != nil {
		t.Errorf("note file missing: %v", err)
	}
	if result.TextQuality != models.TextGood {
		t.Errorf("text quality = %s", result.TextQuality)
	}
	if p.Pending() != 1 {
		t.Errorf("pending = %d, want 1", p.Pending())
	}
	if len(recorder.results) != 1 {
		t.Errorf("recorded = %d, want 1", len(recorder.results))
	}
}

func TestProcessImageRecognizerFailure(t *testing.T) {
	rec := &recognize.MockRecognizer{Err: errors.New("service down")}
	p, recorder, _ := newTestPipeline(t, rec, llm.NewMockCompleter(), 0)

	result := p.ProcessImage(context.Background(), "/inbox/broken.jpg")

	if !result.Skipped {
		t.Error("recognizer failure should skip, not error")
	}
	if !strings.Contains(result.Reason, "text extraction failed") {
		t.Errorf("reason = %q", result.Reason)
	}
	if result.Classification != nil {
		t.Error("skipped image should not be classified")
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d, want 0", p.Pending())
	}
	if len(recorder.results) != 1 {
		t.Error("skipped results still belong in history")
	}
}

func TestProcessImageEmptyText(t *testing.T) {
	rec := &recognize.MockRecognizer{Default: "   \n  "}
	p, _, _ := newTestPipeline(t, rec, llm.NewMockCompleter(), 0)

	result := p.ProcessImage(context.Background(), "/inbox/blank.jpg")

	if !result.Skipped || result.Reason != "no text extracted" {
		t.Errorf("result = %+v", result)
	}
}

func TestProcessImageDegradedClassificationStillSaved(t *testing.T) {
	rec := &recognize.MockRecognizer{Default: "Some readable study text here."}
	completer := llm.NewFailingCompleter(errors.New("model offline"))
	p, _, _ := newTestPipeline(t, rec, completer, 0)

	result := p.ProcessImage(context.Background(), "/inbox/notes.jpg")

	if result.Skipped {
		t.Fatal("model failure must not skip the image")
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if result.Classification == nil || result.Classification.ContentType != "unknown" {
		t.Errorf("classification = %+v", result.Classification)
	}
	if result.NotePath == "" {
		t.Error("degraded classifications still produce a note")
	}
	if p.Pending() != 1 {
		t.Errorf("pending = %d, want 1", p.Pending())
	}
}

func TestProcessBatchOrganizes(t *testing.T) {
	rec := &recognize.MockRecognizer{Texts: map[string]string{
		"a.jpg": "Linear equations have one variable.",
		"b.jpg": "Quadratic equations have a squared term.",
	}}
	completer := llm.NewMockCompleter(classifyReply, classifyReply, strategyReply, organizeReply)
	p, recorder, outputDir := newTestPipeline(t, rec, completer, 0)

	results := p.ProcessBatch(context.Background(), []string{"/inbox/a.jpg", "/inbox/b.jpg"})

	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].RunID != results[1].RunID {
		t.Error("batch images should share a run id")
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d, want 0 after flush", p.Pending())
	}
	if len(recorder.results) != 2 {
		t.Errorf("recorded = %d, want 2", len(recorder.results))
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	var organized bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "algebra_") {
			organized = true
		}
	}
	if !organized {
		t.Errorf("no organized document in %v", names(entries))
	}
}

func TestFlushEmptyBuffer(t *testing.T) {
	p, _, _ := newTestPipeline(t, &recognize.MockRecognizer{}, llm.NewMockCompleter(), 0)

	paths, err := p.Flush(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if paths != nil {
		t.Errorf("paths = %v, want nil", paths)
	}
}

func TestAutoFlushAtBatchSize(t *testing.T) {
	rec := &recognize.MockRecognizer{Default: "Readable text for batching."}
	completer := llm.NewMockCompleter(classifyReply, classifyReply, strategyReply, organizeReply)
	p, _, _ := newTestPipeline(t, rec, completer, 2)

	p.ProcessImage(context.Background(), "/inbox/one.jpg")
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", p.Pending())
	}
	p.ProcessImage(context.Background(), "/inbox/two.jpg")
	if p.Pending() != 0 {
		t.Errorf("pending = %d, want 0 after auto-flush", p.Pending())
	}
}

func names(entries []os.DirEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}
