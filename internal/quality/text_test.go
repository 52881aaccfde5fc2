package quality

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/notedrop/seiri/internal/models"
)

func TestAssessTextGood(t *testing.T) {
	a := NewAssessor()
	text := "The derivative of a function measures the rate of change. " +
		"For polynomial functions we apply the power rule term by term."
	report := a.AssessText(text)
	if report.Quality != models.TextGood {
		t.Errorf("quality = %q (signals %v), want good", report.Quality, report.Signals)
	}
}

func TestAssessTextEmpty(t *testing.T) {
	a := NewAssessor()
	if q := a.AssessText("   \n\t ").Quality; q != models.TextGood {
		t.Errorf("whitespace-only text = %q, want good", q)
	}
}

func TestAssessTextPoor(t *testing.T) {
	a := NewAssessor()
	// Real words, but heavy noise punctuation: one or two signals, not three.
	report := a.AssessText(strings.Repeat("abc ~|^ ", 10))
	if report.Quality != models.TextPoor {
		t.Errorf("quality = %q (score %d, signals %v), want poor",
			report.Quality, report.Score, report.Signals)
	}
}

func TestAssessTextRandomShortTokens(t *testing.T) {
	// A long smear of random one- and two-letter tokens trips the
	// single-character, recognizable-word, and short-run heuristics at once.
	rng := rand.New(rand.NewSource(7))
	var b strings.Builder
	for b.Len() < 500 {
		n := 1 + rng.Intn(2)
		for i := 0; i < n; i++ {
			b.WriteByte(byte('a' + rng.Intn(26)))
		}
		b.WriteByte(' ')
	}

	a := NewAssessor()
	report := a.AssessText(b.String())
	if report.Quality != models.TextCorrupted {
		t.Errorf("quality = %q (score %d, signals %v), want corrupted",
			report.Quality, report.Score, report.Signals)
	}
}

func TestAssessTextArtifactTokens(t *testing.T) {
	a := NewAssessor()
	report := a.AssessText(strings.Repeat("rn ii ll ", 10) + "some actual words here")
	found := false
	for _, s := range report.Signals {
		if strings.Contains(s, "artifact") {
			found = true
		}
	}
	if !found {
		t.Errorf("artifact signal missing, got %v", report.Signals)
	}
}

func TestAssessTextScoreMonotonic(t *testing.T) {
	// Adding corruption to clean text must never improve the bucket.
	a := NewAssessor()
	clean := "Photosynthesis converts light energy into chemical energy stored in glucose molecules."
	dirty := clean + " " + strings.Repeat("x q ", 40)
	if a.AssessText(clean).Score > a.AssessText(dirty).Score {
		t.Error("corrupted variant scored lower than clean text")
	}
}
