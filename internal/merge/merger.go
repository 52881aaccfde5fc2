// Package merge combines a new classification with an existing near-duplicate
// note so repeated study of a topic accumulates into one document.
package merge

import (
	"sort"
	"strings"

	"github.com/notedrop/seiri/internal/models"
	"github.com/notedrop/seiri/pkg/utils"
)

// sentenceOverlapThreshold is the word-overlap similarity above which a new
// sentence is considered already present in the existing note.
const sentenceOverlapThreshold = 0.8

// Merge combines existing and incoming into one note. Every field of the
// result is at least as informative as the richer of its inputs: content
// only grows, confidence takes the max, concepts take the union.
func Merge(existing, incoming models.Classification) models.Classification {
	merged := existing
	merged.Notes = mergeContent(existing.Notes, incoming.Notes)
	merged.KeyConcepts = mergeConcepts(existing.KeyConcepts, incoming.KeyConcepts)
	merged.Summary = mergeSummaries(existing.Summary, incoming.Summary)
	merged.Confidence = max(existing.Confidence, incoming.Confidence)
	merged.SourceImage = mergeSources(existing.SourceImage, incoming.SourceImage)
	merged.Subject = mergeSubjects(existing.Subject, incoming.Subject)
	return merged
}

// mergeContent prefers the clearly richer side: a much longer incoming text
// or one with more paragraph structure replaces the existing notes outright.
// Otherwise the existing notes are kept and genuinely new sentences from the
// incoming side are appended.
func mergeContent(existing, incoming string) string {
	if strings.TrimSpace(existing) == "" {
		return incoming
	}
	if strings.TrimSpace(incoming) == "" {
		return existing
	}
	if float64(len(incoming)) > float64(len(existing))*1.5 {
		return incoming
	}
	if strings.Count(incoming, "\n\n") > strings.Count(existing, "\n\n") {
		return incoming
	}

	existingSentences := utils.SplitSentences(existing)
	combined := existing
	for _, sentence := range utils.SplitSentences(incoming) {
		if !containsSimilar(existingSentences, sentence) {
			combined += "\n" + sentence
		}
	}
	return combined
}

func containsSimilar(sentences []string, candidate string) bool {
	for _, s := range sentences {
		if utils.WordOverlap(s, candidate) >= sentenceOverlapThreshold {
			return true
		}
	}
	return false
}

// mergeConcepts unions both lists, deduplicated, longest first so the most
// specific concepts surface at the top.
func mergeConcepts(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	var all []string
	for _, c := range append(append([]string{}, existing...), incoming...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		all = append(all, c)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return len(all[i]) > len(all[j])
	})
	return all
}

func mergeSummaries(existing, incoming string) string {
	if float64(len(incoming)) > float64(len(existing))*1.3 {
		return incoming
	}
	if strings.TrimSpace(existing) == "" {
		return incoming
	}
	return existing
}

func mergeSources(existing, incoming string) string {
	switch {
	case existing != "" && incoming != "":
		return existing + ", " + incoming
	case incoming != "":
		return incoming
	default:
		return existing
	}
}

// mergeSubjects keeps the existing subject unless it is the generic
// placeholder and the incoming one is not.
func mergeSubjects(existing, incoming string) string {
	if strings.EqualFold(existing, "general") && !strings.EqualFold(incoming, "general") {
		return incoming
	}
	return existing
}
