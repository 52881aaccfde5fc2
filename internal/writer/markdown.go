// Package writer renders organized content to markdown and persists it,
// merging into an existing note when the similarity index flags a duplicate.
package writer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/notedrop/seiri/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// RenderNote renders a single classified note. Section order is fixed:
// title, source metadata, key concepts, summary, notes, original text,
// footer timestamp.
func RenderNote(c models.Classification, extractedText, sourceLabel string, now time.Time) string {
	timestamp := now.Format(timestampLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - %s\n\n", title(c.Subject, "General"), title(c.ContentType, "Notes"))
	fmt.Fprintf(&b, "**Source:** %s\n", sourceLabel)
	fmt.Fprintf(&b, "**Generated:** %s\n", timestamp)
	fmt.Fprintf(&b, "**Confidence:** %d%%\n\n", c.Confidence)

	if len(c.KeyConcepts) > 0 {
		b.WriteString("## Key Concepts\n\n")
		for _, concept := range c.KeyConcepts {
			fmt.Fprintf(&b, "- %s\n", concept)
		}
		b.WriteString("\n")
	}
	if c.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", c.Summary)
	}
	if c.Notes != "" {
		fmt.Fprintf(&b, "## Notes\n\n%s\n\n", c.Notes)
	}

	fmt.Fprintf(&b, "## Original Text\n\n```\n%s\n```\n\n", extractedText)
	fmt.Fprintf(&b, "---\n*Generated by seiri on %s*", timestamp)
	return b.String()
}

// RenderDocument renders one organized batch document: title, group
// metadata, summary, notes with cross references, wrong questions with
// their diagnosis, relationships, footer timestamp.
func RenderDocument(doc models.OrganizedDocument, now time.Time) string {
	timestamp := now.Format(timestampLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title(doc.Group.Name, "Study Notes"))
	if len(doc.Group.SourceFiles) > 0 {
		fmt.Fprintf(&b, "**Source:** %s\n", strings.Join(doc.Group.SourceFiles, ", "))
	}
	fmt.Fprintf(&b, "**Generated:** %s\n", timestamp)
	if doc.Group.Rationale != "" {
		fmt.Fprintf(&b, "**Grouping:** %s\n", doc.Group.Rationale)
	}
	b.WriteString("\n")

	if doc.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", doc.Summary)
	}

	if len(doc.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for i, note := range doc.Notes {
			fmt.Fprintf(&b, "### Note %d\n\n%s\n", i+1, note.Content)
			if len(note.RelatedWrongQuestions) > 0 {
				fmt.Fprintf(&b, "\n*Related wrong questions: %s*\n", indexList(note.RelatedWrongQuestions))
			}
			b.WriteString("\n")
		}
	}

	if len(doc.WrongQuestions) > 0 {
		b.WriteString("## Wrong Questions\n\n")
		for i, wq := range doc.WrongQuestions {
			fmt.Fprintf(&b, "### Wrong Question %d\n\n%s\n\n", i+1, wq.Content)
			if wq.MistakeExplanation != "" {
				fmt.Fprintf(&b, "**Mistake:** %s\n\n", wq.MistakeExplanation)
			}
			if wq.CorrectApproach != "" {
				fmt.Fprintf(&b, "**Correct approach:** %s\n\n", wq.CorrectApproach)
			}
			if len(wq.RelatedNotes) > 0 {
				fmt.Fprintf(&b, "*Related notes: %s*\n\n", indexList(wq.RelatedNotes))
			}
		}
	}

	if doc.Relationships != "" {
		fmt.Fprintf(&b, "## Relationships\n\n%s\n\n", doc.Relationships)
	}

	fmt.Fprintf(&b, "---\n*Generated by seiri on %s*", timestamp)
	return b.String()
}

// SearchContent builds the searchable text a note is indexed under. The
// same construction feeds duplicate detection and classification context.
func SearchContent(c models.Classification) string {
	var parts []string
	if c.Subject != "" || c.ContentType != "" {
		parts = append(parts, fmt.Sprintf("Subject: %s, Type: %s", c.Subject, c.ContentType))
	}
	if len(c.KeyConcepts) > 0 {
		parts = append(parts, "Key concepts: "+strings.Join(c.KeyConcepts, ", "))
	}
	if c.Summary != "" {
		parts = append(parts, "Summary: "+c.Summary)
	}
	if c.Notes != "" {
		parts = append(parts, "Notes: "+c.Notes)
	}
	return strings.Join(parts, "\n")
}

// DocumentSearchContent builds the searchable text for an organized batch
// document.
func DocumentSearchContent(doc models.OrganizedDocument) string {
	var parts []string
	if doc.Group.Name != "" {
		parts = append(parts, "Topic: "+doc.Group.Name)
	}
	if doc.Summary != "" {
		parts = append(parts, "Summary: "+doc.Summary)
	}
	for _, note := range doc.Notes {
		parts = append(parts, note.Content)
	}
	for _, wq := range doc.WrongQuestions {
		parts = append(parts, wq.Content)
	}
	return strings.Join(parts, "\n")
}

func title(s, fallback string) string {
	if s == "" {
		s = fallback
	}
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func indexList(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d", idx+1)
	}
	return strings.Join(parts, ", ")
}
