// Package models defines core data structures for the note processing pipeline.
package models

// Classification is the structured result of classifying one extracted text.
// It is constructed once at the model-response parsing boundary and treated
// as immutable downstream. Confidence is always 0-100.
type Classification struct {
	Subject     string   `json:"subject"`
	ContentType string   `json:"content_type"`
	Confidence  int      `json:"confidence"`
	KeyConcepts []string `json:"key_concepts"`
	Notes       string   `json:"notes"`
	Summary     string   `json:"summary"`
	SourceImage string   `json:"source_image"`
	// Degraded marks a fallback classification produced after a model,
	// network, or parse failure; Reason names the cause.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// UnknownClassification returns the deterministic fallback classification
// used when the model response is unusable. The pipeline always receives a
// well-typed Classification, even when the model misbehaves.
func UnknownClassification(sourceImage, reason string) Classification {
	return Classification{
		Subject:     "general",
		ContentType: "unknown",
		Confidence:  0,
		SourceImage: sourceImage,
		Degraded:    true,
		Reason:      reason,
	}
}

// BatchItem is one accumulated (text, classification, filename) triple
// awaiting batch organization.
type BatchItem struct {
	Text           string         `json:"text"`
	Classification Classification `json:"classification"`
	Filename       string         `json:"filename"`
}
